package dzisrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `<?xml version="1.0" encoding="UTF-8"?>
<Image TileSize="254" Overlap="1" Format="JPG" xmlns="http://schemas.microsoft.com/deepzoom/2008">
    <Size Width="1000" Height="800"/>
</Image>`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "jpg", m.Format, "format is lowercased")
	assert.Equal(t, 254, m.TileSize)
	assert.Equal(t, 1, m.Overlap)
	assert.Equal(t, 1000, m.Width)
	assert.Equal(t, 800, m.Height)
}

func TestParseManifestRejectsInvalid(t *testing.T) {
	_, err := ParseManifest([]byte(`<Image TileSize="0" Overlap="1" Format="jpg"><Size Width="10" Height="10"/></Image>`))
	assert.Error(t, err)
}

func TestParseManifestRejectsMalformedXML(t *testing.T) {
	_, err := ParseManifest([]byte(`not xml at all`))
	assert.Error(t, err)
}

func TestTileURL(t *testing.T) {
	u := tileURL("https://example.com/slides", "slide1", "jpg", 9, 2, 3)
	assert.Equal(t, "https://example.com/slides/slide1_files/9/2_3.jpg", u)

	// A trailing slash on the base URI must not produce a double slash.
	u2 := tileURL("https://example.com/slides/", "slide1", "jpg", 9, 2, 3)
	assert.Equal(t, u, u2)
}
