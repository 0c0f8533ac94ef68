package pyramidtiff

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fakeTile(n int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, n, n))
}

func TestVerticalCacheInsertTake(t *testing.T) {
	var c verticalCache
	c.insert(10, 20, fakeTile(1))
	c.insert(10, 50, fakeTile(2))

	tile, ok := c.tryTake(10, 20)
	assert.True(t, ok)
	assert.Equal(t, 1, tile.Bounds().Dx())

	_, ok = c.tryTake(10, 20)
	assert.False(t, ok, "takes should be destructive")

	tile, ok = c.tryTake(10, 50)
	assert.True(t, ok)
	assert.Equal(t, 2, tile.Bounds().Dx())
}

func TestHorizontalCacheInsertTake(t *testing.T) {
	var c horizontalCache
	_, ok := c.tryTake(1, 1)
	assert.False(t, ok, "empty cache never hits")

	c.insert(5, 5, fakeTile(3))
	tile, ok := c.tryTake(5, 5)
	assert.True(t, ok)
	assert.Equal(t, 3, tile.Bounds().Dx())

	_, ok = c.tryTake(5, 5)
	assert.False(t, ok)
}

func TestStripeCachesRotate(t *testing.T) {
	s := newStripeCaches()
	s.backup.vertical.insert(1, 1, fakeTile(4))
	s.backup.horizontal.insert(2, 2, fakeTile(5))

	s.Rotate()

	tile, ok := s.current.vertical.tryTake(1, 1)
	assert.True(t, ok)
	assert.Equal(t, 4, tile.Bounds().Dx())

	tile, ok = s.current.horizontal.tryTake(2, 2)
	assert.True(t, ok)
	assert.Equal(t, 5, tile.Bounds().Dx())

	// The new backup (formerly current) must be empty.
	_, ok = s.backup.vertical.tryTake(1, 1)
	assert.False(t, ok)
}

func TestPackKeyIsInjective(t *testing.T) {
	assert.NotEqual(t, packKey(1, 2), packKey(2, 1))
	assert.Equal(t, packKey(3, 4), packKey(3, 4))
}
