package pyramidtiff

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallIFD(tables []byte, software string, reduced bool) ifdTiles {
	return ifdTiles{
		width: 16, height: 16, tileWidth: 16, tileLen: 16,
		tileOffsets: []uint64{1234}, tileByteCounts: []uint64{56},
		jpegTables: tables, software: software, reducedResolution: reduced,
	}
}

func TestContainerHeaderClassic(t *testing.T) {
	buf := &seekBuf{}
	c, err := newContainer(buf, false)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x49, 0x49}, buf.buf[0:2], "II byte order mark")
	assert.Equal(t, uint16(42), binary.LittleEndian.Uint16(buf.buf[2:4]), "classic TIFF magic")
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf.buf[4:8]), "first-IFD offset starts as a placeholder")
	assert.EqualValues(t, 4, c.headerNextIFDField)
	assert.Len(t, buf.buf, 8)
}

func TestContainerHeaderBigTIFF(t *testing.T) {
	buf := &seekBuf{}
	_, err := newContainer(buf, true)
	require.NoError(t, err)

	assert.Equal(t, uint16(43), binary.LittleEndian.Uint16(buf.buf[2:4]))
	assert.Equal(t, uint16(8), binary.LittleEndian.Uint16(buf.buf[4:6]), "bigtiff offset byte size")
	assert.Len(t, buf.buf, 16, "II + magic + offsetsize + reserved + 8-byte first-ifd offset")
}

func TestAppendIFDPatchesHeaderFirstIFDOffset(t *testing.T) {
	buf := &seekBuf{}
	c, err := newContainer(buf, false)
	require.NoError(t, err)

	require.NoError(t, c.AppendIFD(smallIFD(nil, "", false)))

	firstIFDOffset := binary.LittleEndian.Uint32(buf.buf[4:8])
	assert.EqualValues(t, 8, firstIFDOffset, "the IFD begins immediately after the 8-byte classic header")

	entryCount := binary.LittleEndian.Uint16(buf.buf[8:10])
	assert.EqualValues(t, 12, entryCount, "the 12 always-present tags with no JPEGTables/Software")
}

func TestAppendIFDTagsAreSortedAscending(t *testing.T) {
	buf := &seekBuf{}
	c, err := newContainer(buf, false)
	require.NoError(t, err)
	require.NoError(t, c.AppendIFD(smallIFD([]byte{0xFF, 0xD8, 0xFF, 0xD9}, "pyramidtiff", false)))

	entryCount := int(binary.LittleEndian.Uint16(buf.buf[8:10]))
	assert.EqualValues(t, 14, entryCount, "12 base tags plus JPEGTables and Software")

	base := 10
	var prev uint16
	for i := 0; i < entryCount; i++ {
		tag := binary.LittleEndian.Uint16(buf.buf[base+i*12 : base+i*12+2])
		if i > 0 {
			assert.Greaterf(t, tag, prev, "tag %d must sort after tag %d", tag, prev)
		}
		prev = tag
	}
}

func TestAppendIFDChainsNextIFDPointers(t *testing.T) {
	buf := &seekBuf{}
	c, err := newContainer(buf, false)
	require.NoError(t, err)

	require.NoError(t, c.AppendIFD(smallIFD(nil, "", false)))
	secondStart := uint64(len(buf.buf))
	require.NoError(t, c.AppendIFD(smallIFD(nil, "", true)))

	entryCount := int(binary.LittleEndian.Uint16(buf.buf[8:10]))
	nextIFDFieldOffset := 8 + 2 + entryCount*12
	patched := binary.LittleEndian.Uint32(buf.buf[nextIFDFieldOffset : nextIFDFieldOffset+4])
	assert.EqualValues(t, secondStart, patched, "first IFD's NextIFD field must point at the second IFD")

	// The second (and last) IFD's own NextIFD field is still the terminal zero.
	lastEntryCount := int(binary.LittleEndian.Uint16(buf.buf[int(secondStart) : int(secondStart)+2]))
	lastNextField := int(secondStart) + 2 + lastEntryCount*12
	assert.EqualValues(t, 0, binary.LittleEndian.Uint32(buf.buf[lastNextField:lastNextField+4]))
}
