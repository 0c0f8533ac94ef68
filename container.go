package pyramidtiff

import (
	"encoding/binary"
	"fmt"
	"io"
)

// bigtiffThreshold is the pixel-count threshold above which the container
// switches from classic TIFF to BigTIFF, per §4.8: width*height > 2^29.
const bigtiffThreshold = 1 << 29

// chooseBigTIFF decides the container policy (C8) for the whole pyramid from
// the base image dimensions alone: once chosen it applies uniformly to the
// base IFD and every overview IFD, since a TIFF file has a single header.
func chooseBigTIFF(width, height int) bool {
	return uint64(width)*uint64(height) > bigtiffThreshold
}

// ifdTiles describes one IFD's worth of tags: a full-resolution or reduced-
// resolution tiled image, JPEG-compressed, optionally carrying a shared
// JPEGTables field and a Software tag.
type ifdTiles struct {
	width, height       uint64
	tileWidth, tileLen  uint32
	tileOffsets         []uint64
	tileByteCounts      []uint64
	jpegTables          []byte // nil unless shared quantization tables are enabled
	software            string // empty to omit the tag
	reducedResolution   bool
}

// TIFF tag numbers used by this writer (the full field catalogue of a
// tiled, JPEG-compressed RGB image — far smaller than a general-purpose
// GeoTIFF writer's tag zoo, since we emit no georeferencing tags).
const (
	tagNewSubfileType             = 254
	tagImageWidth                 = 256
	tagImageLength                = 257
	tagBitsPerSample              = 258
	tagCompression                = 259
	tagPhotometricInterpretation  = 262
	tagSoftware                   = 305
	tagSamplesPerPixel            = 277
	tagTileWidth                  = 322
	tagTileLength                 = 323
	tagTileOffsets                = 324
	tagTileByteCounts             = 325
	tagJPEGTables                 = 347
	tagSampleFormat                = 339

	compressionJPEG          = 7
	photometricYCbCr         = 6
	subfileReducedResolution = 1
)

// container is an incrementally-built TIFF/BigTIFF file: the base IFD and
// each overview IFD are appended in turn, the file header's first-IFD
// offset and each IFD's NextIFD field are patched via seek-back writes, in
// the manner of the teacher's TagData/NextOffset bookkeeping (cog.go)
// adapted here to a single streaming pass instead of a whole-tree flush.
type container struct {
	w       io.WriteSeeker
	enc     binary.ByteOrder
	bigtiff bool
	tw      tagWriter

	headerNextIFDField uint64 // absolute offset of the "first IFD" field in the header
	prevNextIFDField   uint64 // absolute offset of the previous IFD's NextIFD field, 0 if none yet

	baseWidth, baseHeight int // full-resolution dimensions, set once by the base layer writer
}

// newContainer writes the TIFF/BigTIFF header (byte order, magic, and a
// placeholder first-IFD offset) and returns a container ready to accept
// IFDs via AppendIFD.
func newContainer(w io.WriteSeeker, bigtiff bool) (*container, error) {
	enc := binary.LittleEndian
	c := &container{w: w, enc: enc, bigtiff: bigtiff, tw: tagWriter{enc: enc, bigtiff: bigtiff}}

	if err := binary.Write(w, enc, uint16(0x4949)); err != nil { // "II"
		return nil, newErr(KindIoFailed, "write byte order mark", err)
	}
	if bigtiff {
		if err := binary.Write(w, enc, uint16(43)); err != nil {
			return nil, newErr(KindIoFailed, "write bigtiff magic", err)
		}
		if err := binary.Write(w, enc, uint16(8)); err != nil { // offset byte size
			return nil, newErr(KindIoFailed, "write bigtiff offset size", err)
		}
		if err := binary.Write(w, enc, uint16(0)); err != nil { // constant
			return nil, newErr(KindIoFailed, "write bigtiff reserved", err)
		}
	} else {
		if err := binary.Write(w, enc, uint16(42)); err != nil {
			return nil, newErr(KindIoFailed, "write classic magic", err)
		}
	}

	pos, err := c.tell()
	if err != nil {
		return nil, err
	}
	c.headerNextIFDField = pos
	if err := c.tw.writeOffset(w, 0); err != nil {
		return nil, newErr(KindIoFailed, "write first ifd placeholder", err)
	}
	return c, nil
}

func (c *container) tell() (uint64, error) {
	pos, err := c.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, newErr(KindIoFailed, "tell position", err)
	}
	return uint64(pos), nil
}

// AppendIFD writes ifd as a new IFD at the file's current end, patches
// whichever pointer (the header's first-IFD field, or the previous IFD's
// NextIFD field) should reference it, and remembers this IFD's own
// NextIFD field location for the next call to patch in turn.
func (c *container) AppendIFD(ifd ifdTiles) error {
	start, err := c.tell()
	if err != nil {
		return err
	}

	entries := c.buildEntries(ifd)

	ov := &overflow{base: start + c.dirHeaderSize() + uint64(len(entries))*uint64(c.tw.entrySize()) + c.nextFieldSize()}

	if err := c.tw.writeCount(c.w, uint64(len(entries))); err != nil {
		return newErr(KindIoFailed, "write ifd entry count", err)
	}

	nextFieldOffset := start + c.dirHeaderSize() + uint64(len(entries))*uint64(c.tw.entrySize())

	for _, e := range entries {
		if err := e.write(c.w, c.tw, ov); err != nil {
			return newErr(KindIoFailed, fmt.Sprintf("write tag %d", e.tag), err)
		}
	}

	// NextIFD placeholder; patched by the following AppendIFD call, or left
	// as the terminal zero if this is the last IFD.
	if err := c.tw.writeOffset(c.w, 0); err != nil {
		return newErr(KindIoFailed, "write next ifd placeholder", err)
	}

	if len(ov.buf) > 0 {
		if _, err := c.w.Write(ov.buf); err != nil {
			return newErr(KindIoFailed, "write ifd overflow", err)
		}
	}

	if err := c.patchPointer(c.pendingPointerField(), start); err != nil {
		return err
	}
	c.prevNextIFDField = nextFieldOffset
	return nil
}

func (c *container) pendingPointerField() uint64 {
	if c.prevNextIFDField == 0 {
		return c.headerNextIFDField
	}
	return c.prevNextIFDField
}

// patchPointer seeks back to fieldOffset, writes target, and restores the
// write cursor to the file's current end so subsequent appends continue
// sequentially.
func (c *container) patchPointer(fieldOffset, target uint64) error {
	end, err := c.tell()
	if err != nil {
		return err
	}
	if _, err := c.w.Seek(int64(fieldOffset), io.SeekStart); err != nil {
		return newErr(KindIoFailed, "seek to patch pointer", err)
	}
	if err := c.tw.writeOffset(c.w, target); err != nil {
		return newErr(KindIoFailed, "patch pointer", err)
	}
	if _, err := c.w.Seek(int64(end), io.SeekStart); err != nil {
		return newErr(KindIoFailed, "restore write cursor", err)
	}
	return nil
}

func (c *container) dirHeaderSize() uint64 {
	if c.bigtiff {
		return 8
	}
	return 2
}

func (c *container) nextFieldSize() uint64 {
	if c.bigtiff {
		return 8
	}
	return 4
}

// tagEntry is one pending IFD tag, deferred so the overflow base offset can
// be computed before any tag is actually serialized.
type tagEntry struct {
	tag   uint16
	write func(w io.Writer, tw tagWriter, ov *overflow) error
}

func (c *container) buildEntries(ifd ifdTiles) []tagEntry {
	subfileType := uint32(0)
	if ifd.reducedResolution {
		subfileType = subfileReducedResolution
	}

	entries := []tagEntry{
		{tagNewSubfileType, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeLongField(w, tagNewSubfileType, subfileType)
		}},
		{tagImageWidth, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeUintField(w, tagImageWidth, ifd.width)
		}},
		{tagImageLength, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeUintField(w, tagImageLength, ifd.height)
		}},
		{tagBitsPerSample, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeShortArray(w, tagBitsPerSample, []uint16{8, 8, 8}, ov)
		}},
		{tagCompression, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeShortField(w, tagCompression, compressionJPEG)
		}},
		{tagPhotometricInterpretation, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeShortField(w, tagPhotometricInterpretation, photometricYCbCr)
		}},
		{tagSamplesPerPixel, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeShortField(w, tagSamplesPerPixel, 3)
		}},
		{tagTileWidth, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeShortField(w, tagTileWidth, uint16(ifd.tileWidth))
		}},
		{tagTileLength, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeShortField(w, tagTileLength, uint16(ifd.tileLen))
		}},
		{tagTileOffsets, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeUintArray(w, tagTileOffsets, ifd.tileOffsets, ov)
		}},
		{tagTileByteCounts, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeUintArray(w, tagTileByteCounts, ifd.tileByteCounts, ov)
		}},
		{tagSampleFormat, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeShortArray(w, tagSampleFormat, []uint16{1, 1, 1}, ov)
		}},
	}

	if ifd.jpegTables != nil {
		entries = append(entries, tagEntry{tagJPEGTables, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeBytesArray(w, tagJPEGTables, ifd.jpegTables, ov)
		}})
	}
	if ifd.software != "" {
		entries = append(entries, tagEntry{tagSoftware, func(w io.Writer, tw tagWriter, ov *overflow) error {
			return tw.writeAsciiField(w, tagSoftware, ifd.software, ov)
		}})
	}

	// TIFF requires tags sorted in ascending numeric order within a directory.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].tag > entries[j].tag; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
	return entries
}
