package pyramidtiff

import (
	"encoding/binary"
	"image"
	"image/jpeg"
	"io"

	"github.com/orcaman/writerseeker"
)

// JPEG marker bytes relevant to table extraction/stripping.
const (
	markerSOI = 0xD8
	markerEOI = 0xD9
	markerDQT = 0xDB
	markerDHT = 0xC4
	markerSOS = 0xDA
	markerRST0 = 0xD0
	markerRST7 = 0xD7
)

// tileEncoder is C7's JPEG half: encode each output canvas with the
// standard library's encoder (Go's image/jpeg always emits the same fixed
// Huffman tables and, for a given quality, the same quantization tables
// regardless of image content, which is what makes sharing them across
// tiles safe). When shared quantization tables are enabled, the DQT/DHT
// segments of the first encoded tile are captured verbatim as the
// JPEGTables field's content and stripped from every tile's own stream.
type tileEncoder struct {
	quality int
	shared  bool
	tables  []byte // captured lazily from the first tile, nil until then
}

func newTileEncoder(cfg Config) *tileEncoder {
	return &tileEncoder{quality: cfg.Quality, shared: cfg.SharedQuantTables}
}

// encodeTile JPEG-encodes img, appends it to w at the current write
// position, and returns that position and the byte count written — the
// pair recorded as one TileOffsets/TileByteCounts entry.
func (e *tileEncoder) encodeTile(w io.WriteSeeker, img image.Image) (offset uint64, n uint64, err error) {
	ws := &writerseeker.WriterSeeker{}
	if err := jpeg.Encode(ws, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return 0, 0, newErr(KindEncodeFailed, "encode tile jpeg", err)
	}
	data, err := io.ReadAll(ws.BytesReader())
	if err != nil {
		return 0, 0, newErr(KindEncodeFailed, "read encoded tile", err)
	}

	if e.shared {
		tables, stripped, err := splitJPEGTables(data)
		if err != nil {
			return 0, 0, newErr(KindEncodeFailed, "split jpeg tables", err)
		}
		if e.tables == nil {
			e.tables = tables
		}
		data = stripped
	}

	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, 0, newErr(KindIoFailed, "tell tile write position", err)
	}
	if _, err := w.Write(data); err != nil {
		return 0, 0, newErr(KindIoFailed, "write tile bytes", err)
	}
	return uint64(pos), uint64(len(data)), nil
}

// sharedTables returns the captured JPEGTables content, or nil if no tile
// has been encoded yet (shared mode with an empty base layer never occurs,
// since the grid always has at least one tile).
func (e *tileEncoder) sharedTables() []byte { return e.tables }

// splitJPEGTables walks data's marker segments, returning a standalone
// table-specification stream (SOI, the DQT/DHT segments, EOI) and a copy of
// data with those same segments removed, leaving SOF/SOS/entropy-coded
// data/EOI intact so it can be reassembled against the shared tables by
// any compliant reader (per the TIFF 6.0 JPEGTables field definition).
func splitJPEGTables(data []byte) (tables []byte, stripped []byte, err error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, nil, newErr(KindEncodeFailed, "jpeg stream missing SOI", nil)
	}

	var tbuf, sbuf []byte
	sbuf = append(sbuf, data[0:2]...)
	i := 2

	for i < len(data) {
		if data[i] != 0xFF {
			return nil, nil, newErr(KindEncodeFailed, "malformed jpeg marker", nil)
		}
		marker := data[i+1]
		if marker == markerEOI {
			sbuf = append(sbuf, data[i:i+2]...)
			i += 2
			break
		}
		if marker == 0x01 || (marker >= markerRST0 && marker <= markerRST7) {
			// markerless; shouldn't appear outside scan data for our encoder,
			// but skip defensively.
			i += 2
			continue
		}

		length := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		segEnd := i + 2 + length
		if segEnd > len(data) {
			return nil, nil, newErr(KindEncodeFailed, "jpeg segment length overruns stream", nil)
		}
		seg := data[i:segEnd]

		if marker == markerDQT || marker == markerDHT {
			tbuf = append(tbuf, seg...)
		} else {
			sbuf = append(sbuf, seg...)
		}

		if marker == markerSOS {
			j := segEnd
			for j < len(data)-1 {
				if data[j] == 0xFF && data[j+1] != 0x00 && !(data[j+1] >= markerRST0 && data[j+1] <= markerRST7) {
					break
				}
				j++
			}
			sbuf = append(sbuf, data[segEnd:j]...)
			i = j
			continue
		}
		i = segEnd
	}

	tables = append([]byte{0xFF, markerSOI}, tbuf...)
	tables = append(tables, 0xFF, markerEOI)
	return tables, sbuf, nil
}
