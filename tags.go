package pyramidtiff

import (
	"encoding/binary"
	"io"
)

// TIFF field type codes (TIFF 6.0 / BigTIFF technical note).
const (
	tByte  = 1
	tAscii = 2
	tShort = 3
	tLong  = 4
	tLong8 = 16 // BigTIFF only
)

// tagWriter emits IFD tag entries in the classic-TIFF (12-byte) or BigTIFF
// (20-byte) wire format, following the teacher's field.go writeField/
// writeArray split between inline values and an "overflow" area holding
// anything too large to fit inline.
type tagWriter struct {
	enc     binary.ByteOrder
	bigtiff bool
}

// entrySize is the fixed size of one tag directory entry.
func (w tagWriter) entrySize() int {
	if w.bigtiff {
		return 20
	}
	return 12
}

// inlineCap is how many bytes of value data fit inline in an entry (after
// the 2-byte tag + 2-byte type + count fields).
func (w tagWriter) inlineCap() int {
	if w.bigtiff {
		return 8
	}
	return 4
}

// arraySize returns the total bytes an array-valued tag's entry plus any
// overflow spill will occupy.
func (w tagWriter) arraySize(elemSize, n int) int {
	total := elemSize * n
	if total <= w.inlineCap() {
		return w.entrySize()
	}
	return w.entrySize() + total
}

// overflow accumulates tag values that don't fit inline; it is appended to
// the IFD's byte stream immediately after the fixed-size tag directory and
// the NextIFD pointer, mirroring the teacher's TagData/NextOffset idiom.
type overflow struct {
	buf  []byte
	base uint64 // absolute file offset the overflow region starts at
}

func (o *overflow) nextOffset() uint64 { return o.base + uint64(len(o.buf)) }

func (w tagWriter) writeCount(out io.Writer, n uint64) error {
	if w.bigtiff {
		return binary.Write(out, w.enc, n)
	}
	return binary.Write(out, w.enc, uint16(n))
}

func (w tagWriter) writeOffset(out io.Writer, off uint64) error {
	if w.bigtiff {
		return binary.Write(out, w.enc, off)
	}
	return binary.Write(out, w.enc, uint32(off))
}

func (w tagWriter) putUint16Field(buf []byte, tag uint16, typ uint16, count uint64) {
	w.enc.PutUint16(buf[0:2], tag)
	w.enc.PutUint16(buf[2:4], typ)
	if w.bigtiff {
		w.enc.PutUint64(buf[4:12], count)
	} else {
		w.enc.PutUint32(buf[4:8], uint32(count))
	}
}

// writeShortField writes a single uint16 value inline.
func (w tagWriter) writeShortField(out io.Writer, tag uint16, v uint16) error {
	buf := make([]byte, w.entrySize())
	w.putUint16Field(buf, tag, tShort, 1)
	w.enc.PutUint16(buf[w.entrySize()-w.inlineCap():], v)
	_, err := out.Write(buf)
	return err
}

// writeLongField writes a single uint32 value inline.
func (w tagWriter) writeLongField(out io.Writer, tag uint16, v uint32) error {
	buf := make([]byte, w.entrySize())
	w.putUint16Field(buf, tag, tLong, 1)
	w.enc.PutUint32(buf[w.entrySize()-w.inlineCap():], v)
	_, err := out.Write(buf)
	return err
}

// writeUintField writes v as a Long (classic) or Long8 (bigtiff) value,
// used for ImageWidth/ImageLength/tile count fields whose width depends on
// the container policy.
func (w tagWriter) writeUintField(out io.Writer, tag uint16, v uint64) error {
	buf := make([]byte, w.entrySize())
	if w.bigtiff {
		w.putUint16Field(buf, tag, tLong8, 1)
		w.enc.PutUint64(buf[12:], v)
	} else {
		w.putUint16Field(buf, tag, tLong, 1)
		w.enc.PutUint32(buf[8:], uint32(v))
	}
	_, err := out.Write(buf)
	return err
}

// writeShortArray writes a []uint16 tag, spilling to ov when it doesn't fit
// inline.
func (w tagWriter) writeShortArray(out io.Writer, tag uint16, vs []uint16, ov *overflow) error {
	buf := make([]byte, w.entrySize())
	w.putUint16Field(buf, tag, tShort, uint64(len(vs)))
	inlineN := w.inlineCap() / 2
	valBuf := buf[w.entrySize()-w.inlineCap():]
	if len(vs) <= inlineN {
		for i, v := range vs {
			w.enc.PutUint16(valBuf[i*2:], v)
		}
	} else {
		off := ov.nextOffset()
		if w.bigtiff {
			w.enc.PutUint64(valBuf, off)
		} else {
			w.enc.PutUint32(valBuf, uint32(off))
		}
		for _, v := range vs {
			tmp := make([]byte, 2)
			w.enc.PutUint16(tmp, v)
			ov.buf = append(ov.buf, tmp...)
		}
	}
	_, err := out.Write(buf)
	return err
}

// writeUintArray writes a slice of per-tile offsets/byte-counts, using
// 32-bit (classic) or 64-bit (bigtiff) elements per the container policy.
func (w tagWriter) writeUintArray(out io.Writer, tag uint16, vs []uint64, ov *overflow) error {
	buf := make([]byte, w.entrySize())
	elemSize := 4
	typ := uint16(tLong)
	if w.bigtiff {
		elemSize = 8
		typ = tLong8
	}
	w.putUint16Field(buf, tag, typ, uint64(len(vs)))
	inlineN := w.inlineCap() / elemSize
	valBuf := buf[w.entrySize()-w.inlineCap():]
	if len(vs) <= inlineN {
		for i, v := range vs {
			if w.bigtiff {
				w.enc.PutUint64(valBuf[i*8:], v)
			} else {
				w.enc.PutUint32(valBuf[i*4:], uint32(v))
			}
		}
	} else {
		off := ov.nextOffset()
		if w.bigtiff {
			w.enc.PutUint64(valBuf, off)
		} else {
			w.enc.PutUint32(valBuf, uint32(off))
		}
		for _, v := range vs {
			tmp := make([]byte, elemSize)
			if w.bigtiff {
				w.enc.PutUint64(tmp, v)
			} else {
				w.enc.PutUint32(tmp, uint32(v))
			}
			ov.buf = append(ov.buf, tmp...)
		}
	}
	_, err := out.Write(buf)
	return err
}

// writeBytesArray writes an opaque []byte tag (used for JPEGTables),
// undefined type.
func (w tagWriter) writeBytesArray(out io.Writer, tag uint16, vs []byte, ov *overflow) error {
	const tUndefined = 7
	buf := make([]byte, w.entrySize())
	w.putUint16Field(buf, tag, tUndefined, uint64(len(vs)))
	valBuf := buf[w.entrySize()-w.inlineCap():]
	if len(vs) <= w.inlineCap() {
		copy(valBuf, vs)
	} else {
		off := ov.nextOffset()
		if w.bigtiff {
			w.enc.PutUint64(valBuf, off)
		} else {
			w.enc.PutUint32(valBuf, uint32(off))
		}
		ov.buf = append(ov.buf, vs...)
	}
	_, err := out.Write(buf)
	return err
}

// writeAsciiField writes a NUL-terminated string tag.
func (w tagWriter) writeAsciiField(out io.Writer, tag uint16, s string, ov *overflow) error {
	data := append([]byte(s), 0)
	buf := make([]byte, w.entrySize())
	w.putUint16Field(buf, tag, tAscii, uint64(len(data)))
	valBuf := buf[w.entrySize()-w.inlineCap():]
	if len(data) <= w.inlineCap() {
		copy(valBuf, data)
	} else {
		off := ov.nextOffset()
		if w.bigtiff {
			w.enc.PutUint64(valBuf, off)
		} else {
			w.enc.PutUint32(valBuf, uint32(off))
		}
		ov.buf = append(ov.buf, data...)
	}
	_, err := out.Write(buf)
	return err
}
