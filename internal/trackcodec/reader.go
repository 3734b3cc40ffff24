package trackcodec

import (
	"encoding/binary"
	"math"
)

// reader walks a descriptor buffer. Every read is big-endian and
// fails with ErrUnexpectedEndOfData instead of reading past the end.
type reader struct {
	buf []byte
	off int
}

func (r *reader) next(n int) ([]byte, error) {
	if n < 0 || len(r.buf)-r.off < n {
		return nil, ErrUnexpectedEndOfData
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) readByte() (byte, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readBool() (bool, error) {
	b, err := r.readByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (r *reader) readUint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) readUint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) readInt64() (int64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *reader) readUTF() (string, error) {
	n, err := r.readUint16()
	if err != nil {
		return "", err
	}
	body, err := r.next(int(n))
	if err != nil {
		return "", err
	}
	return decodeModifiedUTF8(body)
}

// readNullableUTF reads a presence flag followed by the string when present.
func (r *reader) readNullableUTF() (string, bool, error) {
	present, err := r.readBool()
	if err != nil {
		return "", false, err
	}
	if !present {
		return "", false, nil
	}
	s, err := r.readUTF()
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

type writer struct {
	buf []byte
}

func (w *writer) writeByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *writer) writeBool(v bool) {
	if v {
		w.writeByte(1)
		return
	}
	w.writeByte(0)
}

func (w *writer) writeInt64(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

func (w *writer) writeUTF(s string) error {
	body := encodeModifiedUTF8(s)
	if len(body) > math.MaxUint16 {
		return ErrStringTooLong
	}
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(len(body)))
	w.buf = append(w.buf, body...)
	return nil
}
