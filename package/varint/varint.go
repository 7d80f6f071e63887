// Package varint reads base-128 varints and length-delimited values from an
// immutable byte buffer, the primitives of the protobuf wire format.
//
// See https://protobuf.dev/programming-guides/encoding/#varints.
package varint

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxVarintLen is the longest encoding of a 64-bit varint.
const MaxVarintLen = 10

var (
	// ErrTruncatedInput is returned when the buffer ends inside a value.
	ErrTruncatedInput = errors.New("truncated input")
	// ErrVarintOverflow is returned when a varint does not terminate within
	// MaxVarintLen bytes or does not fit into 64 bits.
	ErrVarintOverflow = errors.New("varint overflow")
)

// Reader is a read cursor over buf. The buffer is never modified; slices
// returned by ReadLengthDelimited alias it.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos reports the cursor position, 0 <= Pos() <= Len().
func (r *Reader) Pos() int { return r.pos }

// Len reports the buffer length.
func (r *Reader) Len() int { return len(r.buf) }

// AtEnd reports whether the cursor is at the end of the buffer.
func (r *Reader) AtEnd() bool { return r.pos >= len(r.buf) }

// ReadVarint consumes one varint of 1 to MaxVarintLen bytes.
func (r *Reader) ReadVarint() (uint64, error) {
	v, n := protowire.ConsumeVarint(r.buf[r.pos:])
	if n < 0 {
		return 0, r.fail(n)
	}
	r.pos += n
	return v, nil
}

// ReadLengthDelimited consumes a varint length L followed by L bytes and
// returns those bytes.
func (r *Reader) ReadLengthDelimited() ([]byte, error) {
	v, n := protowire.ConsumeBytes(r.buf[r.pos:])
	if n < 0 {
		return nil, r.fail(n)
	}
	r.pos += n
	return v, nil
}

// ReadTag consumes a field tag and splits it into its field number and wire
// type. The field number is not validated.
func (r *Reader) ReadTag() (uint64, protowire.Type, error) {
	tag, err := r.ReadVarint()
	if err != nil {
		return 0, 0, err
	}
	return tag >> 3, protowire.Type(tag & 0b111), nil
}

// Skip consumes and discards one value of the given wire type. Only varint
// and length-delimited values can be skipped.
func (r *Reader) Skip(typ protowire.Type) error {
	switch typ {
	case protowire.VarintType:
		_, err := r.ReadVarint()
		return err
	case protowire.BytesType:
		_, err := r.ReadLengthDelimited()
		return err
	default:
		return fmt.Errorf("cannot skip wire type %d at offset %d", typ, r.pos)
	}
}

// fail converts a negative protowire length into one of the package errors.
// ConsumeVarint and ConsumeBytes only report truncation or overflow.
func (r *Reader) fail(n int) error {
	if errors.Is(protowire.ParseError(n), io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w at offset %d", ErrTruncatedInput, r.pos)
	}
	return fmt.Errorf("%w at offset %d", ErrVarintOverflow, r.pos)
}
