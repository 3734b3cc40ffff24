package trackcodec

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBase64       = errors.New("invalid base64 track")
	ErrUnexpectedEndOfData = errors.New("unexpected end of data")
	ErrMalformedString     = errors.New("malformed modified utf-8 string")
	ErrStringTooLong       = errors.New("string exceeds 65535 encoded bytes")
)

// DecodeError is returned for every track that cannot be decoded.
// Field names the part of the descriptor that was being read.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode track: %v", e.Err)
	}
	return fmt.Sprintf("decode track %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var _ error = (*DecodeError)(nil)
