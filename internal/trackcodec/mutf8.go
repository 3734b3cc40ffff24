package trackcodec

import (
	"strings"
	"unicode/utf16"
)

// decodeModifiedUTF8 turns the body of a modified UTF-8 string into a Go string.
// Code units are collected as UTF-16 so that surrogate pairs written as two
// three byte sequences recombine into a single rune.
func decodeModifiedUTF8(b []byte) (string, error) {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c&0x80 == 0:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) {
				return "", ErrUnexpectedEndOfData
			}
			c2 := b[i+1]
			if c2&0xC0 != 0x80 {
				return "", ErrMalformedString
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(c2&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) {
				return "", ErrUnexpectedEndOfData
			}
			c2, c3 := b[i+1], b[i+2]
			if c2&0xC0 != 0x80 || c3&0xC0 != 0x80 {
				return "", ErrMalformedString
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(c2&0x3F)<<6|uint16(c3&0x3F))
			i += 3
		default:
			return "", ErrMalformedString
		}
	}

	if isASCII(units) {
		var sb strings.Builder
		sb.Grow(len(units))
		for _, u := range units {
			sb.WriteByte(byte(u))
		}
		return sb.String(), nil
	}
	return string(utf16.Decode(units)), nil
}

func isASCII(units []uint16) bool {
	for _, u := range units {
		if u >= 0x80 {
			return false
		}
	}
	return true
}

// encodeModifiedUTF8 is the inverse of decodeModifiedUTF8.
// NUL is written as the two byte form and supplementary characters
// as a pair of three byte surrogates.
func encodeModifiedUTF8(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, len(units))
	for _, u := range units {
		switch {
		case u != 0 && u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out,
				0xC0|byte(u>>6),
				0x80|byte(u&0x3F),
			)
		default:
			out = append(out,
				0xE0|byte(u>>12),
				0x80|byte((u>>6)&0x3F),
				0x80|byte(u&0x3F),
			)
		}
	}
	return out
}
