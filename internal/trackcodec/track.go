package trackcodec

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	flagVersioned = 1

	headerFlagShift = 30
	headerSizeMask  = 0x3FFFFFFF

	// CurrentVersion is the version Encode writes.
	CurrentVersion = 2
)

// Track is a decoded track descriptor.
type Track struct {
	// Encoded is the base64 descriptor the track was decoded from.
	// It is what the node expects back in play commands.
	Encoded string

	Title      string
	Author     string
	Length     time.Duration
	Identifier string
	IsStream   bool
	IsSeekable bool
	// Position is the offset playback starts from. The descriptor does not
	// carry it; the HTTP API reports it and PlayPartial sets it.
	Position   time.Duration
	URI        string
	HasURI     bool

	Version int
	// DeclaredSize is the payload size claimed by the header.
	// Nodes are known to write inaccurate values so it is never validated.
	DeclaredSize int
}

// Duration is the playable length of the track. Streams have none.
func (t Track) Duration() time.Duration {
	if t.IsStream {
		return 0
	}
	return t.Length
}

// Decode parses a base64 track descriptor.
func Decode(encoded string) (Track, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Track{}, &DecodeError{Err: fmt.Errorf("%w: %w", ErrInvalidBase64, err)}
	}

	track, err := decodeBytes(raw)
	if err != nil {
		return Track{}, err
	}
	track.Encoded = encoded
	return track, nil
}

// DecodeAll decodes several descriptors, stopping at the first failure.
func DecodeAll(encoded ...string) ([]Track, error) {
	tracks := make([]Track, 0, len(encoded))
	for _, e := range encoded {
		t, err := Decode(e)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

func decodeBytes(raw []byte) (Track, error) {
	r := &reader{buf: raw}
	fail := func(field string, err error) (Track, error) {
		return Track{}, &DecodeError{Field: field, Err: err}
	}

	header, err := r.readUint32()
	if err != nil {
		return fail("header", err)
	}
	flags := header >> headerFlagShift

	var t Track
	t.DeclaredSize = int(header & headerSizeMask)
	t.Version = 1
	if flags&flagVersioned != 0 {
		v, err := r.readByte()
		if err != nil {
			return fail("version", err)
		}
		t.Version = int(v)
	}

	if t.Title, err = r.readUTF(); err != nil {
		return fail("title", err)
	}
	if t.Author, err = r.readUTF(); err != nil {
		return fail("author", err)
	}
	length, err := r.readInt64()
	if err != nil {
		return fail("length", err)
	}
	t.Length = time.Duration(length) * time.Millisecond
	if t.Identifier, err = r.readUTF(); err != nil {
		return fail("identifier", err)
	}
	if t.IsStream, err = r.readBool(); err != nil {
		return fail("stream", err)
	}
	if t.Version >= 2 {
		if t.URI, t.HasURI, err = r.readNullableUTF(); err != nil {
			return fail("uri", err)
		}
	}
	t.IsSeekable = !t.IsStream

	return t, nil
}

// Encode writes t as a version 2 descriptor. The returned string decodes
// back to the same title, author, length, identifier, stream flag and URI.
func Encode(t Track) (string, error) {
	body := &writer{}
	body.writeByte(CurrentVersion)
	for _, f := range []struct {
		name  string
		value string
	}{
		{"title", t.Title},
		{"author", t.Author},
	} {
		if err := body.writeUTF(f.value); err != nil {
			return "", fmt.Errorf("encode track %s: %w", f.name, err)
		}
	}
	body.writeInt64(t.Length.Milliseconds())
	if err := body.writeUTF(t.Identifier); err != nil {
		return "", fmt.Errorf("encode track identifier: %w", err)
	}
	body.writeBool(t.IsStream)
	hasURI := t.HasURI || t.URI != ""
	body.writeBool(hasURI)
	if hasURI {
		if err := body.writeUTF(t.URI); err != nil {
			return "", fmt.Errorf("encode track uri: %w", err)
		}
	}

	header := uint32(flagVersioned)<<headerFlagShift | uint32(len(body.buf))&headerSizeMask
	out := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(body.buf)), header)
	out = append(out, body.buf...)
	return base64.StdEncoding.EncodeToString(out), nil
}
