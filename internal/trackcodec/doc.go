// Package trackcodec decodes and encodes the base64 track descriptors
// produced by the audio node.
//
// A descriptor is a big-endian binary message:
//
//	[int32 header: 2 flag bits | 30 bit size]
//	[uint8 version]            only when flag bit 0 is set, otherwise version 1
//	[utf title][utf author][int64 length ms][utf identifier][bool stream]
//	[bool present][utf uri]    only when version >= 2
//
// Strings use the modified UTF-8 layout: a uint16 byte count followed by
// one, two or three byte sequences encoding UTF-16 code units.
package trackcodec
