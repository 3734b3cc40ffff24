package lavalink

import "errors"

var (
	// ErrNotReady is returned by Connect when the Discord session has not
	// resolved the bot user or shard count yet.
	ErrNotReady = errors.New("discord session is not ready")
	// ErrNotConnected is returned for commands on a disposed session and for
	// sends while the node socket is down.
	ErrNotConnected = errors.New("not connected")
	// ErrNodeStopped is returned once Stop has been called.
	ErrNodeStopped = errors.New("node has been stopped")
	// ErrAlreadyConnected is returned by Connect while a socket is open or
	// being dialled.
	ErrAlreadyConnected = errors.New("node is already connected")

	ErrInvalidChannel = errors.New("channel is not a guild voice channel")
	ErrInvalidTrack   = errors.New("track has no encoded descriptor")
	ErrInvalidRange   = errors.New("invalid playback range")
	ErrOutOfRange     = errors.New("value out of range")
	ErrDuplicateBand  = errors.New("equalizer band adjusted more than once")
)
