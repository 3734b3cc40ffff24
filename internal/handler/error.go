package handler

import (
	"errors"
	"fmt"

	"github.com/glizzus/lavanode/internal/handshake"
	"github.com/glizzus/lavanode/internal/lavalink"
	"github.com/glizzus/lavanode/internal/rest"
	"github.com/glizzus/lavanode/internal/voice"
)

// UserError is an error type that is used to represent
// an error that should be displayed to the user.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

var _ error = (*UserError)(nil)

func userErrorf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// explain replaces errors a user can act on with a UserError. Anything else
// is returned unchanged.
func explain(err error) error {
	var userErr *UserError
	switch {
	case err == nil, errors.As(err, &userErr):
		return err
	case errors.Is(err, voice.ErrNotInVoice):
		return userErrorf("Join a voice channel first")
	case errors.Is(err, lavalink.ErrNotConnected), errors.Is(err, lavalink.ErrNodeStopped), errors.Is(err, lavalink.ErrNotReady):
		return userErrorf("The audio node is unavailable right now, try again shortly")
	case errors.Is(err, lavalink.ErrOutOfRange):
		return userErrorf("Volume must be between %d and %d", lavalink.MinVolume, lavalink.MaxVolume)
	case errors.Is(err, lavalink.ErrInvalidRange):
		return userErrorf("That position is not valid")
	case errors.Is(err, handshake.ErrTimeout):
		return userErrorf("Timed out joining the voice channel")
	case errors.Is(err, lavalink.ErrInvalidChannel):
		return userErrorf("I can only join voice channels")
	case errors.Is(err, rest.ErrLoadFailed):
		return userErrorf("Could not load that track")
	}
	return err
}
