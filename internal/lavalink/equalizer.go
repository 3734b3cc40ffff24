package lavalink

import "fmt"

const (
	EqualizerBands = 15
	MinBandGain    = -0.25
	MaxBandGain    = 1.0
)

// Band is a gain adjustment for one of the node's 15 equalizer bands.
type Band struct {
	Index int     `json:"band"`
	Gain  float64 `json:"gain"`
}

func validateBands(bands []Band) error {
	seen := make(map[int]struct{}, len(bands))
	for _, b := range bands {
		if b.Index < 0 || b.Index >= EqualizerBands {
			return fmt.Errorf("%w: band index %d not in [0, %d]", ErrOutOfRange, b.Index, EqualizerBands-1)
		}
		if b.Gain < MinBandGain || b.Gain > MaxBandGain {
			return fmt.Errorf("%w: gain %.2f for band %d not in [%.2f, %.2f]", ErrOutOfRange, b.Gain, b.Index, MinBandGain, MaxBandGain)
		}
		if _, dup := seen[b.Index]; dup {
			return fmt.Errorf("%w: band %d", ErrDuplicateBand, b.Index)
		}
		seen[b.Index] = struct{}{}
	}
	return nil
}

func flatEqualizer() []Band {
	bands := make([]Band, EqualizerBands)
	for i := range bands {
		bands[i] = Band{Index: i}
	}
	return bands
}
