package lavalink

import "time"

// Stats is the node's resource usage as reported by its stats frames.
type Stats struct {
	Players        int         `json:"players"`
	PlayingPlayers int         `json:"playingPlayers"`
	UptimeMs       int64       `json:"uptime"`
	Memory         MemoryStats `json:"memory"`
	CPU            CPUStats    `json:"cpu"`
	// FrameStats is absent until the node has sent audio for a while.
	FrameStats *FrameStats `json:"frameStats,omitempty"`

	UpdatedAt time.Time `json:"-"`
}

type MemoryStats struct {
	Free       int64 `json:"free"`
	Used       int64 `json:"used"`
	Allocated  int64 `json:"allocated"`
	Reservable int64 `json:"reservable"`
}

type CPUStats struct {
	Cores        int     `json:"cores"`
	SystemLoad   float64 `json:"systemLoad"`
	LavalinkLoad float64 `json:"lavalinkLoad"`
}

type FrameStats struct {
	Sent    int `json:"sent"`
	Nulled  int `json:"nulled"`
	Deficit int `json:"deficit"`
}

func (s Stats) Uptime() time.Duration {
	return time.Duration(s.UptimeMs) * time.Millisecond
}

// merge folds a new report into the aggregate. Frame stats are kept from the
// previous report when the new one omits them.
func (s *Stats) merge(update Stats, at time.Time) {
	frames := s.FrameStats
	*s = update
	if s.FrameStats == nil {
		s.FrameStats = frames
	} else {
		fs := *update.FrameStats
		s.FrameStats = &fs
	}
	s.UpdatedAt = at
}

func (s Stats) clone() Stats {
	if s.FrameStats != nil {
		fs := *s.FrameStats
		s.FrameStats = &fs
	}
	return s
}
