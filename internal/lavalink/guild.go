package lavalink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glizzus/lavanode/internal/trackcodec"
)

const (
	MinVolume     = 0
	MaxVolume     = 1000
	DefaultVolume = 100
)

type frameSender interface {
	send(ctx context.Context, frame outbound) error
}

type disconnectMode int

const (
	disconnectRequested disconnectMode = iota
	// disconnectVacated: Discord already removed the bot from the channel.
	disconnectVacated
	// disconnectNodeLost: the node is gone and cannot be sent a destroy.
	disconnectNodeLost
)

// GuildSession is the player of one guild on the node. It is created by
// Node.ConnectGuild and is unusable once disconnected.
type GuildSession struct {
	guildID string
	sender  frameSender
	gateway Gateway
	events  *EventRegistry

	mu        sync.RWMutex
	voice     VoiceState
	current   *trackcodec.Track
	position  time.Duration
	updatedAt time.Time
	paused    bool
	volume    int

	disposed  atomic.Bool
	vacating  atomic.Bool
	onDispose func()

	voiceClosed     chan struct{}
	voiceClosedOnce sync.Once
}

func newGuildSession(voice VoiceState, sender frameSender, gateway Gateway) *GuildSession {
	return &GuildSession{
		guildID:     voice.GuildID,
		sender:      sender,
		gateway:     gateway,
		events:      NewEventRegistry(),
		voice:       voice,
		volume:      DefaultVolume,
		voiceClosed: make(chan struct{}),
	}
}

func (s *GuildSession) GuildID() string {
	return s.guildID
}

func (s *GuildSession) ChannelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voice.ChannelID
}

func (s *GuildSession) VoiceState() VoiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voice
}

// Events receives the events of this guild only.
func (s *GuildSession) Events() *EventRegistry {
	return s.events
}

// Track returns the track the node is playing, if any.
func (s *GuildSession) Track() (trackcodec.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return trackcodec.Track{}, false
	}
	return *s.current, true
}

// Position is the last reported playback position and when it was reported.
func (s *GuildSession) Position() (time.Duration, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position, s.updatedAt
}

// EstimatedPosition extrapolates the playback position to now.
func (s *GuildSession) EstimatedPosition(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.paused || s.updatedAt.IsZero() {
		return s.position
	}
	pos := s.position + now.Sub(s.updatedAt)
	if length := s.current.Duration(); length > 0 && pos > length {
		return length
	}
	return pos
}

func (s *GuildSession) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

func (s *GuildSession) Volume() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

func (s *GuildSession) Disposed() bool {
	return s.disposed.Load()
}

func (s *GuildSession) checkLive() error {
	if s.disposed.Load() {
		return ErrNotConnected
	}
	return nil
}

// Play starts track from the beginning, replacing the current one.
func (s *GuildSession) Play(ctx context.Context, track trackcodec.Track) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	return s.play(ctx, track, 0, 0)
}

// PlayPartial plays track from start until end.
func (s *GuildSession) PlayPartial(ctx context.Context, track trackcodec.Track, start, end time.Duration) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	if start < 0 || end < 0 || end <= start {
		return fmt.Errorf("%w: start %s end %s", ErrInvalidRange, start, end)
	}
	return s.play(ctx, track, start, end)
}

func (s *GuildSession) play(ctx context.Context, track trackcodec.Track, start, end time.Duration) error {
	if track.Encoded == "" {
		return ErrInvalidTrack
	}
	frame := playFrame{
		guildFrame: newGuildFrame(opPlay, s.guildID),
		Track:      track.Encoded,
		StartTime:  start.Milliseconds(),
		EndTime:    end.Milliseconds(),
	}
	if err := s.sender.send(ctx, frame); err != nil {
		return err
	}

	track.Position = start
	s.mu.Lock()
	s.current = &track
	s.position = start
	s.updatedAt = time.Now()
	s.paused = false
	s.mu.Unlock()
	return nil
}

func (s *GuildSession) Stop(ctx context.Context) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	return s.sender.send(ctx, newGuildFrame(opStop, s.guildID))
}

func (s *GuildSession) Pause(ctx context.Context) error {
	return s.setPaused(ctx, true)
}

func (s *GuildSession) Resume(ctx context.Context) error {
	return s.setPaused(ctx, false)
}

func (s *GuildSession) setPaused(ctx context.Context, paused bool) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	frame := pauseFrame{guildFrame: newGuildFrame(opPause, s.guildID), Pause: paused}
	if err := s.sender.send(ctx, frame); err != nil {
		return err
	}
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
	return nil
}

func (s *GuildSession) Seek(ctx context.Context, position time.Duration) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	if position < 0 {
		return fmt.Errorf("%w: seek to %s", ErrInvalidRange, position)
	}
	frame := seekFrame{guildFrame: newGuildFrame(opSeek, s.guildID), Position: position.Milliseconds()}
	return s.sender.send(ctx, frame)
}

// SetVolume sets the player volume in percent, between MinVolume and MaxVolume.
func (s *GuildSession) SetVolume(ctx context.Context, volume int) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	if volume < MinVolume || volume > MaxVolume {
		return fmt.Errorf("%w: volume %d not in [%d, %d]", ErrOutOfRange, volume, MinVolume, MaxVolume)
	}
	frame := volumeFrame{guildFrame: newGuildFrame(opVolume, s.guildID), Volume: volume}
	if err := s.sender.send(ctx, frame); err != nil {
		return err
	}
	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()
	return nil
}

// AdjustEqualizer changes the gain of the given bands. Each band index may
// appear once.
func (s *GuildSession) AdjustEqualizer(ctx context.Context, bands ...Band) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	if len(bands) == 0 {
		return nil
	}
	if err := validateBands(bands); err != nil {
		return err
	}
	return s.sendEqualizer(ctx, bands)
}

// ResetEqualizer sets every band back to zero gain.
func (s *GuildSession) ResetEqualizer(ctx context.Context) error {
	if err := s.checkLive(); err != nil {
		return err
	}
	return s.sendEqualizer(ctx, flatEqualizer())
}

func (s *GuildSession) sendEqualizer(ctx context.Context, bands []Band) error {
	frame := equalizerFrame{guildFrame: newGuildFrame(opEqualizer, s.guildID), Bands: bands}
	return s.sender.send(ctx, frame)
}

// Disconnect destroys the player and leaves the voice channel. The session
// cannot be used afterwards.
func (s *GuildSession) Disconnect(ctx context.Context) error {
	return s.disconnect(ctx, disconnectRequested)
}

func (s *GuildSession) disconnect(ctx context.Context, mode disconnectMode) error {
	if !s.disposed.CompareAndSwap(false, true) {
		return ErrNotConnected
	}

	var errs []error
	if mode != disconnectNodeLost {
		if err := s.sender.send(ctx, newGuildFrame(opDestroy, s.guildID)); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy player: %w", err))
		}
	}
	if mode != disconnectVacated {
		if err := s.gateway.UpdateVoiceState(s.guildID, "", false, false); err != nil {
			errs = append(errs, fmt.Errorf("failed to leave voice channel: %w", err))
		}
	}
	s.signalVoiceClosed()

	s.events.Publish(ChannelDisconnected{
		GuildID:   s.guildID,
		ChannelID: s.ChannelID(),
		Vacated:   mode == disconnectVacated,
		NodeLost:  mode == disconnectNodeLost,
	})
	if s.onDispose != nil {
		s.onDispose()
	}
	slog.Info("Guild session disconnected", "guildID", s.guildID, "vacated", mode == disconnectVacated, "nodeLost", mode == disconnectNodeLost)
	return errors.Join(errs...)
}

func (s *GuildSession) signalVoiceClosed() {
	s.voiceClosedOnce.Do(func() {
		close(s.voiceClosed)
	})
}

func (s *GuildSession) setVoiceState(voice VoiceState) {
	s.mu.Lock()
	s.voice = voice
	s.mu.Unlock()
}

func (s *GuildSession) handlePlayerUpdate(state playerState) {
	position := time.Duration(state.Position) * time.Millisecond
	at := time.UnixMilli(state.Time)

	s.mu.Lock()
	s.position = position
	s.updatedAt = at
	s.mu.Unlock()

	s.events.Publish(PlayerUpdated{GuildID: s.guildID, Position: position, Timestamp: at})
}

func (s *GuildSession) handleTrackStart(track trackcodec.Track) {
	s.mu.Lock()
	s.current = &track
	s.mu.Unlock()

	s.events.Publish(TrackStarted{GuildID: s.guildID, Track: track})
}

func (s *GuildSession) handleTrackEnd(track trackcodec.Track, reason EndReason) {
	// A replaced track ends after its successor was cached by Play.
	if reason != EndReasonReplaced {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
	}
	s.events.Publish(TrackFinished{GuildID: s.guildID, Track: track, Reason: reason})
}

func (s *GuildSession) handleTrackStuck(track trackcodec.Track, threshold time.Duration) {
	s.events.Publish(TrackStuck{GuildID: s.guildID, Track: track, Threshold: threshold})
}

func (s *GuildSession) handleTrackException(track trackcodec.Track, msg, severity string) {
	s.events.Publish(TrackException{GuildID: s.guildID, Track: track, Error: msg, Severity: severity})
}

func (s *GuildSession) handleWebSocketClosed(code int, reason string, byRemote bool) {
	s.events.Publish(WebSocketClosed{GuildID: s.guildID, Code: code, Reason: reason, ByRemote: byRemote})
	s.signalVoiceClosed()
}
