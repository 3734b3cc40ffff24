package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/glizzus/lavanode/internal/trackcodec"
)

type LoadType string

const (
	LoadTypeTrack    LoadType = "TRACK_LOADED"
	LoadTypePlaylist LoadType = "PLAYLIST_LOADED"
	LoadTypeSearch   LoadType = "SEARCH_RESULT"
	LoadTypeNoMatch  LoadType = "NO_MATCHES"
	LoadTypeFailed   LoadType = "LOAD_FAILED"
)

// SearchSource is a search prefix understood by the node.
type SearchSource string

const (
	SearchYouTube      SearchSource = "ytsearch"
	SearchYouTubeMusic SearchSource = "ytmsearch"
	SearchSoundCloud   SearchSource = "scsearch"
)

// Identifier turns user input into a load identifier. URLs are loaded as is
// and anything else is searched on source.
func Identifier(query string, source SearchSource) string {
	query = strings.TrimSpace(query)
	if u, err := url.Parse(query); err == nil && u.Scheme != "" && u.Host != "" {
		return query
	}
	return string(source) + ":" + query
}

type TrackInfo struct {
	Identifier string  `json:"identifier"`
	IsSeekable bool    `json:"isSeekable"`
	Author     string  `json:"author"`
	LengthMs   int64   `json:"length"`
	IsStream   bool    `json:"isStream"`
	PositionMs int64   `json:"position"`
	Title      string  `json:"title"`
	URI        *string `json:"uri"`
	SourceName string  `json:"sourceName,omitempty"`
}

// LoadedTrack is a track as the HTTP API returns it.
type LoadedTrack struct {
	Encoded string    `json:"track"`
	Info    TrackInfo `json:"info"`
}

// Track converts the API's view of a track. The descriptor version is not
// reported by the API and is left zero.
func (t LoadedTrack) Track() trackcodec.Track {
	track := trackcodec.Track{
		Encoded:    t.Encoded,
		Title:      t.Info.Title,
		Author:     t.Info.Author,
		Length:     time.Duration(t.Info.LengthMs) * time.Millisecond,
		Identifier: t.Info.Identifier,
		IsStream:   t.Info.IsStream,
		IsSeekable: t.Info.IsSeekable,
		Position:   time.Duration(t.Info.PositionMs) * time.Millisecond,
	}
	if t.Info.URI != nil {
		track.URI = *t.Info.URI
		track.HasURI = true
	}
	return track
}

type PlaylistInfo struct {
	Name string `json:"name"`
	// SelectedTrack is -1 when the playlist URL did not select a track.
	SelectedTrack int `json:"selectedTrack"`
}

type LoadException struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type LoadResult struct {
	LoadType     LoadType       `json:"loadType"`
	PlaylistInfo PlaylistInfo   `json:"playlistInfo"`
	Tracks       []LoadedTrack  `json:"tracks"`
	Exception    *LoadException `json:"exception,omitempty"`
}

var ErrLoadFailed = errors.New("node failed to load tracks")

// Err reports a LOAD_FAILED result as an error.
func (r *LoadResult) Err() error {
	if r.LoadType != LoadTypeFailed {
		return nil
	}
	if r.Exception == nil {
		return ErrLoadFailed
	}
	return fmt.Errorf("%w: %s (%s)", ErrLoadFailed, r.Exception.Message, r.Exception.Severity)
}

// Selected returns the track a playlist URL pointed at, or the first track.
func (r *LoadResult) Selected() (trackcodec.Track, bool) {
	if len(r.Tracks) == 0 {
		return trackcodec.Track{}, false
	}
	i := r.PlaylistInfo.SelectedTrack
	if r.LoadType != LoadTypePlaylist || i < 0 || i >= len(r.Tracks) {
		i = 0
	}
	return r.Tracks[i].Track(), true
}

// LoadTracks resolves identifier, a URL or a prefixed search such as
// "ytsearch:never gonna give you up".
func (c *Client) LoadTracks(ctx context.Context, identifier string) (*LoadResult, error) {
	var result LoadResult
	err := c.do(ctx, http.MethodGet, "/loadtracks", url.Values{"identifier": {identifier}}, nil, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}
	return &result, nil
}

// DecodeTrack asks the node to decode one track descriptor.
func (c *Client) DecodeTrack(ctx context.Context, encoded string) (TrackInfo, error) {
	var info TrackInfo
	err := c.do(ctx, http.MethodGet, "/decodetrack", url.Values{"track": {encoded}}, nil, &info)
	if err != nil {
		return TrackInfo{}, fmt.Errorf("failed to decode track: %w", err)
	}
	return info, nil
}

// DecodeTracks asks the node to decode several descriptors in one request.
func (c *Client) DecodeTracks(ctx context.Context, encoded ...string) ([]LoadedTrack, error) {
	if len(encoded) == 0 {
		return nil, nil
	}
	var tracks []LoadedTrack
	if err := c.do(ctx, http.MethodPost, "/decodetracks", nil, encoded, &tracks); err != nil {
		return nil, fmt.Errorf("failed to decode tracks: %w", err)
	}
	return tracks, nil
}
