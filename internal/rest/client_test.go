package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glizzus/lavanode/internal/rest"
	"github.com/glizzus/lavanode/internal/trackcodec"
	"github.com/google/go-cmp/cmp"
)

type recordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	Body          string
}

// newNode serves one canned response and records the request it got.
func newNode(t *testing.T, status int, response string) (*rest.Client, *recordedRequest) {
	t.Helper()
	var got recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = recordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			Body:          string(body),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return rest.NewClient(srv.URL+"/", "secret", rest.WithRateLimit(0, 0)), &got
}

func TestLoadTracks(t *testing.T) {
	const response = `{
		"loadType": "PLAYLIST_LOADED",
		"playlistInfo": {"name": "Mix", "selectedTrack": 1},
		"tracks": [
			{"track": "AAA", "info": {"identifier": "a", "isSeekable": true, "author": "A", "length": 1000, "isStream": false, "position": 0, "title": "First", "uri": "https://example.com/a"}},
			{"track": "BBB", "info": {"identifier": "b", "isSeekable": false, "author": "B", "length": 0, "isStream": true, "position": 0, "title": "Radio", "uri": null}}
		]
	}`
	client, got := newNode(t, http.StatusOK, response)

	result, err := client.LoadTracks(context.Background(), "https://example.com/list")
	if err != nil {
		t.Fatalf("LoadTracks() returned error: %v", err)
	}

	wantReq := recordedRequest{
		Method:        http.MethodGet,
		Path:          "/loadtracks",
		Query:         "identifier=https%3A%2F%2Fexample.com%2Flist",
		Authorization: "secret",
	}
	if diff := cmp.Diff(wantReq, *got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
	if err := result.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}

	selected, ok := result.Selected()
	if !ok {
		t.Fatal("Selected() returned no track")
	}
	want := trackcodec.Track{Encoded: "BBB", Title: "Radio", Author: "B", Identifier: "b", IsStream: true}
	if diff := cmp.Diff(want, selected); diff != "" {
		t.Errorf("Selected() mismatch (-want +got):\n%s", diff)
	}

	first := result.Tracks[0].Track()
	if first.URI != "https://example.com/a" || !first.HasURI || first.Length != time.Second {
		t.Errorf("Track() = %+v", first)
	}
}

func TestLoadTracksFailed(t *testing.T) {
	client, _ := newNode(t, http.StatusOK, `{"loadType":"LOAD_FAILED","playlistInfo":{},"tracks":[],"exception":{"message":"blocked","severity":"COMMON"}}`)

	result, err := client.LoadTracks(context.Background(), "ytsearch:anything")
	if err != nil {
		t.Fatalf("LoadTracks() returned error: %v", err)
	}
	if err := result.Err(); !errors.Is(err, rest.ErrLoadFailed) {
		t.Errorf("Err() = %v, want ErrLoadFailed", err)
	}
	if _, ok := result.Selected(); ok {
		t.Error("Selected() returned a track for a failed load")
	}
}

func TestStatusError(t *testing.T) {
	client, _ := newNode(t, http.StatusUnauthorized, "Unauthorized")

	_, err := client.LoadTracks(context.Background(), "ytsearch:anything")
	var statusErr *rest.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("LoadTracks() error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized || statusErr.Body != "Unauthorized" {
		t.Errorf("StatusError = %+v", statusErr)
	}
}

func TestDecodeTracks(t *testing.T) {
	client, got := newNode(t, http.StatusOK, `[{"track":"AAA","info":{"identifier":"a","title":"First","author":"A","length":2000,"uri":null}}]`)

	tracks, err := client.DecodeTracks(context.Background(), "AAA")
	if err != nil {
		t.Fatalf("DecodeTracks() returned error: %v", err)
	}
	if got.Method != http.MethodPost || got.Path != "/decodetracks" {
		t.Errorf("request = %s %s", got.Method, got.Path)
	}
	var body []string
	if err := json.Unmarshal([]byte(got.Body), &body); err != nil {
		t.Fatalf("request body %q is not a JSON array: %v", got.Body, err)
	}
	if diff := cmp.Diff([]string{"AAA"}, body); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
	if len(tracks) != 1 || tracks[0].Info.Title != "First" {
		t.Errorf("DecodeTracks() = %+v", tracks)
	}
}

func TestDecodeTrack(t *testing.T) {
	client, got := newNode(t, http.StatusOK, `{"identifier":"a","title":"First","author":"A","length":2000,"uri":"https://example.com/a"}`)

	info, err := client.DecodeTrack(context.Background(), "AAA")
	if err != nil {
		t.Fatalf("DecodeTrack() returned error: %v", err)
	}
	if got.Path != "/decodetrack" || got.Query != "track=AAA" {
		t.Errorf("request = %s?%s", got.Path, got.Query)
	}
	if info.Title != "First" || info.URI == nil || *info.URI != "https://example.com/a" {
		t.Errorf("DecodeTrack() = %+v", info)
	}
}

func TestRoutePlanner(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		client, _ := newNode(t, http.StatusOK, `{
			"class": "RotatingIpRoutePlanner",
			"details": {
				"ipBlock": {"type": "Inet6Address", "size": "1208925819614629174706176"},
				"failingAddresses": [{"address": "/1.0.0.0", "failingTimestamp": 1573520707545, "failingTime": "Mon Nov 11 20:05:07 EST 2019"}],
				"rotateIndex": "1",
				"ipIndex": "1",
				"currentAddress": "1"
			}
		}`)

		status, err := client.RoutePlannerStatus(context.Background())
		if err != nil {
			t.Fatalf("RoutePlannerStatus() returned error: %v", err)
		}
		if !status.Enabled() || status.Details == nil || len(status.Details.FailingAddresses) != 1 {
			t.Fatalf("RoutePlannerStatus() = %+v", status)
		}
		if got := status.Details.FailingAddresses[0].FailedAt(); !got.Equal(time.UnixMilli(1573520707545)) {
			t.Errorf("FailedAt() = %v", got)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		client, _ := newNode(t, http.StatusOK, `{"class":null,"details":null}`)
		status, err := client.RoutePlannerStatus(context.Background())
		if err != nil {
			t.Fatalf("RoutePlannerStatus() returned error: %v", err)
		}
		if status.Enabled() {
			t.Error("Enabled() = true for a node without a planner")
		}
	})

	t.Run("free address", func(t *testing.T) {
		client, got := newNode(t, http.StatusNoContent, "")
		if err := client.FreeAddress(context.Background(), "1.0.0.1"); err != nil {
			t.Fatalf("FreeAddress() returned error: %v", err)
		}
		if got.Path != "/routeplanner/free/address" || got.Body != `{"address":"1.0.0.1"}` {
			t.Errorf("request = %s %s", got.Path, got.Body)
		}
	})

	t.Run("free all", func(t *testing.T) {
		client, got := newNode(t, http.StatusNoContent, "")
		if err := client.FreeAll(context.Background()); err != nil {
			t.Fatalf("FreeAll() returned error: %v", err)
		}
		if got.Method != http.MethodPost || got.Path != "/routeplanner/free/all" {
			t.Errorf("request = %s %s", got.Method, got.Path)
		}
	})
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{query: "never gonna give you up", want: "ytsearch:never gonna give you up"},
		{query: "  padded  ", want: "ytsearch:padded"},
		{query: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{query: "not a url: really", want: "ytsearch:not a url: really"},
	}

	for _, tt := range tests {
		if got := rest.Identifier(tt.query, rest.SearchYouTube); got != tt.want {
			t.Errorf("Identifier(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}
