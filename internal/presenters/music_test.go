package presenters_test

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/lavanode/internal/presenters"
	"github.com/glizzus/lavanode/internal/repository"
	"github.com/glizzus/lavanode/internal/trackcodec"
	"github.com/google/go-cmp/cmp"
)

func TestBuildSearchResultsResponse(t *testing.T) {
	tests := []struct {
		name  string
		input []trackcodec.Track
		want  *discordgo.InteractionResponse
	}{
		{
			name:  "no tracks",
			input: []trackcodec.Track{},
			want: &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: "No tracks found",
					Flags:   discordgo.MessageFlagsEphemeral,
				},
			},
		},
		{
			name: "any tracks",
			input: []trackcodec.Track{
				{Title: "Everything She Wants", Author: "Wham!", Length: 5*time.Minute + 3*time.Second},
				{Title: "Lofi Radio", Author: "Lofi Girl", IsStream: true},
			},
			want: &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: "**Search results** _(select one to play)_",
					Components: []discordgo.MessageComponent{
						discordgo.ActionsRow{
							Components: []discordgo.MessageComponent{
								discordgo.SelectMenu{
									CustomID:    "track_select_menu:instance-1",
									Placeholder: "Select a track",
									MinValues:   &[]int{1}[0],
									MaxValues:   1,
									Options: []discordgo.SelectMenuOption{
										{
											Label:       "Everything She Wants",
											Description: "Wham! · 5:03",
											Value:       "0",
										},
										{
											Label:       "Lofi Radio",
											Description: "Lofi Girl · live",
											Value:       "1",
										},
									},
								},
							},
						},
					},
					Flags: discordgo.MessageFlagsEphemeral,
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := presenters.BuildSearchResultsResponse(tt.input, "instance-1")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("BuildSearchResultsResponse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildSearchResultsResponseCapsOptions(t *testing.T) {
	tracks := make([]trackcodec.Track, 30)
	got := presenters.BuildSearchResultsResponse(tracks, "x")
	menu := got.Data.Components[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	if len(menu.Options) != presenters.MaxSearchResults {
		t.Errorf("got %d options, want %d", len(menu.Options), presenters.MaxSearchResults)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "0:00"},
		{in: 59 * time.Second, want: "0:59"},
		{in: 3*time.Minute + 7*time.Second + 900*time.Millisecond, want: "3:07"},
		{in: time.Hour + 2*time.Minute + 3*time.Second, want: "1:02:03"},
		{in: -time.Second, want: "0:00"},
	}
	for _, tt := range tests {
		if got := presenters.FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildNowPlayingResponse(t *testing.T) {
	track := trackcodec.Track{
		Title:  "Take On Me",
		Author: "a-ha",
		Length: 3*time.Minute + 45*time.Second,
		URI:    "https://example.com/take-on-me",
		HasURI: true,
	}

	tests := []struct {
		name string
		np   presenters.NowPlaying
		want string
	}{
		{name: "idle", np: presenters.NowPlaying{}, want: "Nothing is playing"},
		{
			name: "playing",
			np:   presenters.NowPlaying{Track: track, Playing: true, Position: 90 * time.Second, Volume: 100},
			want: "[Take On Me](<https://example.com/take-on-me>) by a-ha\n1:30 / 3:45 · volume 100%",
		},
		{
			name: "paused",
			np:   presenters.NowPlaying{Track: track, Playing: true, Position: 90 * time.Second, Paused: true, Volume: 40},
			want: "[Take On Me](<https://example.com/take-on-me>) by a-ha\n1:30 / 3:45 (paused) · volume 40%",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := presenters.BuildNowPlayingResponse(tt.np)
			if got.Data.Content != tt.want {
				t.Errorf("BuildNowPlayingResponse() = %q, want %q", got.Data.Content, tt.want)
			}
		})
	}
}

func TestBuildHistoryResponse(t *testing.T) {
	at := time.Unix(1714564800, 0)
	plays := []repository.Play{
		{Title: "Radio", Author: "B", StartedAt: at, EndReason: "LOAD_FAILED"},
		{Title: "First", Author: "A", StartedAt: at.Add(-time.Hour), EndReason: "FINISHED"},
	}

	got := presenters.BuildHistoryResponse(plays)
	want := "**Recently played**\n1. Radio by B <t:1714564800:R> _(load failed)_\n2. First by A <t:1714561200:R>"
	if got.Data.Content != want {
		t.Errorf("BuildHistoryResponse() = %q, want %q", got.Data.Content, want)
	}

	if got := presenters.BuildHistoryResponse(nil); got.Data.Content != "Nothing has been played yet" {
		t.Errorf("BuildHistoryResponse(nil) = %q", got.Data.Content)
	}
}
