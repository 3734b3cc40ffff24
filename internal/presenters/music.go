// Package presenters turns playback state into Discord interaction responses.
package presenters

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/lavanode/internal/repository"
	"github.com/glizzus/lavanode/internal/trackcodec"
)

const ComponentIDTrackSelect = "track_select_menu"

// MaxSearchResults is the most options a select menu can hold.
const MaxSearchResults = 25

var trackSelectMinValues = 1

func Message(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	}
}

// Ephemeral is a message only the invoking user sees.
func Ephemeral(content string) *discordgo.InteractionResponse {
	resp := Message(content)
	resp.Data.Flags = discordgo.MessageFlagsEphemeral
	return resp
}

// FormatDuration renders d as m:ss, or h:mm:ss from an hour up.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h, m, s := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func trackLength(t trackcodec.Track) string {
	if t.IsStream {
		return "live"
	}
	return FormatDuration(t.Duration())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func trackToSelectMenuOption(index int, t trackcodec.Track) discordgo.SelectMenuOption {
	return discordgo.SelectMenuOption{
		Label:       truncate(t.Title, 100),
		Description: truncate(t.Author+" · "+trackLength(t), 100),
		Value:       strconv.Itoa(index),
	}
}

// BuildSearchResultsResponse offers tracks in a select menu. The chosen value
// is the track's index in tracks.
func BuildSearchResultsResponse(tracks []trackcodec.Track, instanceID string) *discordgo.InteractionResponse {
	if len(tracks) == 0 {
		return Ephemeral("No tracks found")
	}
	if len(tracks) > MaxSearchResults {
		tracks = tracks[:MaxSearchResults]
	}

	options := make([]discordgo.SelectMenuOption, 0, len(tracks))
	for i, t := range tracks {
		options = append(options, trackToSelectMenuOption(i, t))
	}

	menu := discordgo.SelectMenu{
		CustomID:    ComponentIDTrackSelect + ":" + instanceID,
		Placeholder: "Select a track",
		MinValues:   &trackSelectMinValues,
		MaxValues:   1,
		Options:     options,
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "**Search results** _(select one to play)_",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{menu},
				},
			},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	}
}

func trackLine(t trackcodec.Track) string {
	title := t.Title
	if t.HasURI && t.URI != "" {
		title = fmt.Sprintf("[%s](<%s>)", t.Title, t.URI)
	}
	return fmt.Sprintf("%s by %s", title, t.Author)
}

func BuildStartedResponse(t trackcodec.Track) *discordgo.InteractionResponse {
	return Message(fmt.Sprintf("Now playing %s (%s)", trackLine(t), trackLength(t)))
}

// NowPlaying is what a guild's player is doing.
type NowPlaying struct {
	Track    trackcodec.Track
	Playing  bool
	Position time.Duration
	Paused   bool
	Volume   int
}

func BuildNowPlayingResponse(np NowPlaying) *discordgo.InteractionResponse {
	if !np.Playing {
		return Message("Nothing is playing")
	}

	var b strings.Builder
	b.WriteString(trackLine(np.Track))
	b.WriteString("\n")
	if np.Track.IsStream {
		b.WriteString("live")
	} else {
		fmt.Fprintf(&b, "%s / %s", FormatDuration(np.Position), FormatDuration(np.Track.Duration()))
	}
	if np.Paused {
		b.WriteString(" (paused)")
	}
	fmt.Fprintf(&b, " · volume %d%%", np.Volume)
	return Message(b.String())
}

func BuildHistoryResponse(plays []repository.Play) *discordgo.InteractionResponse {
	if len(plays) == 0 {
		return Message("Nothing has been played yet")
	}

	var b strings.Builder
	b.WriteString("**Recently played**")
	for i, p := range plays {
		fmt.Fprintf(&b, "\n%d. %s by %s <t:%d:R>", i+1, p.Title, p.Author, p.StartedAt.Unix())
		if p.EndReason != "" && p.EndReason != "FINISHED" {
			fmt.Fprintf(&b, " _(%s)_", strings.ToLower(strings.ReplaceAll(p.EndReason, "_", " ")))
		}
	}
	return Message(b.String())
}
