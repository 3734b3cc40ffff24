package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/lavanode/internal/presenters"
	"github.com/glizzus/lavanode/internal/rest"
	"github.com/glizzus/lavanode/internal/trackcodec"
	"github.com/glizzus/lavanode/internal/util"
)

const (
	stateTracks  = "tracks"
	stateChannel = "channel"

	defaultHistoryLimit = 10
)

// Music holds what the /music command flows need.
type Music struct {
	Players Players
	Loader  TrackLoader
	Voice   ChannelLocator
	// History is optional; without it /music history reports it unavailable.
	History HistoryReader
	Source  rest.SearchSource
	// Timeout bounds the work behind one interaction.
	Timeout time.Duration
}

func (m *Music) context() (context.Context, context.CancelFunc) {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// Flows returns a flow per /music subcommand.
func (m *Music) Flows() []*Flow {
	return []*Flow{
		m.playFlow(),
		m.joinFlow(),
		simpleFlow("pause", m.withPlayer(func(ctx context.Context, p Player, _ *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
			return "Paused", p.Pause(ctx)
		})),
		simpleFlow("resume", m.withPlayer(func(ctx context.Context, p Player, _ *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
			return "Resumed", p.Resume(ctx)
		})),
		simpleFlow("stop", m.withPlayer(func(ctx context.Context, p Player, _ *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
			return "Stopped", p.Stop(ctx)
		})),
		simpleFlow("seek", m.withPlayer(m.seek)),
		simpleFlow("volume", m.withPlayer(m.volume)),
		simpleFlow("nowplaying", m.withPlayer(m.nowPlaying)),
		simpleFlow("leave", m.withPlayer(func(ctx context.Context, p Player, _ *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
			return "Left the voice channel", p.Disconnect(ctx)
		})),
		simpleFlow("history", m.history),
	}
}

func subcommand(i *discordgo.InteractionCreate) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return nil, false
	}
	data := i.ApplicationCommandData()
	if data.Name != "music" || len(data.Options) == 0 {
		return nil, false
	}
	return data.Options[0], true
}

func subcommandMatcher(name string) func(*discordgo.InteractionCreate) bool {
	return func(i *discordgo.InteractionCreate) bool {
		sub, ok := subcommand(i)
		return ok && sub.Name == name
	}
}

func componentMatcher(componentID string) func(*discordgo.InteractionCreate) bool {
	return func(i *discordgo.InteractionCreate) bool {
		if i.Type != discordgo.InteractionMessageComponent {
			return false
		}
		customID := i.MessageComponentData().CustomID
		return strings.HasPrefix(customID, componentID+":")
	}
}

func option(sub *discordgo.ApplicationCommandInteractionDataOption, name string) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	return util.FindFirst(sub.Options, func(o *discordgo.ApplicationCommandInteractionDataOption) bool {
		return o.Name == name
	})
}

func invokingUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

type commandFunc func(i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) (string, error)

// simpleFlow answers a subcommand with a single message.
func simpleFlow(name string, run commandFunc) *Flow {
	return &Flow{
		ID: "music_" + name,
		Root: &Node{
			ID:      "music_" + name,
			Matcher: subcommandMatcher(name),
			Handler: func(s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
				if i.GuildID == "" {
					return userErrorf("Use this command in a server")
				}
				sub, _ := subcommand(i)
				content, err := run(i, sub)
				if err != nil {
					return explain(err)
				}
				return s.InteractionRespond(i.Interaction, presenters.Message(content))
			},
		},
	}
}

type playerFunc func(ctx context.Context, p Player, sub *discordgo.ApplicationCommandInteractionDataOption) (string, error)

func (m *Music) withPlayer(run playerFunc) commandFunc {
	return func(i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
		p, ok := m.Players.Player(i.GuildID)
		if !ok {
			return "", userErrorf("I'm not in a voice channel here")
		}
		ctx, cancel := m.context()
		defer cancel()
		return run(ctx, p, sub)
	}
}

func (m *Music) seek(ctx context.Context, p Player, sub *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	opt, ok := option(sub, "seconds")
	if !ok {
		return "", userErrorf("Tell me where to seek to")
	}
	track, playing := p.Track()
	if !playing {
		return "", userErrorf("Nothing is playing")
	}
	if !track.IsSeekable {
		return "", userErrorf("This track cannot be seeked")
	}
	position := time.Duration(opt.IntValue()) * time.Second
	if err := p.Seek(ctx, position); err != nil {
		return "", err
	}
	return "Seeked to " + presenters.FormatDuration(position), nil
}

func (m *Music) volume(ctx context.Context, p Player, sub *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	opt, ok := option(sub, "percent")
	if !ok {
		return fmt.Sprintf("Volume is %d%%", p.Volume()), nil
	}
	volume := int(opt.IntValue())
	if err := p.SetVolume(ctx, volume); err != nil {
		return "", err
	}
	return fmt.Sprintf("Volume set to %d%%", volume), nil
}

func (m *Music) nowPlaying(_ context.Context, p Player, _ *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	track, playing := p.Track()
	resp := presenters.BuildNowPlayingResponse(presenters.NowPlaying{
		Track:    track,
		Playing:  playing,
		Position: p.EstimatedPosition(time.Now()),
		Paused:   p.Paused(),
		Volume:   p.Volume(),
	})
	return resp.Data.Content, nil
}

func (m *Music) history(i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	if m.History == nil {
		return "", userErrorf("History is not available")
	}
	limit := defaultHistoryLimit
	if opt, ok := option(sub, "limit"); ok {
		limit = int(opt.IntValue())
	}
	ctx, cancel := m.context()
	defer cancel()
	plays, err := m.History.Recent(ctx, i.GuildID, limit)
	if err != nil {
		return "", fmt.Errorf("failed to list history for guild %s: %w", i.GuildID, err)
	}
	return presenters.BuildHistoryResponse(plays).Data.Content, nil
}

// channelFor picks the invoking user's voice channel, or for join only, the
// busiest one.
func (m *Music) channelFor(i *discordgo.InteractionCreate, fallback bool) (*discordgo.Channel, error) {
	ch, err := m.Voice.UserChannel(i.GuildID, invokingUserID(i))
	if err == nil || !fallback {
		return ch, err
	}
	return m.Voice.BusiestChannel(i.GuildID)
}

func (m *Music) joinFlow() *Flow {
	return &Flow{
		ID: "music_join",
		Root: &Node{
			ID:      "music_join",
			Matcher: subcommandMatcher("join"),
			Handler: func(s DiscordSession, i *discordgo.InteractionCreate, _ *FlowContext) error {
				if i.GuildID == "" {
					return userErrorf("Use this command in a server")
				}
				ch, err := m.channelFor(i, true)
				if err != nil {
					return explain(err)
				}
				// The voice handshake can outlast the interaction deadline.
				return deferred(s, i, discordgo.InteractionResponseDeferredChannelMessageWithSource, func() (*discordgo.InteractionResponse, error) {
					ctx, cancel := m.context()
					defer cancel()
					if _, err := m.Players.Join(ctx, ch); err != nil {
						return nil, err
					}
					return presenters.Message(fmt.Sprintf("Joined <#%s>", ch.ID)), nil
				})
			},
		},
	}
}

func (m *Music) playFlow() *Flow {
	selectNode := &Node{
		ID:      "music_play_select",
		Matcher: componentMatcher(presenters.ComponentIDTrackSelect),
		Handler: m.playSelected,
	}
	return &Flow{
		ID: "music_play",
		Root: &Node{
			ID:      "music_play",
			Matcher: subcommandMatcher("play"),
			Handler: m.play,
			Next:    []*Node{selectNode},
		},
	}
}

// deferred acknowledges i straight away and edits the response with what
// work produces. Errors are reported in the edited response.
func deferred(s DiscordSession, i *discordgo.InteractionCreate, ack discordgo.InteractionResponseType, work func() (*discordgo.InteractionResponse, error)) error {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{Type: ack}); err != nil {
		return fmt.Errorf("failed to acknowledge interaction: %w", err)
	}

	resp, err := work()
	if err = explain(err); err != nil {
		var userErr *UserError
		if !errors.As(err, &userErr) {
			slog.Error("Failed to handle interaction", "interactionID", i.ID, slog.Any("error", err))
			userErr = &UserError{Message: "Something went wrong"}
		}
		resp = presenters.Message(userErr.Message)
	}

	components := resp.Data.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:    &resp.Data.Content,
		Components: &components,
	})
	if err != nil {
		return fmt.Errorf("failed to edit interaction response: %w", err)
	}
	return nil
}

func (m *Music) play(s DiscordSession, i *discordgo.InteractionCreate, fc *FlowContext) error {
	if i.GuildID == "" {
		fc.Finish()
		return userErrorf("Use this command in a server")
	}
	sub, _ := subcommand(i)
	query, ok := option(sub, "query")
	if !ok || strings.TrimSpace(query.StringValue()) == "" {
		fc.Finish()
		return userErrorf("Tell me what to play")
	}
	ch, err := m.channelFor(i, false)
	if err != nil {
		fc.Finish()
		return explain(err)
	}

	return deferred(s, i, discordgo.InteractionResponseDeferredChannelMessageWithSource, func() (*discordgo.InteractionResponse, error) {
		ctx, cancel := m.context()
		defer cancel()

		source := m.Source
		if source == "" {
			source = rest.SearchYouTube
		}
		result, err := m.Loader.LoadTracks(ctx, rest.Identifier(query.StringValue(), source))
		if err != nil {
			fc.Finish()
			return nil, err
		}
		if err := result.Err(); err != nil {
			fc.Finish()
			return nil, err
		}

		switch result.LoadType {
		case rest.LoadTypeSearch:
			tracks := make([]trackcodec.Track, 0, len(result.Tracks))
			for _, t := range result.Tracks {
				tracks = append(tracks, t.Track())
			}
			if len(tracks) > presenters.MaxSearchResults {
				tracks = tracks[:presenters.MaxSearchResults]
			}
			fc.State[stateTracks] = tracks
			fc.State[stateChannel] = ch
			return presenters.BuildSearchResultsResponse(tracks, fc.InstanceID), nil
		default:
			fc.Finish()
			track, ok := result.Selected()
			if !ok {
				return nil, userErrorf("No tracks found")
			}
			return m.joinAndPlay(ctx, ch, track)
		}
	})
}

func (m *Music) playSelected(s DiscordSession, i *discordgo.InteractionCreate, fc *FlowContext) error {
	tracks, _ := fc.State[stateTracks].([]trackcodec.Track)
	ch, _ := fc.State[stateChannel].(*discordgo.Channel)

	return deferred(s, i, discordgo.InteractionResponseDeferredMessageUpdate, func() (*discordgo.InteractionResponse, error) {
		values := i.MessageComponentData().Values
		if len(values) != 1 {
			return nil, userErrorf("Select one track")
		}
		index, err := strconv.Atoi(values[0])
		if err != nil || index < 0 || index >= len(tracks) || ch == nil {
			return nil, userErrorf("That track is no longer available")
		}

		ctx, cancel := m.context()
		defer cancel()
		return m.joinAndPlay(ctx, ch, tracks[index])
	})
}

func (m *Music) joinAndPlay(ctx context.Context, ch *discordgo.Channel, track trackcodec.Track) (*discordgo.InteractionResponse, error) {
	p, err := m.Players.Join(ctx, ch)
	if err != nil {
		return nil, err
	}
	if err := p.Play(ctx, track); err != nil {
		return nil, err
	}
	return presenters.BuildStartedResponse(track), nil
}
