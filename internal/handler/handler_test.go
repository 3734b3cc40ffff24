package handler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/lavanode/internal/generator"
	"github.com/glizzus/lavanode/internal/handler"
	"github.com/glizzus/lavanode/internal/lavalink"
	"github.com/glizzus/lavanode/internal/repository"
	"github.com/glizzus/lavanode/internal/rest"
	"github.com/glizzus/lavanode/internal/trackcodec"
	"github.com/glizzus/lavanode/internal/voice"
	"github.com/google/go-cmp/cmp"
)

type mockSession struct {
	Responses []*discordgo.InteractionResponse
	Edits     []*discordgo.WebhookEdit
}

func (m *mockSession) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error {
	m.Responses = append(m.Responses, resp)
	return nil
}

func (m *mockSession) InteractionResponseEdit(i *discordgo.Interaction, wh *discordgo.WebhookEdit, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.Edits = append(m.Edits, wh)
	return &discordgo.Message{}, nil
}

var _ handler.DiscordSession = (*mockSession)(nil)

// lastContent is the content the user ends up seeing.
func (m *mockSession) lastContent(t *testing.T) string {
	t.Helper()
	if len(m.Edits) > 0 {
		return *m.Edits[len(m.Edits)-1].Content
	}
	if len(m.Responses) == 0 {
		t.Fatal("no response was sent")
	}
	return m.Responses[len(m.Responses)-1].Data.Content
}

type fakePlayer struct {
	calls   []string
	track   trackcodec.Track
	playing bool
	volume  int
	err     error
}

func (p *fakePlayer) record(call string) error {
	p.calls = append(p.calls, call)
	return p.err
}

func (p *fakePlayer) Play(_ context.Context, track trackcodec.Track) error {
	if err := p.record("play " + track.Title); err != nil {
		return err
	}
	p.track, p.playing = track, true
	return nil
}
func (p *fakePlayer) Stop(context.Context) error   { return p.record("stop") }
func (p *fakePlayer) Pause(context.Context) error  { return p.record("pause") }
func (p *fakePlayer) Resume(context.Context) error { return p.record("resume") }
func (p *fakePlayer) Seek(_ context.Context, d time.Duration) error {
	return p.record("seek " + d.String())
}
func (p *fakePlayer) SetVolume(_ context.Context, v int) error {
	if err := p.record("volume"); err != nil {
		return err
	}
	p.volume = v
	return nil
}
func (p *fakePlayer) Disconnect(context.Context) error          { return p.record("disconnect") }
func (p *fakePlayer) Track() (trackcodec.Track, bool)           { return p.track, p.playing }
func (p *fakePlayer) EstimatedPosition(time.Time) time.Duration { return 30 * time.Second }
func (p *fakePlayer) Paused() bool                              { return false }
func (p *fakePlayer) Volume() int                               { return p.volume }

type fakePlayers struct {
	state   lavalink.State
	stats   lavalink.Stats
	players map[string]*fakePlayer
	joined  []string
	joinErr error
}

func newFakePlayers() *fakePlayers {
	return &fakePlayers{state: lavalink.StateConnected, players: map[string]*fakePlayer{}}
}

func (f *fakePlayers) State() lavalink.State { return f.state }
func (f *fakePlayers) Stats() lavalink.Stats { return f.stats }

func (f *fakePlayers) Join(_ context.Context, ch *discordgo.Channel) (handler.Player, error) {
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	f.joined = append(f.joined, ch.ID)
	p, ok := f.players[ch.GuildID]
	if !ok {
		p = &fakePlayer{volume: lavalink.DefaultVolume}
		f.players[ch.GuildID] = p
	}
	return p, nil
}

func (f *fakePlayers) Player(guildID string) (handler.Player, bool) {
	p, ok := f.players[guildID]
	return p, ok
}

type fakeLoader struct {
	result      *rest.LoadResult
	identifiers []string
}

func (f *fakeLoader) LoadTracks(_ context.Context, identifier string) (*rest.LoadResult, error) {
	f.identifiers = append(f.identifiers, identifier)
	return f.result, nil
}

type fakeLocator struct{}

var (
	musicChannel  = &discordgo.Channel{ID: "music", GuildID: "g1", Type: discordgo.ChannelTypeGuildVoice}
	loungeChannel = &discordgo.Channel{ID: "lounge", GuildID: "g1", Type: discordgo.ChannelTypeGuildVoice}
)

func (fakeLocator) UserChannel(_, userID string) (*discordgo.Channel, error) {
	if userID == "listener" {
		return musicChannel, nil
	}
	return nil, voice.ErrNotInVoice
}

func (fakeLocator) BusiestChannel(string) (*discordgo.Channel, error) {
	return loungeChannel, nil
}

type fakeHistory struct {
	plays []repository.Play
}

func (f *fakeHistory) Recent(_ context.Context, _ string, limit int) ([]repository.Play, error) {
	if limit < len(f.plays) {
		return f.plays[:limit], nil
	}
	return f.plays, nil
}

type determinsticIDGenerator struct{}

func (d *determinsticIDGenerator) Next() (string, error) {
	return "determinism", nil
}

var _ generator.Generator[string] = (*determinsticIDGenerator)(nil)

func musicCommand(userID, sub string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:      "interaction",
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "g1",
			Member:  &discordgo.Member{User: &discordgo.User{ID: userID}},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: "music",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: sub, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts},
				},
			},
		},
	}
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func intOption(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	// Discord sends numbers as JSON numbers, which decode to float64.
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(value)}
}

func trackSelect(instanceID string, values ...string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:      "component",
			Type:    discordgo.InteractionMessageComponent,
			GuildID: "g1",
			Member:  &discordgo.Member{User: &discordgo.User{ID: "listener"}},
			Data: discordgo.MessageComponentInteractionData{
				CustomID:      "track_select_menu:" + instanceID,
				ComponentType: discordgo.SelectMenuComponent,
				Values:        values,
			},
		},
	}
}

func loaded(loadType rest.LoadType, titles ...string) *rest.LoadResult {
	result := &rest.LoadResult{LoadType: loadType, PlaylistInfo: rest.PlaylistInfo{SelectedTrack: -1}}
	for _, title := range titles {
		result.Tracks = append(result.Tracks, rest.LoadedTrack{
			Encoded: "encoded-" + title,
			Info:    rest.TrackInfo{Title: title, Author: "artist", LengthMs: 180000, IsSeekable: true},
		})
	}
	return result
}

type fixture struct {
	players *fakePlayers
	loader  *fakeLoader
	history *fakeHistory
	handle  func(handler.DiscordSession, *discordgo.InteractionCreate)
}

func newFixture(withHistory bool) *fixture {
	f := &fixture{players: newFakePlayers(), loader: &fakeLoader{}, history: &fakeHistory{}}
	music := &handler.Music{
		Players: f.players,
		Loader:  f.loader,
		Voice:   fakeLocator{},
	}
	if withHistory {
		music.History = f.history
	}
	f.handle = handler.NewInteractionHandler(f.players, music, &determinsticIDGenerator{})
	return f
}

func TestInteractionCreatePing(t *testing.T) {
	ping := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{Name: "ping"},
		},
	}

	tests := []struct {
		name  string
		state lavalink.State
		want  string
	}{
		{name: "connected", state: lavalink.StateConnected, want: "Pong! The audio node is connected with 3 players (1 playing)."},
		{name: "reconnecting", state: lavalink.StateReconnecting, want: "Pong! The audio node is reconnecting."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(false)
			f.players.state = tt.state
			f.players.stats = lavalink.Stats{Players: 3, PlayingPlayers: 1}

			session := &mockSession{}
			f.handle(session, ping)

			want := &mockSession{
				Responses: []*discordgo.InteractionResponse{{
					Type: discordgo.InteractionResponseChannelMessageWithSource,
					Data: &discordgo.InteractionResponseData{Content: tt.want},
				}},
			}
			if diff := cmp.Diff(want, session); diff != "" {
				t.Errorf("session mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("without a node", func(t *testing.T) {
		session := &mockSession{}
		handler.NewInteractionHandler(nil, nil, &generator.UUIDV4Generator{})(session, ping)
		if got := session.lastContent(t); got != "Pong!" {
			t.Errorf("content = %q, want Pong!", got)
		}
	})
}

func TestPlayURL(t *testing.T) {
	f := newFixture(false)
	f.loader.result = loaded(rest.LoadTypeTrack, "Take On Me")

	session := &mockSession{}
	f.handle(session, musicCommand("listener", "play", stringOption("query", "https://example.com/take-on-me")))

	if diff := cmp.Diff([]string{"https://example.com/take-on-me"}, f.loader.identifiers); diff != "" {
		t.Errorf("loaded identifiers mismatch (-want +got):\n%s", diff)
	}
	if len(session.Responses) != 1 || session.Responses[0].Type != discordgo.InteractionResponseDeferredChannelMessageWithSource {
		t.Fatalf("responses = %+v, want one deferred response", session.Responses)
	}
	if got, want := session.lastContent(t), "Now playing Take On Me by artist (3:00)"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if diff := cmp.Diff([]string{"music"}, f.players.joined); diff != "" {
		t.Errorf("joined channels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"play Take On Me"}, f.players.players["g1"].calls); diff != "" {
		t.Errorf("player calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPlaySearchThenSelect(t *testing.T) {
	f := newFixture(false)
	f.loader.result = loaded(rest.LoadTypeSearch, "First", "Second")

	session := &mockSession{}
	f.handle(session, musicCommand("listener", "play", stringOption("query", "wham")))

	if diff := cmp.Diff([]string{"ytsearch:wham"}, f.loader.identifiers); diff != "" {
		t.Errorf("loaded identifiers mismatch (-want +got):\n%s", diff)
	}
	if len(session.Edits) != 1 || session.Edits[0].Components == nil || len(*session.Edits[0].Components) != 1 {
		t.Fatalf("edits = %+v, want the search results menu", session.Edits)
	}
	menu := (*session.Edits[0].Components)[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	if menu.CustomID != "track_select_menu:determinism" || len(menu.Options) != 2 {
		t.Errorf("menu = %+v", menu)
	}
	if len(f.players.joined) != 0 {
		t.Errorf("joined %v before a track was selected", f.players.joined)
	}

	f.handle(session, trackSelect("determinism", "1"))

	if got := session.Responses[1].Type; got != discordgo.InteractionResponseDeferredMessageUpdate {
		t.Errorf("selection response type = %v, want deferred update", got)
	}
	if got, want := session.lastContent(t), "Now playing Second by artist (3:00)"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if got := *session.Edits[1].Components; len(got) != 0 {
		t.Errorf("menu was not removed after selection: %+v", got)
	}
	if diff := cmp.Diff([]string{"play Second"}, f.players.players["g1"].calls); diff != "" {
		t.Errorf("player calls mismatch (-want +got):\n%s", diff)
	}

	// The flow is over, so a second pick from the same menu does nothing.
	f.handle(session, trackSelect("determinism", "0"))
	if len(session.Responses) != 2 {
		t.Errorf("got %d responses, want the finished flow to ignore the selection", len(session.Responses))
	}
}

func TestPlayErrors(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		result  *rest.LoadResult
		joinErr error
		want    string
	}{
		{
			name:   "user not in voice",
			userID: "stranger",
			want:   "Join a voice channel first",
		},
		{
			name:   "load failed",
			userID: "listener",
			result: &rest.LoadResult{LoadType: rest.LoadTypeFailed, Exception: &rest.LoadException{Message: "blocked", Severity: "COMMON"}},
			want:   "Could not load that track",
		},
		{
			name:   "no matches",
			userID: "listener",
			result: loaded(rest.LoadTypeNoMatch),
			want:   "No tracks found",
		},
		{
			name:    "node down",
			userID:  "listener",
			result:  loaded(rest.LoadTypeTrack, "Take On Me"),
			joinErr: lavalink.ErrNotConnected,
			want:    "The audio node is unavailable right now, try again shortly",
		},
		{
			name:    "unexpected failure",
			userID:  "listener",
			result:  loaded(rest.LoadTypeTrack, "Take On Me"),
			joinErr: errors.New("boom"),
			want:    "Something went wrong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(false)
			f.loader.result = tt.result
			f.players.joinErr = tt.joinErr

			session := &mockSession{}
			f.handle(session, musicCommand(tt.userID, "play", stringOption("query", "anything")))

			if got := session.lastContent(t); got != tt.want {
				t.Errorf("content = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJoinFallsBackToBusiestChannel(t *testing.T) {
	f := newFixture(false)
	session := &mockSession{}
	f.handle(session, musicCommand("stranger", "join"))

	if got, want := session.lastContent(t), "Joined <#lounge>"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if diff := cmp.Diff([]string{"lounge"}, f.players.joined); diff != "" {
		t.Errorf("joined channels mismatch (-want +got):\n%s", diff)
	}
}

func TestPlayerCommands(t *testing.T) {
	playing := trackcodec.Track{Title: "Take On Me", Author: "a-ha", Length: 225 * time.Second, IsSeekable: true}

	tests := []struct {
		name      string
		command   *discordgo.InteractionCreate
		noPlayer  bool
		playerErr error
		wantCalls []string
		want      string
	}{
		{name: "pause", command: musicCommand("listener", "pause"), wantCalls: []string{"pause"}, want: "Paused"},
		{name: "resume", command: musicCommand("listener", "resume"), wantCalls: []string{"resume"}, want: "Resumed"},
		{name: "stop", command: musicCommand("listener", "stop"), wantCalls: []string{"stop"}, want: "Stopped"},
		{name: "leave", command: musicCommand("listener", "leave"), wantCalls: []string{"disconnect"}, want: "Left the voice channel"},
		{
			name:      "volume",
			command:   musicCommand("listener", "volume", intOption("percent", 40)),
			wantCalls: []string{"volume"},
			want:      "Volume set to 40%",
		},
		{
			name:      "volume out of range",
			command:   musicCommand("listener", "volume", intOption("percent", 4000)),
			playerErr: lavalink.ErrOutOfRange,
			wantCalls: []string{"volume"},
			want:      "Volume must be between 0 and 1000",
		},
		{
			name:      "seek",
			command:   musicCommand("listener", "seek", intOption("seconds", 90)),
			wantCalls: []string{"seek 1m30s"},
			want:      "Seeked to 1:30",
		},
		{
			name:    "now playing",
			command: musicCommand("listener", "nowplaying"),
			want:    "Take On Me by a-ha\n0:30 / 3:45 · volume 100%",
		},
		{
			name:     "no player",
			command:  musicCommand("listener", "pause"),
			noPlayer: true,
			want:     "I'm not in a voice channel here",
		},
		{
			name:      "node down",
			command:   musicCommand("listener", "stop"),
			playerErr: lavalink.ErrNotConnected,
			wantCalls: []string{"stop"},
			want:      "The audio node is unavailable right now, try again shortly",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(false)
			player := &fakePlayer{track: playing, playing: true, volume: lavalink.DefaultVolume, err: tt.playerErr}
			if !tt.noPlayer {
				f.players.players["g1"] = player
			}

			session := &mockSession{}
			f.handle(session, tt.command)

			if got := session.lastContent(t); got != tt.want {
				t.Errorf("content = %q, want %q", got, tt.want)
			}
			if diff := cmp.Diff(tt.wantCalls, player.calls); diff != "" {
				t.Errorf("player calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	at := time.Unix(1714564800, 0)
	f := newFixture(true)
	f.history.plays = []repository.Play{
		{Title: "Second", Author: "B", StartedAt: at},
		{Title: "First", Author: "A", StartedAt: at.Add(-time.Hour)},
	}

	session := &mockSession{}
	f.handle(session, musicCommand("listener", "history", intOption("limit", 1)))
	if got, want := session.lastContent(t), "**Recently played**\n1. Second by B <t:1714564800:R>"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}

	t.Run("unavailable", func(t *testing.T) {
		f := newFixture(false)
		session := &mockSession{}
		f.handle(session, musicCommand("listener", "history"))
		if got := session.lastContent(t); got != "History is not available" {
			t.Errorf("content = %q", got)
		}
		if flags := session.Responses[0].Data.Flags; flags != discordgo.MessageFlagsEphemeral {
			t.Errorf("flags = %v, want ephemeral", flags)
		}
	})
}
