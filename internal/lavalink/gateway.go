package lavalink

import (
	"github.com/bwmarrin/discordgo"
)

// Gateway is the part of the Discord client the node needs.
type Gateway interface {
	// UserID is the bot user id, empty until the session is ready.
	UserID() string
	ShardCount() int
	// UpdateVoiceState asks Discord to move the bot into channelID.
	// An empty channelID leaves voice in the guild.
	UpdateVoiceState(guildID, channelID string, mute, deaf bool) error
}

// VoiceState is the bot's own voice state in a guild.
type VoiceState struct {
	GuildID   string
	ChannelID string
	UserID    string
	SessionID string
}

// VoiceServer is the voice server Discord assigned to a guild.
type VoiceServer struct {
	GuildID  string
	Token    string
	Endpoint string
}

// DiscordGateway adapts a discordgo session to Gateway.
type DiscordGateway struct {
	Session *discordgo.Session
}

var _ Gateway = (*DiscordGateway)(nil)

func (g *DiscordGateway) UserID() string {
	if g.Session.State == nil || g.Session.State.User == nil {
		return ""
	}
	return g.Session.State.User.ID
}

func (g *DiscordGateway) ShardCount() int {
	if g.Session.ShardCount <= 0 {
		return 1
	}
	return g.Session.ShardCount
}

func (g *DiscordGateway) UpdateVoiceState(guildID, channelID string, mute, deaf bool) error {
	return g.Session.ChannelVoiceJoinManual(guildID, channelID, mute, deaf)
}

// Channel resolves a channel from the state cache, falling back to the API.
func (g *DiscordGateway) Channel(channelID string) (*discordgo.Channel, error) {
	if g.Session.State != nil {
		if ch, err := g.Session.State.Channel(channelID); err == nil {
			return ch, nil
		}
	}
	return g.Session.Channel(channelID)
}

// isVoiceChannel reports whether a node session can be opened in ch.
func isVoiceChannel(ch *discordgo.Channel) bool {
	if ch == nil || ch.GuildID == "" {
		return false
	}
	return ch.Type == discordgo.ChannelTypeGuildVoice || ch.Type == discordgo.ChannelTypeGuildStageVoice
}
