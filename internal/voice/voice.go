// Package voice finds the voice channel the bot should join.
package voice

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

var ErrNotInVoice = errors.New("user is not in a voice channel")

// MaxAttendedChannel returns the voice channel with the most users in it,
// counting the guild's voice states and ignoring the user excludeID.
// This returns nil if no channel has any members.
func MaxAttendedChannel(guild *discordgo.Guild, channels []*discordgo.Channel, excludeID string) *discordgo.Channel {
	attendance := make(map[string]int)
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == "" || vs.UserID == excludeID {
			continue
		}
		attendance[vs.ChannelID]++
	}

	var maxAttendedChannel *discordgo.Channel
	maxAttended := 0

	for _, channel := range channels {
		if channel.Type != discordgo.ChannelTypeGuildVoice && channel.Type != discordgo.ChannelTypeGuildStageVoice {
			continue
		}

		if attendance[channel.ID] > maxAttended {
			maxAttendedChannel = channel
			maxAttended = attendance[channel.ID]
		}
	}

	return maxAttendedChannel
}

// Locator resolves voice channels from the session's state cache.
type Locator struct {
	state *discordgo.State
}

func NewLocator(s *discordgo.Session) *Locator {
	return &Locator{state: s.State}
}

func NewLocatorFromState(state *discordgo.State) *Locator {
	return &Locator{state: state}
}

// UserChannel returns the voice channel userID is connected to.
func (l *Locator) UserChannel(guildID, userID string) (*discordgo.Channel, error) {
	vs, err := l.state.VoiceState(guildID, userID)
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return nil, ErrNotInVoice
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up voice state of %s: %w", userID, err)
	}
	if vs.ChannelID == "" {
		return nil, ErrNotInVoice
	}
	ch, err := l.state.Channel(vs.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up channel %s: %w", vs.ChannelID, err)
	}
	return ch, nil
}

// BusiestChannel returns the guild's most attended voice channel, not
// counting the bot itself.
func (l *Locator) BusiestChannel(guildID string) (*discordgo.Channel, error) {
	guild, err := l.state.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}
	var botID string
	if l.state.User != nil {
		botID = l.state.User.ID
	}
	ch := MaxAttendedChannel(guild, guild.Channels, botID)
	if ch == nil {
		return nil, ErrNotInVoice
	}
	return ch, nil
}
