package handler

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/lavanode/internal/lavalink"
)

var minVolume = float64(lavalink.MinVolume)

// Commands is a list of all the commands the bot can handle.
// This is used to register the commands with Discord.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "ping",
		Description: "Check that the bot and its audio node are up",
	},
	{
		Name:        "music",
		Description: "Play music in your voice channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "join",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Join your voice channel, or the busiest one",
			},
			{
				Name:        "play",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Play a URL or search for a track",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "query",
						Type:        discordgo.ApplicationCommandOptionString,
						Description: "A URL or search terms",
						Required:    true,
					},
				},
			},
			{
				Name:        "pause",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Pause playback",
			},
			{
				Name:        "resume",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Resume playback",
			},
			{
				Name:        "stop",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Stop the current track",
			},
			{
				Name:        "seek",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Jump to a position in the current track",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "seconds",
						Type:        discordgo.ApplicationCommandOptionInteger,
						Description: "Position from the start of the track",
						Required:    true,
						MinValue:    &[]float64{0}[0],
					},
				},
			},
			{
				Name:        "volume",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Set the playback volume",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "percent",
						Type:        discordgo.ApplicationCommandOptionInteger,
						Description: "Volume in percent, 100 is unchanged",
						Required:    true,
						MinValue:    &minVolume,
						MaxValue:    lavalink.MaxVolume,
					},
				},
			},
			{
				Name:        "nowplaying",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Show the current track",
			},
			{
				Name:        "leave",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "Leave the voice channel",
			},
			{
				Name:        "history",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Description: "List recently played tracks",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "limit",
						Type:        discordgo.ApplicationCommandOptionInteger,
						Description: "How many tracks to list",
						MinValue:    &[]float64{1}[0],
						MaxValue:    25,
					},
				},
			},
		},
	},
}

// EstablishCommands registers Commands in guildID, or globally when guildID
// is empty.
func EstablishCommands(s *discordgo.Session, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, Commands)
	if err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}
	return nil
}
