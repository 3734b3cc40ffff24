package handler

import (
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/lavanode/internal/generator"
	"github.com/glizzus/lavanode/internal/presenters"
)

// NewInteractionHandler routes interactions through the ping and music
// flows. music may be nil, in which case only ping is served.
func NewInteractionHandler(node NodeStatus, music *Music, idGenerator generator.Generator[string]) func(DiscordSession, *discordgo.InteractionCreate) {
	fm := NewFlowManager(idGenerator)
	fm.RegisterFlow(NewPingFlow(node))
	if music != nil {
		for _, flow := range music.Flows() {
			fm.RegisterFlow(flow)
		}
	}

	return func(s DiscordSession, i *discordgo.InteractionCreate) {
		err := fm.Router(s, i)
		if err == nil {
			return
		}

		var userErr *UserError
		if errors.As(err, &userErr) {
			if rerr := s.InteractionRespond(i.Interaction, presenters.Ephemeral(userErr.Message)); rerr != nil {
				slog.Error("Failed to respond with user error", "interactionID", i.ID, slog.Any("error", rerr))
			}
			return
		}
		slog.Error("Failed to handle interaction", "interactionID", i.ID, "guildID", i.GuildID, slog.Any("error", err))
	}
}

// MakeInteractionCreateHandler adapts h to discordgo's handler signature.
func MakeInteractionCreateHandler(h func(DiscordSession, *discordgo.InteractionCreate)) InteractionCreateHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		h(s, i)
	}
}
