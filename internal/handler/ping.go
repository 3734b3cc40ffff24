package handler

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/lavanode/internal/lavalink"
	"github.com/glizzus/lavanode/internal/presenters"
)

func pingMessage(node NodeStatus) string {
	if node == nil {
		return "Pong!"
	}
	state := node.State()
	if state != lavalink.StateConnected {
		return fmt.Sprintf("Pong! The audio node is %s.", state)
	}
	stats := node.Stats()
	return fmt.Sprintf("Pong! The audio node is connected with %d players (%d playing).", stats.Players, stats.PlayingPlayers)
}

// NewPingFlow answers /ping with the node's connection state.
func NewPingFlow(node NodeStatus) *Flow {
	return &Flow{
		ID: "ping",
		Root: &Node{
			ID: "ping",
			Matcher: func(i *discordgo.InteractionCreate) bool {
				if i.Type != discordgo.InteractionApplicationCommand {
					return false
				}
				return i.ApplicationCommandData().Name == "ping"
			},
			Handler: func(s DiscordSession, i *discordgo.InteractionCreate, ctx *FlowContext) error {
				return s.InteractionRespond(i.Interaction, presenters.Message(pingMessage(node)))
			},
		},
	}
}
