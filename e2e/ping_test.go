package e2e_test

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/lavanode/internal/generator"
	"github.com/glizzus/lavanode/internal/handler"
	"github.com/glizzus/lavanode/internal/lavalink"
)

type mockSession struct {
	Called bool
	Resp   *discordgo.InteractionResponse
}

func (m *mockSession) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, opts ...discordgo.RequestOption) error {
	m.Called = true
	m.Resp = resp
	return nil
}

func (m *mockSession) InteractionResponseEdit(i *discordgo.Interaction, wh *discordgo.WebhookEdit, opts ...discordgo.RequestOption) (*discordgo.Message, error) {
	return nil, nil
}

var _ handler.DiscordSession = (*mockSession)(nil)

func TestInteractionCreatePing(t *testing.T) {
	tests := []struct {
		name string
		node handler.NodeStatus
		want string
	}{
		{
			name: "without a node",
			want: "Pong!",
		},
		{
			name: "node not connected yet",
			node: lavalink.NewNode(&lavalink.DiscordGateway{}, lavalink.Options{URL: "ws://localhost:2333/"}),
			want: "Pong! The audio node is disconnected.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &mockSession{}
			interaction := &discordgo.InteractionCreate{
				Interaction: &discordgo.Interaction{
					Type: discordgo.InteractionApplicationCommand,
					Data: discordgo.ApplicationCommandInteractionData{
						Name: "ping",
					},
				},
			}

			handler := handler.NewInteractionHandler(tt.node, nil, &generator.UUIDV4Generator{})
			handler(session, interaction)

			expectedSession := &mockSession{
				Called: true,
				Resp: &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseChannelMessageWithSource,
					Data: &discordgo.InteractionResponseData{
						Content: tt.want,
					},
				},
			}
			if diff := cmp.Diff(expectedSession, session); diff != "" {
				t.Errorf("session mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
