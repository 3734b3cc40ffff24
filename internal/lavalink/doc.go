// Package lavalink is a client for the control-plane websocket of a Lavalink
// audio node.
//
// A Node owns one socket to the node, reconnects it when it breaks and routes
// inbound frames to the GuildSession of the guild they belong to. Guild
// sessions are created by Node.ConnectGuild once Discord has delivered both
// halves of the voice handshake, and act as a thin command proxy for the
// node's player in that guild.
//
// Everything observable happens through events: subscribe on the Node's
// EventRegistry to see every guild, or on a GuildSession's registry to see
// one.
package lavalink
