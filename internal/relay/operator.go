package relay

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkriel/bidrelay/internal/wire"
)

// Operator surface: enumerate connections, force-disconnect a client,
// inspect the in-memory auction table, and shut down gracefully. Safe to
// call from the console goroutine; the registry and store carry their
// own locks.

// ConnectedClients describes every bound identity for the LIST command.
func (c *Coordinator) ConnectedClients() []string {
	entries := c.registry.All()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, fmt.Sprintf("Username: %s, Remote: %s", e.Username, e.Session.RemoteAddr()))
	}
	return out
}

// KillClient force-disconnects the session bound to a username and
// removes the binding. Reports whether a session was found.
func (c *Coordinator) KillClient(username string) bool {
	s, ok := c.registry.Lookup(username)
	if !ok {
		return false
	}
	c.registry.Unbind(s)
	s.Close()
	log.Info().Str("username", username).Msg("connection killed by operator")
	return true
}

// AuctionTable summarizes the in-memory auctions for the AUCTIONS command.
func (c *Coordinator) AuctionTable() []string {
	auctions := c.store.List(nil)
	out := make([]string, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, fmt.Sprintf("AuctionID: %s, AuctionName: %s, State: %s, HighestBid: %s",
			a.ID, a.Name, a.State, formatAmount(a.HighestBid)))
	}
	return out
}

// Shutdown notifies every client and closes all connections. The caller
// then stops the HTTP server and cancels the coordinator context.
func (c *Coordinator) Shutdown() {
	c.bus.Broadcast(wire.BroadcastInfo, "Server is shutting down")
	for _, e := range c.registry.All() {
		c.registry.Unbind(e.Session)
		e.Session.Close()
	}
	log.Info().Msg("all client sessions closed")
}
