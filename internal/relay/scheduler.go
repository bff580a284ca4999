package relay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkriel/bidrelay/internal/auction"
	"github.com/dkriel/bidrelay/internal/wire"
)

// handleTick runs one lifecycle sweep: auctions past their start time
// open, auctions past their end time close. Each transition is
// replicated upstream and announced; failures are isolated per auction.
func (c *Coordinator) handleTick(ctx context.Context) {
	transitions := c.store.Advance(c.clock.Now())
	if len(transitions) == 0 {
		return
	}

	for _, tr := range transitions {
		a := tr.Auction

		if err := c.upstream.UpdateAuction(ctx, a.Patch()); err != nil {
			log.Error().
				Err(err).
				Str("auction_id", a.ID).
				Str("state", string(tr.To)).
				Msg("failed to replicate lifecycle transition")
		}

		switch tr.To {
		case auction.StateOngoing:
			c.bus.Broadcast(wire.BroadcastInfo, fmt.Sprintf("Auction %s has started", a.Name))
		case auction.StateDone:
			c.bus.Broadcast(wire.BroadcastInfo,
				fmt.Sprintf("Auction %s has ended. Highest bid: %s", a.Name, formatAmount(a.HighestBid)))
		}

		log.Info().
			Str("auction_id", a.ID).
			Str("from", string(tr.From)).
			Str("to", string(tr.To)).
			Msg("auction state advanced")
	}

	c.broadcastListing(ctx)
}
