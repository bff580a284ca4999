package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/dkriel/bidrelay/internal/auction"
	"github.com/dkriel/bidrelay/internal/session"
	"github.com/dkriel/bidrelay/internal/store"
	"github.com/dkriel/bidrelay/internal/upstream"
	"github.com/dkriel/bidrelay/internal/wire"
)

// dispatch decodes one inbound frame and routes it to its handler. No
// failure here may escape: every error becomes an error reply to the
// issuing session and nothing else.
func (c *Coordinator) dispatch(ctx context.Context, s *session.Session, raw []byte) {
	cmd, err := wire.Decode(raw)
	if err != nil {
		if errors.Is(err, wire.ErrProtocol) {
			c.bus.Reply(s, wire.Failure("", "Unknown command"))
			return
		}
		c.bus.Reply(s, wire.Failure("", err.Error()))
		return
	}

	switch cmd := cmd.(type) {
	case wire.Register:
		c.handleRegister(ctx, s, cmd)
	case wire.Login:
		c.handleLogin(ctx, s, cmd)
	case wire.CreateAuction:
		c.handleCreateAuction(ctx, s, cmd)
	case wire.PlaceBid:
		c.handlePlaceBid(ctx, s, cmd)
	case wire.GetAuction:
		c.handleGetAuction(ctx, s, cmd)
	}
}

func (c *Coordinator) handleRegister(ctx context.Context, s *session.Session, cmd wire.Register) {
	token, err := c.upstream.Register(ctx, cmd.Username, cmd.Password)
	if err != nil {
		c.bus.Reply(s, wire.Failure(wire.TypeRegister, upstreamMessage(err)))
		return
	}

	c.registry.Bind(cmd.Username, s)
	log.Info().Str("username", cmd.Username).Msg("user registered")
	c.bus.Reply(s, wire.Success(wire.TypeRegister, "Registration successful").WithToken(token))
}

func (c *Coordinator) handleLogin(ctx context.Context, s *session.Session, cmd wire.Login) {
	token, err := c.upstream.Login(ctx, cmd.Username, cmd.Password)
	if err != nil {
		c.bus.Reply(s, wire.Failure(wire.TypeLogin, upstreamMessage(err)))
		return
	}

	c.registry.Bind(cmd.Username, s)
	log.Info().Str("username", cmd.Username).Msg("user connected")
	c.bus.Reply(s, wire.Success(wire.TypeLogin, "Login successful").WithToken(token))

	// Freshly authenticated clients get the full listing immediately.
	c.pushListing(ctx, s)
}

func (c *Coordinator) handleCreateAuction(ctx context.Context, s *session.Session, cmd wire.CreateAuction) {
	start, err := auction.ParseTime(cmd.StartDate)
	if err != nil {
		c.bus.Reply(s, wire.Failure(wire.TypeCreateAuction, fmt.Sprintf("auction_start_date must use format %q", auction.TimeLayout)))
		return
	}
	end, err := auction.ParseTime(cmd.EndDate)
	if err != nil {
		c.bus.Reply(s, wire.Failure(wire.TypeCreateAuction, fmt.Sprintf("auction_end_date must use format %q", auction.TimeLayout)))
		return
	}

	id, err := auction.NewID(c.store.Has)
	if err != nil {
		log.Error().Err(err).Msg("auction id generation exhausted")
		c.bus.Reply(s, wire.Failure(wire.TypeCreateAuction, "Failed to create auction"))
		return
	}

	a := auction.Auction{
		ID:    id,
		Name:  cmd.Name,
		Start: start,
		End:   end,
		Listing: auction.Listing{
			Title:         cmd.Title,
			Price:         cmd.Price,
			Location:      cmd.Location,
			Bedrooms:      cmd.Bedrooms,
			Bathrooms:     cmd.Bathrooms,
			ParkingSpaces: cmd.ParkingSpaces,
			Amenities:     cmd.Amenities,
			Description:   cmd.Description,
			Image:         cmd.Image,
		},
		HighestBid: cmd.HighestBid,
		State:      auction.StateWaiting,
	}

	if err := c.upstream.CreateAuction(ctx, a.Record()); err != nil {
		log.Error().Err(err).Str("auction_id", id).Msg("failed to persist new auction")
		c.bus.Reply(s, wire.Failure(wire.TypeCreateAuction, "Failed to create auction"))
		return
	}

	c.store.Upsert(a)
	log.Info().Str("auction_id", id).Str("auction_name", a.Name).Msg("auction created")
	c.bus.Reply(s, wire.Success(wire.TypeCreateAuction, "").WithData(id))

	// Creator may still be anonymous, so reply directly as well as
	// refreshing every bound client.
	c.pushListing(ctx, s)
	c.broadcastListing(ctx)
}

func (c *Coordinator) handlePlaceBid(ctx context.Context, s *session.Session, cmd wire.PlaceBid) {
	if !c.store.Has(cmd.AuctionID) {
		c.bus.Reply(s, wire.Failure(wire.TypeUpdateAuction, "Auction not found"))
		return
	}

	username, ok := c.registry.Identity(s)
	if !ok {
		c.bus.Reply(s, wire.Failure(wire.TypeUpdateAuction, "Login required to place a bid"))
		return
	}

	// The in-memory admission check and mutation complete atomically
	// here, before the replication call can suspend this handler.
	snapshot, result := c.store.ApplyBid(cmd.AuctionID, cmd.Amount, username)
	switch result {
	case store.BidRejectedNotFound:
		c.bus.Reply(s, wire.Failure(wire.TypeUpdateAuction, "Auction not found"))
		return
	case store.BidRejectedLowBid:
		c.bus.Reply(s, wire.Failure(wire.TypeUpdateAuction,
			fmt.Sprintf("Bid must exceed the current highest bid of %s", formatAmount(snapshot.HighestBid))))
		return
	}

	// In-memory state has already advanced; a failed replication is
	// reported but not rolled back.
	if err := c.upstream.UpdateAuction(ctx, snapshot.Patch()); err != nil {
		log.Error().Err(err).Str("auction_id", snapshot.ID).Msg("failed to replicate accepted bid")
		c.bus.Reply(s, wire.Failure(wire.TypeUpdateAuction, "Bid accepted but could not be saved upstream"))
		return
	}

	log.Info().
		Str("auction_id", snapshot.ID).
		Str("username", username).
		Float64("highest_bid", snapshot.HighestBid).
		Msg("bid accepted")

	c.bus.Reply(s, wire.Success(wire.TypeUpdateAuction, "Bid accepted").WithData(snapshot.HighestBid))
	c.bus.Broadcast(wire.BroadcastInfo,
		fmt.Sprintf("New highest bid on auction %s: %s by %s", snapshot.Name, formatAmount(snapshot.HighestBid), username))
	c.pushListing(ctx, s)
}

func (c *Coordinator) handleGetAuction(ctx context.Context, s *session.Session, cmd wire.GetAuction) {
	records, err := c.upstream.QueryAuctions(ctx, upstream.Query{
		Name:  cmd.Name,
		State: cmd.State,
		ID:    cmd.ID,
	})
	if err != nil {
		c.bus.Reply(s, wire.Failure(wire.TypeGetAuction, upstreamMessage(err)))
		return
	}

	source := wire.TypeGetAuction
	if cmd.ByID() {
		source = wire.SourceGetAuctionByID
	}
	c.bus.Reply(s, wire.Success(source, "Auction details retrieved successfully").WithData(records))
}

// pushListing sends the full current listing to one session.
func (c *Coordinator) pushListing(ctx context.Context, s *session.Session) {
	records, err := c.upstream.QueryAuctions(ctx, upstream.Query{})
	if err != nil {
		c.bus.Reply(s, wire.Failure(wire.TypeGetAuction, upstreamMessage(err)))
		return
	}
	c.bus.Reply(s, wire.Success(wire.TypeGetAuction, "Auction details retrieved successfully").WithData(records))
}

// broadcastListing pushes a refreshed listing to every bound session.
func (c *Coordinator) broadcastListing(ctx context.Context) {
	records, err := c.upstream.QueryAuctions(ctx, upstream.Query{})
	if err != nil {
		log.Error().Err(err).Msg("failed to refresh listing for broadcast")
		return
	}
	c.bus.BroadcastJSON(wire.Success(wire.TypeGetAuction, "Auction details retrieved successfully").WithData(records))
}

// upstreamMessage maps gateway errors to client-facing text, surfacing
// the taxonomy verbatim and keeping transport detail in the logs.
func upstreamMessage(err error) string {
	switch {
	case errors.Is(err, upstream.ErrBadCredentials):
		return "Invalid username or password"
	case errors.Is(err, upstream.ErrUsernameTaken):
		return "Username already exists"
	case errors.Is(err, upstream.ErrAuctionNotFound):
		return "Auction not found"
	default:
		log.Error().Err(err).Msg("upstream call failed")
		return "Upstream request failed"
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
