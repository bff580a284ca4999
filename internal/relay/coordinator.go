// Package relay coordinates all auction state mutations. Every client
// command, scheduler tick and operator action funnels through a single
// ordered work loop, so client-driven and timer-driven mutations are
// never concurrent with each other by construction.
package relay

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkriel/bidrelay/internal/bus"
	"github.com/dkriel/bidrelay/internal/session"
	"github.com/dkriel/bidrelay/internal/store"
	"github.com/dkriel/bidrelay/internal/upstream"
)

// Upstream is the persistence gateway the coordinator replicates
// through. Implemented by upstream.Client.
type Upstream interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) (string, error)
	CreateAuction(ctx context.Context, rec upstream.AuctionRecord) error
	UpdateAuction(ctx context.Context, patch upstream.AuctionPatch) error
	QueryAuctions(ctx context.Context, q upstream.Query) ([]upstream.AuctionRecord, error)
}

const taskBufferSize = 256

type task struct {
	sess *session.Session
	raw  []byte
}

// Coordinator owns the work loop and dispatches decoded commands against
// the store, gateway and bus.
type Coordinator struct {
	upstream     Upstream
	store        *store.Store
	registry     *session.Registry
	bus          *bus.Bus
	clock        clockwork.Clock
	tickInterval time.Duration
	tasks        chan task
}

// New wires a coordinator. The clock is injected so lifecycle ticks are
// testable with a fake clock.
func New(up Upstream, st *store.Store, registry *session.Registry, b *bus.Bus, clock clockwork.Clock, tickInterval time.Duration) *Coordinator {
	return &Coordinator{
		upstream:     up,
		store:        st,
		registry:     registry,
		bus:          b,
		clock:        clock,
		tickInterval: tickInterval,
		tasks:        make(chan task, taskBufferSize),
	}
}

// Seed rebuilds the store from the system of record. Called once before
// Run; a failure here is fatal to startup.
func (c *Coordinator) Seed(ctx context.Context) error {
	records, err := c.upstream.QueryAuctions(ctx, upstream.Query{})
	if err != nil {
		return err
	}
	c.store.Seed(records)
	return nil
}

// Enqueue hands one raw inbound frame from a session to the work loop.
// Called from transport goroutines; drops (with a log) when the relay is
// saturated rather than blocking the read pump.
func (c *Coordinator) Enqueue(s *session.Session, raw []byte) {
	select {
	case c.tasks <- task{sess: s, raw: raw}:
	default:
		log.Warn().Str("session_id", s.ID).Msg("work queue full, dropping command")
	}
}

// HandleDisconnect unbinds whatever identity the session held. Any
// command already in flight for the session completes normally; its
// reply is silently dropped on delivery.
func (c *Coordinator) HandleDisconnect(s *session.Session) {
	if username, ok := c.registry.Unbind(s); ok {
		log.Info().Str("username", username).Msg("client disconnected")
	} else {
		log.Debug().Str("session_id", s.ID).Msg("anonymous client disconnected")
	}
}

// Run consumes the work queue until the context is cancelled. Lifecycle
// ticks fire on the same loop as commands.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := c.clock.NewTicker(c.tickInterval)
	defer ticker.Stop()

	log.Info().Dur("tick_interval", c.tickInterval).Msg("relay coordinator started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("relay coordinator shutting down")
			return
		case <-ticker.Chan():
			c.handleTick(ctx)
		case t := <-c.tasks:
			c.dispatch(ctx, t.sess, t.raw)
		}
	}
}
