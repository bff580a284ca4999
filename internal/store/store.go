// Package store holds the relay's authoritative in-process view of all
// auctions. It is seeded once from the system of record at startup and
// mutated only by the relay coordinator afterwards; the relay assumes it
// is the sole writer of auction state for its lifetime.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkriel/bidrelay/internal/auction"
	"github.com/dkriel/bidrelay/internal/upstream"
)

// BidResult reports the outcome of a bid admission check.
type BidResult int

const (
	BidAccepted BidResult = iota
	BidRejectedNotFound
	BidRejectedLowBid
)

// Transition records one lifecycle state change applied by a sweep. The
// Auction field is a snapshot taken after the change.
type Transition struct {
	Auction auction.Auction
	From    auction.State
	To      auction.State
}

// Store is a mutex-guarded auction map. All check-and-mutate operations
// complete under the lock before any caller I/O can begin, which keeps
// the highest-bid/highest-bidder pair atomic with respect to other bids
// on the same auction.
type Store struct {
	mu       sync.RWMutex
	auctions map[string]*auction.Auction
}

// New creates an empty store.
func New() *Store {
	return &Store{auctions: make(map[string]*auction.Auction)}
}

// Seed rebuilds the store from a full system-of-record listing. Rows
// that fail to parse are logged and skipped rather than aborting boot.
func (s *Store) Seed(records []upstream.AuctionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auctions = make(map[string]*auction.Auction, len(records))
	for _, rec := range records {
		a, err := auction.FromRecord(rec)
		if err != nil {
			log.Warn().Err(err).Str("auction_id", rec.AuctionID).Msg("skipping unparseable auction record")
			continue
		}
		s.auctions[a.ID] = &a
	}
	log.Info().Int("auctions", len(s.auctions)).Msg("auction store seeded")
}

// Get returns a copy of the auction with the given id.
func (s *Store) Get(id string) (auction.Auction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return auction.Auction{}, false
	}
	return *a, true
}

// Has reports whether an auction id is already in use.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.auctions[id]
	return ok
}

// List returns copies of all auctions matching the predicate (nil
// matches everything), ordered by id for stable output.
func (s *Store) List(pred func(auction.Auction) bool) []auction.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]auction.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		if pred == nil || pred(*a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Upsert inserts or replaces an auction.
func (s *Store) Upsert(a auction.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[a.ID] = &a
}

// ApplyBid admits a bid: it is accepted iff the auction exists and the
// amount strictly exceeds the current highest bid. Admission does not
// gate on lifecycle state; that matches the system's observed behavior
// and is kept deliberately. On acceptance the returned snapshot carries
// the new highest bid and bidder.
func (s *Store) ApplyBid(id string, amount float64, bidder string) (auction.Auction, BidResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return auction.Auction{}, BidRejectedNotFound
	}
	if amount <= a.HighestBid {
		return *a, BidRejectedLowBid
	}

	a.HighestBid = amount
	a.HighestBidder = &bidder
	return *a, BidAccepted
}

// Advance runs one lifecycle sweep: Waiting auctions whose start time
// has passed become Ongoing, Ongoing auctions whose end time has passed
// become Done. Done is terminal. Returns the transitions applied so the
// caller can replicate and announce them.
func (s *Store) Advance(now time.Time) []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	var transitions []Transition
	for _, a := range s.auctions {
		switch {
		case a.State == auction.StateWaiting && !now.Before(a.Start):
			a.State = auction.StateOngoing
			transitions = append(transitions, Transition{Auction: *a, From: auction.StateWaiting, To: auction.StateOngoing})
		case a.State == auction.StateOngoing && !now.Before(a.End):
			a.State = auction.StateDone
			transitions = append(transitions, Transition{Auction: *a, From: auction.StateOngoing, To: auction.StateDone})
		}
	}
	return transitions
}

// Len returns the number of auctions held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.auctions)
}
