package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/dkriel/bidrelay/internal/auction"
	"github.com/dkriel/bidrelay/internal/bus"
	"github.com/dkriel/bidrelay/internal/session"
	"github.com/dkriel/bidrelay/internal/store"
	"github.com/dkriel/bidrelay/internal/upstream"
	"github.com/dkriel/bidrelay/internal/wire"
)

// fakeUpstream is an in-memory stand-in for the system of record.
type fakeUpstream struct {
	users   map[string]string
	records map[string]upstream.AuctionRecord
	patches []upstream.AuctionPatch

	failCreate error
	failUpdate error
	failQuery  error
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		users:   make(map[string]string),
		records: make(map[string]upstream.AuctionRecord),
	}
}

func (f *fakeUpstream) Login(_ context.Context, username, password string) (string, error) {
	if pw, ok := f.users[username]; !ok || pw != password {
		return "", upstream.ErrBadCredentials
	}
	return "token-" + username, nil
}

func (f *fakeUpstream) Register(_ context.Context, username, password string) (string, error) {
	if _, ok := f.users[username]; ok {
		return "", upstream.ErrUsernameTaken
	}
	f.users[username] = password
	return "token-" + username, nil
}

func (f *fakeUpstream) CreateAuction(_ context.Context, rec upstream.AuctionRecord) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	f.records[rec.AuctionID] = rec
	return nil
}

func (f *fakeUpstream) UpdateAuction(_ context.Context, patch upstream.AuctionPatch) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	rec, ok := f.records[patch.AuctionID]
	if !ok {
		return upstream.ErrAuctionNotFound
	}
	rec.HighestBid = patch.HighestBid
	rec.AuctionState = patch.AuctionState
	rec.BuyerID = patch.BuyerID
	f.records[patch.AuctionID] = rec
	f.patches = append(f.patches, patch)
	return nil
}

func (f *fakeUpstream) QueryAuctions(_ context.Context, q upstream.Query) ([]upstream.AuctionRecord, error) {
	if f.failQuery != nil {
		return nil, f.failQuery
	}
	var out []upstream.AuctionRecord
	for _, rec := range f.records {
		if q.ID != "" && rec.AuctionID != q.ID {
			continue
		}
		if q.State != "" && rec.AuctionState != q.State {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

type fixture struct {
	up       *fakeUpstream
	store    *store.Store
	registry *session.Registry
	clock    *clockwork.FakeClock
	coord    *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	up := newFakeUpstream()
	st := store.New()
	registry := session.NewRegistry()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	coord := New(up, st, registry, bus.New(registry, nil), clock, 10*time.Second)
	return &fixture{up: up, store: st, registry: registry, clock: clock, coord: coord}
}

func newTestSession(id string) *session.Session {
	return &session.Session{ID: id, Send: make(chan []byte, 32)}
}

type frame struct {
	// Reply fields.
	Status    string          `json:"status"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
	APIKey    string          `json:"apiKey"`
	Timestamp int64           `json:"timestamp"`
	// Shared / broadcast fields.
	Type    string `json:"type"`
	Message string `json:"message"`
}

func nextFrame(t *testing.T, s *session.Session) frame {
	t.Helper()
	select {
	case payload := <-s.Send:
		var f frame
		require.NoError(t, json.Unmarshal(payload, &f))
		return f
	default:
		t.Fatalf("session %s has no pending frame", s.ID)
		return frame{}
	}
}

func requireNoFrame(t *testing.T, s *session.Session) {
	t.Helper()
	require.Empty(t, s.Send, "session %s should have no pending frames", s.ID)
}

func (fx *fixture) sendJSON(s *session.Session, payload string) {
	fx.coord.dispatch(context.Background(), s, []byte(payload))
}

func TestRegisterThenLogin(t *testing.T) {
	fx := newFixture(t)
	s := newTestSession("s1")

	fx.sendJSON(s, `{"type":"Register","username":"alice","password":"secret"}`)

	reply := nextFrame(t, s)
	require.Equal(t, "success", reply.Status)
	require.Equal(t, wire.TypeRegister, reply.Source)
	require.Equal(t, "token-alice", reply.APIKey)
	require.NotZero(t, reply.Timestamp)

	name, bound := fx.registry.Identity(s)
	require.True(t, bound)
	require.Equal(t, "alice", name)

	// Duplicate registration surfaces the conflict verbatim.
	s2 := newTestSession("s2")
	fx.sendJSON(s2, `{"type":"Register","username":"alice","password":"other"}`)
	reply = nextFrame(t, s2)
	require.Equal(t, "error", reply.Status)
	require.Equal(t, "Username already exists", reply.Message)

	// Bad credentials on login.
	fx.sendJSON(s2, `{"type":"Login","username":"alice","password":"wrong"}`)
	reply = nextFrame(t, s2)
	require.Equal(t, "error", reply.Status)
	require.Equal(t, "Invalid username or password", reply.Message)
	_, bound = fx.registry.Identity(s2)
	require.False(t, bound)

	// Successful login binds and pushes the full listing.
	fx.sendJSON(s2, `{"type":"Login","username":"alice","password":"secret"}`)
	reply = nextFrame(t, s2)
	require.Equal(t, "success", reply.Status)
	require.Equal(t, wire.TypeLogin, reply.Source)
	require.Equal(t, "token-alice", reply.APIKey)

	listing := nextFrame(t, s2)
	require.Equal(t, wire.TypeGetAuction, listing.Source)

	// Last bind wins: the first session lost the identity.
	_, bound = fx.registry.Identity(s)
	require.False(t, bound)
}

func createPayload(name, start, end string) string {
	return fmt.Sprintf(`{
		"type":"CreateAuction",
		"auction_name":%q,
		"auction_start_date":%q,
		"auction_end_date":%q,
		"listing_title":"3 bed lakeside home",
		"listing_price":100000,
		"listing_location":"Hartbeespoort",
		"listing_bedrooms":3,
		"listing_bathrooms":2,
		"listing_parking_spaces":2,
		"listing_amenities":"pool, jetty",
		"listing_description":"Quiet waterfront property",
		"listing_image":"lakehouse.jpg",
		"highest_bid":0
	}`, name, start, end)
}

func TestCreateAuction(t *testing.T) {
	fx := newFixture(t)
	s := newTestSession("s1")

	fx.sendJSON(s, createPayload("Lakehouse", "2026-08-31 12:01:00", "2026-08-31 12:02:00"))

	reply := nextFrame(t, s)
	require.Equal(t, "success", reply.Status)
	require.Equal(t, wire.TypeCreateAuction, reply.Source)

	var id string
	require.NoError(t, json.Unmarshal(reply.Data, &id))
	require.Len(t, id, auction.IDLength)

	// Store and system of record both hold the new auction in Waiting.
	a, ok := fx.store.Get(id)
	require.True(t, ok)
	require.Equal(t, auction.StateWaiting, a.State)
	require.Equal(t, "Lakehouse", a.Name)
	require.Nil(t, a.HighestBidder)

	rec, ok := fx.up.records[id]
	require.True(t, ok)
	require.Equal(t, "Waiting", rec.AuctionState)

	// Creator gets a listing refresh after the create reply.
	listing := nextFrame(t, s)
	require.Equal(t, wire.TypeGetAuction, listing.Source)
}

func TestCreateAuction_UpstreamFailureLeavesStoreUntouched(t *testing.T) {
	fx := newFixture(t)
	fx.up.failCreate = upstream.ErrUpstream
	s := newTestSession("s1")

	fx.sendJSON(s, createPayload("Lakehouse", "2026-08-31 12:01:00", "2026-08-31 12:02:00"))

	reply := nextFrame(t, s)
	require.Equal(t, "error", reply.Status)
	require.Equal(t, "Failed to create auction", reply.Message)
	require.Equal(t, 0, fx.store.Len())
	requireNoFrame(t, s)
}

func TestCreateAuction_BadDate(t *testing.T) {
	fx := newFixture(t)
	s := newTestSession("s1")

	fx.sendJSON(s, createPayload("Lakehouse", "tomorrow", "2026-08-31 12:02:00"))

	reply := nextFrame(t, s)
	require.Equal(t, "error", reply.Status)
	require.Contains(t, reply.Message, "auction_start_date")
	require.Equal(t, 0, fx.store.Len())
}

// seedAuction puts an auction into both the fake upstream and the store.
func seedAuction(fx *fixture, id string, state auction.State, start, end time.Time, highestBid float64) {
	a := auction.Auction{
		ID:         id,
		Name:       "House " + id,
		Start:      start,
		End:        end,
		Listing:    auction.Listing{Title: "Listing " + id, Price: 100000},
		HighestBid: highestBid,
		State:      state,
	}
	fx.store.Upsert(a)
	fx.up.records[id] = a.Record()
}

func TestPlaceBid(t *testing.T) {
	fx := newFixture(t)
	now := fx.clock.Now()
	seedAuction(fx, "a123456789", auction.StateOngoing, now.Add(-time.Minute), now.Add(time.Minute), 100000)

	bidder := newTestSession("bidder")
	watcher := newTestSession("watcher")
	fx.registry.Bind("alice", bidder)
	fx.registry.Bind("bob", watcher)

	// Unknown auction.
	fx.sendJSON(bidder, `{"type":"UpdateAuction","auction_id":"missing","highest_bid":150000}`)
	reply := nextFrame(t, bidder)
	require.Equal(t, "error", reply.Status)
	require.Equal(t, "Auction not found", reply.Message)

	// Unauthenticated requester.
	anon := newTestSession("anon")
	fx.sendJSON(anon, `{"type":"UpdateAuction","auction_id":"a123456789","highest_bid":150000}`)
	reply = nextFrame(t, anon)
	require.Equal(t, "error", reply.Status)
	require.Equal(t, "Login required to place a bid", reply.Message)

	// Bid not exceeding the current highest is a no-op.
	fx.sendJSON(bidder, `{"type":"UpdateAuction","auction_id":"a123456789","highest_bid":100000}`)
	reply = nextFrame(t, bidder)
	require.Equal(t, "error", reply.Status)
	require.Contains(t, reply.Message, "100000")
	a, _ := fx.store.Get("a123456789")
	require.Equal(t, 100000.0, a.HighestBid)
	require.Nil(t, a.HighestBidder)

	// Accepted bid: store mutated, upstream patched, broadcast fanned out.
	fx.sendJSON(bidder, `{"type":"UpdateAuction","auction_id":"a123456789","highest_bid":150000}`)

	reply = nextFrame(t, bidder)
	require.Equal(t, "success", reply.Status)
	require.Equal(t, "Bid accepted", reply.Message)

	a, _ = fx.store.Get("a123456789")
	require.Equal(t, 150000.0, a.HighestBid)
	require.Equal(t, "alice", *a.HighestBidder)

	require.Len(t, fx.up.patches, 1)
	require.Equal(t, 150000.0, fx.up.patches[0].HighestBid)
	require.Equal(t, "alice", *fx.up.patches[0].BuyerID)

	bcast := nextFrame(t, bidder)
	require.Equal(t, "info", bcast.Type)
	require.Equal(t, "New highest bid on auction House a123456789: 150000 by alice", bcast.Message)

	bcast = nextFrame(t, watcher)
	require.Equal(t, "info", bcast.Type)
	require.Equal(t, "New highest bid on auction House a123456789: 150000 by alice", bcast.Message)

	// Bidder additionally gets a refreshed listing.
	listing := nextFrame(t, bidder)
	require.Equal(t, wire.TypeGetAuction, listing.Source)
	requireNoFrame(t, watcher)
}

func TestPlaceBid_ReplicationFailureIsNotRolledBack(t *testing.T) {
	fx := newFixture(t)
	now := fx.clock.Now()
	seedAuction(fx, "a123456789", auction.StateOngoing, now.Add(-time.Minute), now.Add(time.Minute), 100)
	fx.up.failUpdate = upstream.ErrUpstream

	bidder := newTestSession("bidder")
	fx.registry.Bind("alice", bidder)

	fx.sendJSON(bidder, `{"type":"UpdateAuction","auction_id":"a123456789","highest_bid":200}`)

	reply := nextFrame(t, bidder)
	require.Equal(t, "error", reply.Status)
	require.Contains(t, reply.Message, "could not be saved")

	// The in-memory commit point has passed: the bid stands.
	a, _ := fx.store.Get("a123456789")
	require.Equal(t, 200.0, a.HighestBid)
	require.Equal(t, "alice", *a.HighestBidder)
}

func TestGetAuction(t *testing.T) {
	fx := newFixture(t)
	now := fx.clock.Now()
	seedAuction(fx, "a1", auction.StateWaiting, now, now.Add(time.Hour), 0)
	seedAuction(fx, "a2", auction.StateOngoing, now.Add(-time.Hour), now.Add(time.Hour), 500)

	s := newTestSession("s1")

	fx.sendJSON(s, `{"type":"GetAuction","search":"*"}`)
	reply := nextFrame(t, s)
	require.Equal(t, "success", reply.Status)
	require.Equal(t, wire.TypeGetAuction, reply.Source)
	var records []upstream.AuctionRecord
	require.NoError(t, json.Unmarshal(reply.Data, &records))
	require.Len(t, records, 2)

	fx.sendJSON(s, `{"type":"GetAuction","search":{"auction_id":"a2"}}`)
	reply = nextFrame(t, s)
	require.Equal(t, wire.SourceGetAuctionByID, reply.Source)
	require.NoError(t, json.Unmarshal(reply.Data, &records))
	require.Len(t, records, 1)
	require.Equal(t, "a2", records[0].AuctionID)

	fx.sendJSON(s, `{"type":"GetAuction","search":{"auction_id":"absent"}}`)
	reply = nextFrame(t, s)
	require.Equal(t, "success", reply.Status)
	require.NoError(t, json.Unmarshal(reply.Data, &records))
	require.Empty(t, records)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	fx := newFixture(t)
	s := newTestSession("s1")

	fx.sendJSON(s, `{"type":"DeleteAuction"}`)
	reply := nextFrame(t, s)
	require.Equal(t, "error", reply.Status)
	require.Equal(t, "Unknown command", reply.Message)

	fx.sendJSON(s, `{"type":"Login","username":"alice"}`)
	reply = nextFrame(t, s)
	require.Equal(t, "error", reply.Status)
	require.Contains(t, reply.Message, "password")
}

func TestLifecycleTicks(t *testing.T) {
	fx := newFixture(t)
	start := fx.clock.Now().Add(time.Minute)
	end := fx.clock.Now().Add(2 * time.Minute)
	seedAuction(fx, "a123456789", auction.StateWaiting, start, end, 0)

	watcher := newTestSession("watcher")
	fx.registry.Bind("bob", watcher)

	ctx := context.Background()

	// Before the start boundary nothing happens.
	fx.coord.handleTick(ctx)
	requireNoFrame(t, watcher)

	// Past the start boundary: Ongoing + start broadcast + listing push.
	fx.clock.Advance(61 * time.Second)
	fx.coord.handleTick(ctx)

	a, _ := fx.store.Get("a123456789")
	require.Equal(t, auction.StateOngoing, a.State)
	require.Equal(t, "Ongoing", fx.up.records["a123456789"].AuctionState)

	bcast := nextFrame(t, watcher)
	require.Equal(t, "info", bcast.Type)
	require.Equal(t, "Auction House a123456789 has started", bcast.Message)
	listing := nextFrame(t, watcher)
	require.Equal(t, wire.TypeGetAuction, listing.Source)

	// A bid lands while Ongoing.
	bidder := newTestSession("bidder")
	fx.registry.Bind("alice", bidder)
	fx.sendJSON(bidder, `{"type":"UpdateAuction","auction_id":"a123456789","highest_bid":150000}`)
	for len(bidder.Send) > 0 { // drain bidder's reply, broadcast, listing
		<-bidder.Send
	}
	<-watcher.Send // bid broadcast

	// Past the end boundary: Done + final-bid broadcast.
	fx.clock.Advance(2 * time.Minute)
	fx.coord.handleTick(ctx)

	a, _ = fx.store.Get("a123456789")
	require.Equal(t, auction.StateDone, a.State)

	bcast = nextFrame(t, watcher)
	require.Equal(t, "Auction House a123456789 has ended. Highest bid: 150000", bcast.Message)

	// Terminal: further ticks are silent.
	listing = nextFrame(t, watcher)
	require.Equal(t, wire.TypeGetAuction, listing.Source)
	fx.clock.Advance(time.Hour)
	fx.coord.handleTick(ctx)
	requireNoFrame(t, watcher)
}

func TestOperatorSurface(t *testing.T) {
	fx := newFixture(t)
	now := fx.clock.Now()
	seedAuction(fx, "a1", auction.StateWaiting, now, now.Add(time.Hour), 0)

	alice := newTestSession("s1")
	bob := newTestSession("s2")
	fx.registry.Bind("alice", alice)
	fx.registry.Bind("bob", bob)

	clients := fx.coord.ConnectedClients()
	require.Len(t, clients, 2)
	require.Contains(t, clients[0], "alice")

	require.True(t, fx.coord.KillClient("alice"))
	require.False(t, fx.coord.KillClient("alice"))
	_, ok := fx.registry.Lookup("alice")
	require.False(t, ok)

	table := fx.coord.AuctionTable()
	require.Len(t, table, 1)
	require.Contains(t, table[0], "a1")
	require.Contains(t, table[0], "Waiting")

	fx.coord.Shutdown()
	require.Equal(t, 0, fx.registry.Count())

	bcast := nextFrame(t, bob)
	require.Equal(t, "Server is shutting down", bcast.Message)
}

func TestRun_ProcessesQueueAndTicks(t *testing.T) {
	fx := newFixture(t)
	s := newTestSession("s1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fx.coord.Run(ctx)
		close(done)
	}()

	fx.coord.Enqueue(s, []byte(`{"type":"Register","username":"alice","password":"pw"}`))

	require.Eventually(t, func() bool {
		_, ok := fx.registry.Lookup("alice")
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSeed(t *testing.T) {
	fx := newFixture(t)
	fx.up.records["a1"] = upstream.AuctionRecord{
		AuctionID:        "a1",
		AuctionName:      "Lakehouse",
		AuctionStartDate: "2026-09-01 10:00:00",
		AuctionEndDate:   "2026-09-01 12:00:00",
		AuctionState:     "Waiting",
	}

	require.NoError(t, fx.coord.Seed(context.Background()))
	require.Equal(t, 1, fx.store.Len())

	fx.up.failQuery = upstream.ErrUpstream
	require.Error(t, fx.coord.Seed(context.Background()))
}
