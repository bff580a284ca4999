package auction

import (
	"time"
)

// State is the lifecycle state of an auction. Transitions run strictly
// forward: Waiting -> Ongoing -> Done.
type State string

const (
	StateWaiting State = "Waiting"
	StateOngoing State = "Ongoing"
	StateDone    State = "Done"
)

// TimeLayout is the timestamp format the system of record stores and the
// clients submit: "2006-01-02 15:04:05".
const TimeLayout = "2006-01-02 15:04:05"

// Listing holds the property details attached to an auction.
type Listing struct {
	Title         string
	Price         float64
	Location      string
	Bedrooms      int
	Bathrooms     int
	ParkingSpaces int
	Amenities     string
	Description   string
	Image         string
}

// Auction is the relay's in-memory view of one auction. HighestBid is
// monotonically non-decreasing; HighestBidder is nil until the first
// accepted bid.
type Auction struct {
	ID            string
	Name          string
	Start         time.Time
	End           time.Time
	Listing       Listing
	HighestBid    float64
	HighestBidder *string
	State         State
}

// ParseTime parses a wire-format auction timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// FormatTime renders a timestamp in the wire format.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
