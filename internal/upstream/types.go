package upstream

// AuctionRecord is the system of record's row shape for one auction. The
// field names match the persistence API's JSON contract exactly.
type AuctionRecord struct {
	AuctionID            string  `json:"auction_id"`
	AuctionName          string  `json:"auction_name"`
	AuctionStartDate     string  `json:"auction_start_date"`
	AuctionEndDate       string  `json:"auction_end_date"`
	ListingTitle         string  `json:"listing_title"`
	ListingPrice         float64 `json:"listing_price"`
	ListingLocation      string  `json:"listing_location"`
	ListingBedrooms      int     `json:"listing_bedrooms"`
	ListingBathrooms     int     `json:"listing_bathrooms"`
	ListingParkingSpaces int     `json:"listing_parking_spaces"`
	ListingAmenities     string  `json:"listing_amenities"`
	ListingDescription   string  `json:"listing_description"`
	ListingImage         string  `json:"listing_image"`
	HighestBid           float64 `json:"highest_bid"`
	AuctionState         string  `json:"auction_state"`
	BuyerID              *string `json:"buyer_id,omitempty"`
}

// AuctionPatch carries the partial fields of an update-semantics call:
// lifecycle state, highest bid, and winning buyer.
type AuctionPatch struct {
	AuctionID    string  `json:"auction_id"`
	HighestBid   float64 `json:"highest_bid"`
	AuctionState string  `json:"auction_state"`
	BuyerID      *string `json:"buyer_id"`
}

// Query narrows an auction search. The zero value matches everything and
// is sent as the wildcard "*".
type Query struct {
	Name  string `json:"auction_name,omitempty"`
	State string `json:"auction_state,omitempty"`
	ID    string `json:"auction_id,omitempty"`
}

// All reports whether the query is the unfiltered wildcard.
func (q Query) All() bool {
	return q.Name == "" && q.State == "" && q.ID == ""
}
