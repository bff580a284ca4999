// Package wire defines the relay's client-facing protocol: a closed set
// of tagged inbound commands and the reply/broadcast envelopes sent back.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Command type tags as they appear on the wire.
const (
	TypeRegister      = "Register"
	TypeLogin         = "Login"
	TypeCreateAuction = "CreateAuction"
	TypeUpdateAuction = "UpdateAuction"
	TypeGetAuction    = "GetAuction"
)

var (
	// ErrValidation marks a command with missing or malformed required
	// fields. Rejected before any collaborator call.
	ErrValidation = errors.New("wire: invalid command")
	// ErrProtocol marks an unrecognized command type.
	ErrProtocol = errors.New("wire: unknown command type")
)

// Command is one decoded inbound message. The concrete type identifies
// the operation; required fields are guaranteed present after Decode.
type Command interface {
	CommandType() string
}

// Register asks the system of record to create a new user.
type Register struct {
	Username string
	Password string
}

func (Register) CommandType() string { return TypeRegister }

// Login verifies credentials and binds the identity to the session.
type Login struct {
	Username string
	Password string
}

func (Login) CommandType() string { return TypeLogin }

// CreateAuction carries the full listing and schedule for a new auction.
type CreateAuction struct {
	Name          string
	StartDate     string
	EndDate       string
	Title         string
	Price         float64
	Location      string
	Bedrooms      int
	Bathrooms     int
	ParkingSpaces int
	Amenities     string
	Description   string
	Image         string
	HighestBid    float64
}

func (CreateAuction) CommandType() string { return TypeCreateAuction }

// PlaceBid is the wire "UpdateAuction" command: a bid submission.
type PlaceBid struct {
	AuctionID string
	Amount    float64
}

func (PlaceBid) CommandType() string { return TypeUpdateAuction }

// GetAuction queries the listing. All is the "*" wildcard; otherwise the
// optional filter fields narrow by name substring, state and id.
type GetAuction struct {
	All   bool
	Name  string
	State string
	ID    string
}

func (GetAuction) CommandType() string { return TypeGetAuction }

// ByID reports whether the query narrows to exactly one auction id, in
// which case the reply is tagged as a detail fetch.
func (g GetAuction) ByID() bool { return !g.All && g.ID != "" }

type rawEnvelope struct {
	Type string `json:"type"`
}

type rawCredentials struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type rawCreateAuction struct {
	AuctionName          *string  `json:"auction_name"`
	AuctionStartDate     *string  `json:"auction_start_date"`
	AuctionEndDate       *string  `json:"auction_end_date"`
	ListingTitle         *string  `json:"listing_title"`
	ListingPrice         *float64 `json:"listing_price"`
	ListingLocation      *string  `json:"listing_location"`
	ListingBedrooms      *int     `json:"listing_bedrooms"`
	ListingBathrooms     *int     `json:"listing_bathrooms"`
	ListingParkingSpaces *int     `json:"listing_parking_spaces"`
	ListingAmenities     *string  `json:"listing_amenities"`
	ListingDescription   *string  `json:"listing_description"`
	ListingImage         *string  `json:"listing_image"`
	HighestBid           *float64 `json:"highest_bid"`
}

type rawPlaceBid struct {
	AuctionID  *string  `json:"auction_id"`
	HighestBid *float64 `json:"highest_bid"`
}

type rawGetAuction struct {
	Search json.RawMessage `json:"search"`
}

type rawSearchFilter struct {
	AuctionName  string `json:"auction_name"`
	AuctionState string `json:"auction_state"`
	AuctionID    string `json:"auction_id"`
}

// Decode parses one inbound frame into a typed command. Missing required
// fields yield ErrValidation naming the fields; an unrecognized type
// yields ErrProtocol.
func Decode(data []byte) (Command, error) {
	var env rawEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed message: %v", ErrValidation, err)
	}

	switch env.Type {
	case TypeRegister, TypeLogin:
		var raw rawCredentials
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if err := requireFields(map[string]bool{
			"username": raw.Username != nil && *raw.Username != "",
			"password": raw.Password != nil && *raw.Password != "",
		}); err != nil {
			return nil, err
		}
		if env.Type == TypeRegister {
			return Register{Username: *raw.Username, Password: *raw.Password}, nil
		}
		return Login{Username: *raw.Username, Password: *raw.Password}, nil

	case TypeCreateAuction:
		var raw rawCreateAuction
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if err := requireFields(map[string]bool{
			"auction_name":           raw.AuctionName != nil && *raw.AuctionName != "",
			"auction_start_date":     raw.AuctionStartDate != nil && *raw.AuctionStartDate != "",
			"auction_end_date":       raw.AuctionEndDate != nil && *raw.AuctionEndDate != "",
			"listing_title":          raw.ListingTitle != nil,
			"listing_price":          raw.ListingPrice != nil,
			"listing_location":       raw.ListingLocation != nil,
			"listing_bedrooms":       raw.ListingBedrooms != nil,
			"listing_bathrooms":      raw.ListingBathrooms != nil,
			"listing_parking_spaces": raw.ListingParkingSpaces != nil,
			"listing_amenities":      raw.ListingAmenities != nil,
			"listing_description":    raw.ListingDescription != nil,
			"listing_image":          raw.ListingImage != nil,
			"highest_bid":            raw.HighestBid != nil,
		}); err != nil {
			return nil, err
		}
		return CreateAuction{
			Name:          *raw.AuctionName,
			StartDate:     *raw.AuctionStartDate,
			EndDate:       *raw.AuctionEndDate,
			Title:         *raw.ListingTitle,
			Price:         *raw.ListingPrice,
			Location:      *raw.ListingLocation,
			Bedrooms:      *raw.ListingBedrooms,
			Bathrooms:     *raw.ListingBathrooms,
			ParkingSpaces: *raw.ListingParkingSpaces,
			Amenities:     *raw.ListingAmenities,
			Description:   *raw.ListingDescription,
			Image:         *raw.ListingImage,
			HighestBid:    *raw.HighestBid,
		}, nil

	case TypeUpdateAuction:
		var raw rawPlaceBid
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if err := requireFields(map[string]bool{
			"auction_id":  raw.AuctionID != nil && *raw.AuctionID != "",
			"highest_bid": raw.HighestBid != nil,
		}); err != nil {
			return nil, err
		}
		return PlaceBid{AuctionID: *raw.AuctionID, Amount: *raw.HighestBid}, nil

	case TypeGetAuction:
		var raw rawGetAuction
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if len(raw.Search) == 0 {
			return nil, fmt.Errorf("%w: missing required field: search", ErrValidation)
		}

		var wildcard string
		if err := json.Unmarshal(raw.Search, &wildcard); err == nil {
			if wildcard != "*" {
				return nil, fmt.Errorf("%w: search must be \"*\" or a filter object", ErrValidation)
			}
			return GetAuction{All: true}, nil
		}

		var filter rawSearchFilter
		if err := json.Unmarshal(raw.Search, &filter); err != nil {
			return nil, fmt.Errorf("%w: search must be \"*\" or a filter object", ErrValidation)
		}
		return GetAuction{
			Name:  filter.AuctionName,
			State: filter.AuctionState,
			ID:    filter.AuctionID,
		}, nil

	case "":
		return nil, fmt.Errorf("%w: missing required field: type", ErrValidation)
	default:
		return nil, fmt.Errorf("%w: %q", ErrProtocol, env.Type)
	}
}

func requireFields(present map[string]bool) error {
	var missing []string
	for field, ok := range present {
		if !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	// Deterministic message for tests and logs.
	sort.Strings(missing)
	return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
}
