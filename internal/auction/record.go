package auction

import (
	"fmt"

	"github.com/dkriel/bidrelay/internal/upstream"
)

// FromRecord converts a system-of-record row into the relay's model.
func FromRecord(rec upstream.AuctionRecord) (Auction, error) {
	start, err := ParseTime(rec.AuctionStartDate)
	if err != nil {
		return Auction{}, fmt.Errorf("auction %s: bad start date %q: %w", rec.AuctionID, rec.AuctionStartDate, err)
	}
	end, err := ParseTime(rec.AuctionEndDate)
	if err != nil {
		return Auction{}, fmt.Errorf("auction %s: bad end date %q: %w", rec.AuctionID, rec.AuctionEndDate, err)
	}

	state := State(rec.AuctionState)
	switch state {
	case StateWaiting, StateOngoing, StateDone:
	case "":
		state = StateWaiting
	default:
		return Auction{}, fmt.Errorf("auction %s: unknown state %q", rec.AuctionID, rec.AuctionState)
	}

	return Auction{
		ID:    rec.AuctionID,
		Name:  rec.AuctionName,
		Start: start,
		End:   end,
		Listing: Listing{
			Title:         rec.ListingTitle,
			Price:         rec.ListingPrice,
			Location:      rec.ListingLocation,
			Bedrooms:      rec.ListingBedrooms,
			Bathrooms:     rec.ListingBathrooms,
			ParkingSpaces: rec.ListingParkingSpaces,
			Amenities:     rec.ListingAmenities,
			Description:   rec.ListingDescription,
			Image:         rec.ListingImage,
		},
		HighestBid:    rec.HighestBid,
		HighestBidder: rec.BuyerID,
		State:         state,
	}, nil
}

// Record converts the auction back into the persistence API's row shape.
func (a Auction) Record() upstream.AuctionRecord {
	return upstream.AuctionRecord{
		AuctionID:            a.ID,
		AuctionName:          a.Name,
		AuctionStartDate:     FormatTime(a.Start),
		AuctionEndDate:       FormatTime(a.End),
		ListingTitle:         a.Listing.Title,
		ListingPrice:         a.Listing.Price,
		ListingLocation:      a.Listing.Location,
		ListingBedrooms:      a.Listing.Bedrooms,
		ListingBathrooms:     a.Listing.Bathrooms,
		ListingParkingSpaces: a.Listing.ParkingSpaces,
		ListingAmenities:     a.Listing.Amenities,
		ListingDescription:   a.Listing.Description,
		ListingImage:         a.Listing.Image,
		HighestBid:           a.HighestBid,
		AuctionState:         string(a.State),
		BuyerID:              a.HighestBidder,
	}
}

// Patch extracts the mutable fields replicated on bid acceptance and
// lifecycle transitions.
func (a Auction) Patch() upstream.AuctionPatch {
	return upstream.AuctionPatch{
		AuctionID:    a.ID,
		HighestBid:   a.HighestBid,
		AuctionState: string(a.State),
		BuyerID:      a.HighestBidder,
	}
}
