package auction

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// IDLength is the length of a generated auction identifier.
const IDLength = 10

const maxIDAttempts = 5

// ErrIDExhausted is returned when id generation keeps colliding with
// existing auctions.
var ErrIDExhausted = errors.New("auction: could not generate a unique id")

// NewID generates a short auction identifier: a v4 UUID with dashes
// stripped, truncated to IDLength. taken reports whether an id is already
// in use; generation retries a bounded number of times on collision.
func NewID(taken func(id string) bool) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := strings.ReplaceAll(uuid.New().String(), "-", "")[:IDLength]
		if taken == nil || !taken(id) {
			return id, nil
		}
	}
	return "", ErrIDExhausted
}
