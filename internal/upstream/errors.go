package upstream

import "errors"

// Sentinel errors surfaced from the system of record. Anything outside
// this taxonomy is wrapped as ErrUpstream.
var (
	ErrBadCredentials  = errors.New("upstream: invalid username or password")
	ErrUsernameTaken   = errors.New("upstream: username already exists")
	ErrAuctionNotFound = errors.New("upstream: auction not found")
	ErrUpstream        = errors.New("upstream: request failed")
)
