package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string. Task ids and engine identity hashes are
// both drawn from it, so ids sort by submission time.
func NewID() string {
	return ulid.Make().String()
}
