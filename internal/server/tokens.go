package server

import "github.com/google/uuid"

// BuildTokenGenerator names each graph build.
// Implemented by UUIDv7Generator (production) and
// testutil.FixedTokenGenerator (tests).
type BuildTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 build tokens, so journal
// rows sort by build start.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
