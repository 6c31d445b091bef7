package platform

import (
	"github.com/google/uuid"
)

// NewID returns a collision-resistant random identifier. Host and operation
// ids are UUIDs so stale references cannot be guessed or replayed across
// environments.
func NewID() string {
	return uuid.New().String()
}
