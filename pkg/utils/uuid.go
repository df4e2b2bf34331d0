package utils

import "github.com/google/uuid"

// NewID returns a random v4 UUID string used as a profile identifier.
func NewID() string {
	return uuid.NewString()
}
