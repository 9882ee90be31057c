package util

import "github.com/google/uuid"

// NewID returns a random, URL-safe entity identifier.
func NewID() string {
	return uuid.NewString()
}
