package aggregate

import "github.com/google/uuid"

// ID identifies an aggregate instance.
// All commands and events referencing the same ID are ordered relative to each other.
type ID string

// GenerateID creates a new random UUID based ID or panics
func GenerateID() ID {
	return ID(uuid.New().String())
}

// String returns the ID as a string
func (i ID) String() string {
	return string(i)
}
