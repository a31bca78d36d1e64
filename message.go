package goengine

import (
	"github.com/google/uuid"
)

// UUID is a 128 bit (16 byte) Universal Unique Identifier as defined in RFC4122
type UUID = uuid.UUID

// GenerateUUID creates a new random UUID or panics
func GenerateUUID() UUID {
	return uuid.New()
}

// IsUUIDEmpty returns true if the UUID is empty
func IsUUIDEmpty(id UUID) bool {
	return id == uuid.Nil
}
