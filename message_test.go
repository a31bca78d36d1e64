package goengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hellofresh/goengine-core"
)

func TestGenerateUUID(t *testing.T) {
	asserts := assert.New(t)

	firstID := goengine.GenerateUUID()
	asserts.False(goengine.IsUUIDEmpty(firstID), "A goengine.UUID should not be empty")

	secondID := goengine.GenerateUUID()
	asserts.False(goengine.IsUUIDEmpty(secondID), "A goengine.UUID should not be empty")

	asserts.NotEqual(firstID, secondID, "Expected GenerateUUID() to return a different ID")
	asserts.True(goengine.IsUUIDEmpty(goengine.UUID{}))
}

func TestInvalidArgumentError(t *testing.T) {
	assert.EqualError(t, goengine.InvalidArgumentError("handler"), "goengine: invalid argument: handler")
}
