package aggregate_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/hellofresh/goengine-core/aggregate"
)

func TestGenerateID(t *testing.T) {
	firstID := aggregate.GenerateID()
	secondID := aggregate.GenerateID()

	assert.NotEqual(t, firstID, secondID)

	_, err := uuid.Parse(firstID.String())
	assert.NoError(t, err)
}
