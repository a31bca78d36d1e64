package amqp_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellofresh/goengine-core/eventing"
	goengineAmqp "github.com/hellofresh/goengine-core/extension/amqp"
)

func TestMarshalEventStream(t *testing.T) {
	stream := &eventing.EventStream{
		AggregateID:   "8150276e-34fe-49d9-aeae-a35af0040a4f",
		AggregateType: "order",
		Version:       3,
		Events: []eventing.Event{
			{
				ID:      uuid.MustParse("b7bfad0c-3b5d-4b8b-a2e3-8a3c9f5b7e11"),
				Name:    "order_placed",
				Payload: []byte(`{"total":10}`),
			},
		},
		CommandID: "cmd-1",
		Items:     map[string]string{"tenant": "de", "actor": "shop"},
	}

	body, err := goengineAmqp.MarshalEventStream(stream)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"aggregate_id": "8150276e-34fe-49d9-aeae-a35af0040a4f",
		"aggregate_type": "order",
		"version": 3,
		"command_id": "cmd-1",
		"items": {"actor": "shop", "tenant": "de"},
		"events": [
			{"id": "b7bfad0c-3b5d-4b8b-a2e3-8a3c9f5b7e11", "name": "order_placed", "payload": "eyJ0b3RhbCI6MTB9"}
		]
	}`, string(body))

	decoded, err := goengineAmqp.UnmarshalEventStream(body)
	require.NoError(t, err)
	assert.Equal(t, stream, decoded)
}

func TestUnmarshalEventStream(t *testing.T) {
	t.Run("unknown and null fields", func(t *testing.T) {
		stream, err := goengineAmqp.UnmarshalEventStream([]byte(`{
			"aggregate_id": "order-1",
			"version": 2,
			"items": null,
			"trace": {"span": [1, 2]}
		}`))

		require.NoError(t, err)
		assert.Equal(t, &eventing.EventStream{AggregateID: "order-1", Version: 2}, stream)
	})

	testCases := []struct {
		title string
		body  string
	}{
		{"not json", `no json`},
		{"invalid version", `{"aggregate_id": "order-1", "version": "two"}`},
		{"invalid event id", `{"aggregate_id": "order-1", "version": 1, "events": [{"id": "nope"}]}`},
		{"invalid payload", `{"aggregate_id": "order-1", "version": 1, "events": [{"payload": "!!"}]}`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.title, func(t *testing.T) {
			stream, err := goengineAmqp.UnmarshalEventStream([]byte(testCase.body))

			assert.Error(t, err)
			assert.Nil(t, stream)
		})
	}
}
