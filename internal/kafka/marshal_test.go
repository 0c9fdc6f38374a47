package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alert struct {
	Title string `json:"title"`
}

type envelope struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

func TestEnvelopeUnwrap(t *testing.T) {
	payload, err := Marshal(alert{Title: "New booking"})
	require.NoError(t, err)
	b, err := Marshal(envelope{EventType: "OwnerAlert", Payload: payload})
	require.NoError(t, err)

	var env envelope
	require.NoError(t, UnmarshalEnvelope(b, &env))
	assert.Equal(t, "OwnerAlert", env.EventType)

	a, err := UnwrapPayload[alert](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "New booking", a.Title)
}

func TestUnwrapPayload_Invalid(t *testing.T) {
	_, err := UnwrapPayload[alert](json.RawMessage(`[1,2]`))
	assert.Error(t, err)

	var env envelope
	assert.Error(t, UnmarshalEnvelope([]byte("{"), &env))
}
