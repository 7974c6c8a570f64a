package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

func TestEventEnvelope_RoundTrip(t *testing.T) {
	payload := ScanSubmittedPayload{
		ScanID:           "scan-1",
		Profile:          "solar_farm",
		ResolutionMeters: 100,
		QuantumCount:     256,
		SubmittedAt:      time.Now().UTC().Truncate(time.Second),
	}

	env, err := NewEventEnvelope(TopicScanSubmitted, "landquant-apiserver", payload)
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, schemaVersion, env.SchemaVersion)
	assert.False(t, env.Timestamp.IsZero())

	data, err := env.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env.EventID, decoded.EventID)
	assert.Equal(t, TopicScanSubmitted, decoded.EventType)

	var got ScanSubmittedPayload
	require.NoError(t, decoded.DecodePayload(&got))
	assert.Equal(t, payload, got)
}

func TestEventEnvelope_DecodeEmptyPayload(t *testing.T) {
	env := &EventEnvelope{Payload: []byte("null")}
	var target ScanSubmittedPayload
	err := env.DecodePayload(&target)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSerialization, errors.GetCode(err))
}

func TestNewEventEnvelope_UnmarshalablePayload(t *testing.T) {
	_, err := NewEventEnvelope("t", "s", func() {})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSerialization, errors.GetCode(err))
}

func TestDecodeEnvelope_Garbage(t *testing.T) {
	_, err := DecodeEnvelope([]byte("{not json"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSerialization, errors.GetCode(err))
}
