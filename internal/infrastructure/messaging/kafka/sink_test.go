package kafka

import (
	"context"
	stdliberrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/geo"
)

func sinkRecord(t *testing.T) *analysis.AnalysisRecord {
	t.Helper()
	now := time.Now().UTC()
	return &analysis.AnalysisRecord{
		QuantumID:  "r100_4_2",
		Coordinate: geo.Coordinate{Lat: 33.7, Lon: -118.2},
		Result: analysis.UtilizationResult{
			QuantumID:  "r100_4_2",
			Profile:    "solar_farm",
			Score:      81.5,
			ComputedAt: now,
		},
		Mismatches: []analysis.Mismatch{
			{QuantumID: "r100_4_2", Category: "zoning_opportunity", Severity: 0.8,
				Explanation: "flat serviced land zoned agricultural", DetectedAt: now},
			{QuantumID: "r100_4_2", Category: "flood_risk_disagreement", Severity: 0.4,
				Explanation: "low elevation without flood designation", DetectedAt: now},
		},
		RecordedAt: now,
	}
}

func TestRecordSink_WritePublishesRecordAndMismatches(t *testing.T) {
	w := &fakeWriter{}
	sink := NewRecordSink(newTestProducer(w), logging.NewNopLogger())

	require.NoError(t, sink.Write(context.Background(), sinkRecord(t)))

	msgs := w.messages()
	require.Len(t, msgs, 3)

	assert.Equal(t, TopicAnalysisRecorded, msgs[0].Topic)
	assert.Equal(t, []byte("r100_4_2"), msgs[0].Key)

	env, err := DecodeEnvelope(msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, TopicAnalysisRecorded, env.EventType)
	assert.Equal(t, "landquant-worker", env.Source)

	var rec analysis.AnalysisRecord
	require.NoError(t, env.DecodePayload(&rec))
	assert.Equal(t, "r100_4_2", rec.QuantumID)
	assert.InDelta(t, 81.5, rec.Result.Score, 1e-9)

	for _, m := range msgs[1:] {
		assert.Equal(t, TopicMismatchDetected, m.Topic)
		assert.Equal(t, []byte("r100_4_2"), m.Key)
	}
	menv, err := DecodeEnvelope(msgs[1].Value)
	require.NoError(t, err)
	var payload MismatchDetectedPayload
	require.NoError(t, menv.DecodePayload(&payload))
	assert.Equal(t, "zoning_opportunity", payload.Category)
	assert.Equal(t, "solar_farm", payload.Profile)
	assert.InDelta(t, 0.8, payload.Severity, 1e-9)
}

func TestRecordSink_RejectsEmptyRecord(t *testing.T) {
	sink := NewRecordSink(newTestProducer(&fakeWriter{}), logging.NewNopLogger())

	err := sink.Write(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidParam, errors.GetCode(err))

	err = sink.Write(context.Background(), &analysis.AnalysisRecord{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidParam, errors.GetCode(err))
}

func TestRecordSink_PublishFailurePropagates(t *testing.T) {
	// Second write (the first mismatch event) fails.
	w := &fakeWriter{err: stdliberrors.New("broker down"), failOn: 2}
	sink := NewRecordSink(newTestProducer(w), logging.NewNopLogger())

	err := sink.Write(context.Background(), sinkRecord(t))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeServiceUnavailable, errors.GetCode(err))
	assert.Len(t, w.messages(), 1, "record event published, mismatch events stopped at the failure")
}

func TestRecordSink_TopicOverrides(t *testing.T) {
	w := &fakeWriter{}
	sink := NewRecordSink(newTestProducer(w), logging.NewNopLogger(),
		WithAnalysisTopic("custom.analysis"),
		WithMismatchTopic("custom.mismatch"),
		WithSource("unit-test"))

	require.NoError(t, sink.Write(context.Background(), sinkRecord(t)))

	msgs := w.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "custom.analysis", msgs[0].Topic)
	assert.Equal(t, "custom.mismatch", msgs[1].Topic)

	env, err := DecodeEnvelope(msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "unit-test", env.Source)
}

func TestRecordSink_PublishScanSubmitted(t *testing.T) {
	w := &fakeWriter{}
	sink := NewRecordSink(newTestProducer(w), logging.NewNopLogger())

	payload := ScanSubmittedPayload{
		ScanID:           "0d9f0a1e-0000-0000-0000-000000000042",
		Profile:          "warehouse",
		ResolutionMeters: 250,
		QuantumCount:     4096,
		SubmittedAt:      time.Now().UTC(),
	}
	require.NoError(t, sink.PublishScanSubmitted(context.Background(), payload))

	msgs := w.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, TopicScanSubmitted, msgs[0].Topic)
	assert.Equal(t, []byte(payload.ScanID), msgs[0].Key)

	env, err := DecodeEnvelope(msgs[0].Value)
	require.NoError(t, err)
	var got ScanSubmittedPayload
	require.NoError(t, env.DecodePayload(&got))
	assert.Equal(t, 4096, got.QuantumCount)
}

func TestRecordSink_AnnounceScan(t *testing.T) {
	w := &fakeWriter{}
	sink := NewRecordSink(newTestProducer(w), logging.NewNopLogger())

	scan := &analysis.Scan{
		ID:               "0d9f0a1e-0000-0000-0000-000000000042",
		Profile:          "warehouse",
		ResolutionMeters: 250,
		QuantumCount:     4096,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, sink.AnnounceScan(context.Background(), scan))

	msgs := w.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte(scan.ID), msgs[0].Key)

	env, err := DecodeEnvelope(msgs[0].Value)
	require.NoError(t, err)
	var got ScanSubmittedPayload
	require.NoError(t, env.DecodePayload(&got))
	assert.Equal(t, "warehouse", got.Profile)
	assert.Equal(t, 4096, got.QuantumCount)

	err = sink.AnnounceScan(context.Background(), nil)
	require.Error(t, err)
}
