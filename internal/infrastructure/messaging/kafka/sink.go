package kafka

import (
	"context"

	"github.com/turtacn/LandQuant-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
	"github.com/turtacn/LandQuant-Intelligence/pkg/types/analysis"
)

// ─────────────────────────────────────────────────────────────────────────────
// RecordSink
// ─────────────────────────────────────────────────────────────────────────────

// RecordSink publishes completed analyses: the full record on the analysis
// topic, then one event per mismatch on the mismatch topic, all keyed by
// quantum id. A failed publish fails the whole write, so the job retries and
// downstream consumers may see the same event id twice but never a gap.
type RecordSink struct {
	producer      *Producer
	topic         string
	mismatchTopic string
	source        string
	logger        logging.Logger
}

// SinkOption customizes a RecordSink.
type SinkOption func(*RecordSink)

// WithAnalysisTopic overrides the analysis record topic.
func WithAnalysisTopic(topic string) SinkOption {
	return func(s *RecordSink) { s.topic = topic }
}

// WithMismatchTopic overrides the mismatch event topic.
func WithMismatchTopic(topic string) SinkOption {
	return func(s *RecordSink) { s.mismatchTopic = topic }
}

// WithSource overrides the envelope source identifier.
func WithSource(source string) SinkOption {
	return func(s *RecordSink) { s.source = source }
}

// NewRecordSink constructs a sink over an existing producer.
func NewRecordSink(producer *Producer, logger logging.Logger, opts ...SinkOption) *RecordSink {
	s := &RecordSink{
		producer:      producer,
		topic:         TopicAnalysisRecorded,
		mismatchTopic: TopicMismatchDetected,
		source:        "landquant-worker",
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write publishes one analysis record and its mismatch events.
func (s *RecordSink) Write(ctx context.Context, rec *analysis.AnalysisRecord) error {
	if rec == nil || rec.QuantumID == "" {
		return errors.New(errors.CodeInvalidParam, "analysis record must carry a quantum id")
	}

	env, err := NewEventEnvelope(TopicAnalysisRecorded, s.source, rec)
	if err != nil {
		return err
	}
	if err := s.producer.PublishEvent(ctx, s.topic, rec.QuantumID, env); err != nil {
		return err
	}

	for _, m := range rec.Mismatches {
		payload := MismatchDetectedPayload{
			QuantumID:  m.QuantumID,
			Profile:    rec.Result.Profile,
			Category:   string(m.Category),
			Severity:   m.Severity,
			Detail:     m.Explanation,
			DetectedAt: m.DetectedAt,
		}
		menv, err := NewEventEnvelope(TopicMismatchDetected, s.source, payload)
		if err != nil {
			return err
		}
		if err := s.producer.PublishEvent(ctx, s.mismatchTopic, m.QuantumID, menv); err != nil {
			return err
		}
	}

	if len(rec.Mismatches) > 0 {
		s.logger.Debug("mismatch events published",
			logging.String("quantum_id", rec.QuantumID),
			logging.Int("count", len(rec.Mismatches)))
	}
	return nil
}

// PublishScanSubmitted announces an accepted bulk scan, keyed by scan id.
func (s *RecordSink) PublishScanSubmitted(ctx context.Context, payload ScanSubmittedPayload) error {
	env, err := NewEventEnvelope(TopicScanSubmitted, s.source, payload)
	if err != nil {
		return err
	}
	return s.producer.PublishEvent(ctx, TopicScanSubmitted, payload.ScanID, env)
}

// AnnounceScan publishes the scan-submitted event for an accepted scan.
func (s *RecordSink) AnnounceScan(ctx context.Context, scan *analysis.Scan) error {
	if scan == nil {
		return errors.InvalidParam("scan must not be nil")
	}
	return s.PublishScanSubmitted(ctx, ScanSubmittedPayload{
		ScanID:           scan.ID,
		Profile:          scan.Profile,
		ResolutionMeters: scan.ResolutionMeters,
		QuantumCount:     scan.QuantumCount,
		SubmittedAt:      scan.CreatedAt,
	})
}
