// Package audit defines the structured audit records emitted by the matching
// engine and the sink capability they are written to.
//
// The durable copy of every record lives in the audit_events table, written
// inside the same transaction as the offer mutation it describes (see the
// storage package). Sinks here are stream mirrors: a JSON line logger in
// production, an in-memory collector in tests.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/NicholasJacob1990/litgo/internal/model"
)

// Record kinds.
const (
	KindRecommend = "recommend"
	KindFeedback  = "feedback"
)

// FeedbackLabel classifies an offer state change for LTR training.
type FeedbackLabel string

const (
	LabelAccepted FeedbackLabel = "accepted"
	LabelDeclined FeedbackLabel = "declined"
	LabelExpired  FeedbackLabel = "expired"
	LabelWon      FeedbackLabel = "won"
	LabelLost     FeedbackLabel = "lost"
)

// RecommendRecord is emitted for each lawyer in a top-N result, in result order.
type RecommendRecord struct {
	CaseID         string              `json:"case_id"`
	LawyerID       string              `json:"lawyer_id"`
	Features       model.FeatureVector `json:"features"`
	Delta          model.FeatureVector `json:"delta"`
	Raw            float64             `json:"raw"`
	Fair           float64             `json:"fair"`
	Equity         float64             `json:"equity"`
	DiversityBoost float64             `json:"diversity_boost"`
	WeightsUsed    model.Weights       `json:"weights_used"`
	Preset         string              `json:"preset"`
	Complexity     model.Complexity    `json:"complexity"`
	SuccessStatus  model.SuccessStatus `json:"success_status"`
	Timestamp      time.Time           `json:"timestamp"`
}

// FeedbackRecord is emitted on every offer state change after pending.
type FeedbackRecord struct {
	CaseID    string        `json:"case_id"`
	LawyerID  string        `json:"lawyer_id"`
	Label     FeedbackLabel `json:"label"`
	FromState string        `json:"from_state"`
	ToState   string        `json:"to_state"`
	Raw       float64       `json:"raw"`
	Fair      float64       `json:"fair"`
	Timestamp time.Time     `json:"timestamp"`
}

// Sink receives audit records.
type Sink interface {
	Recommend(ctx context.Context, rec RecommendRecord) error
	Feedback(ctx context.Context, rec FeedbackRecord) error
}

// Log writes one self-describing JSON record per line via slog.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a slog-backed sink.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Recommend(_ context.Context, rec RecommendRecord) error {
	l.logger.Info(KindRecommend,
		"case_id", rec.CaseID,
		"lawyer_id", rec.LawyerID,
		"features", rec.Features,
		"delta", rec.Delta,
		"raw", rec.Raw,
		"fair", rec.Fair,
		"equity", rec.Equity,
		"diversity_boost", rec.DiversityBoost,
		"weights_used", rec.WeightsUsed,
		"preset", rec.Preset,
		"complexity", rec.Complexity,
		"success_status", rec.SuccessStatus,
		"timestamp", rec.Timestamp,
	)
	return nil
}

func (l *Log) Feedback(_ context.Context, rec FeedbackRecord) error {
	l.logger.Info(KindFeedback,
		"case_id", rec.CaseID,
		"lawyer_id", rec.LawyerID,
		"label", rec.Label,
		"from_state", rec.FromState,
		"to_state", rec.ToState,
		"raw", rec.Raw,
		"fair", rec.Fair,
		"timestamp", rec.Timestamp,
	)
	return nil
}

// Memory collects records for assertions in tests.
type Memory struct {
	mu         sync.Mutex
	recommends []RecommendRecord
	feedbacks  []FeedbackRecord
}

// NewMemory creates an empty collector.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Recommend(_ context.Context, rec RecommendRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recommends = append(m.recommends, rec)
	return nil
}

func (m *Memory) Feedback(_ context.Context, rec FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedbacks = append(m.feedbacks, rec)
	return nil
}

// Recommends returns a copy of the collected recommend records.
func (m *Memory) Recommends() []RecommendRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecommendRecord, len(m.recommends))
	copy(out, m.recommends)
	return out
}

// Feedbacks returns a copy of the collected feedback records.
func (m *Memory) Feedbacks() []FeedbackRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FeedbackRecord, len(m.feedbacks))
	copy(out, m.feedbacks)
	return out
}

// Fanout forwards every record to all sinks, returning the first error.
type Fanout []Sink

func (f Fanout) Recommend(ctx context.Context, rec RecommendRecord) error {
	for _, s := range f {
		if err := s.Recommend(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (f Fanout) Feedback(ctx context.Context, rec FeedbackRecord) error {
	for _, s := range f {
		if err := s.Feedback(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
