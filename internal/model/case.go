// Package model defines the domain entities shared across the matching engine:
// cases, lawyers, offers, feature vectors, and weight vectors.
package model

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pgvector/pgvector-go"
)

// ErrInvalidInput is wrapped by all input validation failures. Callers can
// test for it with errors.Is regardless of the specific field that failed.
var ErrInvalidInput = errors.New("model: invalid input")

// Complexity classifies a case for weight adjustment.
type Complexity string

const (
	ComplexityLow    Complexity = "LOW"
	ComplexityMedium Complexity = "MEDIUM"
	ComplexityHigh   Complexity = "HIGH"
)

// Valid reports whether the complexity is one of the known values.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	}
	return false
}

// Case is a legal case to be matched. Immutable for the duration of a ranking.
type Case struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`
	Area     string `json:"area"`
	Subarea  string `json:"subarea"`

	// UrgencyH is the client's deadline in hours. Zero means no urgency
	// signal; the urgency feature is then defined as 0.
	UrgencyH int `json:"urgency_h"`

	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	Complexity Complexity `json:"complexity"`

	// SummaryEmbedding is the dense vector for the case summary,
	// L2-normalized on ingest.
	SummaryEmbedding pgvector.Vector `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields the ranker depends on. dim is the expected
// embedding dimension; zero skips the dimension check.
func (c *Case) Validate(dim int) error {
	if c.ID == "" {
		return fmt.Errorf("%w: case id is required", ErrInvalidInput)
	}
	if c.Area == "" {
		return fmt.Errorf("%w: case area is required", ErrInvalidInput)
	}
	if c.UrgencyH < 0 {
		return fmt.Errorf("%w: urgency_h must be >= 0, got %d", ErrInvalidInput, c.UrgencyH)
	}
	if !c.Complexity.Valid() {
		return fmt.Errorf("%w: unknown complexity %q", ErrInvalidInput, c.Complexity)
	}
	emb := c.SummaryEmbedding.Slice()
	if len(emb) == 0 {
		return fmt.Errorf("%w: case summary embedding is empty", ErrInvalidInput)
	}
	if dim > 0 && len(emb) != dim {
		return fmt.Errorf("%w: embedding dimension %d, want %d", ErrInvalidInput, len(emb), dim)
	}
	return nil
}

// NormalizeEmbedding rescales the summary embedding to unit L2 norm in place.
// A zero vector is left unchanged.
func (c *Case) NormalizeEmbedding() {
	v := c.SummaryEmbedding.Slice()
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	c.SummaryEmbedding = pgvector.NewVector(out)
}
