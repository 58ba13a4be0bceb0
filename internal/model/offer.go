package model

import (
	"time"

	"github.com/google/uuid"
)

// OfferStatus is the lifecycle state of an offer.
//
//	pending ──(interested)──> interested ──(contract)──> closed
//	   │                          │
//	   ├──(declined)──> declined  ├──(timeout)──> expired
//	   ├──(timeout)──> expired    └──(sibling accepted)──> closed
//	   └──(sibling accepted)──> closed
type OfferStatus string

const (
	OfferPending    OfferStatus = "pending"
	OfferInterested OfferStatus = "interested"
	OfferDeclined   OfferStatus = "declined"
	OfferExpired    OfferStatus = "expired"
	OfferClosed     OfferStatus = "closed"
)

// Terminal reports whether the status is absorbing.
func (s OfferStatus) Terminal() bool {
	switch s {
	case OfferDeclined, OfferExpired, OfferClosed:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving from s to t.
func (s OfferStatus) CanTransition(t OfferStatus) bool {
	switch s {
	case OfferPending:
		return t == OfferInterested || t == OfferDeclined || t == OfferExpired || t == OfferClosed
	case OfferInterested:
		return t == OfferClosed || t == OfferExpired
	}
	return false
}

// Offer is a persisted, time-bounded invitation to a lawyer to take a case.
// At most one offer exists per (case, lawyer) pair.
type Offer struct {
	ID       uuid.UUID   `json:"id"`
	CaseID   string      `json:"case_id"`
	LawyerID string      `json:"lawyer_id"`
	Status   OfferStatus `json:"status"`

	SentAt      time.Time  `json:"sent_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`

	// Score snapshot captured at creation, for audit and LTR training.
	RawScore     float64         `json:"raw_score"`
	FairScore    float64         `json:"fair_score"`
	EquityWeight float64         `json:"equity_weight"`
	Breakdown    *ScoreBreakdown `json:"breakdown,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// CaseOfferStats aggregates offer counts for one case.
type CaseOfferStats struct {
	Total        int     `json:"total"`
	Pending      int     `json:"pending"`
	Interested   int     `json:"interested"`
	Declined     int     `json:"declined"`
	Expired      int     `json:"expired"`
	Closed       int     `json:"closed"`
	ResponseRate float64 `json:"response_rate"` // percent of offers answered
}
