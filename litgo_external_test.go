package litgo_test

// These tests use only the root package surface, the way an embedding consumer
// would: every type a Store, CacheStore, AuditSink, or WeightLoader
// implementation has to name must be reachable without internal imports.

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicholasJacob1990/litgo"
)

var (
	_ litgo.CacheStore   = (*consumerCache)(nil)
	_ litgo.AuditSink    = (*consumerSink)(nil)
	_ litgo.Store        = (*consumerStore)(nil)
	_ litgo.WeightLoader = litgo.FileWeightLoader{}
	_ litgo.CacheStore   = litgo.NewMemoryCache()
	_ litgo.AuditSink    = litgo.NewMemorySink()
)

// consumerSink is an AuditSink built from root-level record types only.
type consumerSink struct {
	mu         sync.Mutex
	recommends []litgo.RecommendRecord
	feedbacks  []litgo.FeedbackRecord
}

func (s *consumerSink) Recommend(_ context.Context, rec litgo.RecommendRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recommends = append(s.recommends, rec)
	return nil
}

func (s *consumerSink) Feedback(_ context.Context, rec litgo.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedbacks = append(s.feedbacks, rec)
	return nil
}

// consumerCache is a CacheStore over the re-exported StaticFeatures type.
type consumerCache struct {
	mu      sync.Mutex
	entries map[string]litgo.StaticFeatures
}

func newConsumerCache() *consumerCache {
	return &consumerCache{entries: make(map[string]litgo.StaticFeatures)}
}

func (c *consumerCache) Get(_ context.Context, lawyerID string) (litgo.StaticFeatures, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.entries[lawyerID]
	return f, ok, nil
}

func (c *consumerCache) Put(_ context.Context, lawyerID string, f litgo.StaticFeatures, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[lawyerID] = f
	return nil
}

func (c *consumerCache) Invalidate(_ context.Context, lawyerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, lawyerID)
	return nil
}

// consumerStore is a minimal Store naming only root-level types and sentinels.
type consumerStore struct {
	mu      sync.Mutex
	cs      litgo.Case
	lawyers []*litgo.Lawyer
	offers  map[uuid.UUID]litgo.Offer
}

func (s *consumerStore) GetCase(_ context.Context, id string) (litgo.Case, error) {
	if id != s.cs.ID {
		return litgo.Case{}, litgo.ErrNotFound
	}
	return s.cs, nil
}

func (s *consumerStore) ListCandidates(_ context.Context, _ string) ([]*litgo.Lawyer, error) {
	return s.lawyers, nil
}

func (s *consumerStore) CreateOffers(_ context.Context, offs []litgo.Offer, _ []litgo.RecommendRecord, rankedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range offs {
		s.offers[o.ID] = o
	}
	for _, lw := range s.lawyers {
		lw.LastOfferedAt = rankedAt
	}
	return nil
}

func (s *consumerStore) GetOffer(_ context.Context, id uuid.UUID) (litgo.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return litgo.Offer{}, litgo.ErrNotFound
	}
	return o, nil
}

func (s *consumerStore) TransitionOffer(_ context.Context, id uuid.UUID, from []litgo.OfferStatus, to litgo.OfferStatus, respondedAt *time.Time, _ litgo.FeedbackRecord) (litgo.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return litgo.Offer{}, litgo.ErrNotFound
	}
	matched := false
	for _, st := range from {
		if o.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return litgo.Offer{}, litgo.ErrOfferConflict
	}
	o.Status = to
	o.RespondedAt = respondedAt
	s.offers[id] = o
	return o, nil
}

func (s *consumerStore) CloseSiblings(_ context.Context, caseID string, exceptID uuid.UUID, _ time.Time, _ litgo.FeedbackLabel) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, o := range s.offers {
		if o.CaseID != caseID || id == exceptID {
			continue
		}
		if o.Status == litgo.OfferPending || o.Status == litgo.OfferInterested {
			o.Status = litgo.OfferClosed
			s.offers[id] = o
			n++
		}
	}
	return n, nil
}

func (s *consumerStore) ExpireDue(_ context.Context, now time.Time, _ litgo.FeedbackLabel) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, o := range s.offers {
		if o.Status == litgo.OfferPending && o.ExpiresAt.Before(now) {
			o.Status = litgo.OfferExpired
			s.offers[id] = o
			n++
		}
	}
	return n, nil
}

func (s *consumerStore) CaseOwner(_ context.Context, caseID string) (string, error) {
	if caseID != s.cs.ID {
		return "", litgo.ErrNotFound
	}
	return s.cs.ClientID, nil
}

func (s *consumerStore) ListOffersByCase(_ context.Context, caseID string) ([]litgo.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []litgo.Offer
	for _, o := range s.offers {
		if o.CaseID == caseID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *consumerStore) ListOffersByLawyer(_ context.Context, lawyerID string, status *litgo.OfferStatus) ([]litgo.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []litgo.Offer
	for _, o := range s.offers {
		if o.LawyerID != lawyerID {
			continue
		}
		if status != nil && o.Status != *status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func newConsumerStore() *consumerStore {
	gender := "F"
	return &consumerStore{
		cs: litgo.Case{
			ID:               "case_ext",
			ClientID:         "client_ext",
			Area:             "trabalhista",
			Subarea:          "rescisao",
			UrgencyH:         48,
			Lat:              -23.55,
			Lon:              -46.63,
			Complexity:       litgo.ComplexityMedium,
			SummaryEmbedding: pgvector.NewVector([]float32{1, 0, 0}),
		},
		lawyers: []*litgo.Lawyer{{
			ID:            "adv_ext",
			Name:          "Advogada Externa",
			TagsExpertise: []string{"trabalhista"},
			Lat:           -23.55,
			Lon:           -46.63,
			Curriculo:     litgo.Curriculo{AnosExperiencia: 10, NumPublicacoes: 2},
			KPI: litgo.KPI{
				SuccessRate:      0.8,
				Cases30d:         5,
				CapacidadeMensal: 20,
				AvaliacaoMedia:   4.5,
				TempoRespostaH:   12,
				CVScore:          0.7,
				SuccessStatus:    litgo.StatusVerified,
			},
			KPISoftskill:         0.6,
			HistoricalEmbeddings: []pgvector.Vector{pgvector.NewVector([]float32{1, 0, 0})},
			CaseOutcomes:         []bool{true},
			Diversity:            &litgo.Diversity{Gender: &gender},
		}},
		offers: make(map[uuid.UUID]litgo.Offer),
	}
}

func TestEngineEmbedsWithConsumerExtensions(t *testing.T) {
	store := newConsumerStore()
	sink := &consumerSink{}
	cch := newConsumerCache()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	eng, err := litgo.New(store,
		litgo.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		litgo.WithCache(cch),
		litgo.WithAuditSink(sink),
		litgo.WithClock(func() time.Time { return now }),
		litgo.WithEmbeddingDim(3),
		litgo.WithOfferTTL(24*time.Hour),
	)
	require.NoError(t, err)

	recs, err := eng.Rank(context.Background(), "case_ext", 5, litgo.PresetBalanced)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "adv_ext", recs[0].LawyerID)

	// The custom extension points were exercised end to end.
	require.Len(t, sink.recommends, 1)
	assert.Equal(t, "case_ext", sink.recommends[0].CaseID)
	assert.Contains(t, cch.entries, "adv_ext")
	require.Len(t, store.offers, 1)

	var offerID uuid.UUID
	for id := range store.offers {
		offerID = id
	}
	off, err := eng.MarkInterest(context.Background(), offerID, "adv_ext")
	require.NoError(t, err)
	assert.Equal(t, litgo.OfferInterested, off.Status)
	require.Len(t, sink.feedbacks, 1)
	assert.Equal(t, litgo.LabelAccepted, sink.feedbacks[0].Label)

	_, err = eng.MarkInterest(context.Background(), offerID, "adv_ext")
	assert.ErrorIs(t, err, litgo.ErrOfferNotPending)
}
