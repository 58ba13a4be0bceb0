// Package offers manages the offer lifecycle: creation from a ranking result,
// lawyer-driven state transitions, sibling closing, and batch expiration.
package offers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/NicholasJacob1990/litgo/internal/audit"
	"github.com/NicholasJacob1990/litgo/internal/model"
)

var (
	// ErrOfferNotPending is returned when a transition is attempted from a
	// terminal or non-matching state (409 semantics).
	ErrOfferNotPending = errors.New("offers: offer is not pending")

	// ErrForbidden is returned on an actor mismatch (403 semantics); the
	// offer state is never changed.
	ErrForbidden = errors.New("offers: forbidden")
)

// DefaultOfferTTL is the window a lawyer has to respond to a pending offer.
const DefaultOfferTTL = 24 * time.Hour

// Store is the durable persistence capability. Every method that both mutates
// offers and records audit events must do so atomically; the engine relies on
// that boundary for its all-or-nothing guarantee.
type Store interface {
	// CreateOffers upserts the offers, appends the recommend audit records
	// in the given order, and advances each lawyer's last_offered_at — all
	// in one transaction.
	CreateOffers(ctx context.Context, offs []model.Offer, recs []audit.RecommendRecord, rankedAt time.Time) error

	GetOffer(ctx context.Context, id uuid.UUID) (model.Offer, error)

	// TransitionOffer moves the offer from one of the expected states to the
	// target state and appends the feedback record atomically. It returns
	// the updated offer, or ErrOfferConflict when the current state is not
	// among the expected ones.
	TransitionOffer(ctx context.Context, id uuid.UUID, from []model.OfferStatus, to model.OfferStatus, respondedAt *time.Time, fb audit.FeedbackRecord) (model.Offer, error)

	// CloseSiblings moves every other offer on the case that is pending or
	// interested to closed, appending one feedback record per offer with the
	// given label. Returns the number closed. Idempotent.
	CloseSiblings(ctx context.Context, caseID string, exceptID uuid.UUID, now time.Time, label audit.FeedbackLabel) (int, error)

	// ExpireDue transitions pending offers whose deadline passed to expired,
	// appending one feedback record per offer. Returns the count moved.
	// Idempotent and batchable.
	ExpireDue(ctx context.Context, now time.Time, label audit.FeedbackLabel) (int, error)

	CaseOwner(ctx context.Context, caseID string) (string, error)
	ListOffersByCase(ctx context.Context, caseID string) ([]model.Offer, error)
	ListOffersByLawyer(ctx context.Context, lawyerID string, status *model.OfferStatus) ([]model.Offer, error)
}

// ErrOfferConflict is returned by Store implementations when a conditional
// transition matched no row. The manager maps it to ErrOfferNotPending.
var ErrOfferConflict = errors.New("offers: conditional transition matched no row")

// Manager drives the offer state machine over a Store.
type Manager struct {
	store    Store
	sink     audit.Sink
	logger   *slog.Logger
	offerTTL time.Duration
	now      func() time.Time
}

// New creates an offer manager. A nil sink disables stream mirroring (the
// durable audit rows are written by the store regardless).
func New(store Store, sink audit.Sink, logger *slog.Logger, offerTTL time.Duration) *Manager {
	if offerTTL <= 0 {
		offerTTL = DefaultOfferTTL
	}
	return &Manager{
		store:    store,
		sink:     sink,
		logger:   logger,
		offerTTL: offerTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source, for deterministic tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// CreateFromRanking persists the top-N ranking as pending offers with an
// expiration deadline and emits one recommend audit record per entry, in
// result order. The whole write is atomic: on error nothing is persisted.
func (m *Manager) CreateFromRanking(ctx context.Context, cs *model.Case, recs []model.Recommendation) ([]model.Offer, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	now := m.now()

	offs := make([]model.Offer, 0, len(recs))
	records := make([]audit.RecommendRecord, 0, len(recs))
	for _, rec := range recs {
		bd := rec.Breakdown
		offs = append(offs, model.Offer{
			ID:           uuid.New(),
			CaseID:       cs.ID,
			LawyerID:     rec.LawyerID,
			Status:       model.OfferPending,
			SentAt:       now,
			ExpiresAt:    now.Add(m.offerTTL),
			RawScore:     bd.Raw,
			FairScore:    bd.Fair,
			EquityWeight: bd.Equity,
			Breakdown:    &bd,
			UpdatedAt:    now,
		})
		records = append(records, audit.RecommendRecord{
			CaseID:         cs.ID,
			LawyerID:       rec.LawyerID,
			Features:       bd.Features,
			Delta:          bd.Delta,
			Raw:            bd.Raw,
			Fair:           bd.Fair,
			Equity:         bd.Equity,
			DiversityBoost: bd.DiversityBoost,
			WeightsUsed:    bd.WeightsUsed,
			Preset:         bd.Preset,
			Complexity:     bd.Complexity,
			SuccessStatus:  rec.SuccessStatus,
			Timestamp:      now,
		})
	}

	if err := m.store.CreateOffers(ctx, offs, records, now); err != nil {
		return nil, fmt.Errorf("offers: create from ranking: %w", err)
	}

	m.mirrorRecommends(ctx, records)
	m.logger.Info("offers created", "case_id", cs.ID, "count", len(offs))
	return offs, nil
}

// MarkInterest transitions a pending offer to interested. Only the lawyer
// named on the offer may do so.
func (m *Manager) MarkInterest(ctx context.Context, offerID uuid.UUID, actorLawyerID string) (model.Offer, error) {
	return m.respond(ctx, offerID, actorLawyerID, model.OfferInterested, audit.LabelAccepted)
}

// Decline transitions a pending offer to declined. Only the lawyer named on
// the offer may do so.
func (m *Manager) Decline(ctx context.Context, offerID uuid.UUID, actorLawyerID string) (model.Offer, error) {
	return m.respond(ctx, offerID, actorLawyerID, model.OfferDeclined, audit.LabelDeclined)
}

func (m *Manager) respond(ctx context.Context, offerID uuid.UUID, actorLawyerID string, to model.OfferStatus, label audit.FeedbackLabel) (model.Offer, error) {
	off, err := m.store.GetOffer(ctx, offerID)
	if err != nil {
		return model.Offer{}, err
	}
	if off.LawyerID != actorLawyerID {
		return model.Offer{}, fmt.Errorf("%w: offer %s does not belong to lawyer %s", ErrForbidden, offerID, actorLawyerID)
	}
	if off.Status != model.OfferPending {
		return model.Offer{}, fmt.Errorf("%w: offer %s is %s", ErrOfferNotPending, offerID, off.Status)
	}

	now := m.now()
	fb := audit.FeedbackRecord{
		CaseID:    off.CaseID,
		LawyerID:  off.LawyerID,
		Label:     label,
		FromState: string(model.OfferPending),
		ToState:   string(to),
		Raw:       off.RawScore,
		Fair:      off.FairScore,
		Timestamp: now,
	}
	updated, err := m.store.TransitionOffer(ctx, offerID, []model.OfferStatus{model.OfferPending}, to, &now, fb)
	if err != nil {
		if errors.Is(err, ErrOfferConflict) {
			return model.Offer{}, fmt.Errorf("%w: offer %s changed concurrently", ErrOfferNotPending, offerID)
		}
		return model.Offer{}, err
	}

	m.mirrorFeedback(ctx, fb)
	m.logger.Info("offer responded", "offer_id", offerID, "case_id", off.CaseID, "to", to)
	return updated, nil
}

// SignContract closes an interested offer (the contract was signed) and
// closes every sibling offer on the same case. Idempotent: signing an
// already-closed offer only re-runs the sibling sweep.
func (m *Manager) SignContract(ctx context.Context, offerID uuid.UUID, actorLawyerID string) (model.Offer, error) {
	off, err := m.store.GetOffer(ctx, offerID)
	if err != nil {
		return model.Offer{}, err
	}
	if off.LawyerID != actorLawyerID {
		return model.Offer{}, fmt.Errorf("%w: offer %s does not belong to lawyer %s", ErrForbidden, offerID, actorLawyerID)
	}

	now := m.now()
	switch off.Status {
	case model.OfferInterested:
		fb := audit.FeedbackRecord{
			CaseID:    off.CaseID,
			LawyerID:  off.LawyerID,
			Label:     audit.LabelWon,
			FromState: string(model.OfferInterested),
			ToState:   string(model.OfferClosed),
			Raw:       off.RawScore,
			Fair:      off.FairScore,
			Timestamp: now,
		}
		off, err = m.store.TransitionOffer(ctx, offerID, []model.OfferStatus{model.OfferInterested}, model.OfferClosed, &now, fb)
		if err != nil {
			if errors.Is(err, ErrOfferConflict) {
				return model.Offer{}, fmt.Errorf("%w: offer %s changed concurrently", ErrOfferNotPending, offerID)
			}
			return model.Offer{}, err
		}
		m.mirrorFeedback(ctx, fb)
	case model.OfferClosed:
		// Already signed; fall through to the idempotent sibling sweep.
	default:
		return model.Offer{}, fmt.Errorf("%w: offer %s is %s, contract requires interested", ErrOfferNotPending, offerID, off.Status)
	}

	closed, err := m.store.CloseSiblings(ctx, off.CaseID, offerID, now, audit.LabelLost)
	if err != nil {
		return model.Offer{}, fmt.Errorf("offers: close siblings for case %s: %w", off.CaseID, err)
	}
	if closed > 0 {
		m.logger.Info("sibling offers closed", "case_id", off.CaseID, "count", closed)
	}
	return off, nil
}

// ExpirePending batch-transitions due pending offers to expired and returns
// the count moved. Safe to run from a periodic job; repeated runs are no-ops.
func (m *Manager) ExpirePending(ctx context.Context) (int, error) {
	n, err := m.store.ExpireDue(ctx, m.now(), audit.LabelExpired)
	if err != nil {
		return 0, fmt.Errorf("offers: expire pending: %w", err)
	}
	if n > 0 {
		m.logger.Info("pending offers expired", "count", n)
	}
	return n, nil
}

// CaseOffers lists all offers on a case, ordered by fair score. Only the
// client who owns the case may view the set.
func (m *Manager) CaseOffers(ctx context.Context, caseID, actorClientID string) ([]model.Offer, error) {
	if err := m.authorizeCaseOwner(ctx, caseID, actorClientID); err != nil {
		return nil, err
	}
	return m.store.ListOffersByCase(ctx, caseID)
}

// LawyerOffers lists a lawyer's own offers, optionally filtered by status.
func (m *Manager) LawyerOffers(ctx context.Context, lawyerID string, status *model.OfferStatus) ([]model.Offer, error) {
	return m.store.ListOffersByLawyer(ctx, lawyerID, status)
}

// CaseStats aggregates the offer counts and response rate for a case,
// client-authorized like CaseOffers.
func (m *Manager) CaseStats(ctx context.Context, caseID, actorClientID string) (model.CaseOfferStats, error) {
	if err := m.authorizeCaseOwner(ctx, caseID, actorClientID); err != nil {
		return model.CaseOfferStats{}, err
	}
	offs, err := m.store.ListOffersByCase(ctx, caseID)
	if err != nil {
		return model.CaseOfferStats{}, err
	}

	var stats model.CaseOfferStats
	stats.Total = len(offs)
	for _, o := range offs {
		switch o.Status {
		case model.OfferPending:
			stats.Pending++
		case model.OfferInterested:
			stats.Interested++
		case model.OfferDeclined:
			stats.Declined++
		case model.OfferExpired:
			stats.Expired++
		case model.OfferClosed:
			stats.Closed++
		}
	}
	if stats.Total > 0 {
		responded := stats.Interested + stats.Declined
		stats.ResponseRate = float64(responded) / float64(stats.Total) * 100
	}
	return stats, nil
}

func (m *Manager) authorizeCaseOwner(ctx context.Context, caseID, actorClientID string) error {
	owner, err := m.store.CaseOwner(ctx, caseID)
	if err != nil {
		return err
	}
	if owner != actorClientID {
		return fmt.Errorf("%w: case %s does not belong to client %s", ErrForbidden, caseID, actorClientID)
	}
	return nil
}

// mirrorRecommends forwards recommend records to the stream sink. The durable
// rows were already committed; mirror failures are logged, not propagated.
func (m *Manager) mirrorRecommends(ctx context.Context, recs []audit.RecommendRecord) {
	if m.sink == nil {
		return
	}
	for _, rec := range recs {
		if err := m.sink.Recommend(ctx, rec); err != nil {
			m.logger.Warn("audit mirror: recommend failed", "case_id", rec.CaseID, "lawyer_id", rec.LawyerID, "error", err)
		}
	}
}

func (m *Manager) mirrorFeedback(ctx context.Context, fb audit.FeedbackRecord) {
	if m.sink == nil {
		return
	}
	if err := m.sink.Feedback(ctx, fb); err != nil {
		m.logger.Warn("audit mirror: feedback failed", "case_id", fb.CaseID, "lawyer_id", fb.LawyerID, "error", err)
	}
}
