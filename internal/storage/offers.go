package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NicholasJacob1990/litgo/internal/audit"
	"github.com/NicholasJacob1990/litgo/internal/model"
	"github.com/NicholasJacob1990/litgo/internal/offers"
)

// CreateOffers implements offers.Store. Offers are upserted (re-ranking a case
// resets the pair to pending), the recommend audit rows are appended in result
// order, and each lawyer's last_offered_at advances — all in one transaction.
func (db *DB) CreateOffers(ctx context.Context, offs []model.Offer, recs []audit.RecommendRecord, rankedAt time.Time) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, o := range offs {
		var breakdown []byte
		if o.Breakdown != nil {
			breakdown, err = json.Marshal(o.Breakdown)
			if err != nil {
				return fmt.Errorf("storage: marshal breakdown: %w", err)
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO offers (id, case_id, lawyer_id, status, sent_at, responded_at, expires_at,
			     raw_score, fair_score, equity_weight, breakdown, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NULL, $6, $7, $8, $9, $10::jsonb, $11)
			 ON CONFLICT (case_id, lawyer_id) DO UPDATE SET
			     status = EXCLUDED.status,
			     sent_at = EXCLUDED.sent_at,
			     responded_at = NULL,
			     expires_at = EXCLUDED.expires_at,
			     raw_score = EXCLUDED.raw_score,
			     fair_score = EXCLUDED.fair_score,
			     equity_weight = EXCLUDED.equity_weight,
			     breakdown = EXCLUDED.breakdown,
			     updated_at = EXCLUDED.updated_at`,
			o.ID, o.CaseID, o.LawyerID, string(o.Status), o.SentAt, o.ExpiresAt,
			o.RawScore, o.FairScore, o.EquityWeight, breakdown, o.UpdatedAt,
		); err != nil {
			return fmt.Errorf("storage: upsert offer %s/%s: %w", o.CaseID, o.LawyerID, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE lawyers SET last_offered_at = $1 WHERE id = $2`,
			rankedAt, o.LawyerID,
		); err != nil {
			return fmt.Errorf("storage: touch last_offered_at %s: %w", o.LawyerID, err)
		}
	}

	for _, rec := range recs {
		if err := insertRecommendTx(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit offers: %w", err)
	}
	return nil
}

// GetOffer retrieves an offer by ID.
func (db *DB) GetOffer(ctx context.Context, id uuid.UUID) (model.Offer, error) {
	o, err := scanOffer(db.pool.QueryRow(ctx, offerSelect+` WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Offer{}, fmt.Errorf("%w: offer %s", ErrNotFound, id)
		}
		return model.Offer{}, fmt.Errorf("storage: get offer %s: %w", id, err)
	}
	return o, nil
}

// TransitionOffer implements offers.Store. The status update is conditional
// on the current state; zero rows affected maps to offers.ErrOfferConflict.
// The feedback audit row commits atomically with the update.
func (db *DB) TransitionOffer(ctx context.Context, id uuid.UUID, from []model.OfferStatus, to model.OfferStatus, respondedAt *time.Time, fb audit.FeedbackRecord) (model.Offer, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Offer{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE offers SET status = $1, responded_at = COALESCE($2, responded_at), updated_at = $3
		 WHERE id = $4 AND status = ANY($5)`,
		string(to), respondedAt, fb.Timestamp, id, states,
	)
	if err != nil {
		return model.Offer{}, fmt.Errorf("storage: transition offer %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.Offer{}, offers.ErrOfferConflict
	}

	if err := insertFeedbackTx(ctx, tx, fb); err != nil {
		return model.Offer{}, err
	}

	o, err := scanOffer(tx.QueryRow(ctx, offerSelect+` WHERE id = $1`, id))
	if err != nil {
		return model.Offer{}, fmt.Errorf("storage: reload offer %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Offer{}, fmt.Errorf("storage: commit transition %s: %w", id, err)
	}
	return o, nil
}

// CloseSiblings implements offers.Store: every other pending or interested
// offer on the case moves to closed, each with its own feedback audit row.
// Retried on transient lock conflicts with concurrent responses.
func (db *DB) CloseSiblings(ctx context.Context, caseID string, exceptID uuid.UUID, now time.Time, label audit.FeedbackLabel) (int, error) {
	var n int
	err := withRetry(ctx, 3, 50*time.Millisecond, func() error {
		var err error
		n, err = db.closeSiblings(ctx, caseID, exceptID, now, label)
		return err
	})
	return n, err
}

func (db *DB) closeSiblings(ctx context.Context, caseID string, exceptID uuid.UUID, now time.Time, label audit.FeedbackLabel) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Self-join to return the pre-update status for the feedback record.
	rows, err := tx.Query(ctx,
		`UPDATE offers SET status = $1, updated_at = $2
		 FROM (SELECT id, status FROM offers
		       WHERE case_id = $3 AND id <> $4 AND status = ANY($5)
		       FOR UPDATE) old
		 WHERE offers.id = old.id
		 RETURNING offers.lawyer_id, old.status, offers.raw_score, offers.fair_score`,
		string(model.OfferClosed), now, caseID, exceptID,
		[]string{string(model.OfferPending), string(model.OfferInterested)},
	)
	if err != nil {
		return 0, fmt.Errorf("storage: close siblings %s: %w", caseID, err)
	}

	type closedRow struct {
		lawyerID  string
		fromState string
		raw, fair float64
	}
	var closed []closedRow
	for rows.Next() {
		var r closedRow
		if err := rows.Scan(&r.lawyerID, &r.fromState, &r.raw, &r.fair); err != nil {
			rows.Close()
			return 0, fmt.Errorf("storage: scan closed sibling: %w", err)
		}
		closed = append(closed, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("storage: close siblings %s: %w", caseID, err)
	}

	for _, r := range closed {
		if err := insertFeedbackTx(ctx, tx, audit.FeedbackRecord{
			CaseID:    caseID,
			LawyerID:  r.lawyerID,
			Label:     label,
			FromState: r.fromState,
			ToState:   string(model.OfferClosed),
			Raw:       r.raw,
			Fair:      r.fair,
			Timestamp: now,
		}); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("storage: commit close siblings %s: %w", caseID, err)
	}
	return len(closed), nil
}

// ExpireDue implements offers.Store: pending offers past their deadline move
// to expired, each with a feedback audit row, atomically. Retried on transient
// lock conflicts so overlapping sweeps stay safe.
func (db *DB) ExpireDue(ctx context.Context, now time.Time, label audit.FeedbackLabel) (int, error) {
	var n int
	err := withRetry(ctx, 3, 50*time.Millisecond, func() error {
		var err error
		n, err = db.expireDue(ctx, now, label)
		return err
	})
	return n, err
}

func (db *DB) expireDue(ctx context.Context, now time.Time, label audit.FeedbackLabel) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`UPDATE offers SET status = $1, updated_at = $2
		 WHERE status = $3 AND expires_at <= $2
		 RETURNING case_id, lawyer_id, raw_score, fair_score`,
		string(model.OfferExpired), now, string(model.OfferPending),
	)
	if err != nil {
		return 0, fmt.Errorf("storage: expire offers: %w", err)
	}

	type expiredRow struct {
		caseID, lawyerID string
		raw, fair        float64
	}
	var expired []expiredRow
	for rows.Next() {
		var r expiredRow
		if err := rows.Scan(&r.caseID, &r.lawyerID, &r.raw, &r.fair); err != nil {
			rows.Close()
			return 0, fmt.Errorf("storage: scan expired offer: %w", err)
		}
		expired = append(expired, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("storage: expire offers: %w", err)
	}

	for _, r := range expired {
		if err := insertFeedbackTx(ctx, tx, audit.FeedbackRecord{
			CaseID:    r.caseID,
			LawyerID:  r.lawyerID,
			Label:     label,
			FromState: string(model.OfferPending),
			ToState:   string(model.OfferExpired),
			Raw:       r.raw,
			Fair:      r.fair,
			Timestamp: now,
		}); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("storage: commit expire offers: %w", err)
	}
	return len(expired), nil
}

// ListOffersByCase returns all offers on a case, best fair score first.
func (db *DB) ListOffersByCase(ctx context.Context, caseID string) ([]model.Offer, error) {
	rows, err := db.pool.Query(ctx,
		offerSelect+` WHERE case_id = $1 ORDER BY fair_score DESC, lawyer_id`, caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list offers for case %s: %w", caseID, err)
	}
	defer rows.Close()
	return collectOffers(rows)
}

// ListOffersByLawyer returns a lawyer's offers, newest first, optionally
// filtered by status.
func (db *DB) ListOffersByLawyer(ctx context.Context, lawyerID string, status *model.OfferStatus) ([]model.Offer, error) {
	query := offerSelect + ` WHERE lawyer_id = $1`
	args := []any{lawyerID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY sent_at DESC`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list offers for lawyer %s: %w", lawyerID, err)
	}
	defer rows.Close()
	return collectOffers(rows)
}

const offerSelect = `SELECT id, case_id, lawyer_id, status, sent_at, responded_at, expires_at,
	 raw_score, fair_score, equity_weight, breakdown, updated_at
	 FROM offers`

func scanOffer(row pgx.Row) (model.Offer, error) {
	var (
		o         model.Offer
		status    string
		breakdown []byte
	)
	err := row.Scan(
		&o.ID, &o.CaseID, &o.LawyerID, &status, &o.SentAt, &o.RespondedAt, &o.ExpiresAt,
		&o.RawScore, &o.FairScore, &o.EquityWeight, &breakdown, &o.UpdatedAt,
	)
	if err != nil {
		return model.Offer{}, err
	}
	o.Status = model.OfferStatus(status)
	if len(breakdown) > 0 {
		var bd model.ScoreBreakdown
		if err := json.Unmarshal(breakdown, &bd); err != nil {
			return model.Offer{}, fmt.Errorf("decode breakdown: %w", err)
		}
		o.Breakdown = &bd
	}
	return o, nil
}

func collectOffers(rows pgx.Rows) ([]model.Offer, error) {
	var out []model.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan offer: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
