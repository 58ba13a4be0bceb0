package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NicholasJacob1990/litgo/internal/model"
)

// CreateCase inserts a case. The summary embedding is L2-normalized before
// persisting so stored vectors are always comparable by dot product.
func (db *DB) CreateCase(ctx context.Context, c model.Case) (model.Case, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.NormalizeEmbedding()

	_, err := db.pool.Exec(ctx,
		`INSERT INTO cases (id, client_id, area, subarea, urgency_h, lat, lon, complexity, summary_embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.ClientID, c.Area, c.Subarea, c.UrgencyH, c.Lat, c.Lon,
		string(c.Complexity), c.SummaryEmbedding, c.CreatedAt,
	)
	if err != nil {
		return model.Case{}, fmt.Errorf("storage: create case %s: %w", c.ID, err)
	}
	return c, nil
}

// GetCase retrieves a case by ID.
func (db *DB) GetCase(ctx context.Context, id string) (model.Case, error) {
	var (
		c          model.Case
		complexity string
	)
	err := db.pool.QueryRow(ctx,
		`SELECT id, client_id, area, subarea, urgency_h, lat, lon, complexity, summary_embedding, created_at
		 FROM cases WHERE id = $1`, id,
	).Scan(
		&c.ID, &c.ClientID, &c.Area, &c.Subarea, &c.UrgencyH, &c.Lat, &c.Lon,
		&complexity, &c.SummaryEmbedding, &c.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Case{}, fmt.Errorf("%w: case %s", ErrNotFound, id)
		}
		return model.Case{}, fmt.Errorf("storage: get case %s: %w", id, err)
	}
	c.Complexity = model.Complexity(complexity)
	return c, nil
}

// CaseOwner returns the client_id owning the case.
func (db *DB) CaseOwner(ctx context.Context, caseID string) (string, error) {
	var owner string
	err := db.pool.QueryRow(ctx,
		`SELECT client_id FROM cases WHERE id = $1`, caseID,
	).Scan(&owner)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("%w: case %s", ErrNotFound, caseID)
		}
		return "", fmt.Errorf("storage: case owner %s: %w", caseID, err)
	}
	return owner, nil
}
