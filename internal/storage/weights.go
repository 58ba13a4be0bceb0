package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NicholasJacob1990/litgo/internal/model"
)

// SaveWeightSnapshot persists a trained weight vector as the newest snapshot.
// Snapshots are append-only; the loader always reads the latest.
func (db *DB) SaveWeightSnapshot(ctx context.Context, w model.Weights, source string) error {
	payload, err := json.Marshal(w.Map())
	if err != nil {
		return fmt.Errorf("storage: marshal weight snapshot: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO weight_snapshots (weights, source) VALUES ($1::jsonb, $2)`,
		payload, source,
	)
	if err != nil {
		return fmt.Errorf("storage: save weight snapshot: %w", err)
	}
	return nil
}

// LatestWeightSnapshot returns the most recent persisted weight vector.
// ErrNotFound when no snapshot has ever been saved.
func (db *DB) LatestWeightSnapshot(ctx context.Context) (model.Weights, error) {
	var payload []byte
	err := db.pool.QueryRow(ctx,
		`SELECT weights FROM weight_snapshots ORDER BY created_at DESC, id DESC LIMIT 1`,
	).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Weights{}, fmt.Errorf("%w: weight snapshot", ErrNotFound)
		}
		return model.Weights{}, fmt.Errorf("storage: latest weight snapshot: %w", err)
	}
	var m map[string]float64
	if err := json.Unmarshal(payload, &m); err != nil {
		return model.Weights{}, fmt.Errorf("storage: decode weight snapshot: %w", err)
	}
	return model.WeightsFromMap(m), nil
}

// WeightLoader adapts the snapshot table to the resolver's loader interface.
type WeightLoader struct {
	DB *DB
}

// Load implements match.SnapshotLoader.
func (w WeightLoader) Load(ctx context.Context) (model.Weights, error) {
	return w.DB.LatestWeightSnapshot(ctx)
}
