package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/NicholasJacob1990/litgo/internal/model"
)

// UpsertLawyer inserts or replaces a lawyer profile. Case history rows are
// managed separately via ReplaceCaseHistory.
func (db *DB) UpsertLawyer(ctx context.Context, l model.Lawyer) error {
	curriculo, err := json.Marshal(l.Curriculo)
	if err != nil {
		return fmt.Errorf("storage: marshal curriculo: %w", err)
	}
	kpi, err := json.Marshal(l.KPI)
	if err != nil {
		return fmt.Errorf("storage: marshal kpi: %w", err)
	}
	var kpiSubarea []byte
	if l.KPISubarea != nil {
		kpiSubarea, err = json.Marshal(l.KPISubarea)
		if err != nil {
			return fmt.Errorf("storage: marshal kpi_subarea: %w", err)
		}
	}
	var diversity []byte
	if l.Diversity != nil {
		diversity, err = json.Marshal(l.Diversity)
		if err != nil {
			return fmt.Errorf("storage: marshal diversity: %w", err)
		}
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO lawyers (id, name, tags_expertise, lat, lon,
		     curriculo, kpi, kpi_subarea, kpi_softskill, review_texts, diversity, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8::jsonb, $9, $10, $11::jsonb, now())
		 ON CONFLICT (id) DO UPDATE SET
		     name = EXCLUDED.name,
		     tags_expertise = EXCLUDED.tags_expertise,
		     lat = EXCLUDED.lat,
		     lon = EXCLUDED.lon,
		     curriculo = EXCLUDED.curriculo,
		     kpi = EXCLUDED.kpi,
		     kpi_subarea = EXCLUDED.kpi_subarea,
		     kpi_softskill = EXCLUDED.kpi_softskill,
		     review_texts = EXCLUDED.review_texts,
		     diversity = EXCLUDED.diversity,
		     updated_at = now()`,
		l.ID, l.Name, l.TagsExpertise, l.Lat, l.Lon,
		curriculo, kpi, kpiSubarea, l.KPISoftskill, l.ReviewTexts, diversity,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert lawyer %s: %w", l.ID, err)
	}
	return nil
}

// ReplaceCaseHistory replaces the lawyer's historical case embeddings and
// their outcomes in one transaction. position preserves the alignment
// between embedding and outcome.
func (db *DB) ReplaceCaseHistory(ctx context.Context, lawyerID string, embeddings []pgvector.Vector, outcomes []bool) error {
	if len(outcomes) > 0 && len(outcomes) != len(embeddings) {
		return fmt.Errorf("storage: case history misaligned: %d embeddings, %d outcomes", len(embeddings), len(outcomes))
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM lawyer_case_history WHERE lawyer_id = $1`, lawyerID); err != nil {
		return fmt.Errorf("storage: clear case history %s: %w", lawyerID, err)
	}
	for i, emb := range embeddings {
		var won *bool
		if len(outcomes) > 0 {
			won = &outcomes[i]
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO lawyer_case_history (lawyer_id, position, embedding, won)
			 VALUES ($1, $2, $3, $4)`,
			lawyerID, i, emb, won,
		); err != nil {
			return fmt.Errorf("storage: insert case history %s[%d]: %w", lawyerID, i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit case history %s: %w", lawyerID, err)
	}
	return nil
}

// GetLawyer retrieves a lawyer with their case history.
func (db *DB) GetLawyer(ctx context.Context, id string) (model.Lawyer, error) {
	l, err := db.scanLawyer(ctx, db.pool.QueryRow(ctx,
		lawyerSelect+` WHERE id = $1`, id,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Lawyer{}, fmt.Errorf("%w: lawyer %s", ErrNotFound, id)
		}
		return model.Lawyer{}, fmt.Errorf("storage: get lawyer %s: %w", id, err)
	}
	if err := db.loadCaseHistory(ctx, map[string]*model.Lawyer{l.ID: &l}); err != nil {
		return model.Lawyer{}, err
	}
	return l, nil
}

// ListCandidates returns every lawyer whose expertise tags include the case
// area, with case history loaded, ordered by id for determinism.
func (db *DB) ListCandidates(ctx context.Context, area string) ([]*model.Lawyer, error) {
	rows, err := db.pool.Query(ctx,
		lawyerSelect+` WHERE $1 = ANY(tags_expertise) ORDER BY id`, area,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list candidates for %s: %w", area, err)
	}
	defer rows.Close()

	byID := make(map[string]*model.Lawyer)
	var out []*model.Lawyer
	for rows.Next() {
		l, err := db.scanLawyer(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan candidate: %w", err)
		}
		lw := l
		byID[lw.ID] = &lw
		out = append(out, &lw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list candidates for %s: %w", area, err)
	}

	if err := db.loadCaseHistory(ctx, byID); err != nil {
		return nil, err
	}
	return out, nil
}

const lawyerSelect = `SELECT id, name, tags_expertise, lat, lon,
	 curriculo, kpi, kpi_subarea, kpi_softskill, review_texts, diversity, last_offered_at
	 FROM lawyers`

func (db *DB) scanLawyer(_ context.Context, row pgx.Row) (model.Lawyer, error) {
	var (
		l             model.Lawyer
		curriculo     []byte
		kpi           []byte
		kpiSubarea    []byte
		diversity     []byte
		lastOfferedAt *time.Time
	)
	err := row.Scan(
		&l.ID, &l.Name, &l.TagsExpertise, &l.Lat, &l.Lon,
		&curriculo, &kpi, &kpiSubarea, &l.KPISoftskill, &l.ReviewTexts, &diversity, &lastOfferedAt,
	)
	if err != nil {
		return model.Lawyer{}, err
	}
	if err := json.Unmarshal(curriculo, &l.Curriculo); err != nil {
		return model.Lawyer{}, fmt.Errorf("decode curriculo: %w", err)
	}
	if err := json.Unmarshal(kpi, &l.KPI); err != nil {
		return model.Lawyer{}, fmt.Errorf("decode kpi: %w", err)
	}
	if len(kpiSubarea) > 0 {
		if err := json.Unmarshal(kpiSubarea, &l.KPISubarea); err != nil {
			return model.Lawyer{}, fmt.Errorf("decode kpi_subarea: %w", err)
		}
	}
	if len(diversity) > 0 {
		var d model.Diversity
		if err := json.Unmarshal(diversity, &d); err != nil {
			return model.Lawyer{}, fmt.Errorf("decode diversity: %w", err)
		}
		l.Diversity = &d
	}
	if lastOfferedAt != nil {
		l.LastOfferedAt = *lastOfferedAt
	}
	return l, nil
}

// loadCaseHistory fills HistoricalEmbeddings and CaseOutcomes for the given
// lawyers in one query, preserving the stored position order.
func (db *DB) loadCaseHistory(ctx context.Context, byID map[string]*model.Lawyer) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT lawyer_id, embedding, won FROM lawyer_case_history
		 WHERE lawyer_id = ANY($1) ORDER BY lawyer_id, position`, ids,
	)
	if err != nil {
		return fmt.Errorf("storage: load case history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			lawyerID string
			emb      pgvector.Vector
			won      *bool
		)
		if err := rows.Scan(&lawyerID, &emb, &won); err != nil {
			return fmt.Errorf("storage: scan case history: %w", err)
		}
		l := byID[lawyerID]
		if l == nil {
			continue
		}
		l.HistoricalEmbeddings = append(l.HistoricalEmbeddings, emb)
		if won != nil {
			l.CaseOutcomes = append(l.CaseOutcomes, *won)
		}
	}
	return rows.Err()
}
