package match

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NicholasJacob1990/litgo/internal/cache"
	"github.com/NicholasJacob1990/litgo/internal/model"
)

// FairnessParams tune the β-layer applied over the raw scores.
type FairnessParams struct {
	// MinEpsilon is the floor of the ε-cluster width; the effective ε is
	// max(MinEpsilon, 0.10*best_raw).
	MinEpsilon float64
	// BetaEquity blends workload equity into the fair score.
	BetaEquity float64
	// OverloadFloor is the equity assigned to lawyers at or over capacity,
	// and the lower bound of equity in general.
	OverloadFloor float64
	// DiversityTau is the representation threshold below which a group
	// receives the boost.
	DiversityTau float64
	// DiversityLambda is the constant additive boost.
	DiversityLambda float64
}

// DefaultFairness returns the production fairness parameters.
func DefaultFairness() FairnessParams {
	return FairnessParams{
		MinEpsilon:      0.05,
		BetaEquity:      0.30,
		OverloadFloor:   0.05,
		DiversityTau:    0.30,
		DiversityLambda: 0.05,
	}
}

// Ranker orchestrates the feature calculator, the weight resolver, and the
// static feature cache to produce a fair, deterministic, explainable ranking.
type Ranker struct {
	calc     *Calculator
	resolver *Resolver
	cache    cache.Store
	logger   *slog.Logger
	fairness FairnessParams
	cacheTTL time.Duration
	workers  int
}

// NewRanker wires a ranker. A nil cache degrades to full recomputation.
func NewRanker(calc *Calculator, resolver *Resolver, store cache.Store, logger *slog.Logger, fairness FairnessParams, cacheTTL time.Duration, workers int) *Ranker {
	if store == nil {
		store = cache.Noop{}
	}
	if cacheTTL <= 0 {
		cacheTTL = cache.DefaultTTL
	}
	if workers <= 0 {
		workers = 8
	}
	return &Ranker{
		calc:     calc,
		resolver: resolver,
		cache:    store,
		logger:   logger,
		fairness: fairness,
		cacheTTL: cacheTTL,
		workers:  workers,
	}
}

// scored pairs a candidate with its computed scores. Scores are attached
// here, never to the input lawyer.
type scored struct {
	lawyer    *model.Lawyer
	features  model.FeatureVector
	delta     model.FeatureVector
	raw       float64
	equity    float64
	boost     float64
	fair      float64
	cacheHit  bool
}

// Rank computes the top-N ranking for a case over the candidate set.
//
// Candidates are scored in parallel; the returned sequence is a total order
// by (-fair, last_offered_at, lawyer id). Cache failures degrade to
// recomputation and never fail the call. Cancellation aborts with ctx.Err()
// before any result is produced.
func (r *Ranker) Rank(ctx context.Context, cs *model.Case, candidates []*model.Lawyer, topN int, preset string) ([]model.Recommendation, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if topN <= 0 {
		topN = len(candidates)
	}

	weights := r.resolver.Resolve(preset, cs.Complexity)

	entries := make([]scored, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, lw := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries[i] = r.score(gctx, cs, lw, weights)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var hits int
	for _, e := range entries {
		if e.cacheHit {
			hits++
		}
	}
	r.logger.Debug("ranker: candidates scored",
		"case_id", cs.ID, "candidates", len(entries), "cache_hits", hits)

	// ε-cluster: keep everyone within ε of the best raw score.
	best := entries[0].raw
	for _, e := range entries[1:] {
		if e.raw > best {
			best = e.raw
		}
	}
	eps := r.fairness.MinEpsilon
	if scaled := 0.10 * best; scaled > eps {
		eps = scaled
	}
	elite := entries[:0:0]
	for _, e := range entries {
		if e.raw >= best-eps {
			elite = append(elite, e)
		}
	}
	if len(elite) == 0 {
		return nil, nil
	}

	// Diversity representation over the elite set.
	groups := make(map[string]int, len(elite))
	for _, e := range elite {
		groups[e.lawyer.DiversityGroup()]++
	}

	for i := range elite {
		e := &elite[i]
		e.equity = r.equityWeight(e.lawyer.KPI)
		rep := float64(groups[e.lawyer.DiversityGroup()]) / float64(len(elite))
		if rep < r.fairness.DiversityTau {
			e.boost = r.fairness.DiversityLambda
		}
		e.fair = (1-r.fairness.BetaEquity)*e.raw + r.fairness.BetaEquity*e.equity + e.boost
	}

	sort.Slice(elite, func(i, j int) bool {
		a, b := elite[i], elite[j]
		if a.fair != b.fair {
			return a.fair > b.fair
		}
		if !a.lawyer.LastOfferedAt.Equal(b.lawyer.LastOfferedAt) {
			return a.lawyer.LastOfferedAt.Before(b.lawyer.LastOfferedAt)
		}
		return a.lawyer.ID < b.lawyer.ID
	})

	if topN > len(elite) {
		topN = len(elite)
	}
	out := make([]model.Recommendation, 0, topN)
	for _, e := range elite[:topN] {
		out = append(out, model.Recommendation{
			LawyerID:      e.lawyer.ID,
			SuccessStatus: e.lawyer.KPI.SuccessStatus,
			Breakdown: model.ScoreBreakdown{
				Features:       e.features,
				Delta:          e.delta,
				Raw:            e.raw,
				Equity:         e.equity,
				DiversityBoost: e.boost,
				Fair:           e.fair,
				WeightsUsed:    weights,
				Preset:         preset,
				Complexity:     cs.Complexity,
			},
		})
	}
	return out, nil
}

// score computes one candidate's feature vector, using the static cache when
// possible. Cache errors are demoted to misses or no-ops.
func (r *Ranker) score(ctx context.Context, cs *model.Case, lw *model.Lawyer, weights model.Weights) scored {
	var features model.FeatureVector
	var hit bool

	static, ok, err := r.cache.Get(ctx, lw.ID)
	if err != nil {
		r.logger.Debug("ranker: cache read failed, recomputing", "lawyer_id", lw.ID, "error", err)
		ok = false
	}
	if ok {
		a, s, u, c := r.calc.CaseDependent(cs, lw)
		features = static.Merge(a, s, u, c)
		hit = true
	} else {
		features = r.calc.All(cs, lw)
		if err := r.cache.Put(ctx, lw.ID, features.Static(), r.cacheTTL); err != nil {
			r.logger.Debug("ranker: cache write failed", "lawyer_id", lw.ID, "error", err)
		}
	}

	delta := weights.Delta(features)
	return scored{
		lawyer:   lw,
		features: features,
		delta:    delta,
		raw:      delta.RawScore(),
		cacheHit: hit,
	}
}

// equityWeight is 1 minus utilization, floored at OverloadFloor. Lawyers at or
// over capacity sit exactly on the floor.
func (r *Ranker) equityWeight(kpi model.KPI) float64 {
	if kpi.CapacidadeMensal <= kpi.Cases30d {
		return r.fairness.OverloadFloor
	}
	eq := 1 - float64(kpi.Cases30d)/float64(kpi.CapacidadeMensal)
	if eq < r.fairness.OverloadFloor {
		return r.fairness.OverloadFloor
	}
	return eq
}
