// Package litgo is the public API for embedding the case-to-lawyer matching
// engine.
//
// Consumers construct an Engine over a Store and call Rank:
//
//	eng, err := litgo.New(db,
//	    litgo.WithLogger(logger),
//	    litgo.WithCache(litgo.NewRedisCache(rdb)),
//	)
//	if err != nil { ... }
//	recs, err := eng.Rank(ctx, caseID, 5, litgo.PresetBalanced)
//
// The import graph enforces a strict no-cycle rule: litgo (root) imports
// internal/*, but internal/* never imports litgo (root).
package litgo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NicholasJacob1990/litgo/internal/cache"
	"github.com/NicholasJacob1990/litgo/internal/match"
	"github.com/NicholasJacob1990/litgo/internal/model"
	"github.com/NicholasJacob1990/litgo/internal/offers"
	"github.com/NicholasJacob1990/litgo/internal/telemetry"
)

// Engine is the matching engine lifecycle: ranking, offers, weights, cache.
// Construct with New(); Engine has no public fields.
type Engine struct {
	store    Store
	ranker   *match.Ranker
	resolver *match.Resolver
	cache    cache.Store
	manager  *offers.Manager
	metrics  *telemetry.EngineMetrics
	tracer   trace.Tracer
	logger   *slog.Logger

	embeddingDim int
	defaultTopN  int
}

// New wires a ready-to-use Engine over the given store. It performs the
// cold-start weight load but starts no goroutines; periodic offer expiration
// is the caller's loop (see cmd/litgo).
func New(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("litgo: store is required")
	}

	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := telemetry.NewEngineMetrics()
	if err != nil {
		return nil, fmt.Errorf("litgo: telemetry: %w", err)
	}

	store2 := o.cache
	if store2 == nil {
		store2 = cache.Noop{}
	}
	instr := &countingCache{inner: store2, metrics: metrics}

	resolver := match.NewResolver(context.Background(), o.weightLoader, logger)

	geoRadius := o.geoRadiusKM
	if geoRadius <= 0 {
		geoRadius = match.DefaultGeoRadiusKM
	}
	calc := match.NewCalculator(geoRadius)

	fairness := match.DefaultFairness()
	if o.fairness != nil {
		fairness = *o.fairness
	}

	ranker := match.NewRanker(calc, resolver, instr, logger, fairness, o.cacheTTL, o.workers)

	manager := offers.New(store, o.sink, logger, o.offerTTL)
	if o.clock != nil {
		manager.SetClock(o.clock)
	}

	topN := o.topN
	if topN <= 0 {
		topN = 5
	}

	return &Engine{
		store:        store,
		ranker:       ranker,
		resolver:     resolver,
		cache:        instr,
		manager:      manager,
		metrics:      metrics,
		tracer:       telemetry.Tracer("litgo"),
		logger:       logger,
		embeddingDim: o.embeddingDim,
		defaultTopN:  topN,
	}, nil
}

// Rank loads the case and its candidate pool, computes the fair top-N ranking,
// and persists the resulting offers and audit records atomically. On context
// cancellation nothing is persisted and ctx.Err() is returned.
//
// topN <= 0 uses the engine default. An empty candidate pool yields an empty
// result with no side effects.
func (e *Engine) Rank(ctx context.Context, caseID string, topN int, preset string) ([]model.Recommendation, error) {
	cs, err := e.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	candidates, err := e.store.ListCandidates(ctx, cs.Area)
	if err != nil {
		return nil, err
	}
	return e.RankCase(ctx, &cs, candidates, topN, preset)
}

// RankCase is Rank over an already-loaded case and candidate pool. The case
// must validate; candidates are treated as read-only snapshots.
func (e *Engine) RankCase(ctx context.Context, cs *model.Case, candidates []*model.Lawyer, topN int, preset string) ([]model.Recommendation, error) {
	if err := cs.Validate(e.embeddingDim); err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = e.defaultTopN
	}

	ctx, span := e.tracer.Start(ctx, "engine.rank",
		trace.WithAttributes(
			attribute.String("case.id", cs.ID),
			attribute.String("rank.preset", preset),
			attribute.Int("rank.candidates", len(candidates)),
		))
	defer span.End()

	start := time.Now()
	recs, err := e.ranker.Rank(ctx, cs, candidates, topN, preset)
	e.metrics.RankDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := e.manager.CreateFromRanking(ctx, cs, recs); err != nil {
		span.RecordError(err)
		return nil, err
	}
	e.metrics.OffersCreated.Add(ctx, int64(len(recs)))
	span.SetAttributes(attribute.Int("rank.results", len(recs)))
	return recs, nil
}

// ReloadWeights re-reads the LTR snapshot. On failure the previous vector
// stays active and the error is returned alongside it.
func (e *Engine) ReloadWeights(ctx context.Context) (model.Weights, error) {
	return e.resolver.Reload(ctx)
}

// ActiveWeights returns the currently loaded snapshot vector.
func (e *Engine) ActiveWeights() model.Weights {
	return e.resolver.Active()
}

// InvalidateCache drops a lawyer's static feature entry. Call after KPI sync,
// profile edits, or review submission.
func (e *Engine) InvalidateCache(ctx context.Context, lawyerID string) error {
	return e.cache.Invalidate(ctx, lawyerID)
}

// ExpirePendingOffers transitions due pending offers to expired and returns
// the count. Intended for a periodic job; idempotent.
func (e *Engine) ExpirePendingOffers(ctx context.Context) (int, error) {
	ctx, span := e.tracer.Start(ctx, "engine.offer.expire_sweep")
	defer span.End()

	n, err := e.manager.ExpirePending(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	e.metrics.OffersExpired.Add(ctx, int64(n))
	span.SetAttributes(attribute.Int("offers.expired", n))
	return n, nil
}

// MarkInterest records a lawyer's interest in a pending offer.
func (e *Engine) MarkInterest(ctx context.Context, offerID uuid.UUID, actorLawyerID string) (model.Offer, error) {
	ctx, span := e.offerSpan(ctx, "engine.offer.interest", offerID)
	defer span.End()

	off, err := e.manager.MarkInterest(ctx, offerID, actorLawyerID)
	if err != nil {
		span.RecordError(err)
	}
	return off, err
}

// Decline records a lawyer's refusal of a pending offer.
func (e *Engine) Decline(ctx context.Context, offerID uuid.UUID, actorLawyerID string) (model.Offer, error) {
	ctx, span := e.offerSpan(ctx, "engine.offer.decline", offerID)
	defer span.End()

	off, err := e.manager.Decline(ctx, offerID, actorLawyerID)
	if err != nil {
		span.RecordError(err)
	}
	return off, err
}

// SignContract closes an interested offer as won and closes all sibling
// offers on the case. Idempotent.
func (e *Engine) SignContract(ctx context.Context, offerID uuid.UUID, actorLawyerID string) (model.Offer, error) {
	ctx, span := e.offerSpan(ctx, "engine.offer.sign", offerID)
	defer span.End()

	off, err := e.manager.SignContract(ctx, offerID, actorLawyerID)
	if err != nil {
		span.RecordError(err)
	}
	return off, err
}

func (e *Engine) offerSpan(ctx context.Context, name string, offerID uuid.UUID) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name,
		trace.WithAttributes(attribute.String("offer.id", offerID.String())))
}

// ListCaseOffers returns a case's offers, best fair score first. Only the
// owning client may list them.
func (e *Engine) ListCaseOffers(ctx context.Context, caseID, actorClientID string) ([]model.Offer, error) {
	return e.manager.CaseOffers(ctx, caseID, actorClientID)
}

// ListLawyerOffers returns a lawyer's own offers, optionally filtered by status.
func (e *Engine) ListLawyerOffers(ctx context.Context, lawyerID string, status *model.OfferStatus) ([]model.Offer, error) {
	return e.manager.LawyerOffers(ctx, lawyerID, status)
}

// CaseOfferStats aggregates offer counts and the response rate for a case,
// client-authorized like ListCaseOffers.
func (e *Engine) CaseOfferStats(ctx context.Context, caseID, actorClientID string) (model.CaseOfferStats, error) {
	return e.manager.CaseStats(ctx, caseID, actorClientID)
}

// countingCache wraps a cache.Store with hit/miss counters.
type countingCache struct {
	inner   cache.Store
	metrics *telemetry.EngineMetrics
}

func (c *countingCache) Get(ctx context.Context, lawyerID string) (model.StaticFeatures, bool, error) {
	f, ok, err := c.inner.Get(ctx, lawyerID)
	if err == nil && ok {
		c.metrics.CacheHits.Add(ctx, 1)
	} else {
		c.metrics.CacheMisses.Add(ctx, 1)
	}
	return f, ok, err
}

func (c *countingCache) Put(ctx context.Context, lawyerID string, f model.StaticFeatures, ttl time.Duration) error {
	return c.inner.Put(ctx, lawyerID, f, ttl)
}

func (c *countingCache) Invalidate(ctx context.Context, lawyerID string) error {
	return c.inner.Invalidate(ctx, lawyerID)
}
