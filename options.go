package litgo

import (
	"log/slog"
	"time"

	"github.com/NicholasJacob1990/litgo/internal/audit"
	"github.com/NicholasJacob1990/litgo/internal/cache"
	"github.com/NicholasJacob1990/litgo/internal/match"
)

// Option configures an Engine.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger       *slog.Logger
	cache        cache.Store
	sink         audit.Sink
	clock        func() time.Time
	fairness     *match.FairnessParams
	weightLoader match.SnapshotLoader
	cacheTTL     time.Duration
	offerTTL     time.Duration
	geoRadiusKM  float64
	embeddingDim int
	topN         int
	workers      int
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithCache sets the static feature cache. Defaults to a no-op cache, which
// recomputes every feature per rank call.
func WithCache(store cache.Store) Option {
	return func(o *resolvedOptions) { o.cache = store }
}

// WithAuditSink sets the stream mirror for audit records. The durable copy in
// Postgres is written regardless.
func WithAuditSink(sink audit.Sink) Option {
	return func(o *resolvedOptions) { o.sink = sink }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(o *resolvedOptions) { o.clock = now }
}

// WithFairness overrides the fairness layer parameters.
func WithFairness(p FairnessParams) Option {
	return func(o *resolvedOptions) { o.fairness = &p }
}

// WithWeightLoader sets the LTR snapshot source. Defaults to the built-in
// weight vector when unset.
func WithWeightLoader(l match.SnapshotLoader) Option {
	return func(o *resolvedOptions) { o.weightLoader = l }
}

// WithCacheTTL bounds the lifetime of cached static features.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *resolvedOptions) { o.cacheTTL = ttl }
}

// WithOfferTTL sets the response window of a pending offer.
func WithOfferTTL(ttl time.Duration) Option {
	return func(o *resolvedOptions) { o.offerTTL = ttl }
}

// WithGeoRadiusKM sets the reference radius for the geo feature.
func WithGeoRadiusKM(km float64) Option {
	return func(o *resolvedOptions) { o.geoRadiusKM = km }
}

// WithEmbeddingDim sets the expected case embedding dimension. Zero disables
// the dimension check.
func WithEmbeddingDim(dim int) Option {
	return func(o *resolvedOptions) { o.embeddingDim = dim }
}

// WithTopN sets the default ranking size used when Rank is called with n <= 0.
func WithTopN(n int) Option {
	return func(o *resolvedOptions) { o.topN = n }
}

// WithWorkers bounds parallel candidate scoring per rank call.
func WithWorkers(n int) Option {
	return func(o *resolvedOptions) { o.workers = n }
}
