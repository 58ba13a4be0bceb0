package telemetry

import (
	"go.opentelemetry.io/otel/metric"
)

// EngineMetrics are the matching engine's instruments. All are no-ops when
// telemetry is disabled.
type EngineMetrics struct {
	RankDuration  metric.Float64Histogram
	CacheHits     metric.Int64Counter
	CacheMisses   metric.Int64Counter
	OffersCreated metric.Int64Counter
	OffersExpired metric.Int64Counter
}

// NewEngineMetrics registers the engine instruments on the global meter.
func NewEngineMetrics() (*EngineMetrics, error) {
	meter := Meter("litgo/engine")

	rankDuration, err := meter.Float64Histogram("litgo.rank.duration",
		metric.WithDescription("Duration of a rank call in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	cacheHits, err := meter.Int64Counter("litgo.cache.hits",
		metric.WithDescription("Static feature cache hits"),
	)
	if err != nil {
		return nil, err
	}
	cacheMisses, err := meter.Int64Counter("litgo.cache.misses",
		metric.WithDescription("Static feature cache misses"),
	)
	if err != nil {
		return nil, err
	}
	offersCreated, err := meter.Int64Counter("litgo.offers.created",
		metric.WithDescription("Offers created from rankings"),
	)
	if err != nil {
		return nil, err
	}
	offersExpired, err := meter.Int64Counter("litgo.offers.expired",
		metric.WithDescription("Pending offers expired by the sweeper"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		RankDuration:  rankDuration,
		CacheHits:     cacheHits,
		CacheMisses:   cacheMisses,
		OffersCreated: offersCreated,
		OffersExpired: offersExpired,
	}, nil
}
