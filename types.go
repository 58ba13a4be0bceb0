package litgo

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/NicholasJacob1990/litgo/internal/audit"
	"github.com/NicholasJacob1990/litgo/internal/cache"
	"github.com/NicholasJacob1990/litgo/internal/match"
	"github.com/NicholasJacob1990/litgo/internal/model"
	"github.com/NicholasJacob1990/litgo/internal/offers"
	"github.com/NicholasJacob1990/litgo/internal/storage"
)

// Domain types re-exported so embedding consumers don't import internal
// packages directly. Everything a Store, CacheStore, or AuditSink
// implementation has to name is aliased here.
type (
	Case           = model.Case
	Lawyer         = model.Lawyer
	Curriculo      = model.Curriculo
	PostGrad       = model.PostGrad
	PostGradLevel  = model.PostGradLevel
	KPI            = model.KPI
	Diversity      = model.Diversity
	Offer          = model.Offer
	OfferStatus    = model.OfferStatus
	CaseOfferStats = model.CaseOfferStats
	Complexity     = model.Complexity
	SuccessStatus  = model.SuccessStatus
	Recommendation = model.Recommendation
	ScoreBreakdown = model.ScoreBreakdown
	FeatureVector  = model.FeatureVector
	StaticFeatures = model.StaticFeatures
	Weights        = model.Weights
	FairnessParams = match.FairnessParams

	// WeightLoader is the LTR snapshot source accepted by WithWeightLoader.
	WeightLoader     = match.SnapshotLoader
	FileWeightLoader = match.FileLoader

	// CacheStore is the static feature cache accepted by WithCache.
	CacheStore  = cache.Store
	RedisCache  = cache.Redis
	MemoryCache = cache.Memory
	NoopCache   = cache.Noop

	// AuditSink is the stream mirror accepted by WithAuditSink.
	AuditSink       = audit.Sink
	RecommendRecord = audit.RecommendRecord
	FeedbackRecord  = audit.FeedbackRecord
	FeedbackLabel   = audit.FeedbackLabel
	LogSink         = audit.Log
	MemorySink      = audit.Memory
)

const (
	OfferPending    = model.OfferPending
	OfferInterested = model.OfferInterested
	OfferDeclined   = model.OfferDeclined
	OfferExpired    = model.OfferExpired
	OfferClosed     = model.OfferClosed

	ComplexityLow    = model.ComplexityLow
	ComplexityMedium = model.ComplexityMedium
	ComplexityHigh   = model.ComplexityHigh

	StatusVerified    = model.StatusVerified
	StatusPartial     = model.StatusPartial
	StatusNotVerified = model.StatusNotVerified

	LabelAccepted = audit.LabelAccepted
	LabelDeclined = audit.LabelDeclined
	LabelExpired  = audit.LabelExpired
	LabelWon      = audit.LabelWon
	LabelLost     = audit.LabelLost

	PresetBalanced = match.PresetBalanced
)

// Sentinel errors surfaced by the engine. ErrNotFound and ErrOfferConflict are
// also the sentinels a custom Store implementation returns: not-found lookups
// and conditional transitions that matched no row.
var (
	ErrInvalidInput    = model.ErrInvalidInput
	ErrOfferNotPending = offers.ErrOfferNotPending
	ErrForbidden       = offers.ErrForbidden
	ErrOfferConflict   = offers.ErrOfferConflict
	ErrNotFound        = storage.ErrNotFound
	ErrWeightLoad      = match.ErrWeightLoad
)

// NewRedisCache adapts an existing go-redis client as the static feature cache.
func NewRedisCache(client *redis.Client) *RedisCache { return cache.NewRedis(client) }

// NewMemoryCache returns an in-process static feature cache.
func NewMemoryCache() *MemoryCache { return cache.NewMemory() }

// NewLogSink returns an audit sink writing one JSON record per line via slog.
func NewLogSink(logger *slog.Logger) *LogSink { return audit.NewLog(logger) }

// NewMemorySink returns an in-memory audit collector, for tests.
func NewMemorySink() *MemorySink { return audit.NewMemory() }
