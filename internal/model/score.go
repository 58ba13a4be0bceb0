package model

// Feature keys, in canonical emission order.
const (
	FeatureArea          = "A" // area match
	FeatureSimilarity    = "S" // case similarity
	FeatureSuccess       = "T" // success rate
	FeatureGeo           = "G" // geographic proximity
	FeatureQualification = "Q" // qualification
	FeatureUrgency       = "U" // urgency capacity
	FeatureReview        = "R" // review score
	FeatureSoftSkill     = "C" // soft skill
)

// FeatureKeys lists all feature keys in canonical order.
var FeatureKeys = []string{
	FeatureArea, FeatureSimilarity, FeatureSuccess, FeatureGeo,
	FeatureQualification, FeatureUrgency, FeatureReview, FeatureSoftSkill,
}

// FeatureVector holds the eight normalized match features, each in [0,1].
type FeatureVector struct {
	A float64 `json:"A"`
	S float64 `json:"S"`
	T float64 `json:"T"`
	G float64 `json:"G"`
	Q float64 `json:"Q"`
	U float64 `json:"U"`
	R float64 `json:"R"`
	C float64 `json:"C"`
}

// Map returns the vector as a key -> value map in the canonical key set.
func (f FeatureVector) Map() map[string]float64 {
	return map[string]float64{
		FeatureArea: f.A, FeatureSimilarity: f.S, FeatureSuccess: f.T,
		FeatureGeo: f.G, FeatureQualification: f.Q, FeatureUrgency: f.U,
		FeatureReview: f.R, FeatureSoftSkill: f.C,
	}
}

// StaticFeatures is the case-independent subset {T,G,Q,R} memoized by the
// static feature cache. T is included despite its area dependence — a
// deliberate staleness trade-off (see the cache package).
type StaticFeatures struct {
	T float64 `json:"T"`
	G float64 `json:"G"`
	Q float64 `json:"Q"`
	R float64 `json:"R"`
}

// Merge returns a full feature vector combining the cached static subset
// with freshly computed case-dependent features.
func (s StaticFeatures) Merge(a, sim, u, c float64) FeatureVector {
	return FeatureVector{A: a, S: sim, T: s.T, G: s.G, Q: s.Q, U: u, R: s.R, C: c}
}

// Static extracts the cacheable subset from a full feature vector.
func (f FeatureVector) Static() StaticFeatures {
	return StaticFeatures{T: f.T, G: f.G, Q: f.Q, R: f.R}
}

// Weights is a weight vector over the eight features. After resolution all
// components are non-negative and sum to exactly 1.
type Weights struct {
	A float64 `json:"A"`
	S float64 `json:"S"`
	T float64 `json:"T"`
	G float64 `json:"G"`
	Q float64 `json:"Q"`
	U float64 `json:"U"`
	R float64 `json:"R"`
	C float64 `json:"C"`
}

// Sum returns the total of all components.
func (w Weights) Sum() float64 {
	return w.A + w.S + w.T + w.G + w.Q + w.U + w.R + w.C
}

// Map returns the weights as a key -> value map in the canonical key set.
func (w Weights) Map() map[string]float64 {
	return map[string]float64{
		FeatureArea: w.A, FeatureSimilarity: w.S, FeatureSuccess: w.T,
		FeatureGeo: w.G, FeatureQualification: w.Q, FeatureUrgency: w.U,
		FeatureReview: w.R, FeatureSoftSkill: w.C,
	}
}

// WeightsFromMap builds a weight vector from a keyed record. Unknown keys are
// ignored; missing keys are zero.
func WeightsFromMap(m map[string]float64) Weights {
	return Weights{
		A: m[FeatureArea], S: m[FeatureSimilarity], T: m[FeatureSuccess],
		G: m[FeatureGeo], Q: m[FeatureQualification], U: m[FeatureUrgency],
		R: m[FeatureReview], C: m[FeatureSoftSkill],
	}
}

// Delta returns the per-feature contribution weights[k]*features[k].
func (w Weights) Delta(f FeatureVector) FeatureVector {
	return FeatureVector{
		A: w.A * f.A, S: w.S * f.S, T: w.T * f.T, G: w.G * f.G,
		Q: w.Q * f.Q, U: w.U * f.U, R: w.R * f.R, C: w.C * f.C,
	}
}

// RawScore sums the components; applied to a Delta vector it yields the
// weighted raw score.
func (f FeatureVector) RawScore() float64 {
	return f.A + f.S + f.T + f.G + f.Q + f.U + f.R + f.C
}

// ScoreBreakdown is the full, auditable explanation of one lawyer's score
// within a single ranking.
type ScoreBreakdown struct {
	Features       FeatureVector `json:"features"`
	Delta          FeatureVector `json:"delta"`
	Raw            float64       `json:"raw"`
	Equity         float64       `json:"equity"`
	DiversityBoost float64       `json:"diversity_boost"`
	Fair           float64       `json:"fair"`
	WeightsUsed    Weights       `json:"weights_used"`
	Preset         string        `json:"preset"`
	Complexity     Complexity    `json:"complexity"`
}

// Recommendation is one entry of a ranking result: a lawyer reference plus
// its score breakdown. The ranker never mutates the input lawyer; scores are
// attached here instead.
type Recommendation struct {
	LawyerID      string         `json:"lawyer_id"`
	Breakdown     ScoreBreakdown `json:"breakdown"`
	SuccessStatus SuccessStatus  `json:"success_status"`
}
