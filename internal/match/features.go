// Package match implements the matchmaking core: the feature calculator,
// the weight resolver, and the ranker with its fairness transforms.
package match

import (
	"math"
	"strings"

	"github.com/NicholasJacob1990/litgo/internal/model"
)

const (
	// DefaultGeoRadiusKM is the distance at which the geographic feature
	// decays to zero.
	DefaultGeoRadiusKM = 50.0

	earthRadiusKM = 6371.0

	// lossOutcomeWeight discounts similarity to historical cases that were lost.
	lossOutcomeWeight = 0.8

	// Bayesian smoothing priors for the success-rate feature.
	successAlpha = 1.0
	successBeta  = 1.0

	// Review trust thresholds: minimum stripped length and type-token ratio
	// for a review text to count, and the number of trusted reviews that
	// saturates trust.
	reviewMinLen        = 20
	reviewMinTTR        = 0.2
	reviewTrustSaturate = 5.0
)

// Calculator derives the eight normalized features from one (case, lawyer)
// pair. Stateless and deterministic: no time-dependent or random terms.
type Calculator struct {
	geoRadiusKM float64
}

// NewCalculator creates a feature calculator. A non-positive radius falls
// back to DefaultGeoRadiusKM.
func NewCalculator(geoRadiusKM float64) *Calculator {
	if geoRadiusKM <= 0 {
		geoRadiusKM = DefaultGeoRadiusKM
	}
	return &Calculator{geoRadiusKM: geoRadiusKM}
}

// All computes the full feature vector.
func (fc *Calculator) All(cs *model.Case, lw *model.Lawyer) model.FeatureVector {
	return model.FeatureVector{
		A: fc.AreaMatch(cs, lw),
		S: fc.Similarity(cs, lw),
		T: fc.SuccessRate(cs, lw),
		G: fc.GeoScore(cs, lw),
		Q: fc.Qualification(cs, lw),
		U: fc.Urgency(cs, lw),
		R: fc.Review(lw),
		C: fc.SoftSkill(lw),
	}
}

// CaseDependent computes only the features that must be recomputed per
// request (A, S, U, C), for merging with a cached static subset.
func (fc *Calculator) CaseDependent(cs *model.Case, lw *model.Lawyer) (a, s, u, c float64) {
	return fc.AreaMatch(cs, lw), fc.Similarity(cs, lw), fc.Urgency(cs, lw), fc.SoftSkill(lw)
}

// AreaMatch is 1 when the case area is among the lawyer's expertise tags.
func (fc *Calculator) AreaMatch(cs *model.Case, lw *model.Lawyer) float64 {
	for _, tag := range lw.TagsExpertise {
		if tag == cs.Area {
			return 1
		}
	}
	return 0
}

// Similarity is the mean cosine similarity between the case summary embedding
// and the lawyer's historical case embeddings. When outcomes are aligned and
// non-empty, wins weigh 1.0 and losses 0.8. No history yields 0.
func (fc *Calculator) Similarity(cs *model.Case, lw *model.Lawyer) float64 {
	if len(lw.HistoricalEmbeddings) == 0 {
		return 0
	}
	caseEmb := cs.SummaryEmbedding.Slice()

	sims := make([]float64, len(lw.HistoricalEmbeddings))
	for i, emb := range lw.HistoricalEmbeddings {
		sims[i] = cosineSimilarity(caseEmb, emb.Slice())
	}

	if len(lw.CaseOutcomes) == len(sims) && len(lw.CaseOutcomes) > 0 {
		var num, den float64
		for i, sim := range sims {
			w := lossOutcomeWeight
			if lw.CaseOutcomes[i] {
				w = 1.0
			}
			num += w * sim
			den += w
		}
		return clip01(num / den)
	}

	var sum float64
	for _, sim := range sims {
		sum += sim
	}
	return clip01(sum / float64(len(sims)))
}

// SuccessRate is the Bayesian-smoothed success rate scaled by the
// verification-status multiplier. The granular area/subarea rate is preferred
// over the overall rate when present.
func (fc *Calculator) SuccessRate(cs *model.Case, lw *model.Lawyer) float64 {
	var mult float64
	switch lw.KPI.SuccessStatus {
	case model.StatusVerified:
		mult = 1.0
	case model.StatusPartial:
		mult = 0.4
	default:
		mult = 0.0
	}

	n := float64(lw.KPI.Cases30d)
	if n == 0 {
		n = 1
	}

	rate := lw.KPI.SuccessRate
	if granular, ok := lw.KPISubarea[cs.Area+"/"+cs.Subarea]; ok {
		rate = granular
	}

	wins := math.Round(rate * n)
	base := (wins + successAlpha) / (n + successAlpha + successBeta)
	return clip01(base * mult)
}

// GeoScore decays linearly with haversine distance, reaching zero at the
// configured radius.
func (fc *Calculator) GeoScore(cs *model.Case, lw *model.Lawyer) float64 {
	d := haversineKM(cs.Lat, cs.Lon, lw.Lat, lw.Lon)
	return clip01(1 - d/fc.geoRadiusKM)
}

// Qualification blends experience, matching-area titles, publications, and
// CV quality.
func (fc *Calculator) Qualification(cs *model.Case, lw *model.Lawyer) float64 {
	cv := lw.Curriculo

	exp := math.Min(1, float64(cv.AnosExperiencia)/25)

	var lato, mestrado, doutorado float64
	caseArea := strings.ToLower(cs.Area)
	for _, pg := range cv.PosGraduacoes {
		if !strings.Contains(strings.ToLower(pg.Area), caseArea) {
			continue
		}
		switch pg.Level {
		case model.LevelLato:
			lato++
		case model.LevelMestrado:
			mestrado++
		case model.LevelDoutorado:
			doutorado++
		}
	}
	titles := 0.1*math.Min(lato, 2)/2 + 0.2*math.Min(mestrado, 2)/2 + 0.3*math.Min(doutorado, 2)/2

	pubs := math.Min(1, math.Log1p(float64(cv.NumPublicacoes))/math.Log1p(10))

	base := 0.4*exp + 0.4*titles + 0.2*pubs
	return clip01(0.8*base + 0.2*lw.KPI.CVScore)
}

// Urgency measures whether the lawyer's response time fits the case deadline.
// A case without an urgency signal scores 0.
func (fc *Calculator) Urgency(cs *model.Case, lw *model.Lawyer) float64 {
	if cs.UrgencyH <= 0 {
		return 0
	}
	return clip01(1 - lw.KPI.TempoRespostaH/float64(cs.UrgencyH))
}

// Review is the trust-weighted average rating. Trust grows with the number of
// reviews that pass the anti-spam filter and saturates at five.
func (fc *Calculator) Review(lw *model.Lawyer) float64 {
	var trusted float64
	for _, text := range lw.ReviewTexts {
		if trustedReview(text) {
			trusted++
		}
	}
	trust := math.Min(1, trusted/reviewTrustSaturate)
	return clip01((lw.KPI.AvaliacaoMedia / 5) * trust)
}

// SoftSkill clips the soft-skill KPI into range.
func (fc *Calculator) SoftSkill(lw *model.Lawyer) float64 {
	return clip01(lw.KPISoftskill)
}

// trustedReview applies the anti-spam filter: stripped length of at least 20
// and a type-token ratio above 0.2.
func trustedReview(text string) bool {
	if len(strings.TrimSpace(text)) < reviewMinLen {
		return false
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	return float64(len(unique))/float64(len(words)) > reviewMinTTR
}

// haversineKM returns the great-circle distance between two coordinates.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		da, db := float64(a[i]), float64(b[i])
		dot += da * db
		normA += da * da
		normB += db * db
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
