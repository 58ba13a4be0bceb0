package match

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"

	"github.com/NicholasJacob1990/litgo/internal/model"
)

func vec(vals ...float32) pgvector.Vector {
	return pgvector.NewVector(vals)
}

func baseCase() *model.Case {
	return &model.Case{
		ID:               "case_1",
		ClientID:         "client_1",
		Area:             "trabalhista",
		Subarea:          "rescisao",
		UrgencyH:         48,
		Lat:              -23.55,
		Lon:              -46.63,
		Complexity:       model.ComplexityMedium,
		SummaryEmbedding: vec(1, 0, 0),
	}
}

func baseLawyer() *model.Lawyer {
	return &model.Lawyer{
		ID:            "adv_1",
		Name:          "Adv One",
		TagsExpertise: []string{"trabalhista"},
		Lat:           -23.55,
		Lon:           -46.63,
		Curriculo: model.Curriculo{
			AnosExperiencia: 10,
			NumPublicacoes:  2,
		},
		KPI: model.KPI{
			SuccessRate:      0.8,
			Cases30d:         10,
			CapacidadeMensal: 20,
			AvaliacaoMedia:   4.5,
			TempoRespostaH:   12,
			CVScore:          0.7,
			SuccessStatus:    model.StatusVerified,
		},
		KPISoftskill: 0.6,
	}
}

func TestAreaMatch(t *testing.T) {
	calc := NewCalculator(0)
	cs, lw := baseCase(), baseLawyer()

	assert.Equal(t, 1.0, calc.AreaMatch(cs, lw))

	lw.TagsExpertise = []string{"civil"}
	assert.Equal(t, 0.0, calc.AreaMatch(cs, lw))
}

func TestSimilarityNoHistory(t *testing.T) {
	calc := NewCalculator(0)
	assert.Equal(t, 0.0, calc.Similarity(baseCase(), baseLawyer()))
}

func TestSimilarityOutcomeWeighted(t *testing.T) {
	calc := NewCalculator(0)
	cs := baseCase()
	lw := baseLawyer()

	// One identical case won, one orthogonal case lost.
	lw.HistoricalEmbeddings = []pgvector.Vector{vec(1, 0, 0), vec(0, 1, 0)}
	lw.CaseOutcomes = []bool{true, false}

	// (1.0*1 + 0.8*0) / (1.0 + 0.8)
	assert.InDelta(t, 1.0/1.8, calc.Similarity(cs, lw), 1e-9)
}

func TestSimilarityUnweightedWhenOutcomesMisaligned(t *testing.T) {
	calc := NewCalculator(0)
	cs := baseCase()
	lw := baseLawyer()
	lw.HistoricalEmbeddings = []pgvector.Vector{vec(1, 0, 0), vec(0, 1, 0)}
	lw.CaseOutcomes = []bool{true} // misaligned, fall back to plain mean

	assert.InDelta(t, 0.5, calc.Similarity(cs, lw), 1e-9)
}

func TestSuccessRateSmoothing(t *testing.T) {
	calc := NewCalculator(0)
	cs := baseCase()
	lw := baseLawyer()
	lw.KPI.SuccessRate = 0.8
	lw.KPI.Cases30d = 10

	// wins = round(0.8*10) = 8; (8+1)/(10+2) = 0.75, verified multiplier 1.
	assert.InDelta(t, 0.75, calc.SuccessRate(cs, lw), 1e-9)
}

func TestSuccessRateStatusMultiplier(t *testing.T) {
	calc := NewCalculator(0)
	cs := baseCase()

	lw := baseLawyer()
	lw.KPI.SuccessStatus = model.StatusPartial
	assert.InDelta(t, 0.75*0.4, calc.SuccessRate(cs, lw), 1e-9)

	lw.KPI.SuccessStatus = model.StatusNotVerified
	assert.Equal(t, 0.0, calc.SuccessRate(cs, lw))
}

func TestSuccessRateZeroCasesUsesPrior(t *testing.T) {
	calc := NewCalculator(0)
	cs := baseCase()
	lw := baseLawyer()
	lw.KPI.Cases30d = 0
	lw.KPI.SuccessRate = 0

	// n floors at 1: wins = 0, (0+1)/(1+2) = 1/3.
	assert.InDelta(t, 1.0/3.0, calc.SuccessRate(cs, lw), 1e-9)
}

func TestSuccessRateGranularSubarea(t *testing.T) {
	calc := NewCalculator(0)
	cs := baseCase()
	lw := baseLawyer()
	lw.KPISubarea = map[string]float64{"trabalhista/rescisao": 1.0}
	lw.KPI.Cases30d = 10

	// wins = round(1.0*10) = 10; (10+1)/(10+2).
	assert.InDelta(t, 11.0/12.0, calc.SuccessRate(cs, lw), 1e-9)
}

func TestGeoScore(t *testing.T) {
	calc := NewCalculator(50)
	cs := baseCase()

	lw := baseLawyer() // same coordinates
	assert.InDelta(t, 1.0, calc.GeoScore(cs, lw), 1e-9)

	// Roughly 111 km north, beyond the radius.
	lw.Lat = cs.Lat + 1
	assert.Equal(t, 0.0, calc.GeoScore(cs, lw))
}

func TestQualificationTitlesMatchArea(t *testing.T) {
	calc := NewCalculator(0)
	cs := baseCase()
	lw := baseLawyer()
	lw.Curriculo = model.Curriculo{
		AnosExperiencia: 25,
		NumPublicacoes:  10,
		PosGraduacoes: []model.PostGrad{
			{Level: model.LevelDoutorado, Area: "Direito Trabalhista"},
			{Level: model.LevelMestrado, Area: "Direito Civil"}, // wrong area, ignored
		},
	}
	lw.KPI.CVScore = 1.0

	exp := 1.0
	titles := 0.3 * 1 / 2 // one matching doutorado
	pubs := 1.0
	base := 0.4*exp + 0.4*titles + 0.2*pubs
	want := 0.8*base + 0.2*1.0
	assert.InDelta(t, want, calc.Qualification(cs, lw), 1e-9)
}

func TestUrgency(t *testing.T) {
	calc := NewCalculator(0)
	cs := baseCase()
	lw := baseLawyer()

	cs.UrgencyH = 48
	lw.KPI.TempoRespostaH = 12
	assert.InDelta(t, 0.75, calc.Urgency(cs, lw), 1e-9)

	// No urgency signal scores zero.
	cs.UrgencyH = 0
	assert.Equal(t, 0.0, calc.Urgency(cs, lw))

	// Response slower than the deadline clips at zero.
	cs.UrgencyH = 10
	lw.KPI.TempoRespostaH = 30
	assert.Equal(t, 0.0, calc.Urgency(cs, lw))
}

func TestReviewTrust(t *testing.T) {
	calc := NewCalculator(0)
	lw := baseLawyer()
	lw.KPI.AvaliacaoMedia = 5

	// No reviews: zero trust.
	assert.Equal(t, 0.0, calc.Review(lw))

	// Five trusted reviews saturate trust.
	for i := 0; i < 5; i++ {
		lw.ReviewTexts = append(lw.ReviewTexts, "excelente profissional, resolveu meu caso com rapidez")
	}
	assert.InDelta(t, 1.0, calc.Review(lw), 1e-9)
}

func TestReviewSpamFiltered(t *testing.T) {
	calc := NewCalculator(0)
	lw := baseLawyer()
	lw.KPI.AvaliacaoMedia = 5
	lw.ReviewTexts = []string{
		"bom",    // too short
		"ok ok ok ok ok ok ok ok ok ok ok ok ok ok ok", // low type-token ratio
		"atendimento cordial e eficiente do inicio ao fim", // trusted
	}
	// One trusted review: trust = 1/5.
	assert.InDelta(t, 0.2, calc.Review(lw), 1e-9)
}

func TestSoftSkillClipped(t *testing.T) {
	calc := NewCalculator(0)
	lw := baseLawyer()
	lw.KPISoftskill = 1.7
	assert.Equal(t, 1.0, calc.SoftSkill(lw))
	lw.KPISoftskill = -0.3
	assert.Equal(t, 0.0, calc.SoftSkill(lw))
}

// TestFeatureRangeProperty fuzzes inputs and asserts every feature stays in [0,1].
func TestFeatureRangeProperty(t *testing.T) {
	calc := NewCalculator(50)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		cs := &model.Case{
			ID:               "case_p",
			Area:             []string{"trabalhista", "civil", "penal"}[rng.Intn(3)],
			Subarea:          "sub",
			UrgencyH:         rng.Intn(100),
			Lat:              rng.Float64()*180 - 90,
			Lon:              rng.Float64()*360 - 180,
			Complexity:       model.ComplexityMedium,
			SummaryEmbedding: vec(rng.Float32(), rng.Float32(), rng.Float32()),
		}
		lw := &model.Lawyer{
			ID:            "adv_p",
			TagsExpertise: []string{"trabalhista"},
			Lat:           rng.Float64()*180 - 90,
			Lon:           rng.Float64()*360 - 180,
			Curriculo: model.Curriculo{
				AnosExperiencia: rng.Intn(50),
				NumPublicacoes:  rng.Intn(40),
			},
			KPI: model.KPI{
				SuccessRate:      rng.Float64(),
				Cases30d:         rng.Intn(40),
				CapacidadeMensal: 1 + rng.Intn(40),
				AvaliacaoMedia:   rng.Float64() * 5,
				TempoRespostaH:   rng.Float64() * 72,
				CVScore:          rng.Float64(),
				SuccessStatus:    []model.SuccessStatus{model.StatusVerified, model.StatusPartial, model.StatusNotVerified}[rng.Intn(3)],
			},
			KPISoftskill: rng.Float64()*2 - 0.5,
			HistoricalEmbeddings: []pgvector.Vector{
				vec(rng.Float32(), rng.Float32(), rng.Float32()),
			},
			CaseOutcomes: []bool{rng.Intn(2) == 0},
		}

		f := calc.All(cs, lw)
		for k, v := range f.Map() {
			assert.GreaterOrEqualf(t, v, 0.0, "feature %s below range", k)
			assert.LessOrEqualf(t, v, 1.0, "feature %s above range", k)
		}
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Sao Paulo to Rio de Janeiro, about 360 km.
	d := haversineKM(-23.55, -46.63, -22.91, -43.17)
	assert.InDelta(t, 360, d, 10)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}

func TestCaseDependentMergeEqualsAll(t *testing.T) {
	calc := NewCalculator(50)
	cs, lw := baseCase(), baseLawyer()
	lw.HistoricalEmbeddings = []pgvector.Vector{vec(1, 0, 0)}

	full := calc.All(cs, lw)
	a, s, u, c := calc.CaseDependent(cs, lw)
	merged := full.Static().Merge(a, s, u, c)
	assert.Equal(t, full, merged)
}

func TestRawScoreIsDeltaSum(t *testing.T) {
	w := DefaultWeights
	f := model.FeatureVector{A: 1, S: 0.5, T: 0.75, G: 1, Q: 0.5, U: 0.25, R: 0.8, C: 0.6}
	d := w.Delta(f)

	var want float64
	for k, fv := range f.Map() {
		want += fv * w.Map()[k]
	}
	assert.InDelta(t, want, d.RawScore(), 1e-12)
	assert.False(t, math.IsNaN(d.RawScore()))
}
