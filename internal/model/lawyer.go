package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// SuccessStatus is the external verification state of a lawyer's reported
// success rate: verified, partially verified, or not verified.
type SuccessStatus string

const (
	StatusVerified    SuccessStatus = "V"
	StatusPartial     SuccessStatus = "P"
	StatusNotVerified SuccessStatus = "N"
)

// PostGradLevel enumerates recognized post-graduate degree levels.
type PostGradLevel string

const (
	LevelLato      PostGradLevel = "lato"
	LevelMestrado  PostGradLevel = "mestrado"
	LevelDoutorado PostGradLevel = "doutorado"
)

// PostGrad is one post-graduate title on a lawyer's curriculum.
type PostGrad struct {
	Level PostGradLevel `json:"nivel"`
	Area  string        `json:"area"`
}

// Curriculo is the structured curriculum record for a lawyer.
type Curriculo struct {
	AnosExperiencia int        `json:"anos_experiencia"`
	PosGraduacoes   []PostGrad `json:"pos_graduacoes,omitempty"`
	NumPublicacoes  int        `json:"num_publicacoes"`
}

// KPI holds the synced performance indicators for a lawyer.
type KPI struct {
	SuccessRate       float64       `json:"success_rate"`       // [0,1]
	Cases30d          int           `json:"cases_30d"`          // >= 0
	CapacidadeMensal  int           `json:"capacidade_mensal"`  // > 0
	AvaliacaoMedia    float64       `json:"avaliacao_media"`    // [0,5]
	TempoRespostaH    float64       `json:"tempo_resposta_h"`   // > 0
	CVScore           float64       `json:"cv_score"`           // [0,1]
	SuccessStatus     SuccessStatus `json:"success_status"`
}

// Diversity is self-declared demographic data, present only with consent.
// A nil Diversity (or nil Gender) places the lawyer in the unknown group.
type Diversity struct {
	Gender    *string    `json:"gender,omitempty"`
	Ethnicity *string    `json:"ethnicity,omitempty"`
	PCD       *bool      `json:"pcd,omitempty"`
	ConsentTS *time.Time `json:"consent_ts,omitempty"`
}

// Lawyer is a candidate for matching. The ranker treats it as a read-only
// snapshot for the duration of a single rank call; only external writers
// (KPI sync, profile edits) and the offer manager mutate the persisted record.
type Lawyer struct {
	ID            string   `json:"id"`
	Name          string   `json:"nome"`
	TagsExpertise []string `json:"tags_expertise"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`

	Curriculo    Curriculo          `json:"curriculo"`
	KPI          KPI                `json:"kpi"`
	KPISubarea   map[string]float64 `json:"kpi_subarea,omitempty"` // "area/subarea" -> success rate
	KPISoftskill float64            `json:"kpi_softskill"`

	// CaseOutcomes is aligned index-for-index with HistoricalEmbeddings.
	// An empty CaseOutcomes triggers unweighted similarity.
	CaseOutcomes         []bool            `json:"case_outcomes,omitempty"`
	HistoricalEmbeddings []pgvector.Vector `json:"-"`

	ReviewTexts []string   `json:"review_texts,omitempty"`
	Diversity   *Diversity `json:"diversity,omitempty"`

	// LastOfferedAt is written by the offer manager after a rank emits an
	// offer. Used by the ranker only as a fairness-rotation tiebreak.
	LastOfferedAt time.Time `json:"last_offered_at"`
}

// DiversityGroup returns the diversity group key used for representation
// counting: the declared gender, or "UNK" when unknown.
func (l *Lawyer) DiversityGroup() string {
	if l.Diversity != nil && l.Diversity.Gender != nil && *l.Diversity.Gender != "" {
		return *l.Diversity.Gender
	}
	return "UNK"
}
