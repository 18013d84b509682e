// Package model provides data models for the PropIntel retrieval platform.
package model

// QueryType classifies a user query into a fixed set of intents.
type QueryType string

const (
	QueryTypeSpecialization QueryType = "specialization"
	QueryTypeContact        QueryType = "contact"
	QueryTypeLocation       QueryType = "location"
	QueryTypeAbout          QueryType = "about"
	QueryTypeTiming         QueryType = "timing"
	QueryTypeSocial         QueryType = "social"
	QueryTypeGeneric        QueryType = "generic"
)

// Well-known section names used by the knowledge base.
const (
	SectionCompanyInfo    = "company_info"
	SectionContactDetails = "contact_details"
	SectionSocialMedia    = "social_media"
)

// Query is the processed form of a raw user query.
// Original is preserved verbatim; matching happens on Cleaned.
type Query struct {
	Original         string    `json:"original"`
	Cleaned          string    `json:"cleaned"`
	Type             QueryType `json:"type"`
	Variants         []string  `json:"variants,omitempty"`
	Entities         []string  `json:"entities,omitempty"`
	SuggestedSection string    `json:"suggested_section,omitempty"`
}

// Chunk represents an indexed text fragment in the knowledge base.
type Chunk struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Section  string            `json:"section,omitempty"`
	Source   string            `json:"source,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Candidate is a chunk returned by the vector store before ranking.
// Score is the normalized similarity in [0, 1]; Distance is the raw
// store distance it was derived from. KeywordScore and Variant are
// only set on the retrieval paths that produce them.
type Candidate struct {
	Chunk    Chunk   `json:"chunk"`
	Score    float64 `json:"score"`
	Distance float64 `json:"distance"`
	// KeywordScore is the keyword-overlap sub-score from hybrid retrieval.
	KeywordScore float64 `json:"keyword_score,omitempty"`
	// Variant is the query variant that produced this candidate.
	Variant string `json:"variant,omitempty"`
}

// RankedResult is a candidate with its composite ranking score.
// Rank is 1-based and assigned after sorting.
type RankedResult struct {
	Chunk      Chunk              `json:"chunk"`
	Score      float64            `json:"score"`
	Rank       int                `json:"rank"`
	Components map[string]float64 `json:"components,omitempty"`
}

// ValidationReport is the outcome of validating an answer against
// retrieval evidence. Validation failure is carried here, not as an error.
type ValidationReport struct {
	Valid              bool     `json:"valid"`
	Confidence         float64  `json:"confidence"`
	QualityScore       float64  `json:"quality_score"`
	HallucinationScore float64  `json:"hallucination_score"`
	FactScore          float64  `json:"fact_score"`
	RelevanceScore     float64  `json:"relevance_score"`
	CompletenessScore  float64  `json:"completeness_score"`
	UncertaintyScore   float64  `json:"uncertainty_score"`
	Issues             []string `json:"issues,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
}
