package models

import "time"

// Report is an executive summary synthesized from a budget-bounded set of
// Insights. All narrative fields are plain text; the synthesizer flattens
// any structured values before a Report is constructed. Reports are
// immutable once stored; every run inserts a new row.
type Report struct {
	ID                   string    `bson:"_id" json:"id"`
	ExecutiveSummary     string    `bson:"executive_summary" json:"executive_summary"`
	KeyDevelopments      string    `bson:"key_developments" json:"key_developments"`
	DomainImpacts        string    `bson:"insurance_domain_impacts" json:"insurance_domain_impacts"`
	RegionalInsights     string    `bson:"regional_insights" json:"regional_insights"`
	RegulatoryLandscape  string    `bson:"regulatory_landscape" json:"regulatory_landscape"`
	BusinessImplications string    `bson:"business_implications" json:"business_implications"`
	RecommendedActions   string    `bson:"recommended_actions" json:"recommended_actions"`
	GeneratedDate        string    `bson:"generated_date" json:"generated_date"`
	Sources              []string  `bson:"sources" json:"sources"`
	ArticleCount         int       `bson:"article_count" json:"article_count"`
	Degraded             bool      `bson:"degraded,omitempty" json:"degraded,omitempty"`
	Error                string    `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt            time.Time `bson:"created_at" json:"created_at"`
}
