package models

import "time"

// Confidence levels an extraction can carry.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// Insight is the structured, domain-tagged extraction of one Article.
// Exactly one Insight may exist per source article URL; re-running the
// pipeline skips URLs that already have one.
type Insight struct {
	KeyEvent             string    `bson:"key_event" json:"key_event"`
	InsuranceDomains     []string  `bson:"insurance_domains" json:"insurance_domains"`
	RiskFactors          []string  `bson:"risk_factors" json:"risk_factors"`
	BusinessImplications string    `bson:"business_implications" json:"business_implications"`
	Timeframe            string    `bson:"timeframe" json:"timeframe"`
	Confidence           string    `bson:"confidence" json:"confidence"`
	GeographicFocus      string    `bson:"geographic_focus,omitempty" json:"geographic_focus,omitempty"`
	RegulatoryImpact     string    `bson:"regulatory_impact,omitempty" json:"regulatory_impact,omitempty"`
	ArticleTitle         string    `bson:"article_title" json:"article_title"`
	ArticleURL           string    `bson:"article_url" json:"article_url"`
	Source               string    `bson:"source" json:"source"`
	Date                 string    `bson:"date" json:"date"`
	CreatedAt            time.Time `bson:"created_at" json:"created_at"`
}

// ConfidenceRank maps a confidence label onto an ordering usable for
// sorting; unknown labels rank below Low.
func ConfidenceRank(confidence string) int {
	switch confidence {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}
