package models

import "time"

// Article represents one ingested news item before structured extraction.
// Its identity key is the normalized URL; ContentHash suppresses duplicate
// content published under different URLs.
type Article struct {
	URL                string    `bson:"url" json:"url"`
	Source             string    `bson:"source" json:"source"`
	SourceType         string    `bson:"source_type" json:"source_type"`
	Title              string    `bson:"title" json:"title"`
	Date               string    `bson:"date" json:"date"`
	Content            string    `bson:"content" json:"content"`
	Category           string    `bson:"category,omitempty" json:"category,omitempty"`
	InsuranceRelevance float64   `bson:"insurance_relevance,omitempty" json:"insurance_relevance,omitempty"`
	ClimateRelevance   float64   `bson:"climate_relevance,omitempty" json:"climate_relevance,omitempty"`
	TotalRelevance     float64   `bson:"total_relevance,omitempty" json:"total_relevance,omitempty"`
	ContentHash        string    `bson:"content_hash,omitempty" json:"content_hash,omitempty"`
	Truncated          bool      `bson:"truncated,omitempty" json:"truncated,omitempty"`
	CreatedAt          time.Time `bson:"created_at" json:"created_at"`
}
