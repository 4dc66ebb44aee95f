// Package relevance scores collected articles along the insurance and the
// climate axis and decides whether an article is worth extracting at all.
// Scoring is a pure function of the article, so re-runs over the same corpus
// always produce the same scores.
package relevance

import (
	"math"
	"strings"

	"ClimateIntel/internal/models"
)

var insuranceKeywords = []string{
	"insurance", "reinsurance", "underwriting", "premium", "policy", "claim",
	"liability", "risk assessment", "insurtech", "property insurance",
	"casualty insurance", "life insurance", "health insurance", "chubb",
	"insurer", "underwriter", "coverage", "deductible", "policyholder",
	"indemnity", "actuarial", "loss ratio", "combined ratio", "catastrophe bond",
	"parametric", "captive insurance", "commercial lines", "personal lines",
}

var climateKeywords = []string{
	"climate", "flood", "hurricane", "wildfire", "storm", "drought", "sea level",
	"extreme weather", "natural disaster", "catastrophe", "tnfd", "esg",
	"sustainability", "carbon", "emissions", "global warming", "climate change",
	"biodiversity", "nature-related", "disclosure", "resilience", "adaptation",
	"mitigation", "physical risk", "transition risk", "tcfd", "issb", "net-zero",
	"decarbonization", "climate-resilient", "nature loss", "nature positive",
}

// sourceWeights boosts hit counts for feeds whose editorial focus already
// guarantees relevance.
var sourceWeights = map[string]float64{
	"TNFD":                        2.0,
	"UNFCCC":                      1.8,
	"Insurance Business Magazine": 1.5,
	"Insurance Journal":           1.5,
	"WEADAPT":                     1.3,
	"CLIMATE CHANGE NEWS":         1.3,
	"UNEPFI":                      1.4,
	"GENEVA ASSOCIATION":          1.5,
}

// Sources so specialized on one axis that the other axis needs no keyword
// hits at all.
var (
	noInsuranceMinimum = map[string]bool{"TNFD": true, "UNFCCC": true, "UNEPFI": true}
	noClimateMinimum   = map[string]bool{"Insurance Business Magazine": true, "Insurance Journal": true}
)

const categoryBonus = 2.0

// Score computes both axis scores for an article and reports whether it
// clears the admission thresholds. The article is not modified; callers
// persist the scores on accepted articles.
//
// Each axis counts distinct keyword hits over the lowercased title+content,
// multiplies by the source weight, rounds to one decimal, then adds a flat
// bonus when the article's category names the axis. An article is accepted
// only when BOTH weighted scores strictly exceed their per-source minima.
func Score(article *models.Article) (insurance, climate float64, ok bool) {
	combined := strings.ToLower(article.Title + " " + article.Content)

	weight := 1.0
	if w, found := sourceWeights[article.Source]; found {
		weight = w
	}

	insurance = round1(float64(countHits(combined, insuranceKeywords)) * weight)
	climate = round1(float64(countHits(combined, climateKeywords)) * weight)

	category := strings.ToLower(article.Category)
	if containsAny(category, "insurance", "risk", "finance") {
		insurance += categoryBonus
	}
	if containsAny(category, "climate", "environment", "sustainability") {
		climate += categoryBonus
	}

	insuranceMin, climateMin := 1.0, 1.0
	if noInsuranceMinimum[article.Source] {
		insuranceMin = 0
	}
	if noClimateMinimum[article.Source] {
		climateMin = 0
	}

	ok = insurance > insuranceMin && climate > climateMin
	return insurance, climate, ok
}

func countHits(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
