// Package extractor turns one relevant article into one structured insight by
// prompting an LLM and hardening the result: the model's JSON is recovered
// from whatever wrapping it arrives in, missing fields are defaulted, and
// loosely typed fields are coerced, so downstream stages never see a
// half-formed insight.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ClimateIntel/internal/llm"
	"ClimateIntel/internal/llmjson"
	"ClimateIntel/internal/models"
	"ClimateIntel/pkg/logger"
)

// ErrContentTooShort marks articles whose body is too thin to analyze.
// Callers skip these; they are not failures of the run.
var ErrContentTooShort = errors.New("extractor: article content too short")

const minContentLength = 100

const systemPrompt = `You are an AI specialized in insurance and climate risk analysis.
Extract structured information from this news article relevant to insurance companies like Chubb.
Focus on implications for:
1. Risk assessment and pricing
2. Policy coverage considerations
3. Regulatory changes
4. Business opportunities
5. Potential losses or exposures

Pay special attention to specific climate risks (e.g., floods, wildfires, storms), regulatory
frameworks (e.g., TNFD, TCFD, ISSB), and insurance products or processes mentioned.

You must return a valid JSON format with the requested fields. Do not include any explanation
or text outside of the JSON structure.`

// sourceContexts primes the model with what each feed actually covers.
var sourceContexts = map[string]string{
	"TNFD": "The Taskforce on Nature-related Financial Disclosures (TNFD) focuses on organizations " +
		"reporting and managing nature-related risks, including climate change impacts.",
	"UNFCCC": "The United Nations Framework Convention on Climate Change (UNFCCC) is an international " +
		"treaty addressing climate change, with implications for insurance risk assessment.",
	"Climate Home News":            "Climate Home News covers climate change policy and impacts that may affect insurance risks.",
	"Insurance Business Magazine":  "Insurance Business Magazine provides industry news relevant to insurance practices and risk.",
	"Insurance Journal":            "Insurance Journal reports on the property/casualty insurance industry including climate risks.",
	"Climate Adaptation Platform":  "The Climate Adaptation Platform shares adaptation strategies relevant to insurance risk.",
	"UNEP Finance Initiative":      "The UNEP Finance Initiative works with financial institutions on sustainability issues.",
	"Climate Risk Forum":           "The Climate Risk Forum discusses climate risks relevant to financial services.",
}

// defaultDomains picks a fallback insurance domain set when the model names
// none. TNFD material implicitly spans property and casualty.
func defaultDomains(source string) []string {
	if source == "TNFD" {
		return []string{"property", "casualty"}
	}
	return []string{"property"}
}

// Extractor performs structured extraction against an LLM.
type Extractor struct {
	llm            llm.LLM
	contentCeiling int
	log            *logger.Logger
}

func New(client llm.LLM, contentCeiling int, log *logger.Logger) *Extractor {
	return &Extractor{llm: client, contentCeiling: contentCeiling, log: log}
}

// payload mirrors the fields requested from the model. Everything is `any`
// because models routinely return strings where lists were asked for and
// vice versa.
type payload struct {
	KeyEvent             any `json:"key_event"`
	InsuranceDomains     any `json:"insurance_domains"`
	RiskFactors          any `json:"risk_factors"`
	BusinessImplications any `json:"business_implications"`
	Timeframe            any `json:"timeframe"`
	Confidence           any `json:"confidence"`
	GeographicFocus      any `json:"geographic_focus"`
	RegulatoryImpact     any `json:"regulatory_impact"`
}

// Extract analyzes one article. It returns ErrContentTooShort for thin
// bodies and a parse/transport error when the model output is irrecoverable;
// in every successful case the insight has all fields populated.
func (e *Extractor) Extract(ctx context.Context, article *models.Article) (*models.Insight, error) {
	if len(article.Content) < minContentLength {
		return nil, ErrContentTooShort
	}

	raw, err := e.llm.Generate(ctx, systemPrompt, e.buildPrompt(article))
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", article.URL, err)
	}

	var p payload
	if err := llmjson.Unmarshal(raw, &p); err != nil {
		e.log.WithError(err).Warnf("unparseable model output for %s", article.URL)
		return nil, fmt.Errorf("extract %q: %w", article.URL, err)
	}

	insight := &models.Insight{
		KeyEvent:             toString(p.KeyEvent),
		InsuranceDomains:     normalizeDomains(toStringList(p.InsuranceDomains), article.Source),
		RiskFactors:          normalizeRiskFactors(p.RiskFactors),
		BusinessImplications: toString(p.BusinessImplications),
		Timeframe:            toString(p.Timeframe),
		Confidence:           normalizeConfidence(p.Confidence),
		GeographicFocus:      toString(p.GeographicFocus),
		RegulatoryImpact:     toString(p.RegulatoryImpact),
		ArticleTitle:         article.Title,
		ArticleURL:           article.URL,
		Source:               article.Source,
		Date:                 article.Date,
		CreatedAt:            time.Now().UTC(),
	}
	return insight, nil
}

func (e *Extractor) buildPrompt(article *models.Article) string {
	content := article.Content
	if e.contentCeiling > 0 && len(content) > e.contentCeiling {
		content = content[:e.contentCeiling]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Source: %s\n", orUnknown(article.Source))
	fmt.Fprintf(&sb, "Title: %s\n", orUnknown(article.Title))
	fmt.Fprintf(&sb, "Date: %s\n", orUnknown(article.Date))
	fmt.Fprintf(&sb, "URL: %s\n\n", orUnknown(article.URL))

	if sc, ok := sourceContexts[article.Source]; ok {
		sb.WriteString(sc)
		sb.WriteString("\n")
	}
	if article.Category != "" {
		fmt.Fprintf(&sb, "This article is categorized under: %s\n", article.Category)
	}
	if article.Date != "" {
		fmt.Fprintf(&sb, "Publication date: %s\n", article.Date)
	}

	sb.WriteString("\nContent:\n")
	sb.WriteString(content)
	sb.WriteString(`

Extract structured information in JSON format with these fields:
- key_event: The main event or development described
- insurance_domains: List of affected insurance types (property, casualty, life, health, reinsurance)
- risk_factors: List of identified risk factors or changes
- business_implications: How this might affect insurance business operations
- timeframe: Immediate, short-term, or long-term implications
- geographic_focus: Regions or countries affected (if mentioned)
- regulatory_impact: Any regulatory changes or requirements mentioned
- confidence: Your confidence in this analysis (low, medium, high)

Return only valid JSON without any markdown formatting.`)
	return sb.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func toString(v any) string {
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return "Unknown"
}

func toStringList(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		return []string{val}
	default:
		return nil
	}
}

func normalizeDomains(domains []string, source string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return defaultDomains(source)
	}
	return out
}

func normalizeRiskFactors(v any) []string {
	factors := toStringList(v)
	if len(factors) == 0 {
		return []string{"Unknown risk"}
	}
	return factors
}

func normalizeConfidence(v any) string {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return models.ConfidenceHigh
	case "medium":
		return models.ConfidenceMedium
	case "low":
		return models.ConfidenceLow
	default:
		return "Unknown"
	}
}
