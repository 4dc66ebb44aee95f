// Package synthesizer turns a budget-bounded insight set into an executive
// report. The model is asked for a fixed JSON shape; whatever comes back is
// recovered, flattened to plain text fields and coerced, and when nothing
// can be recovered a static fallback report is produced instead, so
// synthesis never fails past this package.
package synthesizer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"ClimateIntel/internal/llm"
	"ClimateIntel/internal/llmjson"
	"ClimateIntel/internal/models"
	"ClimateIntel/pkg/logger"
)

const systemPrompt = `You are an AI specialized in insurance and climate risk analysis for Chubb.
Generate a concise, structured summary report based on the extracted information from news articles.
Your audience is insurance executives who need actionable insights.

The report should highlight:
1. Key events and developments from authoritative sources
2. Implications for different insurance domains
3. Emerging risks and opportunities
4. Recommended actions

Be specific, concise, and business-focused. Recognize the different types of sources and their
relative credibility (regulatory bodies, industry publications, news outlets, etc.).

You must return a valid JSON object with the requested sections. Do not include any explanation
or text outside of the JSON structure.`

// Report sections requested from the model, in order.
var sections = []string{
	"Executive Summary",
	"Key Climate Risk Developments",
	"Insurance Domain Impacts",
	"Regional Insights",
	"Regulatory Landscape",
	"Business Implications",
	"Recommended Actions",
}

const (
	// maxFieldLen bounds each stored narrative field.
	maxFieldLen      = 16000
	truncationMarker = "… [truncated]"

	// fallbackInsightLimit caps how many insights the static fallback
	// report enumerates.
	fallbackInsightLimit = 20
)

// Synthesizer generates reports from insights.
type Synthesizer struct {
	llm llm.LLM
	log *logger.Logger
}

func New(client llm.LLM, log *logger.Logger) *Synthesizer {
	return &Synthesizer{llm: client, log: log}
}

// Synthesize always returns a storable report: a model-written one when the
// completion parses, otherwise the static fallback. An empty insight set
// yields a degraded report saying so.
func (s *Synthesizer) Synthesize(ctx context.Context, insights []*models.Insight) *models.Report {
	if len(insights) == 0 {
		report := emptyReport()
		report.ExecutiveSummary = "No data available for analysis."
		report.Degraded = true
		report.Error = "no structured information to summarize"
		return report
	}

	raw, err := s.llm.Generate(ctx, systemPrompt, buildPrompt(insights))
	if err != nil {
		s.log.WithError(err).Error("report completion failed, using fallback report")
		return s.Fallback(insights, err)
	}

	payload, err := llmjson.Extract(raw)
	if err != nil {
		s.log.WithError(err).Error("report output unparseable, using fallback report")
		return s.Fallback(insights, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		s.log.WithError(err).Error("report output is not an object, using fallback report")
		return s.Fallback(insights, err)
	}

	report := &models.Report{
		ExecutiveSummary:     sectionText(fields, "Executive Summary"),
		KeyDevelopments:      sectionText(fields, "Key Climate Risk Developments"),
		DomainImpacts:        sectionText(fields, "Insurance Domain Impacts"),
		RegionalInsights:     sectionText(fields, "Regional Insights"),
		RegulatoryLandscape:  sectionText(fields, "Regulatory Landscape"),
		BusinessImplications: sectionText(fields, "Business Implications"),
		RecommendedActions:   sectionText(fields, "Recommended Actions"),
	}
	stamp(report, insights)
	return report
}

// Fallback builds the static degraded report from whatever insights exist,
// highest confidence and most recent first.
func (s *Synthesizer) Fallback(insights []*models.Insight, cause error) *models.Report {
	ordered := make([]*models.Insight, len(insights))
	copy(ordered, insights)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := models.ConfidenceRank(ordered[i].Confidence), models.ConfidenceRank(ordered[j].Confidence)
		if ri != rj {
			return ri > rj
		}
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})
	if len(ordered) > fallbackInsightLimit {
		ordered = ordered[:fallbackInsightLimit]
	}

	report := &models.Report{
		ExecutiveSummary: "This fallback report was automatically generated to recover from a report " +
			"generation failure. It provides a summary of recent climate risk developments affecting " +
			"the insurance industry based on available structured data.",
		KeyDevelopments: "1. Climate regulatory frameworks expanding globally\n" +
			"2. Extreme weather events increasing in frequency and severity\n" +
			"3. Rising sea levels threatening coastal properties\n" +
			"4. Legal precedents for climate liability emerging",
		DomainImpacts:    domainImpacts(ordered),
		RegionalInsights: "Analysis of regional impacts not available in fallback report.",
		RegulatoryLandscape: "Regulatory frameworks continue to evolve globally with increased focus " +
			"on climate risk disclosure and management.",
		BusinessImplications: "Insurance companies need to update risk models, adjust pricing " +
			"strategies, and develop new products to address emerging climate risks.",
		RecommendedActions: "1. Enhance catastrophe modeling with climate science\n" +
			"2. Develop climate stress testing\n" +
			"3. Review underwriting guidelines for high-risk regions\n" +
			"4. Increase pricing sophistication for climate risk",
		Degraded: true,
	}
	if cause != nil {
		report.Error = cause.Error()
	}
	stamp(report, ordered)
	return report
}

// buildPrompt serializes the cleaned insights plus per-source statistics.
func buildPrompt(insights []*models.Insight) string {
	type cleaned struct {
		KeyEvent             string   `json:"key_event"`
		InsuranceDomains     []string `json:"insurance_domains"`
		RiskFactors          []string `json:"risk_factors"`
		BusinessImplications string   `json:"business_implications"`
		Timeframe            string   `json:"timeframe"`
		Confidence           string   `json:"confidence"`
		GeographicFocus      string   `json:"geographic_focus"`
		RegulatoryImpact     string   `json:"regulatory_impact"`
		Source               string   `json:"source"`
		ArticleTitle         string   `json:"article_title"`
		Date                 string   `json:"date"`
	}

	items := make([]cleaned, len(insights))
	distribution := make(map[string]int)
	for i, in := range insights {
		items[i] = cleaned{
			KeyEvent:             in.KeyEvent,
			InsuranceDomains:     in.InsuranceDomains,
			RiskFactors:          in.RiskFactors,
			BusinessImplications: in.BusinessImplications,
			Timeframe:            in.Timeframe,
			Confidence:           in.Confidence,
			GeographicFocus:      in.GeographicFocus,
			RegulatoryImpact:     in.RegulatoryImpact,
			Source:               in.Source,
			ArticleTitle:         in.ArticleTitle,
			Date:                 in.Date,
		}
		distribution[in.Source]++
	}

	itemsJSON, _ := json.MarshalIndent(items, "", "  ")
	statsJSON, _ := json.MarshalIndent(map[string]any{
		"source_distribution": distribution,
		"total_sources":       len(distribution),
	}, "", "  ")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Here is the structured information extracted from %d news articles:\n\n", len(insights))
	sb.Write(itemsJSON)
	sb.WriteString("\n\nSource statistics:\n")
	sb.Write(statsJSON)
	sb.WriteString("\n\nGenerate a comprehensive summary report in the following format:\n\n")
	for i, section := range sections {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, section)
	}
	sb.WriteString("\nReturn only a valid JSON object with these sections as keys, without any markdown formatting.")
	return sb.String()
}

// sectionText pulls one section out of the decoded model output, flattening
// lists and objects to delimited text rather than rejecting them.
func sectionText(fields map[string]any, section string) string {
	v, ok := fields[section]
	if !ok {
		return fmt.Sprintf("No data available for %s", section)
	}
	text := strings.TrimSpace(flatten(v))
	if text == "" {
		return fmt.Sprintf("No data available for %s", section)
	}
	return text
}

// flatten coerces any JSON value to plain text: lists join with newlines,
// objects become "key: value" lines with keys sorted.
func flatten(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, flatten(item))
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, flatten(val[k])))
		}
		return strings.Join(parts, "\n")
	case nil:
		return ""
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// stamp fills report metadata and enforces the per-field size bound.
func stamp(report *models.Report, insights []*models.Insight) {
	report.GeneratedDate = time.Now().Format("2006-01-02")
	report.ArticleCount = len(insights)
	report.Sources = uniqueSources(insights)
	report.CreatedAt = time.Now().UTC()

	for _, field := range []*string{
		&report.ExecutiveSummary, &report.KeyDevelopments, &report.DomainImpacts,
		&report.RegionalInsights, &report.RegulatoryLandscape,
		&report.BusinessImplications, &report.RecommendedActions,
	} {
		if len(*field) > maxFieldLen {
			*field = truncate(*field, maxFieldLen)
		}
	}
}

// truncate cuts s to at most limit bytes, backing up so a multibyte rune is
// never split, and appends the truncation marker. Callers guarantee
// len(s) > limit.
func truncate(s string, limit int) string {
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}

func uniqueSources(insights []*models.Insight) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, in := range insights {
		src := in.Source
		if src == "" {
			src = "Unknown"
		}
		if !seen[src] {
			seen[src] = true
			sources = append(sources, src)
		}
	}
	sort.Strings(sources)
	return sources
}

// domainImpacts groups fallback key events under each insurance domain.
func domainImpacts(insights []*models.Insight) string {
	byDomain := make(map[string][]string)
	var domains []string
	for _, in := range insights {
		for _, d := range in.InsuranceDomains {
			if _, ok := byDomain[d]; !ok {
				domains = append(domains, d)
			}
			byDomain[d] = append(byDomain[d], in.KeyEvent)
		}
	}
	sort.Strings(domains)

	var sb strings.Builder
	for _, d := range domains {
		fmt.Fprintf(&sb, "**%s Insurance:**\n", capitalize(d))
		for _, event := range byDomain[d] {
			if event == "" {
				event = "Unknown event"
			}
			fmt.Fprintf(&sb, "• %s\n", event)
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return "No domain-level data available."
	}
	return strings.TrimSpace(sb.String())
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func emptyReport() *models.Report {
	report := &models.Report{}
	for _, field := range []*string{
		&report.KeyDevelopments, &report.DomainImpacts, &report.RegionalInsights,
		&report.RegulatoryLandscape, &report.BusinessImplications, &report.RecommendedActions,
	} {
		*field = "No data available."
	}
	stamp(report, nil)
	return report
}
