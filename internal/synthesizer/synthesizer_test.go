package synthesizer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ClimateIntel/internal/models"
	"ClimateIntel/pkg/logger"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Generate(context.Context, string, string) (string, error) {
	return f.response, f.err
}

func testLogger() *logger.Logger {
	logger.Init(logrus.ErrorLevel)
	return logger.New("synthesizer-test", "")
}

func testInsights() []*models.Insight {
	now := time.Now().UTC()
	return []*models.Insight{
		{
			KeyEvent:         "TNFD adoption accelerating",
			InsuranceDomains: []string{"property", "casualty"},
			RiskFactors:      []string{"disclosure gaps"},
			Confidence:       models.ConfidenceHigh,
			Source:           "TNFD",
			ArticleURL:       "u1",
			CreatedAt:        now,
		},
		{
			KeyEvent:         "Flood losses repricing coastal books",
			InsuranceDomains: []string{"property"},
			RiskFactors:      []string{"flood"},
			Confidence:       models.ConfidenceMedium,
			Source:           "Insurance Journal",
			ArticleURL:       "u2",
			CreatedAt:        now.Add(-time.Hour),
		},
	}
}

func TestSynthesizeWellFormed(t *testing.T) {
	fake := &fakeLLM{response: `{
		"Executive Summary": "Climate risk pressure is rising.",
		"Key Climate Risk Developments": "TNFD adoption grows.",
		"Insurance Domain Impacts": "Property books harden.",
		"Regional Insights": "Coastal US most exposed.",
		"Regulatory Landscape": "Disclosure rules tighten.",
		"Business Implications": "Repricing needed.",
		"Recommended Actions": "Update catastrophe models."
	}`}
	s := New(fake, testLogger())

	report := s.Synthesize(context.Background(), testInsights())
	assert.Equal(t, "Climate risk pressure is rising.", report.ExecutiveSummary)
	assert.Equal(t, "Update catastrophe models.", report.RecommendedActions)
	assert.False(t, report.Degraded)
	assert.Empty(t, report.Error)
	assert.Equal(t, 2, report.ArticleCount)
	assert.Equal(t, []string{"Insurance Journal", "TNFD"}, report.Sources)
	assert.NotEmpty(t, report.GeneratedDate)
}

func TestSynthesizeFlattensStructuredFields(t *testing.T) {
	fake := &fakeLLM{response: `{
		"Executive Summary": "ok",
		"Key Climate Risk Developments": ["first", "second"],
		"Insurance Domain Impacts": {"property": "hardening", "casualty": "liability growth"},
		"Recommended Actions": 42
	}`}
	s := New(fake, testLogger())

	report := s.Synthesize(context.Background(), testInsights())
	assert.Equal(t, "first\nsecond", report.KeyDevelopments)
	assert.Equal(t, "casualty: liability growth\nproperty: hardening", report.DomainImpacts)
	assert.Equal(t, "42", report.RecommendedActions)
	assert.Equal(t, "No data available for Regional Insights", report.RegionalInsights)
	assert.False(t, report.Degraded)
}

func TestSynthesizeRecoversFencedOutput(t *testing.T) {
	fake := &fakeLLM{response: "Here you go:\n```json\n{\"Executive Summary\": \"recovered\"}\n```"}
	s := New(fake, testLogger())

	report := s.Synthesize(context.Background(), testInsights())
	assert.Equal(t, "recovered", report.ExecutiveSummary)
	assert.False(t, report.Degraded)
}

func TestSynthesizeUnparseableFallsBack(t *testing.T) {
	fake := &fakeLLM{response: "I refuse to produce JSON today."}
	s := New(fake, testLogger())

	report := s.Synthesize(context.Background(), testInsights())
	assert.True(t, report.Degraded)
	assert.NotEmpty(t, report.Error)
	assert.Contains(t, report.ExecutiveSummary, "fallback report")
	assert.Contains(t, report.DomainImpacts, "**Property Insurance:**")
	assert.Contains(t, report.DomainImpacts, "TNFD adoption accelerating")
	assert.Equal(t, 2, report.ArticleCount)
}

func TestSynthesizeTransportErrorFallsBack(t *testing.T) {
	fake := &fakeLLM{err: errors.New("upstream 503")}
	s := New(fake, testLogger())

	report := s.Synthesize(context.Background(), testInsights())
	assert.True(t, report.Degraded)
	assert.Contains(t, report.Error, "upstream 503")
}

func TestSynthesizeEmptyInsights(t *testing.T) {
	fake := &fakeLLM{response: "{}"}
	s := New(fake, testLogger())

	report := s.Synthesize(context.Background(), nil)
	assert.True(t, report.Degraded)
	assert.Equal(t, "No data available for analysis.", report.ExecutiveSummary)
	assert.Equal(t, 0, report.ArticleCount)
}

func TestSynthesizeTruncatesOversizeField(t *testing.T) {
	huge := strings.Repeat("a", maxFieldLen+500)
	fake := &fakeLLM{response: `{"Executive Summary": "` + huge + `"}`}
	s := New(fake, testLogger())

	report := s.Synthesize(context.Background(), testInsights())
	assert.Len(t, report.ExecutiveSummary, maxFieldLen+len(truncationMarker))
	assert.True(t, strings.HasSuffix(report.ExecutiveSummary, truncationMarker))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	// "气" is three bytes; a byte-limit cut at 7 would land inside the
	// third rune.
	s := strings.Repeat("气", 4) // 12 bytes
	for limit := 1; limit < len(s); limit++ {
		got := truncate(s, limit)
		body := strings.TrimSuffix(got, truncationMarker)
		assert.True(t, utf8.ValidString(body), "limit %d split a rune: %q", limit, body)
		assert.LessOrEqual(t, len(body), limit)
	}

	ascii := strings.Repeat("a", 10)
	assert.Equal(t, ascii[:7]+truncationMarker, truncate(ascii, 7))
}

func TestFallbackOrdersByConfidenceThenRecency(t *testing.T) {
	now := time.Now().UTC()
	insights := []*models.Insight{
		{KeyEvent: "low", InsuranceDomains: []string{"life"}, Confidence: models.ConfidenceLow, CreatedAt: now},
		{KeyEvent: "high", InsuranceDomains: []string{"life"}, Confidence: models.ConfidenceHigh, CreatedAt: now.Add(-time.Hour)},
	}
	s := New(&fakeLLM{}, testLogger())

	report := s.Fallback(insights, errors.New("boom"))
	highIdx := strings.Index(report.DomainImpacts, "high")
	lowIdx := strings.Index(report.DomainImpacts, "low")
	require.NotEqual(t, -1, highIdx)
	require.NotEqual(t, -1, lowIdx)
	assert.Less(t, highIdx, lowIdx, "higher confidence events list first")
}
