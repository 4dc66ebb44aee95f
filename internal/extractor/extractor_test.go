package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ClimateIntel/internal/models"
	"ClimateIntel/pkg/logger"
)

// fakeLLM returns a canned response and records the prompt it saw.
type fakeLLM struct {
	response   string
	err        error
	lastSystem string
	lastPrompt string
}

func (f *fakeLLM) Generate(_ context.Context, system, prompt string) (string, error) {
	f.lastSystem = system
	f.lastPrompt = prompt
	return f.response, f.err
}

func testLogger() *logger.Logger {
	logger.Init(logrus.ErrorLevel)
	return logger.New("extractor-test", "")
}

func testArticle() *models.Article {
	return &models.Article{
		URL:      "https://example.com/story",
		Source:   "Insurance Journal",
		Title:    "Extreme Weather Driving Property Insurance Market Hardening",
		Date:     "2026-08-01",
		Category: "Climate Risk",
		Content:  strings.Repeat("Property insurers face rising claims from extreme weather events. ", 10),
	}
}

func TestExtractWellFormedResponse(t *testing.T) {
	fake := &fakeLLM{response: `{
		"key_event": "Property market hardening",
		"insurance_domains": ["Property", "REINSURANCE"],
		"risk_factors": ["hurricane", "flood"],
		"business_implications": "Premiums rise in coastal regions",
		"timeframe": "short-term",
		"confidence": "high",
		"geographic_focus": "US Gulf Coast",
		"regulatory_impact": "None noted"
	}`}
	ex := New(fake, 5000, testLogger())

	insight, err := ex.Extract(context.Background(), testArticle())
	require.NoError(t, err)

	assert.Equal(t, "Property market hardening", insight.KeyEvent)
	assert.Equal(t, []string{"property", "reinsurance"}, insight.InsuranceDomains, "domains must be lowercased")
	assert.Equal(t, []string{"hurricane", "flood"}, insight.RiskFactors)
	assert.Equal(t, models.ConfidenceHigh, insight.Confidence)
	assert.Equal(t, "https://example.com/story", insight.ArticleURL)
	assert.Equal(t, "Insurance Journal", insight.Source)
	assert.False(t, insight.CreatedAt.IsZero())
}

func TestExtractFencedResponse(t *testing.T) {
	fake := &fakeLLM{response: "```json\n{\"key_event\": \"TNFD guidance released\", \"confidence\": \"Medium\"}\n```"}
	ex := New(fake, 5000, testLogger())

	insight, err := ex.Extract(context.Background(), testArticle())
	require.NoError(t, err)
	assert.Equal(t, "TNFD guidance released", insight.KeyEvent)
	assert.Equal(t, models.ConfidenceMedium, insight.Confidence)
}

func TestExtractDefaultsMissingFields(t *testing.T) {
	fake := &fakeLLM{response: `{"key_event": "something happened"}`}
	ex := New(fake, 5000, testLogger())

	insight, err := ex.Extract(context.Background(), testArticle())
	require.NoError(t, err)

	assert.Equal(t, []string{"property"}, insight.InsuranceDomains)
	assert.Equal(t, []string{"Unknown risk"}, insight.RiskFactors)
	assert.Equal(t, "Unknown", insight.BusinessImplications)
	assert.Equal(t, "Unknown", insight.Timeframe)
	assert.Equal(t, "Unknown", insight.Confidence)
	assert.Equal(t, "Unknown", insight.GeographicFocus)
	assert.Equal(t, "Unknown", insight.RegulatoryImpact)
}

func TestExtractTNFDDomainFallback(t *testing.T) {
	fake := &fakeLLM{response: `{"key_event": "framework update", "insurance_domains": []}`}
	ex := New(fake, 5000, testLogger())

	a := testArticle()
	a.Source = "TNFD"
	insight, err := ex.Extract(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, []string{"property", "casualty"}, insight.InsuranceDomains)
}

func TestExtractCoercesScalarRiskFactors(t *testing.T) {
	fake := &fakeLLM{response: `{"key_event": "e", "risk_factors": "wildfire"}`}
	ex := New(fake, 5000, testLogger())

	insight, err := ex.Extract(context.Background(), testArticle())
	require.NoError(t, err)
	assert.Equal(t, []string{"wildfire"}, insight.RiskFactors)
}

func TestExtractSkipsThinContent(t *testing.T) {
	fake := &fakeLLM{response: `{}`}
	ex := New(fake, 5000, testLogger())

	a := testArticle()
	a.Content = "too short"
	_, err := ex.Extract(context.Background(), a)
	assert.ErrorIs(t, err, ErrContentTooShort)
}

func TestExtractIrrecoverableOutput(t *testing.T) {
	fake := &fakeLLM{response: "I am sorry, I cannot help with that."}
	ex := New(fake, 5000, testLogger())

	_, err := ex.Extract(context.Background(), testArticle())
	require.Error(t, err)
}

func TestExtractTransportError(t *testing.T) {
	fake := &fakeLLM{err: errors.New("upstream 503")}
	ex := New(fake, 5000, testLogger())

	_, err := ex.Extract(context.Background(), testArticle())
	require.Error(t, err)
}

func TestExtractTruncatesContentInPrompt(t *testing.T) {
	fake := &fakeLLM{response: `{"key_event": "e"}`}
	ex := New(fake, 200, testLogger())

	a := testArticle()
	a.Content = strings.Repeat("x", 1000)
	_, err := ex.Extract(context.Background(), a)
	require.NoError(t, err)

	assert.LessOrEqual(t, strings.Count(fake.lastPrompt, "x"), 200)
	assert.Contains(t, fake.lastSystem, "insurance and climate risk analysis")
}
