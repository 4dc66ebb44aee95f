package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ClimateIntel/internal/models"
)

func article(source, title, content, category string) *models.Article {
	return &models.Article{
		Source:   source,
		Title:    title,
		Content:  content,
		Category: category,
	}
}

func TestScoreAcceptsDualRelevance(t *testing.T) {
	a := article(
		"Insurance Journal",
		"Insurers raise premiums after hurricane season",
		"Reinsurance underwriting is repricing flood and wildfire coverage as extreme weather losses mount.",
		"Climate Risk",
	)
	ins, cli, ok := Score(a)
	assert.True(t, ok)
	assert.Greater(t, ins, 1.0)
	assert.Greater(t, cli, 0.0)
}

func TestScoreRejectsOffTopic(t *testing.T) {
	a := article("Unknown Blog", "Local sports roundup", "The home team won again on Saturday.", "")
	_, _, ok := Score(a)
	assert.False(t, ok)
}

func TestScoreRejectsSingleAxis(t *testing.T) {
	// Pure insurance text from a generic source fails the climate minimum.
	a := article(
		"Unknown Blog",
		"Underwriting basics",
		"An insurer sets the premium, the policyholder pays the deductible, and claims follow the policy terms.",
		"",
	)
	_, cli, ok := Score(a)
	assert.False(t, ok)
	assert.LessOrEqual(t, cli, 1.0)
}

func TestScoreSpecializedSourceMinima(t *testing.T) {
	// TNFD needs no insurance hits; its climate coverage alone admits it.
	a := article(
		"TNFD",
		"Nature-related disclosure guidance updated",
		"The taskforce published new climate and biodiversity disclosure recommendations for resilience planning.",
		"",
	)
	ins, cli, ok := Score(a)
	assert.True(t, ok, "insurance=%v climate=%v", ins, cli)
}

func TestScoreSourceWeight(t *testing.T) {
	text := "Climate change and flood risk affect insurance underwriting."
	weighted := article("TNFD", "t", text, "")
	plain := article("Some Feed", "t", text, "")

	_, cliWeighted, _ := Score(weighted)
	_, cliPlain, _ := Score(plain)
	assert.Greater(t, cliWeighted, cliPlain, "TNFD weight must scale the raw hit count")
}

func TestScoreCategoryBonus(t *testing.T) {
	text := "Climate change and flood risk affect insurance underwriting."
	with := article("Some Feed", "t", text, "Insurance & Sustainability")
	without := article("Some Feed", "t", text, "")

	insWith, cliWith, _ := Score(with)
	insWithout, cliWithout, _ := Score(without)
	assert.InDelta(t, insWithout+2, insWith, 1e-9)
	assert.InDelta(t, cliWithout+2, cliWith, 1e-9)
}

func TestScoreDeterministic(t *testing.T) {
	a := article(
		"Insurance Business Magazine",
		"Catastrophe bond issuance hits record",
		"Parametric coverage and catastrophe bonds respond to hurricane and wildfire exposure under climate change.",
		"finance",
	)
	ins1, cli1, ok1 := Score(a)
	for i := 0; i < 5; i++ {
		ins2, cli2, ok2 := Score(a)
		assert.Equal(t, ins1, ins2)
		assert.Equal(t, cli1, cli2)
		assert.Equal(t, ok1, ok2)
	}
}
