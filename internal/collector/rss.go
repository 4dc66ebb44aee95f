package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/mmcdole/gofeed"

	"ClimateIntel/internal/models"
)

// maxItemsPerFeed caps how many entries one feed contributes per run.
const maxItemsPerFeed = 20

// FeedCollector pulls articles from one RSS/Atom feed.
type FeedCollector struct {
	source Source
	parser *gofeed.Parser
}

// NewFeedCollector builds a collector for the given source. The user agent
// matters: several of the monitored sites reject the default Go one.
func NewFeedCollector(source Source) *FeedCollector {
	parser := gofeed.NewParser()
	parser.UserAgent = "ClimateIntel/1.0 (+climate risk monitoring)"
	return &FeedCollector{source: source, parser: parser}
}

// NewFeedCollectors builds one collector per source.
func NewFeedCollectors(sources []Source) []Collector {
	out := make([]Collector, 0, len(sources))
	for _, s := range sources {
		out = append(out, NewFeedCollector(s))
	}
	return out
}

func (f *FeedCollector) Name() string { return f.source.Name }

func (f *FeedCollector) Collect(ctx context.Context) ([]*models.Article, error) {
	feed, err := f.parser.ParseURLWithContext(f.source.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.source.URL, err)
	}

	items := feed.Items
	if len(items) > maxItemsPerFeed {
		items = items[:maxItemsPerFeed]
	}

	now := time.Now().UTC()
	var articles []*models.Article
	for _, item := range items {
		if item.Link == "" || item.Title == "" {
			continue
		}
		articles = append(articles, &models.Article{
			Source:     f.source.Name,
			SourceType: f.source.Type,
			Title:      strings.TrimSpace(item.Title),
			URL:        item.Link,
			Date:       itemDate(item, now),
			Content:    itemContent(item),
			CreatedAt:  now,
		})
	}
	return articles, nil
}

// itemContent prefers the full body over the teaser. Feed bodies are usually
// HTML, which would pollute hashing, scoring and extraction downstream.
func itemContent(item *gofeed.Item) string {
	body := strings.TrimSpace(item.Content)
	if body == "" {
		body = strings.TrimSpace(item.Description)
	}
	if !strings.Contains(body, "<") {
		return body
	}
	markdown, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		return body
	}
	return strings.TrimSpace(markdown)
}

func itemDate(item *gofeed.Item, fallback time.Time) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format("2006-01-02")
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC().Format("2006-01-02")
	}
	return fallback.Format("2006-01-02")
}
