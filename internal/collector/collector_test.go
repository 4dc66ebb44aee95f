package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ClimateIntel/internal/models"
	"ClimateIntel/pkg/logger"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Climate Feed</title>
    <item>
      <title>  Flood losses climb  </title>
      <link>https://example.com/flood-losses</link>
      <pubDate>Mon, 24 Aug 2026 09:00:00 GMT</pubDate>
      <description>Insurers report rising flood claims.</description>
    </item>
    <item>
      <title>Untitled entry</title>
      <link></link>
    </item>
  </channel>
</rss>`

func testLog() *logger.Logger {
	logger.Init(logrus.ErrorLevel)
	return logger.New("collector-test", "")
}

func TestFeedCollectorMapsItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	c := NewFeedCollector(Source{Name: "Insurance Journal", URL: srv.URL, Type: "industry"})
	articles, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1, "items without a link are dropped")

	got := articles[0]
	assert.Equal(t, "Insurance Journal", got.Source)
	assert.Equal(t, "industry", got.SourceType)
	assert.Equal(t, "Flood losses climb", got.Title)
	assert.Equal(t, "https://example.com/flood-losses", got.URL)
	assert.Equal(t, "2026-08-24", got.Date)
	assert.Equal(t, "Insurers report rising flood claims.", got.Content)
}

func TestFeedCollectorUnreachableSource(t *testing.T) {
	c := NewFeedCollector(Source{Name: "down", URL: "http://127.0.0.1:1/feed"})
	_, err := c.Collect(context.Background())
	assert.Error(t, err)
}

func TestItemContentPrefersFullBody(t *testing.T) {
	item := &gofeed.Item{Content: "full body", Description: "teaser"}
	assert.Equal(t, "full body", itemContent(item))

	item = &gofeed.Item{Description: "teaser only"}
	assert.Equal(t, "teaser only", itemContent(item))
}

func TestItemContentFlattensHTML(t *testing.T) {
	item := &gofeed.Item{Description: "<p>Insurers <strong>reprice</strong> flood cover.</p>"}
	assert.Equal(t, "Insurers **reprice** flood cover.", itemContent(item))
}

func TestCollectAllIsolatesFailures(t *testing.T) {
	collectors := []Collector{
		&StaticCollector{SourceName: "broken", Err: assert.AnError},
		&StaticCollector{SourceName: "ok", Articles: []*models.Article{{URL: "u1", Title: "t"}}},
	}
	all := CollectAll(context.Background(), collectors, testLog())
	require.Len(t, all, 1)
	assert.Equal(t, "u1", all[0].URL)
}

func TestSampleArticlesAreSelfConsistent(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	samples := SampleArticles(now)
	require.Len(t, samples, 3)

	seen := make(map[string]bool)
	for _, a := range samples {
		assert.NotEmpty(t, a.URL)
		assert.NotEmpty(t, a.Content)
		assert.Equal(t, "2026-08-28", a.Date)
		assert.False(t, seen[a.URL], "sample URLs must be distinct")
		seen[a.URL] = true
	}
}
