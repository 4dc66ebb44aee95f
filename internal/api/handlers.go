package api

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"ClimateIntel/internal/collector"
	"ClimateIntel/internal/models"
	"ClimateIntel/internal/orchestrator"
	"ClimateIntel/internal/retriever"
	"ClimateIntel/internal/store"
	"ClimateIntel/internal/synthesizer"
	"ClimateIntel/pkg/logger"
)

// API provides the HTTP handlers over the pipeline's stores and the
// orchestrator.
type API struct {
	articles  store.ArticleStore
	insights  store.InsightStore
	reports   store.ReportStore
	tasks     store.TaskStore
	orc       *orchestrator.Orchestrator
	retriever *retriever.Retriever
	synth     *synthesizer.Synthesizer
	sources   []collector.Source
	logger    *logger.Logger
}

// Deps bundles the API's collaborators.
type Deps struct {
	Articles  store.ArticleStore
	Insights  store.InsightStore
	Reports   store.ReportStore
	Tasks     store.TaskStore
	Orc       *orchestrator.Orchestrator
	Retriever *retriever.Retriever
	Synth     *synthesizer.Synthesizer
	Sources   []collector.Source
	Logger    *logger.Logger
}

// NewAPI creates a new API handler.
func NewAPI(deps Deps) *API {
	return &API{
		articles:  deps.Articles,
		insights:  deps.Insights,
		reports:   deps.Reports,
		tasks:     deps.Tasks,
		orc:       deps.Orc,
		retriever: deps.Retriever,
		synth:     deps.Synth,
		sources:   deps.Sources,
		logger:    deps.Logger,
	}
}

// ListArticlesHandler returns stored articles, optionally filtered by source
// and minimum relevance.
func (a *API) ListArticlesHandler(c *gin.Context) {
	minRelevance, err := strconv.ParseFloat(c.DefaultQuery("min_relevance", "0"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_relevance must be a number"})
		return
	}
	filter := store.ArticleFilter{
		Source:       c.Query("source"),
		SourceType:   c.Query("source_type"),
		MinRelevance: minRelevance,
		Skip:         parsePage(c, "skip", 0),
		Limit:        parsePage(c, "limit", 50),
	}

	articles, err := a.articles.List(c.Request.Context(), filter)
	if err != nil {
		a.logger.WithError(err).Error("failed to list articles")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve articles"})
		return
	}
	total, err := a.articles.Count(c.Request.Context())
	if err != nil {
		a.logger.WithError(err).Error("failed to count articles")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve articles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles, "total": total})
}

// ListInsightsHandler returns extracted insights, optionally filtered by
// insurance domain and source.
func (a *API) ListInsightsHandler(c *gin.Context) {
	filter := store.InsightFilter{
		Domain:     c.Query("domain"),
		Source:     c.Query("source"),
		Timeframe:  c.Query("timeframe"),
		Confidence: c.Query("confidence"),
		Skip:       parsePage(c, "skip", 0),
		Limit:      parsePage(c, "limit", 50),
	}

	insights, err := a.insights.List(c.Request.Context(), filter)
	if err != nil {
		a.logger.WithError(err).Error("failed to list insights")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve insights"})
		return
	}
	total, err := a.insights.Count(c.Request.Context())
	if err != nil {
		a.logger.WithError(err).Error("failed to count insights")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve insights"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"insights": insights, "total": total})
}

// ListReportsHandler returns stored reports, newest first.
func (a *API) ListReportsHandler(c *gin.Context) {
	skip := parsePage(c, "skip", 0)
	limit := parsePage(c, "limit", 20)

	reports, err := a.reports.List(c.Request.Context(), skip, limit)
	if err != nil {
		a.logger.WithError(err).Error("failed to list reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// LatestReportHandler returns the most recent report. When no run has
// produced one yet, it serves the static fallback instead of an empty
// response, built from whatever insights exist. The fallback is not stored.
func (a *API) LatestReportHandler(c *gin.Context) {
	report, err := a.reports.Latest(c.Request.Context())
	if errors.Is(err, store.ErrNotFound) {
		recent, listErr := a.insights.ListRecent(c.Request.Context(), 20)
		if listErr != nil {
			recent = nil
		}
		c.JSON(http.StatusOK, a.synth.Fallback(recent, errors.New("no reports generated yet")))
		return
	}
	if err != nil {
		a.logger.WithError(err).Error("failed to load latest report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetReportHandler returns one report by ID.
func (a *API) GetReportHandler(c *gin.Context) {
	report, err := a.reports.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}
	if err != nil {
		a.logger.WithError(err).Error("failed to load report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// RunAnalysisHandler launches a manual pipeline run and returns its task ID.
func (a *API) RunAnalysisHandler(c *gin.Context) {
	task, err := a.orc.Launch(c.Request.Context(), models.TaskKindManual)
	if err != nil {
		a.logger.WithError(err).Error("failed to launch analysis task")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start analysis"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID, "status": task.Status})
}

// GetTaskHandler returns one analysis task record by ID.
func (a *API) GetTaskHandler(c *gin.Context) {
	task, err := a.tasks.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if err != nil {
		a.logger.WithError(err).Error("failed to load task")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// DashboardStatsHandler returns the headline counters for the dashboard.
func (a *API) DashboardStatsHandler(c *gin.Context) {
	ctx := c.Request.Context()

	articleCount, err := a.articles.Count(ctx)
	if err != nil {
		a.logger.WithError(err).Error("failed to count articles")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}
	insightCount, err := a.insights.Count(ctx)
	if err != nil {
		a.logger.WithError(err).Error("failed to count insights")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}
	reportCount, err := a.reports.Count(ctx)
	if err != nil {
		a.logger.WithError(err).Error("failed to count reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	stats := gin.H{
		"total_articles": articleCount,
		"total_insights": insightCount,
		"total_reports":  reportCount,
		"news_sources":   len(a.sources),
	}
	if latest, err := a.reports.Latest(ctx); err == nil {
		stats["last_report_date"] = latest.GeneratedDate
	}
	if insights, err := a.insights.All(ctx); err == nil {
		sources, domains, risks := distributions(insights)
		stats["source_distribution"] = sources
		stats["domain_distribution"] = domains
		stats["top_risk_factors"] = risks
	}
	c.JSON(http.StatusOK, stats)
}

// topRiskFactors caps the risk factor leaderboard on the dashboard.
const topRiskFactors = 5

func distributions(insights []*models.Insight) (map[string]int, map[string]int, []string) {
	sources := make(map[string]int)
	domains := make(map[string]int)
	risks := make(map[string]int)
	for _, in := range insights {
		source := in.Source
		if source == "" {
			source = "Unknown"
		}
		sources[source]++
		for _, d := range in.InsuranceDomains {
			domains[d]++
		}
		for _, r := range in.RiskFactors {
			risks[r]++
		}
	}

	ranked := make([]string, 0, len(risks))
	for r := range risks {
		ranked = append(ranked, r)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if risks[ranked[i]] != risks[ranked[j]] {
			return risks[ranked[i]] > risks[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > topRiskFactors {
		ranked = ranked[:topRiskFactors]
	}
	return sources, domains, ranked
}

// NewsSourcesHandler returns the configured collection sources.
func (a *API) NewsSourcesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": a.sources})
}

// SearchHandler runs a semantic search over the insight index.
func (a *API) SearchHandler(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	results, err := a.retriever.Retrieve(c.Request.Context(), []string{query})
	if err != nil {
		a.logger.WithError(err).Error("semantic search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}
	if k := parsePage(c, "k", 0); k > 0 && int64(len(results)) > k {
		results = results[:k]
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
}

// HealthHandler reports process liveness.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parsePage(c *gin.Context, name string, fallback int64) int64 {
	v, err := strconv.ParseInt(c.DefaultQuery(name, strconv.FormatInt(fallback, 10)), 10, 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
