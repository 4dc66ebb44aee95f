package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all routes of the intel service.
func RegisterRoutes(router *gin.Engine, api *API) {
	router.GET("/health", api.HealthHandler)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/articles", api.ListArticlesHandler)
		v1.GET("/insights", api.ListInsightsHandler)

		v1.GET("/reports", api.ListReportsHandler)
		v1.GET("/reports/latest", api.LatestReportHandler)
		v1.GET("/reports/:id", api.GetReportHandler)

		v1.POST("/analysis/run", api.RunAnalysisHandler)
		v1.GET("/analysis/task/:id", api.GetTaskHandler)

		v1.GET("/dashboard/stats", api.DashboardStatsHandler)
		v1.GET("/news-sources", api.NewsSourcesHandler)
		v1.GET("/search", api.SearchHandler)
	}
}
