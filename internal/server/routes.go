package server

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(statisticsService *StatisticsService) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	RegisterRoutes(api, statisticsService)

	return router
}

func RegisterRoutes(router *gin.RouterGroup, statisticsService *StatisticsService) {
	router.GET("/statistics", statisticsService.ListRuns)
	router.GET("/statistics/latest", statisticsService.GetLatestRun)
	router.GET("/statistics/:id", statisticsService.GetRun)
}
