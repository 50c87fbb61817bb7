package server

import (
	"github.com/gin-gonic/gin"

	"github.com/nulzo/prism-router/internal/server/middleware"
	v1 "github.com/nulzo/prism-router/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	healthHandler := v1.NewHealthHandler(s.gateway, s.config.Router.MinVersion)
	s.router.GET("/health", healthHandler.Health)

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/v1")
	api.Use(middleware.Auth(s.config.Server.APIKeys))
	if rl := s.config.RateLimit; rl.RequestsPerSecond > 0 {
		api.Use(middleware.NewRateLimiter(rl.RequestsPerSecond, rl.Burst, s.logger).Middleware())
	}
	{
		chatHandler := v1.NewChatHandler(s.gateway, s.validator)
		api.POST("/chat/completions", chatHandler.CreateCompletion)

		embeddingHandler := v1.NewEmbeddingHandler(s.gateway, s.validator)
		api.POST("/embeddings", embeddingHandler.CreateEmbedding)

		modelHandler := v1.NewModelHandler(s.gateway, s.validator)
		api.GET("/models", modelHandler.ListModels)
		api.GET("/models/:model/fallbacks", modelHandler.GetFallbacks)
		api.POST("/models/:model/fallbacks", modelHandler.AddFallbacks)

		if s.analytics != nil {
			analyticsHandler := v1.NewAnalyticsHandler(s.analytics)
			api.GET("/analytics/usage", analyticsHandler.GetUsage)
			api.GET("/analytics/requests", analyticsHandler.ListRequests)
			api.GET("/analytics/requests/:id", analyticsHandler.GetRequest)
		}

		admin := api.Group("/admin")
		adminHandler := v1.NewAdminHandler(s.gateway, s.config.Router)
		admin.GET("/stats", adminHandler.ListDeployments)
		admin.GET("/config", adminHandler.GetConfig)
		admin.POST("/stats/reset", adminHandler.ResetStats)
	}
}
