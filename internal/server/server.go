package server

import (
	"net/http"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nulzo/prism-router/internal/analytics"
	"github.com/nulzo/prism-router/internal/config"
	"github.com/nulzo/prism-router/internal/gateway"
	"github.com/nulzo/prism-router/internal/platform/metrics"
	"github.com/nulzo/prism-router/internal/server/middleware"
	"github.com/nulzo/prism-router/internal/server/validator"
)

type Server struct {
	router    *gin.Engine
	config    *config.Config
	logger    *zap.Logger
	gateway   gateway.Router
	analytics analytics.Service
	metrics   *metrics.Collector
	validator *validator.Validator
}

func New(cfg *config.Config, logger *zap.Logger, rt gateway.Router, analyticsSvc analytics.Service, collector *metrics.Collector) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(ginzap.RecoveryWithZap(logger, true))
	if cfg.Tracing.Enabled {
		engine.Use(middleware.Tracing(cfg.Tracing.ServiceName))
	}
	engine.Use(middleware.Logger(logger))
	if collector != nil {
		engine.Use(middleware.Metrics(collector))
	}
	engine.Use(middleware.ErrorHandler(logger))

	s := &Server{
		router:    engine,
		config:    cfg,
		logger:    logger,
		gateway:   rt,
		analytics: analyticsSvc,
		metrics:   collector,
		validator: validator.New(),
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
