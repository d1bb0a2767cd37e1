// Package api exposes the trading service over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesphere/internal/auth"
	"tradesphere/internal/broker"
	"tradesphere/internal/config"
	"tradesphere/internal/store"
)

// Server is the HTTP front of the trading service.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	svc        *broker.Service
	store      *store.Store
	tokens     *auth.Manager

	initialCash decimal.Decimal
	instanceID  string
	startTime   time.Time
}

// NewServer wires the gin router with all routes and middleware.
func NewServer(logger *zap.Logger, cfg *config.Config, svc *broker.Service, st *store.Store, tokens *auth.Manager) *Server {
	s := &Server{
		logger:      logger.Named("api"),
		svc:         svc,
		store:       st,
		tokens:      tokens,
		initialCash: decimal.NewFromFloat(cfg.Auth.InitialCash),
		instanceID:  uuid.NewString(),
		startTime:   time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(logger, true))

	if len(cfg.Server.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.Server.CORSOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
		engine.Use(cors.New(corsCfg))
	}

	engine.GET("/health", s.healthHandler)
	engine.GET("/status", s.statusHandler)

	authGroup := engine.Group("/auth")
	{
		authGroup.POST("/register", s.registerHandler)
		authGroup.POST("/login", s.loginHandler)
	}

	authed := engine.Group("/", auth.RequireUser(tokens, st))

	trade := authed.Group("/trade")
	{
		trade.POST("/buy", s.tradeHandler(svc.Buy))
		trade.POST("/sell", s.tradeHandler(svc.Sell))
		trade.POST("/short", s.tradeHandler(svc.Short))
		trade.POST("/cover", s.tradeHandler(svc.Cover))
		trade.GET("/shortable", s.shortableHandler)
	}

	portfolio := authed.Group("/portfolio")
	{
		portfolio.GET("", s.portfolioHandler)
		portfolio.GET("/positions", s.positionsHandler)
		portfolio.GET("/transactions", s.transactionsHandler)
		portfolio.GET("/equity", s.equityHandler)
		portfolio.POST("/snapshot", s.snapshotHandler)
	}

	admin := authed.Group("/admin", auth.RequireAdmin())
	{
		admin.GET("/users", s.listUsersHandler)
		admin.PUT("/user-tier", s.changeTierHandler)
		admin.POST("/refresh-shortable", s.refreshShortableHandler)
		admin.POST("/simulate-daily-interest", s.simulateInterestHandler)
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: engine,
	}
	return s
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("address", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping API server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"instance_id": s.instanceID,
		"start_time":  s.startTime.Format(time.RFC3339),
		"uptime":      time.Since(s.startTime).String(),
	})
}
