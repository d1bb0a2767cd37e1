package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesphere/internal/api"
	"tradesphere/internal/auth"
	"tradesphere/internal/broker"
	"tradesphere/internal/config"
	"tradesphere/internal/database"
	"tradesphere/internal/logger"
	"tradesphere/internal/marketdata"
	"tradesphere/internal/models"
	"tradesphere/internal/store"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	st := store.NewStore(db, cfg.Margin.PruneZeroPositions)

	// Market data: per-market clients behind a router, with a TTL cache.
	finnhub := marketdata.NewFinnhubClient(&cfg.MarketData, log.Named("finnhub"))
	stockgro := marketdata.NewStockGroClient(&cfg.MarketData, log.Named("stockgro"))
	router := marketdata.NewRouter(finnhub, stockgro)
	prices := marketdata.NewQuoteCache(router, time.Duration(cfg.MarketData.QuoteCacheTTLSeconds)*time.Second)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	svc := broker.NewService(log.Named("broker"), &cfg, st, prices, router, rng)

	tokens := auth.NewManager(&cfg.Auth)

	if cfg.Auth.SeedDemoUser {
		if err := seedDemoUser(context.Background(), st, cfg.Auth.InitialCash); err != nil {
			log.Fatal("Failed to seed demo user", zap.Error(err))
		}
	}

	server := api.NewServer(log, &cfg, svc, st, tokens)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	if err := server.Start(); err != nil {
		log.Fatal("API server failed", zap.Error(err))
	}

	log.Info("Server has been shut down.")
}

// seedDemoUser creates the demo account on first startup, for local use
// without going through registration.
func seedDemoUser(ctx context.Context, st *store.Store, initialCash float64) error {
	existing, err := st.GetUserByEmail(ctx, "demo@tradesphere.com")
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := auth.HashPassword("demo-password")
	if err != nil {
		return err
	}

	return st.CreateUser(ctx, &models.User{
		Username:     "demo",
		Email:        "demo@tradesphere.com",
		PasswordHash: hash,
		Tier:         models.TierIntermediate,
		CashBalance:  decimal.NewFromFloat(initialCash),
		IsAdmin:      true,
	})
}
