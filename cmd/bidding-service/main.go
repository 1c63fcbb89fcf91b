package main

import (
	"auction-engine/internal/api/middleware"
	"auction-engine/internal/config"
	"auction-engine/internal/infrastructure/websocket"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"
	"auction-engine/pkg/utils"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level).With("service", "bidding-service")
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var rdb *redisClient.Client
	if cfg.Audit.Driver == "redis" {
		rdb, err = utils.InitializeRedis(ctx, cfg, log)
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	storage, err := utils.BuildStorage(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	auditSink, stopAudit, err := utils.BuildAuditSink(context.Background(), cfg, rdb, log)
	if err != nil {
		log.Error("Failed to initialize audit sink", "error", err)
		os.Exit(1)
	}
	defer stopAudit()

	// The gateway only places bids; activation stays with auction-service.
	resolver := services.NewResolver(log)
	auctionManager := services.NewAuctionManager(storage.TxRunner, auditSink, log)
	bidService := services.NewBidService(storage.TxRunner, storage.Eligibility, resolver, auditSink, log)

	connManager := websocket.NewConnectionManager(log)
	wsHandler := websocket.NewWebSocketHandler(bidService, auctionManager, connManager, log)

	// Setup routes
	router := mux.NewRouter()
	router.Use(middleware.CORS(log))

	// WebSocket routes
	router.HandleFunc("/ws/auction/{auctionID}", wsHandler.HandleConnection)
	router.HandleFunc("/ws/auction/{auctionID}/connections", wsHandler.HandleConnectionCount).Methods(http.MethodGet)

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting bidding gateway", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	connManager.CloseAll()

	log.Info("Bidding gateway stopped")
}
