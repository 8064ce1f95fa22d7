package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/fundta-api/internal/auth"
	"github.com/ksred/fundta-api/internal/authz"
	"github.com/ksred/fundta-api/internal/database"
	"github.com/ksred/fundta-api/internal/ledger"
	"github.com/ksred/fundta-api/internal/pending"
	"github.com/ksred/fundta-api/internal/recovery"
	"github.com/ksred/fundta-api/internal/settlement"
	"github.com/ksred/fundta-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the transfer-agent API server with graceful
// shutdown support
func main() {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "fundta-secret-key"
	}

	authService := auth.NewService(jwtSecret, db)
	authHandlers := auth.NewGinHandlers(authService)

	// Register operator API credentials from the environment
	if apiKey := os.Getenv("FUND_API_KEY"); apiKey != "" {
		if err := authService.RegisterAPICredentials(apiKey, os.Getenv("FUND_API_SECRET")); err != nil {
			zlog.Fatal().Err(err).Msg("Failed to register API credentials")
		}
	}

	// Seed admin API clients from the environment
	authzDB := authz.NewDatabase(db)
	for _, clientID := range strings.Split(os.Getenv("FUND_ADMIN_KEYS"), ",") {
		clientID = strings.TrimSpace(clientID)
		if clientID == "" {
			continue
		}
		if err := authzDB.RegisterAdmin(clientID); err != nil {
			zlog.Fatal().Err(err).Str("client_id", clientID).Msg("Failed to register admin key")
		}
	}

	authzHandlers := authz.NewGinHandlers(db)
	ledgerHandlers := ledger.NewGinHandlers(db)

	pendingService := pending.NewService(db)
	pendingHandlers := pending.NewGinHandlers(pendingService)

	settlementService := settlement.NewService(db)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	recoveryService := recovery.NewService(db)
	recoveryHandlers := recovery.NewGinHandlers(recoveryService)

	// Start the background settlement sweep when the operator opts in
	if os.Getenv("FUND_SWEEP_ENABLED") == "true" {
		settlementProcessor := settlement.NewProcessor(settlementService)
		processorCtx, processorCancel := context.WithCancel(context.Background())
		defer processorCancel()

		go settlementProcessor.Start(processorCtx)
	}

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, authzHandlers, ledgerHandlers,
		pendingHandlers, settlementHandlers, recoveryHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Transaction routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	authzHandlers *authz.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	pendingHandlers *pending.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
	recoveryHandlers *recovery.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Shareholder request routes
		transactions := v1.Group("/transactions")
		transactions.Use(middleware.JWTAuth())
		{
			transactions.POST("", pendingHandlers.CreateTransactionHandler())
		}

		// Account query routes
		accounts := v1.Group("/accounts")
		accounts.Use(middleware.JWTAuth())
		{
			accounts.GET("/:account/balance", ledgerHandlers.GetBalanceHandler())
			accounts.GET("/:account/transactions", pendingHandlers.GetAccountTransactionsHandler())
			accounts.GET("/:account/dividends", settlementHandlers.GetAccountDividendsHandler())
			accounts.GET("/:account/settlements", settlementHandlers.GetAccountSettlementsHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.GET("/fund", ledgerHandlers.GetFundStateHandler())
			internal.POST("/accounts", authzHandlers.AuthorizeAccountHandler())
			internal.POST("/dividends", settlementHandlers.DistributeDividendsHandler())
			internal.POST("/settlement", settlementHandlers.SettleTransactionsHandler())
			internal.POST("/end-of-day", settlementHandlers.EndOfDayHandler())
			internal.POST("/cross-chain", settlementHandlers.SettleCrossChainBatchHandler())
			internal.POST("/cross-chain/single", settlementHandlers.SettleCrossChainSingleHandler())
			internal.POST("/adjust-balance", recoveryHandlers.AdjustBalanceHandler())
			internal.POST("/recover-account", recoveryHandlers.RecoverAccountHandler())
			internal.POST("/recover-asset", recoveryHandlers.RecoverAssetHandler())
		}
	}
}
