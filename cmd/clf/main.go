package main

import (
	"context"
	"os"
	"time"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/analyzer"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/config"
	datafetcher "github.com/Risk-DAO/dex-history-fetcher-sub001/internal/datafetcher"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/logger"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/runner"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/state"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/web"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the CLF risk engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(cfg.LogLevel)
	log.Info().Msg("CLF Risk Engine Starting...")

	// Initialize Database Connection (history store and run results)
	dbCfg := state.DBConfig{
		Host: cfg.DB.Host, Port: cfg.DB.Port,
		User: cfg.DB.User, Password: cfg.DB.Password,
		DBName: cfg.DB.DBName, SSLMode: cfg.DB.SSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- Start Web Server ---
	webServer := web.NewWebServer(cfg.WebPort)
	go func() {
		log.Info().Str("port", cfg.WebPort).Str("url", "http://localhost:"+cfg.WebPort).Msg("Starting CLF results server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// Initialize JSON-RPC Connection
	ethClient, err := ethclient.Dial(cfg.NodeRPC)
	if err != nil {
		log.Fatal().Err(err).Msg("JSON-RPC connection error")
	}
	defer ethClient.Close()
	log.Info().Str("endpoint", cfg.NodeRPC).Msg("JSON-RPC connected")

	// --- 2. Data Source Initialization ---
	chainClient, err := datafetcher.NewChainClient(ethClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize chain client")
	}
	blockSearcher, err := datafetcher.NewBlockSearcher(ethClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize block searcher")
	}
	priceClient, err := datafetcher.NewPriceClient(cfg.PriceAPI, cfg.PriceChain)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price client")
	}
	liquidityStore := state.NewLiquidityStore()
	volatilityStore := state.NewVolatilityStore()

	// --- 3. Create Engine with Dependency Injection ---
	log.Info().Msg("Creating CLF engine with dependency injection...")

	liquidityRouter, err := analyzer.NewLiquidityRouter(liquidityStore, cfg.PivotAssets, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create liquidity router")
	}
	matrixBuilder, err := analyzer.NewMatrixBuilder(cfg.Spans, blockSearcher, volatilityStore, liquidityRouter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create matrix builder")
	}
	engine, err := analyzer.NewEngine(analyzer.EngineConfig{
		ChainReader:      chainClient,
		BlockResolver:    blockSearcher,
		PriceSource:      priceClient,
		MatrixBuilder:    matrixBuilder,
		AssetConcurrency: cfg.AssetConcurrency,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create CLF engine")
	}

	clfRunner, err := runner.NewRunner(runner.Config{
		Engine:  engine,
		Markets: cfg.Markets,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create runner")
	}

	log.Info().Msg("CLF engine created successfully")

	ctx := context.Background()

	// --- 4. Backfill Mode or Scheduled Loop ---
	if startStr := os.Getenv("BACKFILL_START"); startStr != "" {
		endStr := os.Getenv("BACKFILL_END")
		if endStr == "" {
			endStr = time.Now().UTC().Format("2006-01-02")
		}
		start, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			log.Fatal().Err(err).Msg("BACKFILL_START must be YYYY-MM-DD")
		}
		end, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			log.Fatal().Err(err).Msg("BACKFILL_END must be YYYY-MM-DD")
		}

		log.Info().Str("start", startStr).Str("end", endStr).Msg("Running in backfill mode")
		if err := clfRunner.Backfill(ctx, start, end); err != nil {
			log.Fatal().Err(err).Msg("Backfill failed")
		}
		return
	}

	log.Info().Str("interval", cfg.RunInterval.String()).Msg("Starting CLF main loop")
	clfRunner.RunLoop(ctx, cfg.RunInterval)
}
