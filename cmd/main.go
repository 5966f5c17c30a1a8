package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/chain"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/config"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/handlers"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/services"
	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	envFile := flag.String("env", ".env", "optional .env file with LOTTO_* overrides")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize the logger
	var logOut io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	defer logger.Init("secret-lotto", cfg.Verbose, false, logOut).Close()
	logger.SetFlags(log.LstdFlags)

	// 3. Open the ledger store
	var st store.Store
	switch cfg.Store.Driver {
	case "bolt":
		st, err = store.OpenBolt(cfg.Store.Path)
		if err != nil {
			logger.Fatalf("Failed to open store: %v", err)
		}
	default:
		st = store.NewMemoryStore()
	}
	defer st.Close()

	// 4. Initialize the ledger and the Lottery Service
	ledger := chain.NewLedger(st, config.Addr(cfg.Contract))
	lotteryService := services.NewLotteryService(ledger, services.NewSecretLotto(services.BlockEntropy{}))

	settings, err := lotterySettings(cfg)
	if err != nil {
		logger.Fatalf("Invalid lottery settings: %v", err)
	}

	// 5. Deploy on first start and credit the genesis accounts
	ctx := context.Background()
	switch err := lotteryService.Deploy(ctx, config.Addr(cfg.Owner), settings); {
	case err == nil:
		for addr, amount := range cfg.Genesis {
			wei, _ := config.ParseEther(amount)
			if err := ledger.Fund(config.Addr(addr), wei); err != nil {
				logger.Fatalf("Failed to fund %s: %v", addr, err)
			}
			logger.Infof("Genesis allocation: %s = %s ether", addr, amount)
		}
	case errors.Is(err, services.ErrInitialized):
		logger.Info("Lottery already deployed, resuming.")
	default:
		logger.Fatalf("Failed to deploy lottery: %v", err)
	}

	// 6. Start the keeper for scheduled draws
	if cfg.Keeper.Enabled {
		keeper, err := services.NewKeeper(lotteryService, config.Addr(cfg.Keeper.Identity), cfg.Keeper.Schedule)
		if err != nil {
			logger.Fatalf("Failed to create keeper: %v", err)
		}
		keeper.Start()
		defer keeper.Stop()
	}

	// 7. Set up the Gin router
	httpHandler := handlers.NewHTTPHandler(lotteryService)
	r := gin.Default()
	r.Use(handlers.RequestID())
	if cfg.RateLimit.RequestsPerSecond > 0 {
		r.Use(handlers.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst).Middleware())
	}

	// 8. Register public routes (before middleware)
	httpHandler.RegisterPublicRoutes(r)

	// 9. Group lottery routes behind caller identification
	api := r.Group("/")
	api.Use(httpHandler.CallerMiddleware())
	httpHandler.RegisterRoutes(api)

	// 10. Run the server until interrupted
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Server starting on %s", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to run server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown: %v", err)
	}
}

// lotterySettings converts the validated config into deployment settings.
func lotterySettings(cfg *config.Config) (services.Settings, error) {
	minBet, err := config.ParseEther(cfg.Lottery.MinBet)
	if err != nil {
		return services.Settings{}, err
	}
	maxBet, err := config.ParseEther(cfg.Lottery.MaxBet)
	if err != nil {
		return services.Settings{}, err
	}
	s := services.Settings{
		MinBet:      minBet,
		MaxBet:      maxBet,
		PlatformFee: cfg.Lottery.PlatformFee,
		PayoutMode:  models.PayoutMode(cfg.Lottery.PayoutMode),
	}
	if cfg.Lottery.Treasury != "" {
		s.FeeRecipient = config.Addr(cfg.Lottery.Treasury)
	}
	return s, nil
}
