package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketplace-escrow/internal/client"
	"marketplace-escrow/internal/config"
	"marketplace-escrow/internal/repository"
	"marketplace-escrow/internal/server"
	"marketplace-escrow/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(&cfg.Log)

	db := client.InitDBClient(cfg.DatabaseURL)
	paystackClient := client.NewPaystackClient(&cfg.Paystack)

	paymentRepo := repository.NewPaymentRepository(db)
	itemRepo := repository.NewItemRepository(db)
	userRepo := repository.NewUserRepository(db)
	earningRepo := repository.NewEarningRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	disputeRepo := repository.NewDisputeRepository(db)
	feeRuleRepo := repository.NewFeeRuleRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	adminFeeRepo := repository.NewAdminFeeWithdrawalRepository(db)
	webhookRepo := repository.NewWebhookEventRepository(db)

	notifier := service.NewSlogNotifier(logger)
	feeService := service.NewFeeService(feeRuleRepo, cfg.Escrow.DefaultFeePercent)

	paymentService := service.NewPaymentService(
		db, logger, paystackClient, feeService, notifier,
		paymentRepo, itemRepo, earningRepo, ledgerRepo, disputeRepo, webhookRepo,
		cfg.Escrow.Currency, cfg.Escrow.InitiatedTTL,
	)
	disputeService := service.NewDisputeService(db, notifier, paymentRepo, disputeRepo, cfg.Escrow.DisputeWindow)
	adminService := service.NewAdminService(
		db, notifier, paymentService,
		paymentRepo, itemRepo, ledgerRepo, disputeRepo, userRepo,
		cfg.Escrow.OverdueAfter,
	)
	withdrawalService := service.NewWithdrawalService(
		db, logger, paystackClient,
		ledgerRepo, earningRepo, withdrawalRepo, adminFeeRepo, userRepo,
		cfg.Escrow.Currency, cfg.Escrow.MinWithdrawal,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	srv := server.NewServer(paymentService, disputeService, adminService, withdrawalService, cfg.JWT.Secret)

	log.Println("Starting HTTP server on", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error")
		}
	}()

	// Sweep abandoned checkouts in the background.
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	defer sweeperCancel()
	go runExpirySweeper(sweeperCtx, logger, paymentService)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Println("Signal received, starting graceful shutdown...")
	sweeperCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("HTTP server shutdown error")
	}
}

func runExpirySweeper(ctx context.Context, logger *slog.Logger, paymentService service.PaymentService) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := paymentService.ExpireStaleInitiated(ctx)
			if err != nil {
				logger.Error("expiry sweep failed", "error", err)
				continue
			}
			if expired > 0 {
				logger.Info("cancelled stale checkouts", "count", expired)
			}
		}
	}
}

func newLogger(cfg *config.Log) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(h)
}
