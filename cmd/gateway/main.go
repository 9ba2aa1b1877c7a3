package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ownafarm/ownafarm-gateway/internal/alerts"
	"github.com/ownafarm/ownafarm-gateway/internal/auth"
	"github.com/ownafarm/ownafarm-gateway/internal/client/backend"
	ownhttp "github.com/ownafarm/ownafarm-gateway/internal/client/http"
	"github.com/ownafarm/ownafarm-gateway/internal/config"
	"github.com/ownafarm/ownafarm-gateway/internal/contract"
	"github.com/ownafarm/ownafarm-gateway/internal/decision"
	"github.com/ownafarm/ownafarm-gateway/internal/handlers"
	"github.com/ownafarm/ownafarm-gateway/internal/journal"
	"github.com/ownafarm/ownafarm-gateway/internal/logger"
	"github.com/ownafarm/ownafarm-gateway/internal/registration"
	"github.com/ownafarm/ownafarm-gateway/internal/server"
	"github.com/ownafarm/ownafarm-gateway/internal/upload"
	"github.com/ownafarm/ownafarm-gateway/internal/wallet"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		// The logger is not up yet.
		os.Stderr.WriteString("warning: could not load .env file: " + err.Error() + "\n")
	}

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.InitLogger(cfg.Stage)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	deps := buildDeps(ctx, cfg)
	cancel()

	srv := server.New(cfg, deps)

	go func() {
		logger.Info("gateway listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("gateway stopped")
}

func buildDeps(ctx context.Context, cfg *config.Config) server.Deps {
	keyHex := cfg.SignerKeyHex
	if cfg.SignerKeySecretARN != "" {
		secrets, err := wallet.NewSecretsManagerClient(ctx)
		if err != nil {
			logger.Fatal("failed to initialize Secrets Manager client", zap.Error(err))
		}
		keyHex, err = secrets.GetSignerKey(ctx, cfg.SignerKeySecretARN, "ADMIN_SIGNER_KEY")
		if err != nil {
			logger.Fatal("failed to load signer key", zap.Error(err))
		}
	}
	signer, err := wallet.NewLocalSigner(keyHex)
	if err != nil {
		logger.Fatal("failed to parse signer key", zap.Error(err))
	}
	logger.Info("admin signer ready", zap.String("address", signer.Address().Hex()))

	session := auth.NewSession()
	backendClient := backend.NewClient(cfg.BackendURL, backend.WithTokenSource(session))
	handshake := auth.NewHandshake(backendClient, signer, session, cfg.ChainID, logger.Log)

	eth, err := ethclient.DialContext(ctx, cfg.ChainRPCURL)
	if err != nil {
		logger.Fatal("failed to dial chain RPC", zap.Error(err))
	}
	gateway, err := contract.NewGateway(ctx, eth, signer,
		common.HexToAddress(cfg.ContractAddress), cfg.ChainID,
		contract.WithReceiptTimeout(cfg.ReceiptTimeout),
		contract.WithConfirmations(cfg.Confirmations))
	if err != nil {
		logger.Fatal("failed to bind contract", zap.Error(err))
	}

	var j journal.Journal
	if cfg.DatabaseURL != "" {
		pg, err := journal.NewPgJournal(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to open decision journal", zap.Error(err))
		}
		j = pg
	} else {
		logger.Warn("DATABASE_URL not set, decision journal is in-memory only")
		j = journal.NewMemJournal()
	}

	var notifier alerts.Notifier = alerts.NopNotifier{}
	if cfg.ResendAPIKey != "" && cfg.AlertToEmail != "" {
		notifier = alerts.NewEmailNotifier(cfg.ResendAPIKey, cfg.AlertFromEmail, cfg.AlertToEmail, logger.Log)
	} else {
		logger.Warn("operator alert email not configured, divergence alerts are log-only")
	}

	decisions := decision.NewService(gateway, backendClient, j, notifier, nil, logger.Log)

	uploader := upload.NewOrchestrator(backendClient, ownhttp.NewClient(), logger.Log)
	registrations := registration.NewService(uploader, backendClient, gateway, logger.Log)

	return server.Deps{
		Admin:  handlers.NewAdminHandler(handshake, session, backendClient, gateway, decisions, cfg.ExplorerBaseURL, logger.Log),
		Farmer: handlers.NewFarmerHandler(registrations, logger.Log),
		Health: handlers.NewHealthHandler(backendClient),
	}
}
