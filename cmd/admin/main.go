package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"github.com/ownafarm/ownafarm-gateway/internal/alerts"
	"github.com/ownafarm/ownafarm-gateway/internal/apikey"
	"github.com/ownafarm/ownafarm-gateway/internal/auth"
	"github.com/ownafarm/ownafarm-gateway/internal/client/backend"
	"github.com/ownafarm/ownafarm-gateway/internal/config"
	"github.com/ownafarm/ownafarm-gateway/internal/contract"
	"github.com/ownafarm/ownafarm-gateway/internal/decision"
	"github.com/ownafarm/ownafarm-gateway/internal/journal"
	"github.com/ownafarm/ownafarm-gateway/internal/logger"
	"github.com/ownafarm/ownafarm-gateway/internal/wallet"
)

// Operator CLI for the approval workflow. Runs the same flows as the HTTP
// gateway but from a terminal, which is useful when repairing divergence.
func main() {
	var (
		listStatus = flag.String("list", "", "list farmers with the given status (pending, approved, rejected, or 'all')")
		approveID  = flag.String("approve", "", "approve the farmer with this id")
		rejectID   = flag.String("reject", "", "reject the farmer with this id")
		tokenID    = flag.Uint64("token", 0, "invoice token id for approve/reject")
		reason     = flag.String("reason", "", "reject reason")
		reconcile  = flag.Bool("reconcile", false, "replay out-of-sync decisions against the backend")
		stats      = flag.Bool("stats", false, "print contract counters")
		genKey     = flag.Bool("genkey", false, "generate a gateway API key and its bcrypt hash")
	)
	flag.Parse()

	if *genKey {
		generateKey()
		return
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}
	cfg, err := config.Load()
	if err != nil {
		fatal("invalid configuration: %v", err)
	}
	logger.InitLogger(cfg.Stage)
	defer logger.Sync()
	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		fatal("%v", err)
	}

	switch {
	case *listStatus != "":
		err = app.listFarmers(ctx, *listStatus)
	case *approveID != "":
		err = app.decide(ctx, *approveID, *tokenID, "approve", "")
	case *rejectID != "":
		if *reason == "" {
			fatal("-reject requires -reason")
		}
		err = app.decide(ctx, *rejectID, *tokenID, "reject", *reason)
	case *reconcile:
		err = app.reconcile(ctx)
	case *stats:
		err = app.printStats(ctx)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fatal("%v", err)
	}
}

type app struct {
	backend   *backend.Client
	handshake *auth.Handshake
	gateway   *contract.Gateway
	decisions *decision.Service
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	keyHex := cfg.SignerKeyHex
	if cfg.SignerKeySecretARN != "" {
		secrets, err := wallet.NewSecretsManagerClient(ctx)
		if err != nil {
			return nil, err
		}
		keyHex, err = secrets.GetSignerKey(ctx, cfg.SignerKeySecretARN, "ADMIN_SIGNER_KEY")
		if err != nil {
			return nil, err
		}
	}
	signer, err := wallet.NewLocalSigner(keyHex)
	if err != nil {
		return nil, err
	}

	session := auth.NewSession()
	backendClient := backend.NewClient(cfg.BackendURL, backend.WithTokenSource(session))
	handshake := auth.NewHandshake(backendClient, signer, session, cfg.ChainID, logger.Log)

	eth, err := ethclient.DialContext(ctx, cfg.ChainRPCURL)
	if err != nil {
		return nil, err
	}
	gateway, err := contract.NewGateway(ctx, eth, signer,
		common.HexToAddress(cfg.ContractAddress), cfg.ChainID,
		contract.WithReceiptTimeout(cfg.ReceiptTimeout),
		contract.WithConfirmations(cfg.Confirmations))
	if err != nil {
		return nil, err
	}

	var j journal.Journal
	if cfg.DatabaseURL != "" {
		pg, err := journal.NewPgJournal(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		j = pg
	} else {
		j = journal.NewMemJournal()
	}

	observer := func(u decision.Update) {
		if u.Err != nil {
			fmt.Printf("  [%s] token %d: %v\n", u.Phase, u.TokenID, u.Err)
			return
		}
		if u.TxHash != "" {
			fmt.Printf("  [%s] token %d tx %s\n", u.Phase, u.TokenID, u.TxHash)
			return
		}
		fmt.Printf("  [%s] token %d\n", u.Phase, u.TokenID)
	}
	decisions := decision.NewService(gateway, backendClient, j, alerts.NopNotifier{}, observer, logger.Log)

	return &app{
		backend:   backendClient,
		handshake: handshake,
		gateway:   gateway,
		decisions: decisions,
	}, nil
}

func (a *app) login(ctx context.Context) error {
	admin, err := a.handshake.Login(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", admin.WalletAddress, admin.Role)
	return nil
}

func (a *app) listFarmers(ctx context.Context, status string) error {
	if err := a.login(ctx); err != nil {
		return err
	}
	if status == "all" {
		status = ""
	}
	farmers, err := a.backend.ListFarmers(ctx, status)
	if err != nil {
		return err
	}
	if len(farmers) == 0 {
		fmt.Println("no farmers found")
		return nil
	}
	for _, f := range farmers {
		token := "-"
		if f.TokenID != nil {
			token = fmt.Sprintf("%d", *f.TokenID)
		}
		fmt.Printf("%s  %-24s  %-10s  token=%s\n", f.ID, f.FullName, f.Status, token)
	}
	return nil
}

func (a *app) decide(ctx context.Context, farmerID string, tokenID uint64, action, reason string) error {
	if tokenID == 0 {
		return fmt.Errorf("-token is required for %s", action)
	}
	if err := a.login(ctx); err != nil {
		return err
	}
	result, err := a.decisions.Decide(ctx, decision.Request{
		FarmerID: farmerID,
		TokenID:  &tokenID,
		Action:   action,
		Reason:   reason,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s of invoice #%d confirmed in tx %s\n", action, result.TokenID, result.TxHash)
	return nil
}

func (a *app) reconcile(ctx context.Context) error {
	if err := a.login(ctx); err != nil {
		return err
	}
	report, err := a.decisions.ReconcilePending(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("attempted %d, repaired %d, remaining %d\n", report.Attempted, report.Repaired, report.Remaining)
	return nil
}

func (a *app) printStats(ctx context.Context) error {
	stats, err := a.gateway.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("total submitted: %s\npending: %s\navailable: %s\n",
		stats.TotalSubmitted, stats.PendingCount, stats.AvailableCount)
	return nil
}

func generateKey() {
	fullKey, prefix, err := apikey.Generate()
	if err != nil {
		fatal("failed to generate key: %v", err)
	}
	hash, err := apikey.Hash(fullKey)
	if err != nil {
		fatal("failed to hash key: %v", err)
	}
	fmt.Printf("api key (save it, shown once): %s\n", fullKey)
	fmt.Printf("prefix: %s\n", prefix)
	fmt.Printf("bcrypt hash for GATEWAY_API_KEY_HASHES: %s\n", hash)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
