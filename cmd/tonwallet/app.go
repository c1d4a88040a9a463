package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/AlexZinkM/ton-wallet/internal/client"
	"github.com/AlexZinkM/ton-wallet/internal/common"
	"github.com/AlexZinkM/ton-wallet/internal/config"
	"github.com/AlexZinkM/ton-wallet/internal/crypto"
	"github.com/AlexZinkM/ton-wallet/internal/ledger"
	"github.com/AlexZinkM/ton-wallet/internal/ledger/postgres"
	"github.com/AlexZinkM/ton-wallet/internal/rpc"
	"github.com/AlexZinkM/ton-wallet/ton"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// app is the wired wallet for one CLI invocation.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	vault    *crypto.Vault
	store    *crypto.FileStore
	wallet   *ton.Wallet
	closers  []func()
}

func newApp(ctx context.Context, userID int64) (*app, error) {
	if err := config.Init(); err != nil {
		return nil, err
	}
	cfg := config.Get()

	logger, err := common.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	metrics, err := rpc.NewMetrics(a.registry)
	if err != nil {
		return nil, err
	}

	policy := rpc.DefaultPolicy()
	policy.MaxAttempts = cfg.RetryAttempts
	policy.BaseDelay = cfg.RetryBase
	node := client.NewToncenter(cfg.RPCURL, client.WithAPIKey(cfg.RPCAPIKey))
	gateway := rpc.NewGateway(node, policy, logger, metrics)

	jettons, err := config.LoadTokens(cfg.TokensFile)
	if err != nil {
		return nil, err
	}
	networkFee, err := parseFee("NETWORK_FEE_TON", cfg.NetworkFee)
	if err != nil {
		return nil, err
	}
	protocolFee, err := parseFee("PROTOCOL_FEE_TON", cfg.ProtocolFee)
	if err != nil {
		return nil, err
	}

	a.vault, err = crypto.NewVault([]byte(cfg.VaultSecret))
	if err != nil {
		return nil, err
	}
	a.store, err = crypto.NewFileStore(cfg.WalletFilePath)
	if err != nil {
		return nil, err
	}

	l, err := a.openLedger(ctx, userID)
	if err != nil {
		a.Close()
		return nil, err
	}

	prices := ton.NewPriceCache(client.NewCoinGeckoClient(cfg.PriceURL), cfg.PriceCurrency, cfg.PriceTTL, logger)
	balances := ton.NewBalanceAggregator(gateway, jettons, prices, logger)
	transfers := ton.NewTransferBuilder(gateway, balances, networkFee, logger)
	swaps, err := ton.NewSwapEngine(transfers, protocolFee, cfg.SlippageBps, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.wallet = ton.NewWallet(ton.Deps{
		Vault:     a.vault,
		Store:     a.store,
		Gateway:   gateway,
		Balances:  balances,
		Transfers: transfers,
		Swaps:     swaps,
		Tracker:   ton.NewConfirmationTracker(gateway, cfg.ConfirmInterval, cfg.ConfirmAttempts, logger),
		Ledger:    l,
		Logger:    logger,
	})
	return a, nil
}

// openLedger uses PostgreSQL when DATABASE_URL is set; otherwise records live for the
// duration of the command only.
func (a *app) openLedger(ctx context.Context, userID int64) (ledger.Ledger, error) {
	if a.cfg.DatabaseURL == "" {
		return ledger.NewMemory(ledger.User{ID: userID, Username: "local"}), nil
	}

	pool, err := postgres.NewPool(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)

	if err := postgres.Migrate(ctx, pool); err != nil {
		return nil, err
	}
	l := postgres.NewLedger(pool)
	if err := requireUser(ctx, l, userID); err != nil {
		return nil, err
	}
	return l, nil
}

// noUser opens the app for commands that never write to the ledger.
const noUser int64 = 0

// requireUser checks the ledger knows userID before any command records under it.
func requireUser(ctx context.Context, l ledger.Ledger, userID int64) error {
	if userID == noUser {
		return nil
	}
	if _, err := l.FindUser(ctx, userID); err != nil {
		return err
	}
	return nil
}

// Close releases the ledger connection and flushes the logger.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// session returns the local session; the passphrase is the vault context.
func (a *app) session(userID int64, owner string, passphrase []byte) ton.Session {
	return ton.Session{UserID: userID, Owner: owner, VaultContext: passphrase}
}

func parseFee(name, value string) (*big.Int, error) {
	fee, err := common.TONToNano(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return fee, nil
}
