package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"

	"sardis/cache"
	"sardis/config"
	"sardis/core/events"
	"sardis/gateway"
	"sardis/gateway/middleware"
	"sardis/native/approval"
	"sardis/native/escrow"
	"sardis/native/holds"
	"sardis/native/identity"
	"sardis/native/ledger"
	"sardis/native/mandate"
	"sardis/native/payments"
	"sardis/native/policy"
	"sardis/native/token"
	"sardis/native/wallet"
	"sardis/observability/logging"
	telemetry "sardis/observability/otel"
	"sardis/services/webhookd"
	"sardis/storage/gormstore"
	"sardis/storage/memory"
	"sardis/storage/replay"
)

const sweepInterval = time.Minute

// platformStore is the persistence surface every backend must provide.
type platformStore interface {
	wallet.Store
	payments.Store
	holds.Store
	ledger.Store
	approval.Store
	webhookd.Store
	policy.StatePort
	policy.BalancePort
	gateway.PolicyRepository

	EscrowPut(ctx context.Context, e *escrow.Escrow) error
	EscrowGet(ctx context.Context, escrowID string) (*escrow.Escrow, error)
	EscrowsByState(ctx context.Context, state escrow.State) ([]*escrow.Escrow, error)
	EscrowsForAgent(ctx context.Context, agentID string) ([]*escrow.Escrow, error)
	escrow.SettlementLog
	gateway.SettlementReader
}

func main() {
	var cfgPath string
	var listenFlag string
	flag.StringVar(&cfgPath, "config", "sardis.toml", "path to platform configuration")
	flag.StringVar(&listenFlag, "listen", "", "override the configured listen address")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if listenFlag != "" {
		cfg.ListenAddress = listenFlag
	}

	var logOpts []logging.Option
	if cfg.Log.File != "" {
		logOpts = append(logOpts, logging.WithRotatingFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays))
	}
	logger := logging.Setup("sardisd", string(cfg.Environment), logOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Traces || cfg.Telemetry.Metrics {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "sardisd",
			Environment: string(cfg.Environment),
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			logger.Error("telemetry init failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTelemetry(shutdownCtx)
		}()
	}

	var store platformStore
	if cfg.DatabaseURL != "" {
		gs, err := gormstore.Open(postgres.Open(cfg.DatabaseURL))
		if err != nil {
			logger.Error("database open failed", "error", err)
			os.Exit(1)
		}
		store = gs
		logger.Info("storage backend ready", "backend", "postgres")
	} else {
		store = memory.NewStore()
		logger.Info("storage backend ready", "backend", "memory")
	}

	var replayStore payments.ReplayPort
	var replaySweep func() (int, error)
	if cfg.DataDir != "" {
		ldb, err := replay.OpenLevelDBStore(filepath.Join(cfg.DataDir, "replay"))
		if err != nil {
			logger.Error("replay store open failed", "error", err)
			os.Exit(1)
		}
		defer ldb.Close()
		replayStore, replaySweep = ldb, ldb.GC
	} else {
		mem := replay.NewMemoryStore()
		replayStore = mem
		replaySweep = func() (int, error) { return mem.GC(), nil }
	}

	var shared cache.Cache = cache.NewMemory()
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("redis url invalid", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(redisOpts)
		defer client.Close()
		shared = cache.NewTiered(cache.NewRedis(client, "sardis"), cache.WithLogger(logger))
	}

	bus := events.NewBus()
	dispatcher := webhookd.NewDispatcher(store, webhookd.WithLogger(logger))
	unsubscribe := bus.Subscribe("*", dispatcher.HandleEvent)
	defer unsubscribe()

	tokens := token.Default()
	registry := identity.NewRegistry()
	wallets := wallet.NewService(store, wallet.WithEmitter(bus))
	book := ledger.New(store)
	engine := policy.NewEngine()
	holdsMgr := holds.NewManager(store)
	approvals := approval.NewManager(store, approval.WithEmitter(bus))
	gate := approval.NewGate(approvals, nil)

	var executor payments.ChainExecutorPort
	if cfg.ChainMode == config.ChainLive {
		keyHex := cfg.SignerKey
		if env := os.Getenv("SARDIS_SIGNER_KEY"); env != "" {
			keyHex = env
		}
		evm, err := payments.NewEVMExecutor(ctx, cfg.ChainRPC, tokens, keyHex)
		if err != nil {
			logger.Error("chain executor init failed", "error", err)
			os.Exit(1)
		}
		executor = evm
	} else {
		executor = payments.NewSimulatedExecutor(tokens)
	}
	executor = payments.NewCachingExecutor(executor, shared, 0)

	orchestrator := payments.NewOrchestrator(
		store, store, engine, store, executor, book, wallets,
		payments.WithStatePort(store),
		payments.WithEmitter(bus),
		payments.WithApprovals(gate),
		payments.WithLogger(logger),
	)
	service := payments.NewService(orchestrator, registry, replayStore,
		payments.WithReplayTTL(time.Duration(cfg.MandateTTLSeconds)*time.Second),
		payments.WithServiceLogger(logger),
	)

	var settler escrow.Settler = escrow.NewOnChainSettler(executorAdapter{executor}, wallets, book, firstDomain(cfg.AllowedDomains),
		escrow.WithSettlementLog(store))
	if cfg.ChainMode == config.ChainSimulated && cfg.Settlement.AllowOffchainInProd {
		settler = escrow.NewOffChainSettler(book, escrow.WithOffChainLog(store))
	}
	escrows := escrow.NewEngine(store,
		escrow.WithEmitter(bus),
		escrow.WithSettler(settler),
	)

	server := gateway.NewServer(gateway.Config{
		Auth: middleware.AuthConfig{Secret: cfg.SecretKey},
		CORS: middleware.CORSConfig{AllowedOrigins: cfg.AllowedOrigins},
		PaymentRateLimit: middleware.RateLimitConfig{
			Enabled:       cfg.AgentPaymentRateLimit.Enabled,
			MaxRequests:   cfg.AgentPaymentRateLimit.MaxRequests,
			WindowSeconds: cfg.AgentPaymentRateLimit.WindowSeconds,
		},
		Info: gateway.PlatformInfo{
			Environment:         string(cfg.Environment),
			ChainMode:           string(cfg.ChainMode),
			APIBaseURL:          cfg.APIBaseURL,
			ERC4337Enabled:      cfg.ERC4337.Enabled,
			ERC4337RolloutStage: cfg.ERC4337.RolloutStage,
			ERC4337Chains:       cfg.ERC4337.ChainAllowlist,
		},
	}, gateway.Deps{
		Payments:     service,
		Orchestrator: orchestrator,
		Executor:     executor,
		Tokens:       tokens,
		Wallets:      wallets,
		Holds:        holdsMgr,
		Policies:     store,
		PolicyEngine: engine,
		Balances:     store,
		PolicyState:  store,
		Ledger:       book,
		Escrows:      escrows,
		Settlements:  store,
		Webhooks:     store,
		Identity:     registry,
		Logger:       logger,
	})

	go runSweeps(ctx, logger, holdsMgr, escrows, approvals, registry, replaySweep)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("gateway listening", "addr", cfg.ListenAddress, "chain_mode", string(cfg.ChainMode))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gateway serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown incomplete", "error", err)
	}
	if err := bus.Shutdown(shutdownCtx); err != nil {
		logger.Warn("event bus shutdown incomplete", "error", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn("webhook dispatcher shutdown incomplete", "error", err)
	}
}

// runSweeps drives the periodic expiry work: holds, escrows, approval
// workflows, key rotation grace windows, and the replay cache.
func runSweeps(
	ctx context.Context,
	logger *slog.Logger,
	holdsMgr *holds.Manager,
	escrows *escrow.Engine,
	approvals *approval.Manager,
	registry *identity.Registry,
	replaySweep func() (int, error),
) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if n, err := holdsMgr.ExpireOldHolds(ctx); err != nil {
			logger.Warn("hold expiry sweep failed", "error", err)
		} else if n > 0 {
			logger.Debug("holds expired", "count", n)
		}
		if n, err := escrows.CheckExpired(ctx); err != nil {
			logger.Warn("escrow expiry sweep failed", "error", err)
		} else if n > 0 {
			logger.Debug("escrows expired", "count", n)
		}
		if n, err := approvals.SweepExpired(ctx); err != nil {
			logger.Warn("approval expiry sweep failed", "error", err)
		} else if n > 0 {
			logger.Debug("approval workflows expired", "count", n)
		}
		if n := registry.SweepExpiredGrace(); n > 0 {
			logger.Debug("rotation grace windows closed", "count", n)
		}
		if n, err := replaySweep(); err != nil {
			logger.Warn("replay sweep failed", "error", err)
		} else if n > 0 {
			logger.Debug("replay entries collected", "count", n)
		}
	}
}

// executorAdapter narrows the payment executor to the settlement contract.
type executorAdapter struct {
	inner payments.ChainExecutorPort
}

func (a executorAdapter) ExecuteTransfer(ctx context.Context, p *mandate.PaymentMandate) (string, error) {
	receipt, err := a.inner.ExecuteTransfer(ctx, p)
	if err != nil {
		return "", err
	}
	return receipt.TxHash, nil
}

func firstDomain(domains []string) string {
	if len(domains) > 0 {
		return domains[0]
	}
	return "pay.sardis.xyz"
}
