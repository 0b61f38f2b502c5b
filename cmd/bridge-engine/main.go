// Command bridge-engine is the composition root: it loads configuration,
// opens the Postgres and Redis connections, wires every bridge/*
// collaborator together, and runs the HTTP server alongside the
// background drivers under a single system.Manager until an interrupt
// or terminate signal arrives.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/adminauth"
	adminauthpg "github.com/r3e-bridge/bridge-engine/internal/bridge/adminauth/postgres"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/audit"
	auditpg "github.com/r3e-bridge/bridge-engine/internal/bridge/audit/postgres"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/chainadapter"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/drivers"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/eventbus"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/httpapi"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/order"
	orderpg "github.com/r3e-bridge/bridge-engine/internal/bridge/order/postgres"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/rate"
	ratepg "github.com/r3e-bridge/bridge-engine/internal/bridge/rate/postgres"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/ratelimit"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/signing"
	signingpg "github.com/r3e-bridge/bridge-engine/internal/bridge/signing/postgres"
	"github.com/r3e-bridge/bridge-engine/internal/config"
	"github.com/r3e-bridge/bridge-engine/internal/platform/migrations"
	"github.com/r3e-bridge/bridge-engine/internal/system"
	"github.com/r3e-bridge/bridge-engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("bridge engine exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	if err := migrations.Apply(ctx, db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	orderStore := orderpg.New(db)
	rateStore := ratepg.New(db)
	auditStore := auditpg.New(db)
	adminStore := adminauthpg.New(db)
	signingStore := signingpg.New(db)

	auditChain := audit.New(auditStore)
	bus := eventbus.New(redisClient, log)

	httpClient := &http.Client{Timeout: 10 * time.Second}
	rateEngine := rate.New(redisClient, rateStore, bus, log,
		rate.NewCoinGeckoSource(httpClient, "https://api.coingecko.com/api/v3", ""),
		rate.NewBinanceSource(httpClient, "https://api.binance.com"),
		rate.NewCoinCapSource(httpClient, "https://api.coincap.io/v2"),
	)

	chains := chainadapter.NewRegistry(
		chainadapter.New("XMR", chainadapter.NewHTTPTransport(cfg.MoneroRPCURL, 15*time.Second)),
		chainadapter.New("BTC", chainadapter.NewHTTPTransport(cfg.BitcoinRPCURL, 15*time.Second)),
		chainadapter.New("ETH", chainadapter.NewHTTPTransport(cfg.EthRPCURL, 15*time.Second)),
		chainadapter.New("ARB", chainadapter.NewHTTPTransport(cfg.ArbitrumRPCURL, 15*time.Second)),
		chainadapter.New("BASE", chainadapter.NewHTTPTransport(cfg.BaseRPCURL, 15*time.Second)),
		chainadapter.New("SOL", chainadapter.NewHTTPTransport(cfg.SolanaRPCURL, 15*time.Second)),
		chainadapter.New("TON", chainadapter.NewHTTPTransport(cfg.TonAPIURL, 15*time.Second)),
	)

	orderSvc := order.NewService(orderStore, rateEngine, auditChain, bus, chains, log, cfg.BridgeFeePercent, cfg.OrderExpiryMinutes)

	limiter := ratelimit.New(redisClient)
	presets := ratelimit.NewPresets(cfg.RateLimitRatesPerMin, cfg.RateLimitOrdersPerMin, cfg.RateLimitWSPerIP)
	authenticator := adminauth.New(adminStore, cfg.SecretKey, cfg.JWTExpiry)

	shares, err := signing.GenerateShares(cfg.MPCThreshold, cfg.MPCTotalSigners)
	if err != nil {
		return fmt.Errorf("generate signing shares: %w", err)
	}
	signers := make([]*signing.Signer, 0, len(shares))
	for _, share := range shares {
		signers = append(signers, signing.NewSigner(share))
	}
	coordinator := signing.NewCoordinator(signingStore, cfg.MPCThreshold)

	health := &healthChecker{db: db, redis: redisClient}
	handler := httpapi.New(orderSvc, rateEngine, authenticator, bus, limiter, presets, health, cfg.CORSOriginList(), log)

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler.Router(),
	}

	manager := system.NewManager(log)
	manager.Register(drivers.NewDepositMonitor(orderStore, chains, orderSvc, log))
	manager.Register(drivers.NewConfirmationChecker(orderStore, chains, orderSvc, log))
	manager.Register(drivers.NewExpirySweeper(orderStore, orderSvc, log))
	manager.Register(drivers.NewWithdrawalProcessor(orderStore, chains, coordinator, signers, orderSvc, log))
	manager.Register(drivers.NewAuditVerifier(auditChain, log))
	manager.Register(drivers.NewSigningTimeoutSweeper(coordinator, cfg.SigningSessionTimeout, log))
	manager.Register(&httpService{server: httpServer, log: log})

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	log.WithField("addr", cfg.Addr()).Info("bridge engine listening")

	<-ctx.Done()
	log.Info("shutdown signal received, stopping services")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return manager.Stop(stopCtx)
}

// healthChecker backs GET /ready by pinging Postgres and Redis.
type healthChecker struct {
	db    *sqlx.DB
	redis *redis.Client
}

func (h *healthChecker) Ready(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// httpService adapts http.Server to system.Service so it stops and
// starts alongside the background drivers under the same manager.
type httpService struct {
	server *http.Server
	log    logger.Logger
}

func (s *httpService) Name() string { return "http-server" }

func (s *httpService) Start(_ context.Context) error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()
	return nil
}

func (s *httpService) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
