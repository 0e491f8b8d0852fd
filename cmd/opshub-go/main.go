// Package main is the entrypoint for the opshub-go server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethsafari/opshub-go/internal/attest"
	"github.com/ethsafari/opshub-go/internal/attest/aqua"
	"github.com/ethsafari/opshub-go/internal/cache"
	"github.com/ethsafari/opshub-go/internal/config"
	"github.com/ethsafari/opshub-go/internal/httpclient"
	"github.com/ethsafari/opshub-go/internal/identity"
	"github.com/ethsafari/opshub-go/internal/ops"
	"github.com/ethsafari/opshub-go/internal/ratelimit"
	"github.com/ethsafari/opshub-go/internal/server"
	"github.com/ethsafari/opshub-go/internal/store"
	"github.com/ethsafari/opshub-go/internal/tlsutil"
	"github.com/ethsafari/opshub-go/internal/workflow"

	// Register cache and store drivers
	_ "github.com/ethsafari/opshub-go/internal/cache/loader"
	_ "github.com/ethsafari/opshub-go/internal/store/loader"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: prod or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	externalOrigin := flag.String("external-origin", "", "External origin (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: sqlite or memory (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for the store (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off, static, selfsigned, or acme (overrides config)")
	attestEnabled := flag.String("attest-enabled", "", "Enable attestation anchoring: true or false (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:     listenAddr,
			ExternalOrigin: externalOrigin,
			StoreDriver:    storeDriver,
			DataDir:        dataDir,
			TLSMode:        tlsMode,
			AttestEnabled:  attestEnabled,
			LoggingLevel:   loggingLevel,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("effective configuration", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence
	st, err := store.New(&store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
		Options: cfg.Store.Options,
	})
	if err != nil {
		logger.Error("failed to create store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	if err := st.Init(ctx); err != nil {
		logger.Error("failed to initialize store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("store initialized", "driver", cfg.Store.Driver, "data_dir", cfg.Store.DataDir)

	// Cache (identity gate entries and rate limit windows)
	cacheDriver := cfg.Cache.Driver
	if cacheDriver == "" {
		cacheDriver = "memory"
	}
	cacheInstance, err := cache.New(cacheDriver, cfg.Cache.Options)
	if err != nil {
		logger.Error("failed to create cache", "driver", cacheDriver, "error", err)
		os.Exit(1)
	}
	defer cacheInstance.Close()

	// Outbound HTTP client (attestation provider, token introspection)
	httpClient := httpclient.New(&cfg.OutboundHTTP)

	// Attestation service
	var anchorClient attest.AnchorClient
	if cfg.Attest.Enabled && cfg.Attest.ProviderURL != "" {
		anchorClient = aqua.New(httpClient, cfg.Attest.ProviderURL, cfg.Attest.ServiceToken)
	}
	var signer attest.Signer
	if cfg.Attest.SignKeyPath != "" {
		keySigner := attest.NewKeySigner(cfg.Attest.SignKeyPath)
		if err := keySigner.LoadOrGenerate(); err != nil {
			logger.Error("failed to initialize attestation signing key", "error", err)
			os.Exit(1)
		}
		signer = keySigner
		logger.Info("initialized attestation signing key", "signer", keySigner.Address())
	}
	attestor := attest.NewService(anchorClient, signer,
		cfg.Attest.Enabled,
		time.Duration(cfg.Attest.TimeoutMS)*time.Millisecond,
		logger)
	logger.Info("attestation service ready", "enabled", attestor.Enabled())

	// Identity gate
	var verifier identity.Verifier
	switch cfg.Identity.Verifier {
	case "jwt":
		verifier, err = identity.NewJWTVerifier(cfg.Identity.VerificationKeyPEM)
		if err != nil {
			logger.Error("failed to create JWT verifier", "error", err)
			os.Exit(1)
		}
	default:
		verifier = identity.NewIntrospectionVerifier(httpClient,
			cfg.Identity.IntrospectionURL, cfg.Identity.ServiceToken, logger)
	}
	gate := identity.NewGate(verifier, cacheInstance,
		time.Duration(cfg.Identity.CacheTTLSeconds)*time.Second, logger)

	// Rate limiter for the ops endpoint
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.RequestsPerWindow > 0 {
		limiter = ratelimit.New(cacheInstance, &ratelimit.Config{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			Window:            time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			KeyPrefix:         "ratelimit:",
		})
	}

	// ACME certificate manager, only for tls.mode=acme
	var acmeManager *tlsutil.ACMEManager
	if cfg.TLS.Mode == "acme" {
		acmeManager = tlsutil.NewACMEManager(&cfg.TLS.ACME, logger, nil)
		if err := acmeManager.Init(ctx); err != nil {
			logger.Error("failed to initialize ACME", "error", err)
			os.Exit(1)
		}
	}

	// Orchestrator
	svc := ops.NewService(ops.Deps{
		Store:    st,
		Attestor: attestor,
		Rules: workflow.Rules{
			AllowRepeatCheckIn:      cfg.Workflow.AllowRepeatCheckIn,
			AllowPayoutRetransition: cfg.Workflow.AllowPayoutRetransition,
		},
		DriverName: cfg.Store.Driver,
		Logger:     logger,
	})

	srv, err := server.New(cfg, logger, &server.Deps{
		Ops:     svc,
		Gate:    gate,
		Limiter: limiter,
		ACME:    acmeManager,
	})
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started, press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
