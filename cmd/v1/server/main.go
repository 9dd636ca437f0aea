package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/auth"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/config"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/dispatch"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/health"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/logging"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/messenger"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/middleware"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/registry"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/timeout"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/tracing"
	"github.com/PartyQuizDev/party-quiz/backend/go/internal/v1/transport"
)

// version is overridable at build time via -ldflags.
var version = "dev"

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Info("No .env file found, relying on environment variables and flags")
	}

	if err := newCmd().Execute(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	config.SetDefaults(v)

	cmd := &cobra.Command{
		Use:           "party-quiz [bind-addr]",
		Short:         "Real-time multiplayer quiz server over WebSocket.",
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromViper(v)
			// A positional address wins over flag and environment.
			if len(args) > 0 {
				cfg.BindAddr = args[0]
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringP("bind-addr", "b", config.DefaultBindAddr, "address to listen on (env: QUIZ_BIND_ADDR)")
	fs.String("jwt-secret", "", "HS256 secret for session tokens, 32+ chars (env: QUIZ_JWT_SECRET)")
	fs.String("tls-cert", "", "path to tls certificate (env: QUIZ_TLS_CERT)")
	fs.String("tls-key", "", "path to tls keyfile (env: QUIZ_TLS_KEY)")
	fs.StringSlice("allowed-origins", nil, "origins allowed to upgrade, empty allows all (env: QUIZ_ALLOWED_ORIGINS)")
	fs.String("log-dir", config.DefaultLogDir, "directory for daily log files (env: QUIZ_LOG_DIR)")
	fs.Bool("development", false, "enable debug logging and gin debug mode (env: QUIZ_DEVELOPMENT)")
	fs.Duration("shutdown-timeout", config.DefaultShutdownTimeout, "graceful shutdown deadline (env: QUIZ_SHUTDOWN_TIMEOUT)")
	fs.String("otlp-endpoint", "", "OTLP/gRPC collector for traces, empty disables (env: QUIZ_OTLP_ENDPOINT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("party-quiz v{{.Version}}\n")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := logging.Initialize(cfg.Development, cfg.LogDir); err != nil {
		return err
	}
	defer func() { _ = logging.GetLogger().Sync() }()

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Tracing (optional) ---
	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, "party-quiz", cfg.OTLPEndpoint, cfg.Development)
		if err != nil {
			logging.Warn(ctx, "tracing disabled", zap.Error(err))
		} else {
			defer func() { _ = tp.Shutdown(context.Background()) }()
			logging.Info(ctx, "tracing initialized", zap.String("collector", cfg.OTLPEndpoint))
		}
	}

	// --- Core wiring ---
	// One store backs every component; the dispatcher and the runners all
	// mutate it through its atomic primitives.
	store := registry.NewStore()
	msgr := messenger.New(store.Connections)
	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), auth.TokenTTL, nil)
	timeouts := timeout.NewRunner(store, msgr, timeout.DefaultUserGrace, timeout.DefaultRoomGrace, nil)
	dispatcher := dispatch.New(dispatch.Config{
		Store:     store,
		Messenger: msgr,
		Tokens:    tokens,
		Timeouts:  timeouts,
	})
	hub := transport.NewHub(store, dispatcher, cfg.AllowedOrigins)

	// --- Set up server ---
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(otelgin.Middleware("party-quiz"))

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	router.Use(cors.New(corsConfig))

	// The quiz protocol upgrades on the root path; /ws stays as an alias
	// for clients behind path-rewriting proxies.
	router.GET("/", hub.ServeWs)
	router.GET("/ws", hub.ServeWs)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	healthHandler := health.NewHandler(store)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: router,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logging.Info(ctx, "server starting",
			zap.String("addr", cfg.BindAddr), zap.Bool("tls", cfg.TLSEnabled()))
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logging.Info(ctx, "shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logging.Info(ctx, "shutting down", zap.String("reason", ctx.Err().Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Close every WebSocket before stopping the listener so clients get
	// close frames instead of resets.
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx, "hub shutdown error", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(shutdownCtx, "server forced to shutdown", zap.Error(err))
		return err
	}

	logging.Info(ctx, "server exiting")
	return nil
}
