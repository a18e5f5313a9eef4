// Command verbalisd runs the Verbalis reference gateway: session records,
// media token issuance, transcript history, and emotion annotation storage
// behind one HTTP API.
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

	"github.com/joho/godotenv"

	"github.com/verbalis-ai/verbalis/pkg/gateway/auth"
	"github.com/verbalis-ai/verbalis/pkg/gateway/classify"
	"github.com/verbalis-ai/verbalis/pkg/gateway/config"
	"github.com/verbalis-ai/verbalis/pkg/gateway/handlers"
	"github.com/verbalis-ai/verbalis/pkg/gateway/server"
	"github.com/verbalis-ai/verbalis/pkg/gateway/store"
	"github.com/verbalis-ai/verbalis/pkg/gateway/token"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		envFile = flag.String("env-file", "", "optional .env file to load before reading config")
		migrate = flag.Bool("migrate", true, "apply pending schema migrations on startup")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return err
		}
	} else {
		// Best effort: a missing .env is not an error.
		_ = godotenv.Load()
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrate {
		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	h := &handlers.Handlers{
		Store: st,
		Issuer: token.Issuer{
			Secret: []byte(cfg.TokenSigningSecret),
			TTL:    cfg.TokenTTL,
			WSURL:  cfg.MediaWSURL,
		},
		Logger: logger,
		Ready:  st.Ping,
	}

	if cfg.GeminiAPIKey != "" {
		svc, err := classify.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, classify.Options{
			MaxCalls:    cfg.ClassifyRateCalls,
			Window:      cfg.ClassifyRateWindow,
			CacheTTL:    cfg.ClassifyCacheTTL,
			MinInterval: cfg.ClassifyMinInterval,
		}, logger)
		if err != nil {
			return err
		}
		h.Classifier = svc
	} else {
		logger.Warn("no gemini api key; emotion analysis disabled")
	}

	var verifier auth.Verifier
	if cfg.AuthSigningSecret != "" {
		verifier = auth.HMACVerifier{Secret: []byte(cfg.AuthSigningSecret)}
	} else {
		logger.Warn("auth disabled; all requests run as local-dev")
	}

	srv := server.New(cfg, h, verifier, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
