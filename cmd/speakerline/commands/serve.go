package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/speakerline/internal/config"
	"github.com/GriffinCanCode/speakerline/internal/engine"
	"github.com/GriffinCanCode/speakerline/internal/server"
)

var resumeID string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline behind an HTTP/WebSocket server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&resumeID, "resume", "", "resume a persisted session by id")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("config loaded", "config", cfg.String())

	// The pipeline runs on its own context so a signal stops intake without
	// abandoning chunks still in flight; shutdown is driven by sess.close.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := openSession(ctx, cfg, resumeID)
	if err != nil {
		return err
	}
	if err := sess.mgr.Start(ctx); err != nil {
		return err
	}

	srv := server.New(sess.mgr, server.Options{
		VADThreshold: cfg.Capture.VADThreshold,
		Engines:      engineFactory(ctx, cfg.Engine),
	})
	go srv.Run(ctx)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("speakerline server starting", "http", cfg.HTTPAddr, "session", sess.mgr.SessionID())
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case <-sigCtx.Done():
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	err = sess.close()
	cancel()
	slog.Info("shutdown complete", "session", sess.mgr.SessionID())
	return err
}

// engineFactory lets clients supply credentials for the configured engine
// kind at runtime. A gRPC sidecar has no credentials, so it falls back to
// OpenAI.
func engineFactory(ctx context.Context, cfg config.EngineConfig) server.EngineFactory {
	return func(req server.EngineRequest) (engine.Engine, error) {
		if cfg.Kind == config.EngineGemini {
			model := req.Model
			if model == "" {
				model = cfg.GeminiModel
			}
			return engine.NewGemini(ctx, engine.GeminiOptions{APIKey: req.APIKey, Model: model, BaseURL: cfg.BaseURL})
		}
		return engine.NewOpenAI(openAIOptions(cfg, req.APIKey, req.Model)), nil
	}
}
