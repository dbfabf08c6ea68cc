package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/GriffinCanCode/speakerline/internal/config"
	"github.com/GriffinCanCode/speakerline/internal/engine"
	"github.com/GriffinCanCode/speakerline/internal/engine/grpcengine"
	apperr "github.com/GriffinCanCode/speakerline/internal/errors"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator/checkpoint"
	"github.com/GriffinCanCode/speakerline/internal/store"
	"github.com/GriffinCanCode/speakerline/internal/trace"
)

const shutdownTimeout = 30 * time.Second

// session wires a Manager to its engine, store and checkpointer.
type session struct {
	mgr    *orchestrator.Manager
	store  store.Store
	cp     *checkpoint.Checkpointer
	engine io.Closer
}

// buildEngine returns nil without error when credentials are missing; the
// pipeline then buffers until an engine is supplied.
func buildEngine(ctx context.Context, cfg config.EngineConfig) (engine.Engine, io.Closer, error) {
	switch cfg.Kind {
	case config.EngineGemini:
		if cfg.APIKey == "" {
			return nil, nil, nil
		}
		g, err := engine.NewGemini(ctx, engine.GeminiOptions{APIKey: cfg.APIKey, Model: cfg.GeminiModel, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, nil, err
		}
		return g, nil, nil
	case config.EngineGRPC:
		if cfg.InferenceAddr == "" {
			return nil, nil, nil
		}
		c, err := grpcengine.Dial(cfg.InferenceAddr)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	default:
		if cfg.APIKey == "" {
			return nil, nil, nil
		}
		return engine.NewOpenAI(openAIOptions(cfg, cfg.APIKey, "")), nil, nil
	}
}

func openAIOptions(cfg config.EngineConfig, key, model string) engine.OpenAIOptions {
	if model == "" {
		model = cfg.Model
	}
	return engine.OpenAIOptions{APIKey: key, BaseURL: cfg.BaseURL, Model: model}
}

func openSession(ctx context.Context, cfg *config.Config, resume string) (*session, error) {
	eng, closer, err := buildEngine(ctx, cfg.Engine)
	if err != nil {
		return nil, err
	}
	if err := cfg.EngineReady(); err != nil {
		slog.Warn("engine not configured; audio will buffer until it is", "error", err)
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	opts := orchestrator.OptionsFromConfig(cfg)
	if resume != "" {
		opts.SessionID = resume
	}

	s := &session{store: st, engine: closer}
	s.cp = checkpoint.New(s.save, config.Seconds(cfg.Store.CheckpointDelay), 0)
	opts.OnChange = s.cp.Mark
	s.mgr = orchestrator.New(opts, eng)

	if resume != "" {
		if err := s.restore(ctx, resume); err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *session) restore(ctx context.Context, id string) error {
	data, err := s.store.Load(ctx, id)
	if stderrors.Is(err, store.ErrNotFound) {
		return apperr.Newf(apperr.NotFound, "no saved session %s", id)
	}
	if err != nil {
		return err
	}
	snap, err := orchestrator.UnmarshalSnapshot(data)
	if err != nil {
		return err
	}
	if err := s.mgr.Restore(snap); err != nil {
		return err
	}
	slog.Info("session restored", "session", id, "segments", len(snap.Segments), "buffers", len(snap.Buffers))
	return nil
}

func (s *session) save(ctx context.Context) error {
	snap, err := s.mgr.Snapshot(ctx)
	if err != nil {
		return err
	}
	data, err := snap.Marshal()
	if err != nil {
		return err
	}
	return s.store.Save(ctx, s.mgr.SessionID(), data)
}

// close stops the pipeline, writes a final checkpoint and releases resources.
func (s *session) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	ctx = trace.WithSession(ctx, s.mgr.SessionID())
	log := trace.Logger(ctx)

	var errs []error
	if err := s.mgr.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop pipeline: %w", err))
	}
	if err := s.cp.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("final checkpoint: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if s.engine != nil {
		_ = s.engine.Close()
	}

	st := s.mgr.Status()
	log.Info("session closed",
		"segments", st.Segments,
		"audio_seconds", st.TotalSeconds,
		"estimated_cost_usd", st.EstimatedCostUSD,
	)
	return stderrors.Join(errs...)
}
