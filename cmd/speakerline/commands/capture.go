package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/speakerline/internal/audio/capture"
	"github.com/GriffinCanCode/speakerline/internal/orchestrator"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Transcribe local input devices until interrupted",
	Long: `capture opens every eligible input device as its own speaker stream and
prints segments as they are created or extended. On interrupt all buffered
audio is flushed and the session is checkpointed.`,
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringVar(&resumeID, "resume", "", "resume a persisted session by id")
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := openSession(ctx, cfg, resumeID)
	if err != nil {
		return err
	}

	capt, err := capture.New(capture.Options{
		SampleRate:      cfg.Capture.SampleRate,
		VADThreshold:    cfg.Capture.VADThreshold,
		ExcludedDevices: cfg.Capture.ExcludedDevices,
	})
	if err != nil {
		return fmt.Errorf("init audio: %w", err)
	}

	if err := sess.mgr.Start(ctx); err != nil {
		capt.Stop()
		return err
	}
	if err := capt.Start(ctx); err != nil {
		capt.Stop()
		_ = sess.close()
		return err
	}

	out := cmd.OutOrStdout()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-capt.Events():
				if err := sess.mgr.Ingest(ctx, ev); err != nil {
					slog.Debug("ingest rejected", "speaker", ev.SpeakerKey, "error", err)
				}
			case evt := <-sess.mgr.Segments():
				fmt.Fprintln(out, renderSegment(evt.Segment, string(evt.Kind)))
			case n := <-sess.mgr.Notices():
				if n.Level == orchestrator.NoticeUser {
					fmt.Fprintln(out, renderNotice(n.Code, n.Message))
				}
			}
		}
	}()

	sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	slog.Info("stopping capture...")
	capt.Stop()
	err = sess.close()
	cancel()

	fmt.Fprintln(out, renderSummary(sess.mgr.SessionID(), sess.mgr.Status()))
	return err
}
