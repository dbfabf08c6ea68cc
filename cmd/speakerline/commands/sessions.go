package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/speakerline/internal/orchestrator"
	"github.com/GriffinCanCode/speakerline/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect persisted sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved session ids",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		ids, err := st.List(cmd.Context())
		if err != nil {
			return err
		}
		sort.Strings(ids)
		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, dimStyle.Render("no saved sessions"))
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a saved session's transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		snap, err := loadSnapshot(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), renderSnapshot(snap))
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Remove a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		return st.Delete(cmd.Context(), args[0])
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openStore() (store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store)
}

func loadSnapshot(ctx context.Context, st store.Store, id string) (orchestrator.Snapshot, error) {
	data, err := st.Load(ctx, id)
	if err != nil {
		return orchestrator.Snapshot{}, fmt.Errorf("load session %s: %w", id, err)
	}
	return orchestrator.UnmarshalSnapshot(data)
}
