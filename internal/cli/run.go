package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var flagRunFormat string

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one extraction and write the snapshot",
		Long: `Logs into the portal, extracts upcoming matches and replaces the snapshot file.
A failed extraction still writes a snapshot carrying the error and exits 0;
configuration and snapshot write errors exit 1.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
	cmd.Flags().StringVar(&flagRunFormat, "format", "text", "Output format: text or json")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	format := OutputFormat(strings.ToLower(flagRunFormat))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagRunFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	return WriteRunSummary(cmd.OutOrStdout(), &RunSummary{
		Output:   a.store.Path(),
		Snapshot: snap,
	}, format)
}
