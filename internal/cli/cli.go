package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vsporte/fhm-matches/internal/config"
	"github.com/vsporte/fhm-matches/internal/logger"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

var (
	flagConfig   string
	flagOutput   string
	flagDriver   string
	flagAddr     string
	flagLogLevel string
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fhm-matches",
		Short: "Extract upcoming matches from the FHM referee portal",
		Long: `A tool that logs into the FHM referee portal, extracts the upcoming
matches table and publishes it as a JSON snapshot, over HTTP or on the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Flags shared by every command
	pf := cmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Settings file (default ./fhm-matches.yaml if present)")
	pf.StringVar(&flagOutput, "output", "", "Snapshot file (overrides settings)")
	pf.StringVar(&flagDriver, "driver", "", "Browser driver: chrome or http (overrides settings)")
	pf.StringVar(&flagAddr, "addr", "", "HTTP listen address (overrides settings)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error (overrides settings)")

	cmd.AddCommand(newRunCmd(), newServeCmd(), newShowCmd())

	return cmd
}

// Execute runs the CLI
func Execute() {
	err := NewRootCmd().Execute()
	_ = logger.Default().Sync()
	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(ExitError)
	}
}

func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if config.Code(err) == config.ErrCodeMissingCredentials {
		fmt.Fprintln(w, "Set FHMO_LOGIN and FHMO_PASS in the environment or in a .env file.")
	}
}
