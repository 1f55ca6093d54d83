package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vsporte/fhm-matches/internal/filter"
	"github.com/vsporte/fhm-matches/internal/match"
	"github.com/vsporte/fhm-matches/internal/storage"
)

var (
	flagArena    string
	flagTeam     string
	flagFrom     string
	flagTo       string
	flagRange    string
	flagWeekends bool
	flagSort     string
	flagFormat   string
	flagVerbose  bool
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print matches from the persisted snapshot",
		Long: `Reads the snapshot written by 'run' or 'serve' (no browser is started) and
prints the matches that pass the filters.`,
		Args: cobra.NoArgs,
		RunE: runShow,
	}

	cmd.Flags().StringVar(&flagArena, "arena", "", "Only matches whose venue contains this text")
	cmd.Flags().StringVar(&flagTeam, "team", "", "Only matches whose pair contains this text")
	cmd.Flags().StringVar(&flagFrom, "from", "", "First date, DD.MM.YYYY")
	cmd.Flags().StringVar(&flagTo, "to", "", "Last date, DD.MM.YYYY")
	cmd.Flags().StringVar(&flagRange, "range", "", "Date range: '01.03.2099 - 15.03.2099', '03.2099' or a month name")
	cmd.Flags().BoolVar(&flagWeekends, "weekends", false, "Only Saturday and Sunday matches")
	cmd.Flags().StringVar(&flagSort, "sort", "date", "Sort order: date, arena or team")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text, json or ics")
	cmd.Flags().BoolVar(&flagVerbose, "verbose", false, "Show every field of each match")

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	format := OutputFormat(strings.ToLower(flagFormat))
	switch format {
	case FormatText, FormatJSON, FormatICS:
	default:
		return fmt.Errorf("invalid format: %s (must be 'text', 'json' or 'ics')", flagFormat)
	}

	order := SortOrder(strings.ToLower(flagSort))
	switch order {
	case SortByDate, SortByArena, SortByTeam:
	default:
		return fmt.Errorf("invalid sort: %s (must be 'date', 'arena' or 'team')", flagSort)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Output)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	snap, err := store.Load()
	if errors.Is(err, storage.ErrNoSnapshot) {
		return fmt.Errorf("no snapshot at %s (run 'fhm-matches run' first)", store.Path())
	}
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}

	f, err := filter.Params{
		Arena:    flagArena,
		Team:     flagTeam,
		From:     flagFrom,
		To:       flagTo,
		Range:    flagRange,
		Weekends: flagWeekends,
	}.Filter(match.DateOf(time.Now().In(loc)))
	if err != nil {
		return err
	}

	matches := f.Apply(snap.Matches)
	sortMatches(matches, order)

	return WriteMatches(cmd.OutOrStdout(), &ShowResult{
		Snapshot: snap.WithMatches(matches),
		Filter:   f,
		Location: loc,
	}, format, flagVerbose)
}
