package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevemurr/localstate/app"
	"github.com/stevemurr/localstate/stats"
)

// NewStatsCommand creates the focus stats command group.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show and record focus sessions",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the focus counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				printSnapshot(cmd.OutOrStdout(), a.Stats.Snapshot(cmd.Context()))
				return nil
			})
		},
	}

	var (
		minutes int
		at      string
	)
	record := &cobra.Command{
		Use:   "record",
		Short: "Record a completed focus session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				ts = parsed
			}
			return opts.withApp(cmd, func(a *app.App) error {
				snap, err := a.Stats.Record(cmd.Context(), stats.FocusSession{At: ts, Length: time.Duration(minutes) * time.Minute})
				if err != nil {
					return err
				}
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}
	record.Flags().IntVarP(&minutes, "minutes", "m", 0, "session length in minutes")
	record.Flags().StringVar(&at, "at", "", "session end time, RFC 3339 (default: now)")
	_ = record.MarkFlagRequired("minutes")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Clear all focus counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				return check("reset", a.Stats.Reset(cmd.Context()))
			})
		},
	}

	cmd.AddCommand(show, record, reset)
	return cmd
}

func printSnapshot(w io.Writer, s stats.Snapshot) {
	fmt.Fprintf(w, "total_minutes: %d\n", s.TotalMinutes)
	fmt.Fprintf(w, "session_count: %d\n", s.SessionCount)
	if s.LastSessionAt.IsZero() {
		fmt.Fprintln(w, "last_session_at: never")
		return
	}
	fmt.Fprintf(w, "last_session_at: %s\n", s.LastSessionAt.Format(time.RFC3339))
}
