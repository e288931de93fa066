package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stevemurr/localstate/app"
	"github.com/stevemurr/localstate/orderedset"
)

// NewRecentCommand creates the recent tools command group.
func NewRecentCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Track recently used tools",
	}

	touch := &cobra.Command{
		Use:   "touch <id>",
		Short: "Mark a tool as just used",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return fmt.Errorf("id must not be empty")
			}
			return opts.withApp(cmd, func(a *app.App) error {
				var evicted []string
				unsubscribe := a.Recents.Subscribe(func(c orderedset.Change) { evicted = c.Evicted })
				defer unsubscribe()

				if err := check("touch", a.Recents.Touch(id)); err != nil {
					return err
				}
				for _, e := range evicted {
					fmt.Fprintln(cmd.OutOrStdout(), "evicted "+e)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(touch)
	cmd.AddCommand(listCommand(opts, "List recent tools, most recent first", func(a *app.App) *orderedset.Store {
		return a.Recents
	}))
	return cmd
}
