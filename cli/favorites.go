package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stevemurr/localstate/app"
	"github.com/stevemurr/localstate/orderedset"
)

// NewFavoritesCommand creates the favorites command group.
func NewFavoritesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Manage favorite tools",
	}

	cmd.AddCommand(setCommand(opts, "add", "Add a favorite", func(s *orderedset.Store, id string) (string, error) {
		return "added " + id, check("add", s.Add(id))
	}))
	cmd.AddCommand(setCommand(opts, "remove", "Remove a favorite", func(s *orderedset.Store, id string) (string, error) {
		return "removed " + id, check("remove", s.Remove(id))
	}))
	cmd.AddCommand(setCommand(opts, "toggle", "Add or remove a favorite", func(s *orderedset.Store, id string) (string, error) {
		if err := check("toggle", s.Toggle(id)); err != nil {
			return "", err
		}
		if s.Contains(id) {
			return "added " + id, nil
		}
		return "removed " + id, nil
	}))
	cmd.AddCommand(listCommand(opts, "List favorites, most recently added first", func(a *app.App) *orderedset.Store {
		return a.Favorites
	}))

	return cmd
}

// setCommand builds a "<use> <id>" subcommand operating on the favorites.
func setCommand(opts *RootOptions, use, short string, apply func(*orderedset.Store, string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return fmt.Errorf("id must not be empty")
			}
			return opts.withApp(cmd, func(a *app.App) error {
				msg, err := apply(a.Favorites, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
}

func listCommand(opts *RootOptions, short string, pick func(*app.App) *orderedset.Store) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "list",
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				set := pick(a)
				ids := set.All()
				if top > 0 {
					ids = set.TopN(top)
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 0, "show at most n entries (0 = all)")
	return cmd
}
