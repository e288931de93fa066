package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevemurr/localstate/atomicfile"
	"github.com/stevemurr/localstate/codec"
	"github.com/stevemurr/localstate/fsys"
	"github.com/stevemurr/localstate/orderedset"
	"github.com/stevemurr/localstate/watch"
)

// NewWatchCommand creates the watch command. It prints an ordered-set file
// every time it is replaced, until interrupted.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	var which string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print favorites or recents whenever they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			switch which {
			case "favorites":
				name = opts.cfg.Favorites.File
			case "recents":
				name = opts.cfg.Recents.File
			default:
				return fmt.Errorf("invalid --list %q: must be favorites or recents", which)
			}
			if err := os.MkdirAll(opts.cfg.DataDir, 0o755); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, opts.cfg.Path(name), opts.log)
		},
	}
	cmd.Flags().StringVar(&which, "list", "favorites", "list to watch (favorites|recents)")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, path string, log *zap.Logger) error {
	file := atomicfile.New(fsys.OS{}, path, codec.JSON{}, log)
	show := func(string) {
		rec, _ := file.Load()
		ids, _ := rec.Strings(orderedset.OrderKey)
		fmt.Fprintf(cmd.OutOrStdout(), "[%s]\n", strings.Join(ids, ", "))
	}

	w, err := watch.New(path, watch.DefaultDebounce, show, log)
	if err != nil {
		return err
	}
	show(path)
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return err
	}

	select {
	case <-ctx.Done():
	case <-w.Done():
	}
	return w.Stop()
}
