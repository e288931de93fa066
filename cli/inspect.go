package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stevemurr/localstate/atomicfile"
	"github.com/stevemurr/localstate/codec"
	"github.com/stevemurr/localstate/fsys"
	"github.com/stevemurr/localstate/outcome"
)

// NewInspectCommand creates the inspect command. It decodes a state file and
// re-encodes it in the requested format without changing it.
func NewInspectCommand(opts *RootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print a state file",
		Long: `Print a JSON state file as json or yaml.

A bare file name is resolved against the data directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := codec.ByName(format)
			if err != nil {
				return err
			}
			path := args[0]
			if filepath.Base(path) == path {
				path = opts.cfg.Path(path)
			}

			rec, res := atomicfile.New(fsys.OS{}, path, codec.JSON{}, opts.log).Load()
			if res.Status != outcome.OK {
				if res.Err == nil {
					return fmt.Errorf("%s: no such file", path)
				}
				return fmt.Errorf("%s: %w", path, res.Err)
			}
			data, err := out.Encode(rec)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format (json|yaml)")
	return cmd
}
