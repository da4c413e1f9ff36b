package cmd

import (
	"fmt"
	"os"

	"github.com/gregLibert/sd-card/pkg/sdio"
	"github.com/spf13/cobra"
)

func newTraceCmd(opts *rootOptions) *cobra.Command {
	var commandsOnly bool

	cmd := &cobra.Command{
		Use:   "trace <file>",
		Short: "Decode a trace written with --trace.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			trace, err := sdio.ParseTrace(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if commandsOnly {
				for _, c := range trace.Commands() {
					fmt.Fprintln(out, c.String())
				}
				return nil
			}
			fmt.Fprintln(out, trace.Describe())
			return nil
		},
	}

	cmd.Flags().BoolVar(&commandsOnly, "commands", false, "list only the SD commands sent")
	return cmd
}
