package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newReadCmd(opts *rootOptions) *cobra.Command {
	var (
		count  uint32
		output string
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "read <sector>",
		Short: "Read sectors from the card.",
		Long: `read copies count sectors starting at <sector>. Without --output the ` +
			`data goes to stdout, as a hex dump when stdout is a terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sector, err := parseUint32(args[0], "sector")
			if err != nil {
				return err
			}

			s, err := openSession(opts.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			buf := make([]byte, int(count)*s.drv.SectorSize())
			if err := s.drv.ReadSectors(sector, count, buf); err != nil {
				return err
			}

			if output != "" {
				return os.WriteFile(output, buf, 0o644)
			}
			return writeData(cmd.OutOrStdout(), buf, raw)
		},
	}

	cmd.Flags().Uint32VarP(&count, "count", "n", 1, "number of sectors")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the sectors to this file")
	cmd.Flags().BoolVar(&raw, "raw", false, "write raw bytes even to a terminal")
	return cmd
}

// writeData dumps buf in hex when w is an interactive terminal.
func writeData(w io.Writer, buf []byte, raw bool) error {
	if f, ok := w.(*os.File); ok && !raw && term.IsTerminal(int(f.Fd())) {
		_, err := fmt.Fprint(w, hex.Dump(buf))
		return err
	}
	_, err := w.Write(buf)
	return err
}
