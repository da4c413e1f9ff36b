package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newWriteCmd(opts *rootOptions) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "write <sector>",
		Short: "Write data to the card starting at a sector.",
		Long: `write reads --input (or stdin) and writes it from <sector> on. The last ` +
			`sector is zero-padded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sector, err := parseUint32(args[0], "sector")
			if err != nil {
				return err
			}

			var data []byte
			if input == "" || input == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(input)
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if len(data) == 0 {
				return fmt.Errorf("nothing to write")
			}

			s, err := openSession(opts.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			size := s.drv.SectorSize()
			count := (len(data) + size - 1) / size
			buf := make([]byte, count*size)
			copy(buf, data)

			if err := s.drv.WriteSectors(sector, uint32(count), buf); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d sectors at %d\n", count, sector)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "f", "", "file to write (default stdin)")
	return cmd
}
