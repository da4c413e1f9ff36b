package cmd

import (
	"fmt"

	"github.com/gregLibert/sd-card/internal/config"
	"github.com/gregLibert/sd-card/pkg/simsd"
	"github.com/spf13/cobra"
)

func newMkimageCmd(opts *rootOptions) *cobra.Command {
	var size string

	cmd := &cobra.Command{
		Use:   "mkimage [path]",
		Short: "Create a zero-filled card image.",
		Long: `mkimage creates an image of --size (sectors, or bytes with a K, M or G ` +
			`suffix). The path defaults to the configured image.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.cfg.Image.Path
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no image path (pass one or set %s)", config.EnvImage)
			}

			sectors, err := config.ParseSectors(size)
			if err != nil {
				return err
			}

			img, err := simsd.CreateImage(path, sectors)
			if err != nil {
				return err
			}
			if err := img.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s: %d sectors\n", path, sectors)
			return nil
		},
	}

	cmd.Flags().StringVarP(&size, "size", "s", "32M", "image size")
	return cmd
}
