// Package cmd provides the sdcard command-line tool. It drives the SD
// driver against the simulated coprocessor, backed by a card image file.
package cmd

import (
	"fmt"

	"github.com/gregLibert/sd-card/internal/config"
	"github.com/gregLibert/sd-card/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

type rootOptions struct {
	configPath string
	envFile    string
	image      string
	logLevel   string
	logFormat  string
	trace      string

	cfg *config.Config
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "sdcard",
		Short: "Drive an SD card through the I/O coprocessor SD host.",
		Long: `sdcard brings up an SD card behind the coprocessor's /dev/sdio/slot0 ` +
			`device and reads or writes its sectors. The coprocessor is simulated ` +
			`and the card is backed by a raw image file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&opts.envFile, "env", ".env", "dotenv file with SDCARD_* variables")
	flags.StringVarP(&opts.image, "image", "i", "", "card image file (overrides "+config.EnvImage+")")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "text or json")
	flags.StringVar(&opts.trace, "trace", "", "write a BER-TLV trace of the coprocessor exchanges to this file")

	root.AddCommand(
		newInfoCmd(opts),
		newStatusCmd(opts),
		newReadCmd(opts),
		newWriteCmd(opts),
		newMkimageCmd(opts),
		newTraceCmd(opts),
	)
	return root
}

// load builds the effective configuration: defaults, config file, dotenv
// and environment, then flags.
func (o *rootOptions) load(cmd *cobra.Command) error {
	if err := config.LoadEnv(o.envFile); err != nil {
		return err
	}

	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return err
		}
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("image") {
		cfg.Image.Path = o.image
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if flags.Changed("trace") {
		cfg.Trace.Path = o.trace
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	format, _ := logging.ParseFormat(cfg.Log.Format)
	logging.SetLevel(level)
	logging.SetOutput(cmd.ErrOrStderr(), format)

	o.cfg = cfg
	return nil
}

// Execute runs the command line and exits through atexit so pending
// sessions and traces are closed.
func Execute() {
	code := 0
	if err := newRootCmd().Execute(); err != nil {
		code = 1
	}
	atexit.Exit(code)
}

func parseUint32(s, what string) (uint32, error) {
	var v uint32
	if _, err := fmt.Sscan(s, &v); err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return v, nil
}
