package cmd

import (
	"fmt"
	"strings"

	"github.com/gregLibert/sd-card/pkg/sdcmd"
	"github.com/spf13/cobra"
)

func newInfoCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Bring the card up and print its registers.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			csd, err := s.drv.CSD()
			if err != nil {
				return err
			}
			cid, err := s.drv.CID()
			if err != nil {
				return err
			}
			host, err := s.drv.HostStatus()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Device:  %s\n", s.drv.DevicePath())
			fmt.Fprintf(out, "Session: %s\n", s.drv.ID())
			fmt.Fprintf(out, "RCA:     %04X\n", s.drv.RCA())
			fmt.Fprintf(out, "Host:    %s\n", describeHostStatus(host))
			fmt.Fprintf(out, "Sectors: %d x %d bytes\n\n", csd.Sectors(), s.drv.SectorSize())
			fmt.Fprintln(out, csd.Describe())
			fmt.Fprintln(out)
			fmt.Fprintln(out, cid.Describe())
			return nil
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the host status and the card status register (CMD13).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			host, err := s.drv.HostStatus()
			if err != nil {
				return err
			}
			status, err := s.drv.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Host: %s\n", describeHostStatus(host))
			fmt.Fprintf(out, "Card: %s\n", status.Verbose())
			return nil
		},
	}
}

func describeHostStatus(status uint32) string {
	var flags []string
	for _, f := range []struct {
		bit  uint32
		name string
	}{
		{sdcmd.StatusCardInserted, "INSERTED"},
		{sdcmd.StatusCardInitialized, "INITIALIZED"},
		{sdcmd.StatusCardSDHC, "SDHC"},
	} {
		if status&f.bit != 0 {
			flags = append(flags, f.name)
		}
	}
	if len(flags) == 0 {
		return fmt.Sprintf("[%08X]", status)
	}
	return fmt.Sprintf("[%08X] %s", status, strings.Join(flags, ", "))
}
