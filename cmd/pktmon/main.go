// pktmon is the CLI/TUI client for the packet monitor daemon.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wellsgz/pktmon/api"
	"github.com/wellsgz/pktmon/internal/client"
	"github.com/wellsgz/pktmon/internal/tui"
)

type globalFlags struct {
	socket string
	json   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:          "pktmon",
		Short:        "Query a running pktmond",
		Long:         "pktmon reads live capture statistics from pktmond over its Unix socket.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.socket, "socket", client.DefaultSocketPath, "daemon Unix socket")
	root.PersistentFlags().BoolVar(&g.json, "json", false, "print JSON instead of text")

	root.AddCommand(
		&cobra.Command{
			Use:   "tui",
			Short: "Open the live dashboard",
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := tea.NewProgram(tui.New(g.socket), tea.WithAltScreen()).Run()
				return err
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Print capture totals",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withClient(g.socket, func(c *client.Client) error {
					stats, err := c.GetStats()
					if err != nil {
						return err
					}
					if g.json {
						return printJSON(cmd.OutOrStdout(), stats)
					}
					printStats(cmd.OutOrStdout(), stats)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print daemon status",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withClient(g.socket, func(c *client.Client) error {
					status, err := c.GetStatus()
					if err != nil {
						return err
					}
					if g.json {
						return printJSON(cmd.OutOrStdout(), status)
					}
					printStatus(cmd.OutOrStdout(), status)
					return nil
				})
			},
		},
	)
	return root
}

func withClient(socket string, fn func(*client.Client) error) error {
	c := client.New(socket)
	if err := c.Connect(); err != nil {
		return fmt.Errorf("%w (is pktmond running with --socket %s?)", err, socket)
	}
	defer c.Close()
	return fn(c)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStats(w io.Writer, s *api.StatsResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Packets:\t%s\n", humanize.Comma(int64(s.TotalPackets)))
	fmt.Fprintf(tw, "Bytes:\t%s (%d)\n", humanize.Bytes(s.TotalBytes), s.TotalBytes)
	fmt.Fprintf(tw, "Rate:\t%.2f packets/s\n", s.PacketRate)
	fmt.Fprintf(tw, "Since:\t%s\n", humanize.Time(s.StartedAt))
	for _, group := range []struct {
		name   string
		counts []api.ProtocolCount
	}{{"Network", s.Network}, {"Transport", s.Transport}} {
		fmt.Fprintf(tw, "\n%s:\t\n", group.name)
		if len(group.counts) == 0 {
			fmt.Fprintln(tw, "  (none)\t")
		}
		for _, c := range group.counts {
			fmt.Fprintf(tw, "  %s\t%s\n", c.Protocol, humanize.Comma(int64(c.Count)))
		}
	}
	tw.Flush()
}

func printStatus(w io.Writer, s *api.StatusResult) {
	uptime := s.Uptime
	if uptime == "" {
		uptime = "-"
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "State:\t%s\n", s.State)
	fmt.Fprintf(tw, "Source:\t%s\n", s.Source)
	fmt.Fprintf(tw, "Uptime:\t%s\n", uptime)
	fmt.Fprintf(tw, "Started:\t%s\n", s.StartTime)
	fmt.Fprintf(tw, "Frames:\t%d (%d failed)\n", s.Frames, s.FailedFrames)
	fmt.Fprintf(tw, "Output:\t%s %s\n", s.OutputFormat, strings.Join(s.Outputs, ", "))
	fmt.Fprintf(tw, "Version:\t%s\n", s.Version)
	tw.Flush()
}
