// pktmond captures Ethernet frames, logs them per layer and reports live statistics.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wellsgz/pktmon/internal/config"
	"github.com/wellsgz/pktmon/internal/daemon"
)

var (
	configPath string
	flags      = config.Defaults()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pktmond",
		Short: "Layered packet capture monitor",
		Long: `pktmond captures frames from a network interface (or replays a pcap file),
decodes the Ethernet, IP and transport headers, appends one row per layer
to CSV files or an SQLite database, and periodically prints a summary.`,
		SilenceUsage: true,
		RunE:         runDaemon,
	}

	f := rootCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "Config file (default: "+config.DefaultConfigPath+" if present)")
	f.StringVarP(&flags.Interface, "interface", "i", flags.Interface, "Network interface to capture on")
	f.IntVar(&flags.SnapLen, "snaplen", flags.SnapLen, "Maximum bytes captured per frame")
	f.BoolVar(&flags.Promiscuous, "promiscuous", flags.Promiscuous, "Capture in promiscuous mode")
	f.DurationVar(&flags.ReadTimeout, "read-timeout", flags.ReadTimeout, "Capture read timeout")
	f.StringVar(&flags.Filter, "filter", flags.Filter, "BPF filter expression")
	f.StringVarP(&flags.ReadFile, "read", "r", flags.ReadFile, "Replay frames from a pcap file instead of capturing")
	f.DurationVar(&flags.RefreshInterval, "refresh", flags.RefreshInterval, "Statistics display interval")
	f.BoolVar(&flags.Display, "display", flags.Display, "Print the statistics panel to stdout")
	f.StringVar(&flags.Output.Format, "format", flags.Output.Format, "Output format (csv, sqlite)")
	f.StringVarP(&flags.Output.Dir, "output-dir", "o", flags.Output.Dir, "Directory for output files")
	f.StringVar(&flags.Output.Layer2, "layer2", "", "Layer 2 CSV file (default: layer2.csv)")
	f.StringVar(&flags.Output.Layer3, "layer3", "", "Layer 3 CSV file (default: layer3.csv)")
	f.StringVar(&flags.Output.Layer4, "layer4", "", "Layer 4 CSV file (default: layer4.csv)")
	f.StringVar(&flags.Output.Database, "database", "", "SQLite database file (default: packets.db)")
	f.StringVar(&flags.Socket, "socket", flags.Socket, "Unix socket for pktmon clients (disabled if empty)")
	f.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&flags.LogFile, "log-file", flags.LogFile, "Write logs to a rotated file instead of stderr")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	setupLogging(cfg.LogLevel, cfg.LogFile)

	if err := cfg.Validate(); err != nil {
		return err
	}

	// Live capture needs CAP_NET_RAW
	if cfg.ReadFile == "" && os.Geteuid() != 0 {
		slog.Warn("running without root privileges, opening the interface may fail")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d := daemon.New(cfg)
	return d.Start(ctx)
}

// loadConfig reads the config file, if any, then applies the flags the
// user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Defaults()
	path := configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	set := cmd.Flags().Changed
	overrideString(set("interface"), &cfg.Interface, flags.Interface)
	overrideString(set("filter"), &cfg.Filter, flags.Filter)
	overrideString(set("read"), &cfg.ReadFile, flags.ReadFile)
	overrideString(set("format"), &cfg.Output.Format, flags.Output.Format)
	overrideString(set("output-dir"), &cfg.Output.Dir, flags.Output.Dir)
	overrideString(set("layer2"), &cfg.Output.Layer2, flags.Output.Layer2)
	overrideString(set("layer3"), &cfg.Output.Layer3, flags.Output.Layer3)
	overrideString(set("layer4"), &cfg.Output.Layer4, flags.Output.Layer4)
	overrideString(set("database"), &cfg.Output.Database, flags.Output.Database)
	overrideString(set("socket"), &cfg.Socket, flags.Socket)
	overrideString(set("log-level"), &cfg.LogLevel, flags.LogLevel)
	overrideString(set("log-file"), &cfg.LogFile, flags.LogFile)
	overrideDuration(set("read-timeout"), &cfg.ReadTimeout, flags.ReadTimeout)
	overrideDuration(set("refresh"), &cfg.RefreshInterval, flags.RefreshInterval)
	if set("snaplen") {
		cfg.SnapLen = flags.SnapLen
	}
	if set("promiscuous") {
		cfg.Promiscuous = flags.Promiscuous
	}
	if set("display") {
		cfg.Display = flags.Display
	}

	return cfg, nil
}

func overrideString(set bool, dst *string, v string) {
	if set {
		*dst = v
	}
}

func overrideDuration(set bool, dst *time.Duration, v time.Duration) {
	if set {
		*dst = v
	}
}

// setupLogging installs the default slog logger. stdout belongs to the
// statistics panel, so logs go to stderr or to a rotated file.
func setupLogging(logLevel, logFile string) {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if logFile != "" {
		out = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
