package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"telemon/internal/collector"
	"telemon/internal/config"
	"telemon/internal/logger"
	"telemon/internal/procfs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.NewConfig()

	root := &cobra.Command{
		Use:   "telemon",
		Short: "Local CPU, memory and network telemetry collector",
		Long: `telemon polls kernel counters (/proc, /sys) on independent timers and
reports CPU usage, memory usage and network throughput through structured logs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Load(cmd); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := logger.Initialize(cfg.LogLevel); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logger.Cleanup()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := newApp(cmd.Context(), cfg, logger.Logger)
			return a.run(cmd.Context())
		},
	}
	config.AddFlags(root)

	root.AddCommand(
		newSnapshotCommand(cfg),
		newInterfacesCommand(cfg),
	)
	return root
}

func newSnapshotCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Poll every metric family twice, one interval apart, and print JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := newApp(cmd.Context(), cfg, logger.Named("snapshot"))
			set, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), set)
		},
	}
}

func newInterfacesCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "interfaces",
		Short: "List network interfaces visible in the counter source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger.Named("interfaces")
			reader := procfs.NewReader(cfg.HostRoot, log)
			opts := cfg.CollectorOptions()
			network := collector.NewNetworkSampler(cmd.Context(), reader, opts.Network, opts.Substitute, nil, log)

			names, err := network.AvailableInterfaces(cmd.Context())
			if err != nil {
				return err
			}
			active := network.ActiveInterface()
			for _, name := range names {
				marker := " "
				if name == active {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			log.Debug("Listed interfaces", zap.Int("count", len(names)), zap.String("active", active))
			return nil
		},
	}
}
