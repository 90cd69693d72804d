package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"telemon/internal/collector"
	"telemon/internal/config"
	"telemon/internal/monitor"
	"telemon/internal/procfs"
	"telemon/internal/report"
	"telemon/internal/scheduler"
	"telemon/pkg/profiler"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// app связывает сборщики, мониторы, репортер и профилировщик
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	loop      *scheduler.Loop
	reader    *procfs.Reader
	collector *collector.Collector
	profiler  *profiler.Profiler
	reporter  *report.Reporter

	cpu     *monitor.Monitor[collector.CPUSample]
	memory  *monitor.Monitor[collector.MemorySample]
	network *monitor.Monitor[collector.NetworkSample]
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) *app {
	if logger == nil {
		logger = zap.NewNop()
	}

	loop := scheduler.New(logger.Named("scheduler"))
	reader := procfs.NewReader(cfg.HostRoot, logger.Named("procfs"))
	c := collector.New(ctx, reader, cfg.CollectorOptions(), logger.Named("collector"))

	a := &app{
		cfg:       cfg,
		logger:    logger,
		loop:      loop,
		reader:    reader,
		collector: c,
		profiler: profiler.New(profiler.Config{
			Enable:      cfg.ProfileEnable,
			HTTPPort:    cfg.ProfileHTTPPort,
			CPUProfile:  cfg.ProfileCPUFile,
			MemProfile:  cfg.ProfileMemFile,
			ProfileTime: cfg.ProfileTime,
		}, logger.Named("profiler")),
		reporter: report.New(cfg.Thresholds, logger.Named("report")),
		cpu:      monitor.New[collector.CPUSample](loop, c.CPU, cfg.CPUInterval, logger),
		memory:   monitor.New[collector.MemorySample](loop, c.Memory, cfg.MemoryInterval, logger),
		network:  monitor.New[collector.NetworkSample](loop, c.Network, cfg.NetworkInterval, logger),
	}

	a.reporter.AttachCPU(a.cpu)
	a.reporter.AttachMemory(a.memory)
	a.reporter.AttachNetwork(a.network)
	return a
}

// run запускает все мониторы и работает до отмены ctx
func (a *app) run(ctx context.Context) error {
	a.logger.Info("Starting telemon",
		zap.String("host", a.reader.Hostname()),
		zap.String("host_root", a.cfg.HostRoot),
		zap.String("substitute", a.cfg.Substitute),
		zap.String("cpu_model", a.collector.CPU.Model()),
		zap.String("interface", a.collector.Network.ActiveInterface()))

	if err := a.profiler.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.profiler.Stop(); err != nil {
			a.logger.Error("Failed to stop profiler", zap.Error(err))
		}
	}()

	// Цикл живет дольше ctx, чтобы мониторы успели остановиться в нем
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.loop.Run(loopCtx)
	})
	g.Go(func() error {
		defer stopLoop()

		var stats *scheduler.Ticker
		err := a.loop.Do(gctx, func(ctx context.Context) {
			a.cpu.Start(ctx)
			a.memory.Start(ctx)
			a.network.Start(ctx)
			stats = a.profiler.ScheduleStats(a.loop)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to start monitors: %w", err)
		}

		<-gctx.Done()
		a.logger.Info("Shutting down")

		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.loop.Do(stopCtx, func(context.Context) {
			if stats != nil {
				stats.Stop()
			}
			a.cpu.Stop()
			a.memory.Stop()
			a.network.Stop()
		})
	})

	if err := g.Wait(); err != nil {
		return err
	}

	a.logger.Info("Telemon stopped")
	return nil
}

// snapshot делает два опроса с интервалом CPU монитора, чтобы скорости
// и загрузка CPU были вычислены по разнице счетчиков
func (a *app) snapshot(ctx context.Context) (*collector.MetricSet, error) {
	if _, err := a.collector.Collect(ctx); err != nil {
		return nil, err
	}

	timer := time.NewTimer(a.cfg.CPUInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return a.collector.Collect(ctx)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}
