package collector

import (
	"context"
	"fmt"
	"time"

	"telemon/internal/procfs"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Options настройки всех трех сборщиков
type Options struct {
	CPU        CPUOptions
	Memory     MemoryOptions
	Network    NetworkOptions
	Substitute Substitute
	Now        func() time.Time
}

// DefaultOptions настройки стандартного Linux хоста с синтетической подменой
func DefaultOptions() Options {
	return Options{
		CPU:        DefaultCPUOptions(),
		Memory:     DefaultMemoryOptions(),
		Network:    DefaultNetworkOptions(),
		Substitute: NewBaseline(nil),
	}
}

// Collector владеет сборщиками всех семейств метрик
type Collector struct {
	reader *procfs.Reader
	logger *zap.Logger

	CPU     *CPUSampler
	Memory  *MemorySampler
	Network *NetworkSampler
}

// New создает сборщики; CPU и сеть читают начальное состояние сразу
func New(ctx context.Context, reader *procfs.Reader, opts Options, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		reader:  reader,
		logger:  logger,
		CPU:     NewCPUSampler(ctx, reader, opts.CPU, opts.Substitute, logger.Named("cpu")),
		Memory:  NewMemorySampler(reader, opts.Memory, opts.Substitute, logger.Named("memory")),
		Network: NewNetworkSampler(ctx, reader, opts.Network, opts.Substitute, opts.Now, logger.Named("network")),
	}
}

// Collect опрашивает все семейства последовательно.
// Ошибка возвращается только если не удалось собрать ни одно семейство.
func (c *Collector) Collect(ctx context.Context) (*MetricSet, error) {
	c.logger.Debug("Starting metrics collection")

	metrics := &MetricSet{
		Timestamp: time.Now(),
		Host:      c.reader.Hostname(),
	}

	var errs error
	failed := 0

	if sample, err := c.CPU.Collect(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("CPU: %w", err))
		failed++
	} else {
		metrics.CPU = sample
	}

	if sample, err := c.Memory.Collect(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("Memory: %w", err))
		failed++
	} else {
		metrics.Memory = sample
	}

	if sample, err := c.Network.Collect(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("Network: %w", err))
		failed++
	} else {
		metrics.Network = sample
	}

	for _, err := range multierr.Errors(errs) {
		c.logger.Warn("Failed to collect metrics", zap.Error(err))
	}

	if failed == 3 {
		return nil, fmt.Errorf("failed to collect all metrics: %w", errs)
	}

	c.logger.Debug("Metrics collection completed",
		zap.Int("errors", failed),
		zap.Time("timestamp", metrics.Timestamp))

	return metrics, nil
}
