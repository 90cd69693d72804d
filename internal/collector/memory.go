package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"telemon/internal/procfs"

	"go.uber.org/zap"
)

// MemoryOptions источник учета памяти
type MemoryOptions struct {
	MemInfoPath string
	HistorySize int
}

// DefaultMemoryOptions пути стандартного Linux хоста
func DefaultMemoryOptions() MemoryOptions {
	return MemoryOptions{
		MemInfoPath: "proc/meminfo",
		HistorySize: DefaultHistorySize,
	}
}

// MemorySampler считает использование памяти и swap
type MemorySampler struct {
	reader     *procfs.Reader
	opts       MemoryOptions
	substitute Substitute
	logger     *zap.Logger

	sample  MemorySample
	history *History
}

// NewMemorySampler создает сборщик памяти
func NewMemorySampler(reader *procfs.Reader, opts MemoryOptions, substitute Substitute, logger *zap.Logger) *MemorySampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Memory sampler initialized")

	return &MemorySampler{
		reader:     reader,
		opts:       opts,
		substitute: substitute,
		logger:     logger,
		history:    NewHistory(opts.HistorySize),
	}
}

// Name возвращает имя семейства метрик
func (s *MemorySampler) Name() string {
	return "memory"
}

// Collect читает учет памяти и пересчитывает проценты
func (s *MemorySampler) Collect(ctx context.Context) (MemorySample, error) {
	info, err := s.readMemInfo(ctx)
	if err != nil {
		return MemorySample{}, err
	}
	if info.Total == 0 {
		return MemorySample{}, parseError(s.opts.MemInfoPath, "MemTotal is missing or zero", nil)
	}

	s.sample = DeriveMemory(info)
	s.history.Append(s.sample.UsagePercent)

	s.logger.Debug("Memory sample collected",
		zap.Float64("usage", s.sample.UsagePercent),
		zap.String("total", FormatBytes(s.sample.TotalBytes)))

	return s.Sample(), nil
}

// Sample возвращает копию последних данных вместе с историей
func (s *MemorySampler) Sample() MemorySample {
	out := s.sample
	out.History = s.history.Values()
	return out
}

// History возвращает копию истории использования
func (s *MemorySampler) History() []float64 {
	return s.history.Values()
}

// ClearHistory очищает историю использования
func (s *MemorySampler) ClearHistory() {
	s.history.Clear()
}

func (s *MemorySampler) readMemInfo(ctx context.Context) (MemInfo, error) {
	lines, err := s.reader.ReadLines(s.opts.MemInfoPath)
	if err == nil {
		return ParseMemInfo(lines), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return MemInfo{}, parseError(s.opts.MemInfoPath, "cannot read source", err)
	}
	if s.substitute == nil {
		return MemInfo{}, fmt.Errorf("%s: %w", s.opts.MemInfoPath, ErrSourceUnavailable)
	}
	return s.substitute.MemInfo(ctx)
}

// DeriveMemory считает производные поля. Без MemAvailable доступная память
// оценивается как free + buffers + cached.
func DeriveMemory(info MemInfo) MemorySample {
	sample := MemorySample{
		TotalBytes:     info.Total,
		AvailableBytes: info.Available,
		FreeBytes:      info.Free,
		Buffers:        info.Buffers,
		Cached:         info.Cached,
		SwapTotalBytes: info.SwapTotal,
		SwapFreeBytes:  info.SwapFree,
	}

	if sample.AvailableBytes == 0 {
		sample.AvailableBytes = info.Free + info.Buffers + info.Cached
	}
	if sample.AvailableBytes <= sample.TotalBytes {
		sample.UsedBytes = sample.TotalBytes - sample.AvailableBytes
	}
	if sample.SwapTotalBytes > 0 && sample.SwapFreeBytes <= sample.SwapTotalBytes {
		sample.SwapUsedBytes = sample.SwapTotalBytes - sample.SwapFreeBytes
	}

	if sample.TotalBytes > 0 {
		sample.UsagePercent = clamp(float64(sample.UsedBytes)/float64(sample.TotalBytes)*100, 0, 100)
	}
	if sample.SwapTotalBytes > 0 {
		sample.SwapPercent = clamp(float64(sample.SwapUsedBytes)/float64(sample.SwapTotalBytes)*100, 0, 100)
	}
	return sample
}

// ParseMemInfo разбирает строки вида "Key: N kB", переводя kB в байты.
// Неизвестные и битые строки пропускаются.
func ParseMemInfo(lines []string) MemInfo {
	var info MemInfo
	for _, line := range lines {
		key, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		bytes := kb * 1024

		switch strings.TrimSpace(key) {
		case "MemTotal":
			info.Total = bytes
		case "MemAvailable":
			info.Available = bytes
		case "MemFree":
			info.Free = bytes
		case "Buffers":
			info.Buffers = bytes
		case "Cached":
			info.Cached = bytes
		case "SwapTotal":
			info.SwapTotal = bytes
		case "SwapFree":
			info.SwapFree = bytes
		}
	}
	return info
}
