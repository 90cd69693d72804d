package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"telemon/internal/procfs"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// CPUOptions пути источников процессора относительно корня хоста
type CPUOptions struct {
	StatPath      string
	CPUInfoPath   string
	ThermalPath   string
	FrequencyPath string
	HistorySize   int
}

// DefaultCPUOptions пути стандартного Linux хоста
func DefaultCPUOptions() CPUOptions {
	return CPUOptions{
		StatPath:      "proc/stat",
		CPUInfoPath:   "proc/cpuinfo",
		ThermalPath:   "sys/class/thermal/thermal_zone0/temp",
		FrequencyPath: "sys/devices/system/cpu/cpu0/cpufreq/scaling_cur_freq",
		HistorySize:   DefaultHistorySize,
	}
}

// CPUSampler считает загрузку процессора по разнице тиков между циклами
type CPUSampler struct {
	reader     *procfs.Reader
	opts       CPUOptions
	substitute Substitute
	logger     *zap.Logger

	sample      CPUSample
	hasPrevious bool
	history     *History
}

// NewCPUSampler создает сборщик и один раз читает модель и число ядер
func NewCPUSampler(ctx context.Context, reader *procfs.Reader, opts CPUOptions, substitute Substitute, logger *zap.Logger) *CPUSampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CPUSampler{
		reader:     reader,
		opts:       opts,
		substitute: substitute,
		logger:     logger,
		history:    NewHistory(opts.HistorySize),
	}

	s.sample.Model, s.sample.CoreCount = s.readIdentity(ctx)

	logger.Info("CPU sampler initialized",
		zap.String("model", s.sample.Model),
		zap.Int("cores", s.sample.CoreCount))

	return s
}

// Name возвращает имя семейства метрик
func (s *CPUSampler) Name() string {
	return "cpu"
}

// Collect читает тики, считает загрузку и необязательные поля
func (s *CPUSampler) Collect(ctx context.Context) (CPUSample, error) {
	ticks, err := s.readTicks(ctx)
	if err != nil {
		return CPUSample{}, err
	}

	s.applyTicks(ticks)

	// Температура и частота не критичны
	if err := multierr.Append(s.readTemperature(), s.readFrequency()); err != nil {
		s.logger.Debug("Optional CPU fields unavailable", zap.Error(err))
	}

	s.history.Append(s.sample.UsagePercent)

	s.logger.Debug("CPU sample collected",
		zap.Float64("usage", s.sample.UsagePercent),
		zap.Float64("temperature", s.sample.TemperatureC))

	return s.Sample(), nil
}

// Sample возвращает копию последних данных вместе с историей
func (s *CPUSampler) Sample() CPUSample {
	out := s.sample
	out.History = s.history.Values()
	return out
}

// Model возвращает модель процессора
func (s *CPUSampler) Model() string {
	return s.sample.Model
}

// History возвращает копию истории загрузки
func (s *CPUSampler) History() []float64 {
	return s.history.Values()
}

// ClearHistory очищает историю загрузки
func (s *CPUSampler) ClearHistory() {
	s.history.Clear()
}

func (s *CPUSampler) readTicks(ctx context.Context) (CPUTicks, error) {
	lines, err := s.reader.ReadLines(s.opts.StatPath)
	if err == nil {
		return ParseCPUTicks(lines, s.opts.StatPath)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return CPUTicks{}, parseError(s.opts.StatPath, "cannot read source", err)
	}
	if s.substitute == nil {
		return CPUTicks{}, fmt.Errorf("%s: %w", s.opts.StatPath, ErrSourceUnavailable)
	}
	return s.substitute.CPUTicks(ctx)
}

// applyTicks обновляет счетчики и загрузку. Первый замер и откат
// счетчиков дают 0%, новые значения становятся базой.
func (s *CPUSampler) applyTicks(ticks CPUTicks) {
	total := ticks.Total()
	idle := ticks.IdleTotal()

	usage := 0.0
	if s.hasPrevious {
		usage = CPUUsage(s.sample.TotalTicks, s.sample.IdleTicks, total, idle)
	}

	s.sample.PrevTotalTicks = s.sample.TotalTicks
	s.sample.PrevIdleTicks = s.sample.IdleTicks
	s.sample.TotalTicks = total
	s.sample.IdleTicks = idle
	s.sample.UsagePercent = usage
	s.hasPrevious = true
}

// CPUUsage процент занятости между двумя замерами, всегда в [0, 100]
func CPUUsage(prevTotal, prevIdle, total, idle uint64) float64 {
	if total <= prevTotal || idle < prevIdle {
		return 0
	}
	totalDiff := float64(total - prevTotal)
	idleDiff := float64(idle - prevIdle)
	return clamp((totalDiff-idleDiff)/totalDiff*100, 0, 100)
}

// ParseCPUTicks находит агрегированную строку "cpu" и разбирает ее поля.
// Поля после idle необязательны и по умолчанию равны 0.
func ParseCPUTicks(lines []string, source string) (CPUTicks, error) {
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != "cpu" {
			continue
		}
		if len(fields) < 5 {
			return CPUTicks{}, parseError(source, fmt.Sprintf("aggregate cpu line has %d fields, need at least 5", len(fields)), nil)
		}

		values := make([]uint64, 7)
		for i := 1; i < len(fields) && i <= len(values); i++ {
			v, err := strconv.ParseUint(fields[i], 10, 64)
			if err != nil {
				return CPUTicks{}, parseError(source, fmt.Sprintf("bad cpu field %d", i), err)
			}
			values[i-1] = v
		}

		return CPUTicks{
			User:    values[0],
			Nice:    values[1],
			System:  values[2],
			Idle:    values[3],
			IOWait:  values[4],
			IRQ:     values[5],
			SoftIRQ: values[6],
		}, nil
	}
	return CPUTicks{}, parseError(source, "aggregate cpu line not found", nil)
}

// ParseCPUInfo считает строки "processor" (минимум 1) и берет первое "model name"
func ParseCPUInfo(lines []string) (model string, cores int) {
	for _, line := range lines {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)

		if strings.HasPrefix(line, "processor") {
			cores++
		}
		if key == "model name" && model == "" {
			model = strings.TrimSpace(value)
		}
	}

	if model == "" {
		model = UnknownModel
	}
	if cores < 1 {
		cores = 1
	}
	return model, cores
}

func (s *CPUSampler) readIdentity(ctx context.Context) (string, int) {
	lines, err := s.reader.ReadLines(s.opts.CPUInfoPath)
	if err == nil {
		return ParseCPUInfo(lines)
	}

	if errors.Is(err, fs.ErrNotExist) && s.substitute != nil {
		model, cores, err := s.substitute.CPUIdentity(ctx)
		if err != nil {
			s.logger.Warn("Failed to get CPU identity", zap.Error(err))
		}
		if model == "" {
			model = UnknownModel
		}
		if cores < 1 {
			cores = 1
		}
		return model, cores
	}

	return UnknownModel, 1
}

func (s *CPUSampler) readTemperature() error {
	s.sample.TemperatureC = 0
	if s.opts.ThermalPath == "" {
		return nil
	}
	milli, err := s.reader.ReadInt(s.opts.ThermalPath)
	if err != nil {
		return fmt.Errorf("temperature: %w", err)
	}
	s.sample.TemperatureC = float64(milli) / 1000
	return nil
}

func (s *CPUSampler) readFrequency() error {
	s.sample.FrequencyMHz = 0
	if s.opts.FrequencyPath == "" {
		return nil
	}
	khz, err := s.reader.ReadInt(s.opts.FrequencyPath)
	if err != nil {
		return fmt.Errorf("frequency: %w", err)
	}
	s.sample.FrequencyMHz = float64(khz) / 1000
	return nil
}
