package report

import (
	"sync"

	"telemon/internal/collector"
	"telemon/internal/config"
	"telemon/internal/monitor"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Reporter выводит показания мониторов в лог.
// Переход метрики на новый уровень порога логируется с повышенным уровнем
// один раз, пока значение остается на том же уровне, используется info.
type Reporter struct {
	logger     *zap.Logger
	thresholds config.Thresholds

	mu     sync.Mutex
	levels map[string]config.Level
}

// New создает репортер
func New(thresholds config.Thresholds, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		logger:     logger,
		thresholds: thresholds,
		levels:     make(map[string]config.Level),
	}
}

// AttachCPU подписывается на монитор CPU
func (r *Reporter) AttachCPU(m *monitor.Monitor[collector.CPUSample]) {
	m.OnSample(r.CPU)
	r.attachLifecycle(m.Name(), m.OnStateChange, m.OnError)
}

// AttachMemory подписывается на монитор памяти
func (r *Reporter) AttachMemory(m *monitor.Monitor[collector.MemorySample]) {
	m.OnSample(r.Memory)
	r.attachLifecycle(m.Name(), m.OnStateChange, m.OnError)
}

// AttachNetwork подписывается на монитор сети
func (r *Reporter) AttachNetwork(m *monitor.Monitor[collector.NetworkSample]) {
	m.OnSample(r.Network)
	r.attachLifecycle(m.Name(), m.OnStateChange, m.OnError)
}

func (r *Reporter) attachLifecycle(name string, onState func(func(old, new monitor.State)), onError func(func(error))) {
	onState(func(old, new monitor.State) {
		r.StateChanged(name, old, new)
	})
	onError(func(err error) {
		r.Failed(name, err)
	})
}

// CPU логирует показание процессора
func (r *Reporter) CPU(s collector.CPUSample) {
	level := r.thresholds.CPU.Level(s.UsagePercent)
	if temp := r.thresholds.Temperature.Level(s.TemperatureC); s.TemperatureC > 0 && temp > level {
		level = temp
	}

	r.log("cpu", level, "CPU sample",
		zap.Float64("usage_percent", s.UsagePercent),
		zap.Float64("temperature_c", s.TemperatureC),
		zap.Float64("frequency_mhz", s.FrequencyMHz),
		zap.Int("cores", s.CoreCount),
		zap.String("model", s.Model),
	)
}

// Memory логирует показание памяти
func (r *Reporter) Memory(s collector.MemorySample) {
	r.log("memory", r.thresholds.Memory.Level(s.UsagePercent), "Memory sample",
		zap.Float64("usage_percent", s.UsagePercent),
		zap.String("used", collector.FormatBytes(s.UsedBytes)),
		zap.String("total", collector.FormatBytes(s.TotalBytes)),
		zap.Float64("swap_percent", s.SwapPercent),
	)
}

// Network логирует показание сети; порогов для сети нет
func (r *Reporter) Network(s collector.NetworkSample) {
	r.log("network", config.LevelNormal, "Network sample",
		zap.String("interface", s.Interface),
		zap.String("upload", collector.FormatRate(s.UploadMBps)),
		zap.String("download", collector.FormatRate(s.DownloadMBps)),
		zap.String("total_up", collector.FormatBytes(s.BytesUp)),
		zap.String("total_down", collector.FormatBytes(s.BytesDown)),
	)
}

// StateChanged логирует смену состояния монитора
func (r *Reporter) StateChanged(name string, old, new monitor.State) {
	fields := []zap.Field{
		zap.String("monitor", name),
		zap.Stringer("from", old),
		zap.Stringer("to", new),
	}
	if new == monitor.Error {
		r.logger.Warn("Monitor state changed", fields...)
		return
	}
	r.logger.Info("Monitor state changed", fields...)
}

// Failed логирует ошибку цикла опроса
func (r *Reporter) Failed(name string, err error) {
	r.logger.Error("Monitor poll failed", zap.String("monitor", name), zap.Error(err))
}

func (r *Reporter) log(name string, level config.Level, msg string, fields ...zap.Field) {
	r.mu.Lock()
	prev, seen := r.levels[name]
	r.levels[name] = level
	r.mu.Unlock()

	fields = append(fields, zap.String("monitor", name), zap.Stringer("level", level))

	logLevel := zapcore.InfoLevel
	if level != prev || !seen {
		switch level {
		case config.LevelWarning:
			logLevel = zapcore.WarnLevel
		case config.LevelCritical:
			logLevel = zapcore.ErrorLevel
		}
	}
	if ce := r.logger.Check(logLevel, msg); ce != nil {
		ce.Write(fields...)
	}
}
