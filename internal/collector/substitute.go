package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// Substitute источник данных на случай, когда основного псевдофайла нет
// (например, не-Linux хост). Сборщики обращаются к нему только после
// fs.ErrNotExist для основного источника.
type Substitute interface {
	CPUTicks(ctx context.Context) (CPUTicks, error)
	CPUIdentity(ctx context.Context) (model string, cores int, err error)
	MemInfo(ctx context.Context) (MemInfo, error)
	NetCounters(ctx context.Context) ([]InterfaceCounters, error)
}

// Параметры синтетического базового источника
const (
	BaselineInterface    = "fake0"
	BaselineModel        = "Synthetic CPU"
	BaselineCPUPercent   = 42.5
	BaselineMemTotal     = 4 << 30
	BaselineMemAvailable = 1 << 30
	BaselineUploadMBps   = 1.2
	BaselineDownloadMBps = 5.8

	baselineTicksPerCall = 1000
	baselineBusyTicks    = baselineTicksPerCall * BaselineCPUPercent / 100
	baselineStartBytes   = BytesPerMB
)

// Baseline детерминированный синтетический источник: счетчики растут так,
// что производные метрики равны Baseline* константам.
type Baseline struct {
	now func() time.Time

	mu      sync.Mutex
	ticks   CPUTicks
	netTime time.Time
	rx      float64
	tx      float64
}

// NewBaseline создает синтетический источник; now задает часы для счетчиков сети
func NewBaseline(now func() time.Time) *Baseline {
	if now == nil {
		now = time.Now
	}
	return &Baseline{now: now}
}

func (b *Baseline) CPUTicks(context.Context) (CPUTicks, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ticks.User += baselineBusyTicks
	b.ticks.Idle += baselineTicksPerCall - baselineBusyTicks
	return b.ticks, nil
}

func (b *Baseline) CPUIdentity(context.Context) (string, int, error) {
	return BaselineModel, 1, nil
}

func (b *Baseline) MemInfo(context.Context) (MemInfo, error) {
	return MemInfo{
		Total:     BaselineMemTotal,
		Available: BaselineMemAvailable,
		Free:      BaselineMemAvailable,
	}, nil
}

func (b *Baseline) NetCounters(context.Context) ([]InterfaceCounters, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if b.netTime.IsZero() {
		b.rx = baselineStartBytes
		b.tx = baselineStartBytes
	} else {
		elapsed := now.Sub(b.netTime).Seconds()
		b.rx += elapsed * BaselineDownloadMBps * BytesPerMB
		b.tx += elapsed * BaselineUploadMBps * BytesPerMB
	}
	b.netTime = now

	return []InterfaceCounters{{
		Name:    BaselineInterface,
		RxBytes: uint64(b.rx),
		TxBytes: uint64(b.tx),
	}}, nil
}

// userHZ тиков в секунде в /proc/stat; gopsutil отдает время в секундах
const userHZ = 100

// HostStats берет данные у ОС через gopsutil
type HostStats struct{}

// NewHostStats создает источник на базе gopsutil
func NewHostStats() *HostStats {
	return &HostStats{}
}

func (HostStats) CPUTicks(ctx context.Context) (CPUTicks, error) {
	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return CPUTicks{}, fmt.Errorf("failed to get CPU times: %w", err)
	}
	if len(times) == 0 {
		return CPUTicks{}, fmt.Errorf("failed to get CPU times: empty result")
	}

	t := times[0]
	return CPUTicks{
		User:    secondsToTicks(t.User),
		Nice:    secondsToTicks(t.Nice),
		System:  secondsToTicks(t.System),
		Idle:    secondsToTicks(t.Idle),
		IOWait:  secondsToTicks(t.Iowait),
		IRQ:     secondsToTicks(t.Irq),
		SoftIRQ: secondsToTicks(t.Softirq),
	}, nil
}

func (HostStats) CPUIdentity(ctx context.Context) (string, int, error) {
	model := UnknownModel
	infos, err := cpu.InfoWithContext(ctx)
	if err == nil && len(infos) > 0 && infos[0].ModelName != "" {
		model = infos[0].ModelName
	}

	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return model, 1, fmt.Errorf("failed to get CPU count: %w", err)
	}
	if cores < 1 {
		cores = 1
	}
	return model, cores, nil
}

func (HostStats) MemInfo(ctx context.Context) (MemInfo, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemInfo{}, fmt.Errorf("failed to get memory statistics: %w", err)
	}

	info := MemInfo{
		Total:     vm.Total,
		Available: vm.Available,
		Free:      vm.Free,
		Buffers:   vm.Buffers,
		Cached:    vm.Cached,
	}

	// Swap не критичен, продолжаем без него
	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		info.SwapTotal = swap.Total
		info.SwapFree = swap.Free
	}
	return info, nil
}

func (HostStats) NetCounters(ctx context.Context) ([]InterfaceCounters, error) {
	stats, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get network statistics: %w", err)
	}

	counters := make([]InterfaceCounters, 0, len(stats))
	for _, stat := range stats {
		counters = append(counters, InterfaceCounters{
			Name:    stat.Name,
			RxBytes: stat.BytesRecv,
			TxBytes: stat.BytesSent,
		})
	}
	return counters, nil
}

func secondsToTicks(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(seconds * userHZ)
}
