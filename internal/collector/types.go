package collector

import "time"

const (
	// BytesPerMB делитель для перевода байт/с в МБ/с
	BytesPerMB = 1024 * 1024

	// MaxRateMBps верхняя граница скорости интерфейса
	MaxRateMBps = 1000.0

	// UnknownModel модель процессора, если cpuinfo ее не содержит
	UnknownModel = "Unknown"
)

// MetricSet содержит снимок всех семейств метрик
type MetricSet struct {
	Timestamp time.Time     `json:"timestamp"`
	Host      string        `json:"host"`
	CPU       CPUSample     `json:"cpu"`
	Memory    MemorySample  `json:"memory"`
	Network   NetworkSample `json:"network"`
}

// CPUSample содержит метрики процессора
type CPUSample struct {
	UsagePercent float64   `json:"usage_percent"`
	TemperatureC float64   `json:"temperature_c"`
	FrequencyMHz float64   `json:"frequency_mhz"`
	CoreCount    int       `json:"core_count"`
	Model        string    `json:"model"`
	History      []float64 `json:"history,omitempty"`

	TotalTicks     uint64 `json:"total_ticks"`
	IdleTicks      uint64 `json:"idle_ticks"`
	PrevTotalTicks uint64 `json:"prev_total_ticks"`
	PrevIdleTicks  uint64 `json:"prev_idle_ticks"`
}

// Valid сообщает, были ли прочитаны счетчики
func (s CPUSample) Valid() bool {
	return s.TotalTicks > 0
}

// MemorySample содержит метрики памяти, все объемы в байтах
type MemorySample struct {
	TotalBytes     uint64    `json:"total_bytes"`
	AvailableBytes uint64    `json:"available_bytes"`
	UsedBytes      uint64    `json:"used_bytes"`
	FreeBytes      uint64    `json:"free_bytes"`
	Buffers        uint64    `json:"buffers"`
	Cached         uint64    `json:"cached"`
	SwapTotalBytes uint64    `json:"swap_total_bytes"`
	SwapUsedBytes  uint64    `json:"swap_used_bytes"`
	SwapFreeBytes  uint64    `json:"swap_free_bytes"`
	UsagePercent   float64   `json:"usage_percent"`
	SwapPercent    float64   `json:"swap_percent"`
	History        []float64 `json:"history,omitempty"`
}

// Valid сообщает, известен ли общий объем памяти
func (s MemorySample) Valid() bool {
	return s.TotalBytes > 0
}

// NetworkSample содержит метрики активного сетевого интерфейса
type NetworkSample struct {
	UploadMBps   float64 `json:"upload_mbps"`
	DownloadMBps float64 `json:"download_mbps"`
	Interface    string  `json:"interface"`
	BytesUp      uint64  `json:"bytes_up"`
	BytesDown    uint64  `json:"bytes_down"`
}

// CPUTicks агрегированные счетчики времени процессора (в тиках)
type CPUTicks struct {
	User    uint64
	Nice    uint64
	System  uint64
	Idle    uint64
	IOWait  uint64
	IRQ     uint64
	SoftIRQ uint64
}

// IdleTotal время простоя, включая ожидание ввода-вывода
func (t CPUTicks) IdleTotal() uint64 {
	return t.Idle + t.IOWait
}

// Total полное учтенное время
func (t CPUTicks) Total() uint64 {
	return t.IdleTotal() + t.User + t.Nice + t.System + t.IRQ + t.SoftIRQ
}

// MemInfo сырые значения учета памяти в байтах
type MemInfo struct {
	Total     uint64
	Available uint64
	Free      uint64
	Buffers   uint64
	Cached    uint64
	SwapTotal uint64
	SwapFree  uint64
}

// InterfaceCounters накопительные счетчики одного интерфейса
type InterfaceCounters struct {
	Name    string
	RxBytes uint64
	TxBytes uint64
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
