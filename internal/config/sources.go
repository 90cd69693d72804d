package config

import (
	"telemon/internal/collector"
)

// NewSubstitute создает источник подмены для выбранного режима.
// Для режима none возвращается nil: отсутствующий псевдофайл становится ошибкой цикла.
func (c *Config) NewSubstitute() collector.Substitute {
	switch c.Substitute {
	case SubstituteHost:
		return collector.NewHostStats()
	case SubstituteNone:
		return nil
	default:
		return collector.NewBaseline(nil)
	}
}

// CollectorOptions переводит конфигурацию в настройки сборщиков
func (c *Config) CollectorOptions() collector.Options {
	return collector.Options{
		CPU: collector.CPUOptions{
			StatPath:      c.Sources.Stat,
			CPUInfoPath:   c.Sources.CPUInfo,
			ThermalPath:   c.Sources.Thermal,
			FrequencyPath: c.Sources.Frequency,
			HistorySize:   c.HistorySize,
		},
		Memory: collector.MemoryOptions{
			MemInfoPath: c.Sources.MemInfo,
			HistorySize: c.HistorySize,
		},
		Network: collector.NetworkOptions{
			DevPath:           c.Sources.NetDev,
			Preferred:         append([]string(nil), c.PreferredInterfaces...),
			VirtualPrefixes:   append([]string(nil), c.VirtualPrefixes...),
			FallbackInterface: c.FallbackInterface,
		},
		Substitute: c.NewSubstitute(),
	}
}
