package config

import "fmt"

// Level уровень значения метрики относительно порогов
type Level int

const (
	LevelNormal Level = iota
	LevelWarning
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Threshold пара порогов: предупреждение и критическое значение
type Threshold struct {
	Warning  float64 `yaml:"warning"`
	Critical float64 `yaml:"critical"`
}

// Level возвращает уровень значения v
func (t Threshold) Level(v float64) Level {
	switch {
	case v >= t.Critical:
		return LevelCritical
	case v >= t.Warning:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// Thresholds пороги всех отслеживаемых величин
type Thresholds struct {
	CPU         Threshold `yaml:"cpu"`
	Memory      Threshold `yaml:"memory"`
	Temperature Threshold `yaml:"temperature"`
}

// DefaultThresholds CPU 75/90 %, RAM 80/95 %, температура 70/80 °C
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPU:         Threshold{Warning: 75, Critical: 90},
		Memory:      Threshold{Warning: 80, Critical: 95},
		Temperature: Threshold{Warning: 70, Critical: 80},
	}
}

// Validate проверяет, что предупреждение не выше критического порога
func (t Thresholds) Validate() error {
	checks := []struct {
		name string
		t    Threshold
	}{
		{"cpu", t.CPU},
		{"memory", t.Memory},
		{"temperature", t.Temperature},
	}
	for _, c := range checks {
		if c.t.Warning > c.t.Critical {
			return fmt.Errorf("invalid %s thresholds: warning %.1f above critical %.1f",
				c.name, c.t.Warning, c.t.Critical)
		}
	}
	return nil
}
