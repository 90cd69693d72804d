package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"telemon/internal/collector"

	"github.com/spf13/cobra"
)

func newCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	AddFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	return cmd
}

func TestNewConfigIsValid(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.CPUInterval != time.Second || cfg.HistorySize != 60 || cfg.Substitute != SubstituteSynthetic {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemon.yaml")
	yamlData := `cpu_interval: 2s
memory_interval: 3s
history_size: 10
log_level: warn
preferred_interfaces: [ens3]
thresholds:
  cpu:
    warning: 50
    critical: 60
`
	if err := os.WriteFile(path, []byte(yamlData), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvPrefix+"MEMORY_INTERVAL_MS", "4000")
	t.Setenv(EnvPrefix+"LOG_LEVEL", "error")
	t.Setenv(EnvPrefix+"INTERFACES", "wlan1, eth9 ,")

	cmd := newCommand(t, "--config", path, "--log-level", "debug")
	cfg := NewConfig()
	if err := cfg.Load(cmd); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.CPUInterval != 2*time.Second {
		t.Errorf("cpu interval = %v, want 2s from file", cfg.CPUInterval)
	}
	if cfg.MemoryInterval != 4*time.Second {
		t.Errorf("memory interval = %v, want 4s from env", cfg.MemoryInterval)
	}
	if cfg.NetworkInterval != time.Second {
		t.Errorf("network interval = %v, want default", cfg.NetworkInterval)
	}
	if cfg.HistorySize != 10 {
		t.Errorf("history size = %d", cfg.HistorySize)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want flag value", cfg.LogLevel)
	}
	if want := []string{"wlan1", "eth9"}; !reflect.DeepEqual(cfg.PreferredInterfaces, want) {
		t.Errorf("interfaces = %v, want %v", cfg.PreferredInterfaces, want)
	}
	if cfg.Thresholds.CPU != (Threshold{Warning: 50, Critical: 60}) {
		t.Errorf("cpu thresholds = %+v", cfg.Thresholds.CPU)
	}
	if cfg.Thresholds.Memory != DefaultThresholds().Memory {
		t.Errorf("memory thresholds lost defaults: %+v", cfg.Thresholds.Memory)
	}
}

func TestLoadUnchangedFlagsKeepEnv(t *testing.T) {
	t.Setenv(EnvPrefix+"HOST_ROOT", "/host")
	t.Setenv(EnvPrefix+"SUBSTITUTE", SubstituteNone)

	cfg := NewConfig()
	if err := cfg.Load(newCommand(t)); err != nil {
		t.Fatal(err)
	}
	if cfg.HostRoot != "/host" || cfg.Substitute != SubstituteNone {
		t.Fatalf("env values overridden by flag defaults: %+v", cfg)
	}
}

func TestLoadIntervalFlag(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.Load(newCommand(t, "--interval", "250", "--network-interval", "500")); err != nil {
		t.Fatal(err)
	}
	if cfg.CPUInterval != 250*time.Millisecond || cfg.MemoryInterval != 250*time.Millisecond {
		t.Errorf("intervals = %v/%v", cfg.CPUInterval, cfg.MemoryInterval)
	}
	if cfg.NetworkInterval != 500*time.Millisecond {
		t.Errorf("network interval = %v", cfg.NetworkInterval)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.Load(newCommand(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.NetworkInterval = 0 }},
		{"negative interval", func(c *Config) { c.CPUInterval = -time.Second }},
		{"empty history", func(c *Config) { c.HistorySize = 0 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"unknown substitute", func(c *Config) { c.Substitute = "mock" }},
		{"empty host root", func(c *Config) { c.HostRoot = "" }},
		{"empty fallback", func(c *Config) { c.FallbackInterface = "" }},
		{"inverted thresholds", func(c *Config) { c.Thresholds.Memory = Threshold{Warning: 90, Critical: 80} }},
		{"bad profiler port", func(c *Config) { c.ProfileEnable = true; c.ProfileHTTPPort = 70000 }},
		{"bad profile time", func(c *Config) { c.ProfileEnable = true; c.ProfileTime = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestThresholdLevel(t *testing.T) {
	th := Threshold{Warning: 75, Critical: 90}
	tests := []struct {
		v    float64
		want Level
	}{
		{0, LevelNormal},
		{74.9, LevelNormal},
		{75, LevelWarning},
		{89.99, LevelWarning},
		{90, LevelCritical},
		{100, LevelCritical},
	}
	for _, tt := range tests {
		if got := th.Level(tt.v); got != tt.want {
			t.Errorf("Level(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
	if LevelCritical.String() != "critical" {
		t.Errorf("String = %q", LevelCritical.String())
	}
}

func TestNewSubstitute(t *testing.T) {
	cfg := NewConfig()

	if _, ok := cfg.NewSubstitute().(*collector.Baseline); !ok {
		t.Error("synthetic mode must give Baseline")
	}
	cfg.Substitute = SubstituteHost
	if _, ok := cfg.NewSubstitute().(*collector.HostStats); !ok {
		t.Error("host mode must give HostStats")
	}
	cfg.Substitute = SubstituteNone
	if cfg.NewSubstitute() != nil {
		t.Error("none mode must give nil")
	}
}

func TestCollectorOptions(t *testing.T) {
	cfg := NewConfig()
	cfg.HistorySize = 5
	cfg.Sources.NetDev = "custom/net/dev"

	opts := cfg.CollectorOptions()
	if opts.CPU.HistorySize != 5 || opts.Memory.HistorySize != 5 {
		t.Errorf("history sizes = %d/%d", opts.CPU.HistorySize, opts.Memory.HistorySize)
	}
	if opts.Network.DevPath != "custom/net/dev" || opts.Network.FallbackInterface != "eth0" {
		t.Errorf("network options = %+v", opts.Network)
	}
	if !reflect.DeepEqual(opts.CPU, collector.CPUOptions{
		StatPath:      "proc/stat",
		CPUInfoPath:   "proc/cpuinfo",
		ThermalPath:   "sys/class/thermal/thermal_zone0/temp",
		FrequencyPath: "sys/devices/system/cpu/cpu0/cpufreq/scaling_cur_freq",
		HistorySize:   5,
	}) {
		t.Errorf("cpu options = %+v", opts.CPU)
	}
}
