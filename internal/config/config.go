package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Режимы подмены отсутствующих псевдофайлов
const (
	SubstituteSynthetic = "synthetic"
	SubstituteHost      = "host"
	SubstituteNone      = "none"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "TELEMON_"

// Sources пути псевдофайлов относительно HostRoot
type Sources struct {
	Stat      string `yaml:"stat"`
	CPUInfo   string `yaml:"cpuinfo"`
	Thermal   string `yaml:"thermal"`
	Frequency string `yaml:"frequency"`
	MemInfo   string `yaml:"meminfo"`
	NetDev    string `yaml:"net_dev"`
}

// Config содержит всю конфигурацию приложения
type Config struct {
	// Опрос
	CPUInterval     time.Duration `yaml:"cpu_interval"`
	MemoryInterval  time.Duration `yaml:"memory_interval"`
	NetworkInterval time.Duration `yaml:"network_interval"`
	HistorySize     int           `yaml:"history_size"`

	// Источники
	HostRoot   string  `yaml:"host_root"`
	Sources    Sources `yaml:"sources"`
	Substitute string  `yaml:"substitute"`

	// Сеть
	PreferredInterfaces []string `yaml:"preferred_interfaces"`
	VirtualPrefixes     []string `yaml:"virtual_prefixes"`
	FallbackInterface   string   `yaml:"fallback_interface"`

	Thresholds Thresholds `yaml:"thresholds"`

	LogLevel string `yaml:"log_level"`

	// Профилирование
	ProfileEnable   bool   `yaml:"profile_enable"`
	ProfileHTTPPort int    `yaml:"profile_http_port"`
	ProfileCPUFile  string `yaml:"profile_cpu_file"`
	ProfileMemFile  string `yaml:"profile_mem_file"`
	ProfileTime     int    `yaml:"profile_time"`
}

// NewConfig создает новую конфигурацию с значениями по умолчанию
func NewConfig() *Config {
	return &Config{
		CPUInterval:     time.Second,
		MemoryInterval:  time.Second,
		NetworkInterval: time.Second,
		HistorySize:     60,
		HostRoot:        "/",
		Sources: Sources{
			Stat:      "proc/stat",
			CPUInfo:   "proc/cpuinfo",
			Thermal:   "sys/class/thermal/thermal_zone0/temp",
			Frequency: "sys/devices/system/cpu/cpu0/cpufreq/scaling_cur_freq",
			MemInfo:   "proc/meminfo",
			NetDev:    "proc/net/dev",
		},
		Substitute:          SubstituteSynthetic,
		PreferredInterfaces: []string{"eth0", "enp0s3", "wlan0", "wlp2s0"},
		VirtualPrefixes:     []string{"docker", "vir"},
		FallbackInterface:   "eth0",
		Thresholds:          DefaultThresholds(),
		LogLevel:            "info",
		ProfileEnable:       false,
		ProfileHTTPPort:     6060,
		ProfileTime:         30,
	}
}

// Load загружает конфигурацию: файл, затем окружение, затем флаги (высший приоритет)
func (c *Config) Load(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := c.LoadFile(path); err != nil {
			return err
		}
	}

	c.loadFromEnv()

	flags := cmd.Flags()
	if flags.Changed("interval") {
		ms, _ := flags.GetInt("interval")
		c.setAllIntervals(time.Duration(ms) * time.Millisecond)
	}
	if flags.Changed("cpu-interval") {
		ms, _ := flags.GetInt("cpu-interval")
		c.CPUInterval = time.Duration(ms) * time.Millisecond
	}
	if flags.Changed("memory-interval") {
		ms, _ := flags.GetInt("memory-interval")
		c.MemoryInterval = time.Duration(ms) * time.Millisecond
	}
	if flags.Changed("network-interval") {
		ms, _ := flags.GetInt("network-interval")
		c.NetworkInterval = time.Duration(ms) * time.Millisecond
	}
	if flags.Changed("history-size") {
		c.HistorySize, _ = flags.GetInt("history-size")
	}
	if flags.Changed("host-root") {
		c.HostRoot, _ = flags.GetString("host-root")
	}
	if flags.Changed("substitute") {
		c.Substitute, _ = flags.GetString("substitute")
	}
	if flags.Changed("interfaces") {
		c.PreferredInterfaces, _ = flags.GetStringSlice("interfaces")
	}
	if flags.Changed("fallback-interface") {
		c.FallbackInterface, _ = flags.GetString("fallback-interface")
	}
	if flags.Changed("log-level") {
		c.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("profile") {
		c.ProfileEnable, _ = flags.GetBool("profile")
	}
	if flags.Changed("profile-http-port") {
		c.ProfileHTTPPort, _ = flags.GetInt("profile-http-port")
	}
	if flags.Changed("profile-cpu") {
		c.ProfileCPUFile, _ = flags.GetString("profile-cpu")
	}
	if flags.Changed("profile-mem") {
		c.ProfileMemFile, _ = flags.GetString("profile-mem")
	}
	if flags.Changed("profile-time") {
		c.ProfileTime, _ = flags.GetInt("profile-time")
	}

	return c.Validate()
}

// LoadFile накладывает значения из YAML файла поверх текущих
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadFromEnv загружает конфигурацию из переменных окружения
func (c *Config) loadFromEnv() {
	if ms, ok := envInt("INTERVAL_MS"); ok {
		c.setAllIntervals(time.Duration(ms) * time.Millisecond)
	}
	if ms, ok := envInt("CPU_INTERVAL_MS"); ok {
		c.CPUInterval = time.Duration(ms) * time.Millisecond
	}
	if ms, ok := envInt("MEMORY_INTERVAL_MS"); ok {
		c.MemoryInterval = time.Duration(ms) * time.Millisecond
	}
	if ms, ok := envInt("NETWORK_INTERVAL_MS"); ok {
		c.NetworkInterval = time.Duration(ms) * time.Millisecond
	}
	if size, ok := envInt("HISTORY_SIZE"); ok {
		c.HistorySize = size
	}
	if root := os.Getenv(EnvPrefix + "HOST_ROOT"); root != "" {
		c.HostRoot = root
	}
	if mode := os.Getenv(EnvPrefix + "SUBSTITUTE"); mode != "" {
		c.Substitute = mode
	}
	if list := os.Getenv(EnvPrefix + "INTERFACES"); list != "" {
		c.PreferredInterfaces = splitList(list)
	}
	if name := os.Getenv(EnvPrefix + "FALLBACK_INTERFACE"); name != "" {
		c.FallbackInterface = name
	}
	if logLevel := os.Getenv(EnvPrefix + "LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if profileStr := os.Getenv(EnvPrefix + "PROFILE_ENABLE"); profileStr != "" {
		if profile, err := strconv.ParseBool(profileStr); err == nil {
			c.ProfileEnable = profile
		}
	}
	if port, ok := envInt("PROFILE_HTTP_PORT"); ok {
		c.ProfileHTTPPort = port
	}
	if cpuFile := os.Getenv(EnvPrefix + "PROFILE_CPU_FILE"); cpuFile != "" {
		c.ProfileCPUFile = cpuFile
	}
	if memFile := os.Getenv(EnvPrefix + "PROFILE_MEM_FILE"); memFile != "" {
		c.ProfileMemFile = memFile
	}
	if profileTime, ok := envInt("PROFILE_TIME"); ok {
		c.ProfileTime = profileTime
	}
}

func (c *Config) setAllIntervals(d time.Duration) {
	c.CPUInterval = d
	c.MemoryInterval = d
	c.NetworkInterval = d
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.CPUInterval <= 0 || c.MemoryInterval <= 0 || c.NetworkInterval <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if c.HistorySize < 1 {
		return fmt.Errorf("history size must be at least 1")
	}
	if c.HostRoot == "" {
		return fmt.Errorf("host root is required")
	}
	if c.FallbackInterface == "" {
		return fmt.Errorf("fallback interface is required")
	}

	switch c.Substitute {
	case SubstituteSynthetic, SubstituteHost, SubstituteNone:
	default:
		return fmt.Errorf("invalid substitute mode: %s", c.Substitute)
	}

	// Проверяем уровень логирования
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	if err := c.Thresholds.Validate(); err != nil {
		return err
	}

	// Валидация профилирования
	if c.ProfileEnable {
		if c.ProfileHTTPPort < 0 || c.ProfileHTTPPort > 65535 {
			return fmt.Errorf("invalid profile HTTP port: %d", c.ProfileHTTPPort)
		}
		if c.ProfileTime <= 0 {
			return fmt.Errorf("profile time must be positive")
		}
	}

	return nil
}

// AddFlags добавляет флаги в cobra команду
func AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to YAML config file")
	flags.Int("interval", 1000, "Polling interval for all monitors in milliseconds")
	flags.Int("cpu-interval", 1000, "CPU polling interval in milliseconds")
	flags.Int("memory-interval", 1000, "Memory polling interval in milliseconds")
	flags.Int("network-interval", 1000, "Network polling interval in milliseconds")
	flags.Int("history-size", 60, "Number of usage samples kept in history")
	flags.String("host-root", "/", "Root directory that contains proc and sys")
	flags.String("substitute", SubstituteSynthetic, "Data source when a counter file is missing (synthetic, host, none)")
	flags.StringSlice("interfaces", nil, "Preferred network interfaces in priority order")
	flags.String("fallback-interface", "eth0", "Interface used when none can be discovered")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	// Флаги профилирования
	flags.Bool("profile", false, "Enable profiling")
	flags.Int("profile-http-port", 6060, "HTTP port for pprof endpoints (0 disables)")
	flags.String("profile-cpu", "", "CPU profile output file")
	flags.String("profile-mem", "", "Memory profile output file")
	flags.Int("profile-time", 30, "CPU profile duration in seconds")
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(EnvPrefix + key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
