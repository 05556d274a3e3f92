package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"telemetry_mon/internal/history"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	// Общие настройки
	LogLevel string

	// Интервалы опроса
	CPUInterval      time.Duration
	MemoryInterval   time.Duration
	DiskInterval     time.Duration
	ServicesInterval time.Duration

	// Сбор метрик
	HistorySize          int
	SampleTimeout        time.Duration
	ServiceActionTimeout time.Duration
	SystemDrive          string
	InstanceLabel        string
	SensorsEnable        bool

	// Профилирование
	ProfileEnable   bool
	ProfileHTTPPort int
	ProfileCPUFile  string
	ProfileMemFile  string
	ProfileTime     int

	// Путь к файлу конфигурации
	ConfigFile string
}

// NewConfig создает новую конфигурацию с значениями по умолчанию
func NewConfig() *Config {
	return &Config{
		LogLevel:             "info",
		CPUInterval:          1 * time.Second,
		MemoryInterval:       1 * time.Second,
		DiskInterval:         1 * time.Second,
		ServicesInterval:     3 * time.Second,
		HistorySize:          history.DefaultSize,
		SampleTimeout:        750 * time.Millisecond,
		ServiceActionTimeout: 30 * time.Second,
		SystemDrive:          "C:",
		InstanceLabel:        "PhysicalDrive",
		SensorsEnable:        true,
		ProfileEnable:        false,
		ProfileHTTPPort:      6060,
		ProfileTime:          30,
	}
}

// Load загружает конфигурацию из файла, переменных окружения и флагов командной строки
func (c *Config) Load(cmd *cobra.Command) error {
	flags := cmd.Flags()

	if flags.Changed("config") {
		c.ConfigFile, _ = flags.GetString("config")
	} else if path := os.Getenv("TELEMETRY_CONFIG"); path != "" {
		c.ConfigFile = path
	}
	if c.ConfigFile != "" {
		if err := c.LoadFile(c.ConfigFile); err != nil {
			return err
		}
	}

	// Затем из переменных окружения
	if err := c.loadFromEnv(); err != nil {
		return err
	}

	// Флаги имеют наивысший приоритет
	if flags.Changed("log-level") {
		c.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("cpu-interval") {
		c.CPUInterval, _ = flags.GetDuration("cpu-interval")
	}
	if flags.Changed("memory-interval") {
		c.MemoryInterval, _ = flags.GetDuration("memory-interval")
	}
	if flags.Changed("disk-interval") {
		c.DiskInterval, _ = flags.GetDuration("disk-interval")
	}
	if flags.Changed("services-interval") {
		c.ServicesInterval, _ = flags.GetDuration("services-interval")
	}
	if flags.Changed("history-size") {
		c.HistorySize, _ = flags.GetInt("history-size")
	}
	if flags.Changed("sample-timeout") {
		c.SampleTimeout, _ = flags.GetDuration("sample-timeout")
	}
	if flags.Changed("service-action-timeout") {
		c.ServiceActionTimeout, _ = flags.GetDuration("service-action-timeout")
	}
	if flags.Changed("system-drive") {
		c.SystemDrive, _ = flags.GetString("system-drive")
	}
	if flags.Changed("sensors") {
		c.SensorsEnable, _ = flags.GetBool("sensors")
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

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return f.apply(c)
}

// loadFromEnv загружает конфигурацию из переменных окружения
func (c *Config) loadFromEnv() error {
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"CPU_INTERVAL", &c.CPUInterval},
		{"MEMORY_INTERVAL", &c.MemoryInterval},
		{"DISK_INTERVAL", &c.DiskInterval},
		{"SERVICES_INTERVAL", &c.ServicesInterval},
		{"SAMPLE_TIMEOUT", &c.SampleTimeout},
		{"SERVICE_ACTION_TIMEOUT", &c.ServiceActionTimeout},
	}
	for _, d := range durations {
		if v := os.Getenv(d.env); v != "" {
			parsed, err := parseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", d.env, err)
			}
			*d.dst = parsed
		}
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"HISTORY_SIZE", &c.HistorySize},
		{"PROFILE_HTTP_PORT", &c.ProfileHTTPPort},
		{"PROFILE_TIME", &c.ProfileTime},
	}
	for _, n := range ints {
		if v := os.Getenv(n.env); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", n.env, err)
			}
			*n.dst = parsed
		}
	}

	bools := []struct {
		env string
		dst *bool
	}{
		{"SENSORS_ENABLE", &c.SensorsEnable},
		{"PROFILE_ENABLE", &c.ProfileEnable},
	}
	for _, b := range bools {
		if v := os.Getenv(b.env); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", b.env, err)
			}
			*b.dst = parsed
		}
	}

	if drive := os.Getenv("SYSTEM_DRIVE"); drive != "" {
		c.SystemDrive = drive
	}
	if cpuFile := os.Getenv("PROFILE_CPU_FILE"); cpuFile != "" {
		c.ProfileCPUFile = cpuFile
	}
	if memFile := os.Getenv("PROFILE_MEM_FILE"); memFile != "" {
		c.ProfileMemFile = memFile
	}

	return nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	var errs []error

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"cpu interval", c.CPUInterval},
		{"memory interval", c.MemoryInterval},
		{"disk interval", c.DiskInterval},
		{"services interval", c.ServicesInterval},
		{"sample timeout", c.SampleTimeout},
		{"service action timeout", c.ServiceActionTimeout},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", p.name))
		}
	}
	if c.HistorySize < 1 {
		errs = append(errs, fmt.Errorf("history size must be at least 1"))
	}
	if c.InstanceLabel == "" {
		errs = append(errs, fmt.Errorf("counter instance label is required"))
	}

	// Проверяем уровень логирования
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		errs = append(errs, fmt.Errorf("invalid log level: %s", c.LogLevel))
	}

	// Валидация профилирования
	if c.ProfileEnable {
		if c.ProfileHTTPPort <= 0 || c.ProfileHTTPPort > 65535 {
			errs = append(errs, fmt.Errorf("invalid profile HTTP port: %d", c.ProfileHTTPPort))
		}
		if c.ProfileTime <= 0 {
			errs = append(errs, fmt.Errorf("profile time must be positive"))
		}
	}

	return errors.Join(errs...)
}

// AddFlags добавляет флаги в cobra команду
func AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.String("config", "", "Path to YAML config file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Duration("cpu-interval", time.Second, "CPU polling interval")
	flags.Duration("memory-interval", time.Second, "Memory polling interval")
	flags.Duration("disk-interval", time.Second, "Disk polling interval")
	flags.Duration("services-interval", 3*time.Second, "Services polling interval")
	flags.Int("history-size", history.DefaultSize, "Number of samples kept in history")
	flags.Duration("sample-timeout", 750*time.Millisecond, "Per-counter sample timeout")
	flags.Duration("service-action-timeout", 30*time.Second, "Service action wait timeout")
	flags.String("system-drive", "C:", "System drive letter")
	flags.Bool("sensors", true, "Read hardware sensors")

	// Флаги профилирования
	flags.Bool("profile", false, "Enable profiling")
	flags.Int("profile-http-port", 6060, "HTTP port for pprof endpoints")
	flags.String("profile-cpu", "", "CPU profile output file")
	flags.String("profile-mem", "", "Memory profile output file")
	flags.Int("profile-time", 30, "CPU profile duration in seconds")
}

// parseDuration принимает "1s", "750ms" или целое число секунд
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}
