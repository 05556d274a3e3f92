package config

import (
	"fmt"
	"time"
)

// fileConfig отражает YAML файл; отсутствующие ключи не меняют текущие значения
type fileConfig struct {
	LogLevel             *string `yaml:"log_level"`
	CPUInterval          *string `yaml:"cpu_interval"`
	MemoryInterval       *string `yaml:"memory_interval"`
	DiskInterval         *string `yaml:"disk_interval"`
	ServicesInterval     *string `yaml:"services_interval"`
	HistorySize          *int    `yaml:"history_size"`
	SampleTimeout        *string `yaml:"sample_timeout"`
	ServiceActionTimeout *string `yaml:"service_action_timeout"`
	SystemDrive          *string `yaml:"system_drive"`
	InstanceLabel        *string `yaml:"instance_label"`
	SensorsEnable        *bool   `yaml:"sensors_enable"`

	Profile struct {
		Enable   *bool   `yaml:"enable"`
		HTTPPort *int    `yaml:"http_port"`
		CPUFile  *string `yaml:"cpu_file"`
		MemFile  *string `yaml:"mem_file"`
		Time     *int    `yaml:"time"`
	} `yaml:"profile"`
}

func (f *fileConfig) apply(c *Config) error {
	setString(&c.LogLevel, f.LogLevel)
	setString(&c.SystemDrive, f.SystemDrive)
	setString(&c.InstanceLabel, f.InstanceLabel)
	setInt(&c.HistorySize, f.HistorySize)
	if f.SensorsEnable != nil {
		c.SensorsEnable = *f.SensorsEnable
	}

	durations := []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"cpu_interval", f.CPUInterval, &c.CPUInterval},
		{"memory_interval", f.MemoryInterval, &c.MemoryInterval},
		{"disk_interval", f.DiskInterval, &c.DiskInterval},
		{"services_interval", f.ServicesInterval, &c.ServicesInterval},
		{"sample_timeout", f.SampleTimeout, &c.SampleTimeout},
		{"service_action_timeout", f.ServiceActionTimeout, &c.ServiceActionTimeout},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		parsed, err := parseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("invalid %s in config file: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if f.Profile.Enable != nil {
		c.ProfileEnable = *f.Profile.Enable
	}
	setInt(&c.ProfileHTTPPort, f.Profile.HTTPPort)
	setString(&c.ProfileCPUFile, f.Profile.CPUFile)
	setString(&c.ProfileMemFile, f.Profile.MemFile)
	setInt(&c.ProfileTime, f.Profile.Time)

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
