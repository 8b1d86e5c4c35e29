// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Serial SerialConfig `mapstructure:"serial"`
	Scope  ScopeConfig  `mapstructure:"scope"`

	RenderInterval time.Duration `mapstructure:"render_interval"` // Render tick period
	ReconnectMin   time.Duration `mapstructure:"reconnect_min"`   // 0 disables automatic reconnect
	ReconnectMax   time.Duration `mapstructure:"reconnect_max"`

	Record string `mapstructure:"record"` // Optional session record to load
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// SerialConfig defines the device settings
type SerialConfig struct {
	Device   string        `mapstructure:"device"` // e.g. "/dev/ttyACM0" or "tcp://10.0.0.2:4001"
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"`
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"` // Per-read timeout
}

// ScopeConfig defines the frame shape and display settings.
// The first five keys match the persisted session record.
type ScopeConfig struct {
	BaudRate int `mapstructure:"baudRate"`
	DataSize int `mapstructure:"dataSize"` // Bytes per channel value
	NumLines int `mapstructure:"numLines"` // Channel count
	YMin     int `mapstructure:"ymin"`
	YMax     int `mapstructure:"ymax"`

	Capacity  int  `mapstructure:"capacity"`   // Rolling window length in frames
	PreFill   bool `mapstructure:"prefill"`    // Start sessions with a zero-filled window
	MaxResync int  `mapstructure:"max_resync"` // 0 searches for the sentinel forever
}

// NewFlagSet defines the command-line overrides understood by LoadConfig.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Configuration file path.")
	fs.StringP("device", "p", "", "Serial port device name or tcp://host:port.")
	fs.IntP("baud_rate", "s", 0, "Serial port speed.")
	fs.IntP("data_size", "d", 0, "Bytes per channel value.")
	fs.IntP("num_lines", "n", 0, "Number of channels.")
	fs.StringP("record", "r", "", "Session record (JSON) to load.")
	fs.StringP("log_level", "v", "", "Log verbosity level (debug, info, warn, error).")
	fs.StringP("log_file", "L", "", "Log file name ('-' for logging to STDOUT only).")
	return fs
}

var flagKeys = map[string]string{
	"device":    "serial.device",
	"baud_rate": "scope.baudRate",
	"data_size": "scope.dataSize",
	"num_lines": "scope.numLines",
	"record":    "record",
	"log_level": "log.level",
	"log_file":  "log.file",
}

// LoadConfig loads configuration from defaults, the config file and the
// flags that were explicitly set. flags may be nil.
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("serial.device", "/dev/ttyACM0")
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.timeout", 4*time.Second)
	v.SetDefault("scope.baudRate", 115200)
	v.SetDefault("scope.dataSize", 1)
	v.SetDefault("scope.numLines", 1)
	v.SetDefault("scope.ymin", -255)
	v.SetDefault("scope.ymax", 255)
	v.SetDefault("scope.capacity", 25)
	v.SetDefault("scope.prefill", true)
	v.SetDefault("scope.max_resync", 0)
	v.SetDefault("render_interval", 34*time.Millisecond)
	v.SetDefault("reconnect_min", 0)
	v.SetDefault("reconnect_max", 30*time.Second)

	var configFile string
	if flags != nil {
		configFile, _ = flags.GetString("config")
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/serial-scope/")
		v.AddConfigPath("$HOME/.serial-scope")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// Without an explicit file, defaults and flags are enough.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.Serial)

	if config.Record != "" {
		rec, err := LoadRecord(config.Record)
		if err != nil {
			return nil, err
		}
		config.Scope.ApplyRecord(rec)
	}

	return &config, nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Timeout <= 0 {
		s.Timeout = 4 * time.Second
	}
}

// Validate checks values the acquisition path cannot recover from.
func Validate(cfg *Config) error {
	if cfg.Serial.Device == "" {
		return fmt.Errorf("serial.device is required")
	}
	switch cfg.Serial.Parity {
	case "N", "E", "O":
	default:
		return fmt.Errorf("serial.parity must be N, E or O, got %q", cfg.Serial.Parity)
	}
	if cfg.Scope.BaudRate <= 0 {
		return fmt.Errorf("scope.baudRate must be > 0, got %d", cfg.Scope.BaudRate)
	}
	if cfg.Scope.DataSize < 1 || cfg.Scope.DataSize > 8 {
		return fmt.Errorf("scope.dataSize must be within 1..8, got %d", cfg.Scope.DataSize)
	}
	if cfg.Scope.NumLines < 1 {
		return fmt.Errorf("scope.numLines must be >= 1, got %d", cfg.Scope.NumLines)
	}
	if cfg.Scope.Capacity < 1 {
		return fmt.Errorf("scope.capacity must be >= 1, got %d", cfg.Scope.Capacity)
	}
	if cfg.RenderInterval <= 0 {
		return fmt.Errorf("render_interval must be > 0, got %v", cfg.RenderInterval)
	}
	if cfg.ReconnectMin > 0 && cfg.ReconnectMax < cfg.ReconnectMin {
		return fmt.Errorf("reconnect_max %v is shorter than reconnect_min %v", cfg.ReconnectMax, cfg.ReconnectMin)
	}
	return nil
}
