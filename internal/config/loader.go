package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"runtimed/internal/routing"
)

// MemoryConfig tunes the memory monitor and threshold watcher.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type MemoryConfig struct {
	WarningMB          int     `json:"warning_mb" yaml:"warning_mb" toml:"warning_mb"`
	CriticalMB         int     `json:"critical_mb" yaml:"critical_mb" toml:"critical_mb"`
	Hysteresis         float64 `json:"hysteresis" yaml:"hysteresis" toml:"hysteresis"`
	MonitorIntervalMS  int     `json:"monitor_interval_ms" yaml:"monitor_interval_ms" toml:"monitor_interval_ms"`
	SampleWindowSec    int     `json:"sample_window_sec" yaml:"sample_window_sec" toml:"sample_window_sec"`

	// Leak detection tunables.
	LeakMinDurationSec    int     `json:"leak_min_duration_sec" yaml:"leak_min_duration_sec" toml:"leak_min_duration_sec"`
	LeakGrowthBytesPerSec float64 `json:"leak_growth_bytes_per_sec" yaml:"leak_growth_bytes_per_sec" toml:"leak_growth_bytes_per_sec"`
	LeakAbsoluteMB        int     `json:"leak_absolute_mb" yaml:"leak_absolute_mb" toml:"leak_absolute_mb"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr      string         `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string         `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Memory    MemoryConfig   `json:"memory" yaml:"memory" toml:"memory"`
	Routing   routing.Policy `json:"routing" yaml:"routing" toml:"routing"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil { return cfg, err }
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil { return cfg, err }
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
