// Package config loads bridgectl settings from TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the full bridgectl configuration.
type Config struct {
	Heap  HeapConfig
	Guest GuestConfig
	Log   LogConfig
	// CheckLeaks wraps every call in a leak check.
	CheckLeaks bool
}

type HeapConfig struct {
	// CollectEvery runs a collection after this many allocations.
	CollectEvery int
}

type GuestConfig struct {
	MemoryLimitPages uint32
	// Demo loads the built-in demo guest.
	Demo    bool
	Modules []ModuleConfig
}

// ModuleConfig names a guest module and its WIT declarations. Relative
// paths are resolved against the config file's directory.
type ModuleConfig struct {
	Name string
	Path string
	WIT  string
}

type LogConfig struct {
	Level       string
	Development bool
}

type fileConfig struct {
	CheckLeaks bool `toml:"check_leaks"`
	Heap       struct {
		CollectEvery int `toml:"collect_every"`
	} `toml:"heap"`
	Guest struct {
		MemoryLimitPages uint32 `toml:"memory_limit_pages"`
		Demo             bool   `toml:"demo"`
		Modules          []struct {
			Name string `toml:"name"`
			Path string `toml:"path"`
			WIT  string `toml:"wit"`
		} `toml:"modules"`
	} `toml:"guest"`
	Log struct {
		Level       string `toml:"level"`
		Development bool   `toml:"development"`
	} `toml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Heap:  HeapConfig{CollectEvery: 64},
		Guest: GuestConfig{MemoryLimitPages: 256, Demo: true},
		Log:   LogConfig{Level: "warn"},
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range cfg.Guest.Modules {
		m := &cfg.Guest.Modules[i]
		m.Path = resolve(dir, m.Path)
		m.WIT = resolve(dir, m.WIT)
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults and validates the result.
func Parse(text string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.Decode(text, &raw)
	if err != nil {
		return Config{}, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown key %s", undecoded[0])
	}

	if meta.IsDefined("check_leaks") {
		cfg.CheckLeaks = raw.CheckLeaks
	}
	if meta.IsDefined("heap", "collect_every") {
		cfg.Heap.CollectEvery = raw.Heap.CollectEvery
	}
	if meta.IsDefined("guest", "memory_limit_pages") {
		cfg.Guest.MemoryLimitPages = raw.Guest.MemoryLimitPages
	}
	if meta.IsDefined("guest", "demo") {
		cfg.Guest.Demo = raw.Guest.Demo
	}
	for _, m := range raw.Guest.Modules {
		cfg.Guest.Modules = append(cfg.Guest.Modules, ModuleConfig{
			Name: strings.TrimSpace(m.Name),
			Path: strings.TrimSpace(m.Path),
			WIT:  strings.TrimSpace(m.WIT),
		})
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(raw.Log.Level))
	}
	if meta.IsDefined("log", "development") {
		cfg.Log.Development = raw.Log.Development
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Heap.CollectEvery < 1 {
		return fmt.Errorf("heap.collect_every must be at least 1, got %d", c.Heap.CollectEvery)
	}
	if c.Guest.MemoryLimitPages > 65536 {
		return fmt.Errorf("guest.memory_limit_pages must be at most 65536, got %d", c.Guest.MemoryLimitPages)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	seen := make(map[string]bool)
	for i, m := range c.Guest.Modules {
		switch {
		case m.Name == "":
			return fmt.Errorf("guest.modules[%d]: name is required", i)
		case m.Path == "":
			return fmt.Errorf("guest.modules[%d]: path is required", i)
		case m.WIT == "":
			return fmt.Errorf("guest.modules[%d]: wit is required", i)
		case seen[m.Name]:
			return fmt.Errorf("guest.modules[%d]: duplicate name %q", i, m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// NewLogger builds the zap logger described by c.Log.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if c.Log.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
