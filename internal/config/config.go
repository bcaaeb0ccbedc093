// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"revdiff/internal/diff"
)

type Config struct {
	Store struct {
		Path     string `json:"path"`
		InMemory bool   `json:"in_memory"`
	} `json:"store"`

	History struct {
		KeyframeInterval int `json:"keyframe_interval"`
		CacheSize        int `json:"cache_size"`
	} `json:"history"`

	Engine struct {
		Granularity     string  `json:"granularity"` // char, word, line
		MatchThreshold  float64 `json:"match_threshold"`
		MatchDistance   int     `json:"match_distance"`
		PatchMargin     int     `json:"patch_margin"`
		DeleteThreshold float64 `json:"delete_threshold"`
	} `json:"engine"`

	Compression struct {
		MinSize int `json:"min_size"`
		Level   int `json:"level"` // zstd level, 1 fastest ... 22 best
	} `json:"compression"`

	LogLevel string `json:"log_level"` // debug, info, warn, error
}

func Default() *Config {
	var c Config
	c.Store.Path = ".revdiff"
	c.History.KeyframeInterval = 10
	c.History.CacheSize = 128

	opts := diff.DefaultOptions()
	c.Engine.Granularity = string(opts.Granularity)
	c.Engine.MatchThreshold = opts.MatchThreshold
	c.Engine.MatchDistance = opts.MatchDistance
	c.Engine.PatchMargin = opts.PatchMargin
	c.Engine.DeleteThreshold = opts.DeleteThreshold

	c.Compression.MinSize = 512
	c.Compression.Level = 2
	c.LogLevel = "warn"
	return &c
}

// ConfigPath picks the file for the environment named by REVDIFF_ENV
func ConfigPath() string {
	env := os.Getenv("REVDIFF_ENV")
	if env == "" {
		env = "development"
	}
	return fmt.Sprintf("config/config.%s.json", env)
}

// Load reads path over the defaults. An empty path falls back to
// ConfigPath, and a missing environment file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = ConfigPath()
	}

	config := Default()
	file, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

func (c *Config) Validate() error {
	if _, err := diff.ParseGranularity(c.Engine.Granularity); err != nil {
		return err
	}
	if c.History.KeyframeInterval < 1 {
		return fmt.Errorf("history.keyframe_interval must be at least 1, got %d", c.History.KeyframeInterval)
	}
	// zero tolerances would be read as unset by diff.NewEngine
	if c.Engine.MatchThreshold <= 0 || c.Engine.MatchThreshold > 1 {
		return fmt.Errorf("engine.match_threshold must be within (0,1], got %v", c.Engine.MatchThreshold)
	}
	if c.Engine.DeleteThreshold <= 0 || c.Engine.DeleteThreshold > 1 {
		return fmt.Errorf("engine.delete_threshold must be within (0,1], got %v", c.Engine.DeleteThreshold)
	}
	if c.Engine.MatchDistance < 1 {
		return fmt.Errorf("engine.match_distance must be at least 1, got %d", c.Engine.MatchDistance)
	}
	if c.Engine.PatchMargin < 1 || c.Engine.PatchMargin > diff.MaxPatchMargin {
		return fmt.Errorf("engine.patch_margin must be within [1,%d], got %d", diff.MaxPatchMargin, c.Engine.PatchMargin)
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return errors.New("store.path is required unless store.in_memory is set")
	}
	return nil
}

// EngineOptions converts the engine section for diff.NewEngine
func (c *Config) EngineOptions() (diff.Options, error) {
	g, err := diff.ParseGranularity(c.Engine.Granularity)
	if err != nil {
		return diff.Options{}, err
	}
	return diff.Options{
		Granularity:     g,
		MatchThreshold:  c.Engine.MatchThreshold,
		MatchDistance:   c.Engine.MatchDistance,
		PatchMargin:     c.Engine.PatchMargin,
		DeleteThreshold: c.Engine.DeleteThreshold,
	}, nil
}
