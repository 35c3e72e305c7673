// Package config carries the process configuration. It is constructed once
// at startup and passed into the queue and orchestrator by reference; there
// is no ambient global state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Config holds everything the download core needs to run.
type Config struct {
	// VideoDir is where finished files are published.
	VideoDir string `yaml:"video_dir"`
	// TempDir holds in-flight downloads; defaults to VideoDir/.temp.
	TempDir string `yaml:"temp_dir"`
	// FFmpegPath overrides the ffmpeg binary location; empty means $PATH.
	FFmpegPath string `yaml:"ffmpeg_path"`
	// DrainInterval is the period of the queue trigger.
	DrainInterval time.Duration `yaml:"drain_interval"`
	// RequestTimeout bounds catalog metadata requests. Transfers themselves
	// carry no deadline and are aborted through context cancellation only.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{
		VideoDir:       "videos",
		DrainInterval:  5 * time.Second,
		RequestTimeout: 3 * time.Minute,
	}
	c.normalize()
	return c
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	c.normalize()
	return c, nil
}

// UnmarshalYAML decodes over whatever the receiver already holds, so absent
// keys keep their defaults. Durations are Go duration strings like "5s".
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		VideoDir       string `yaml:"video_dir"`
		TempDir        string `yaml:"temp_dir"`
		FFmpegPath     string `yaml:"ffmpeg_path"`
		DrainInterval  string `yaml:"drain_interval"`
		RequestTimeout string `yaml:"request_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.VideoDir != "" {
		c.SetVideoDir(raw.VideoDir)
	}
	if raw.TempDir != "" {
		c.TempDir = raw.TempDir
	}
	if raw.FFmpegPath != "" {
		c.FFmpegPath = raw.FFmpegPath
	}
	if raw.DrainInterval != "" {
		d, err := time.ParseDuration(raw.DrainInterval)
		if err != nil {
			return fmt.Errorf("drain_interval: %w", err)
		}
		c.DrainInterval = d
	}
	if raw.RequestTimeout != "" {
		d, err := time.ParseDuration(raw.RequestTimeout)
		if err != nil {
			return fmt.Errorf("request_timeout: %w", err)
		}
		c.RequestTimeout = d
	}
	return nil
}

func (c *Config) normalize() {
	if c.TempDir == "" && c.VideoDir != "" {
		c.TempDir = filepath.Join(c.VideoDir, ".temp")
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = 5 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 3 * time.Minute
	}
}

// SetVideoDir points the config at a new publish directory and re-derives
// the temp directory unless one was set explicitly.
func (c *Config) SetVideoDir(dir string) {
	derived := c.TempDir == "" || c.TempDir == filepath.Join(c.VideoDir, ".temp")
	c.VideoDir = dir
	if derived {
		c.TempDir = filepath.Join(dir, ".temp")
	}
}

// Prepare creates the publish and temp directories and removes temp files
// left over from a previous run. All queue state is in memory, so anything
// still sitting in the temp directory is garbage.
func (c *Config) Prepare(logger *log.Logger) error {
	if err := os.MkdirAll(c.VideoDir, 0o755); err != nil {
		return fmt.Errorf("creating video directory: %w", err)
	}
	if err := os.MkdirAll(c.TempDir, 0o755); err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}

	entries, err := os.ReadDir(c.TempDir)
	if err != nil {
		return fmt.Errorf("reading temp directory: %w", err)
	}

	var removed int
	var reclaimed int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(c.TempDir, entry.Name())
		if info, err := entry.Info(); err == nil {
			reclaimed += info.Size()
		}
		if err := os.Remove(path); err != nil {
			logger.Warn("could not remove stale temp file", "path", path, "err", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("purged stale temp files",
			"count", removed,
			"size_mb", fmt.Sprintf("%.2f", float64(reclaimed)/1024/1024))
	}
	return nil
}
