// Package config provides configuration management for the media trim agent.
// Values come from built-in defaults, then an optional TOML file, then
// MEDIACROP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultPort              = 8788
	DefaultLogLevel          = "info"
	DefaultDataDir           = ".mediacrop"
	DefaultEngineInitTimeout = 15 * time.Second
	DefaultMaxUploadMB       = 2048
	DefaultHistoryPath       = ":memory:"

	EnvConfig            = "MEDIACROP_CONFIG"
	EnvPort              = "MEDIACROP_PORT"
	EnvLogLevel          = "MEDIACROP_LOG_LEVEL"
	EnvDataDir           = "MEDIACROP_DATA_DIR"
	EnvFFmpegPath        = "MEDIACROP_FFMPEG_PATH"
	EnvFFprobePath       = "MEDIACROP_FFPROBE_PATH"
	EnvEngineInitTimeout = "MEDIACROP_ENGINE_INIT_TIMEOUT"
	EnvMaxUploadMB       = "MEDIACROP_MAX_UPLOAD_MB"
	EnvHeadless          = "MEDIACROP_HEADLESS"

	// ConfigFilename is looked up inside the data directory when no path is given.
	ConfigFilename = "config.toml"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	ScratchDir() string
	HistoryPath() string
	FFmpegPath() string
	FFprobePath() string
	EngineInitTimeout() time.Duration
	MaxUploadBytes() int64
	Headless() bool
}

// FileConfig is the decoded configuration. Zero values in the TOML file keep
// the defaults.
type FileConfig struct {
	PortValue        int    `toml:"port"`
	LogLevelValue    string `toml:"log_level"`
	DataDirValue     string `toml:"data_dir"`
	HistoryPathValue string `toml:"history_path"`
	FFmpegPathValue  string `toml:"ffmpeg_path"`
	FFprobePathValue string `toml:"ffprobe_path"`
	// EngineInitTimeoutValue is a Go duration string, e.g. "15s".
	EngineInitTimeoutValue string `toml:"engine_init_timeout"`
	MaxUploadMBValue       int64  `toml:"max_upload_mb"`
	HeadlessValue          bool   `toml:"headless"`

	engineInitTimeout time.Duration
	source            string
}

// Default returns the built-in configuration.
func Default() *FileConfig {
	return &FileConfig{
		PortValue:         DefaultPort,
		LogLevelValue:     DefaultLogLevel,
		DataDirValue:      defaultDataDir(),
		HistoryPathValue:  DefaultHistoryPath,
		MaxUploadMBValue:  DefaultMaxUploadMB,
		engineInitTimeout: DefaultEngineInitTimeout,
	}
}

// New loads configuration. path may be empty, in which case MEDIACROP_CONFIG
// and then <data dir>/config.toml are tried. A missing file is not an error
// unless the path was given explicitly.
func New(path string) (*FileConfig, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfig)
		explicit = path != ""
	}
	if !explicit {
		dataDir := cfg.DataDirValue
		if dd := os.Getenv(EnvDataDir); dd != "" {
			dataDir = dd
		}
		path = filepath.Join(dataDir, ConfigFilename)
	}

	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *FileConfig) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if c.EngineInitTimeoutValue != "" {
		d, err := time.ParseDuration(c.EngineInitTimeoutValue)
		if err != nil {
			return fmt.Errorf("invalid engine_init_timeout: %w", err)
		}
		c.engineInitTimeout = d
	}
	c.source = path
	return nil
}

func (c *FileConfig) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.PortValue = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.LogLevelValue = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.DataDirValue = dd
	}
	if v := os.Getenv(EnvFFmpegPath); v != "" {
		c.FFmpegPathValue = v
	}
	if v := os.Getenv(EnvFFprobePath); v != "" {
		c.FFprobePathValue = v
	}

	if v := os.Getenv(EnvEngineInitTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvEngineInitTimeout, err)
		}
		c.engineInitTimeout = d
	}

	if v := os.Getenv(EnvMaxUploadMB); v != "" {
		mb, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxUploadMB, err)
		}
		c.MaxUploadMBValue = mb
	}

	if v := os.Getenv(EnvHeadless); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.HeadlessValue = b
	}
	return nil
}

// Validate checks ranges after all layers are applied.
func (c *FileConfig) Validate() error {
	if c.PortValue < 1 || c.PortValue > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.PortValue)
	}
	if c.MaxUploadMBValue <= 0 {
		return fmt.Errorf("invalid max_upload_mb %d: must be positive", c.MaxUploadMBValue)
	}
	if c.engineInitTimeout <= 0 {
		return fmt.Errorf("invalid engine_init_timeout %s: must be positive", c.engineInitTimeout)
	}
	switch strings.ToLower(c.LogLevelValue) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevelValue)
	}
	if strings.TrimSpace(c.DataDirValue) == "" {
		return errors.New("data_dir must not be empty")
	}
	return nil
}

// Source returns the file the configuration was read from, or "".
func (c *FileConfig) Source() string { return c.source }

func (c *FileConfig) Port() int { return c.PortValue }

// LogLevel returns the log level (debug, info, warn, error)
func (c *FileConfig) LogLevel() string { return c.LogLevelValue }

func (c *FileConfig) DataDir() string { return c.DataDirValue }

// ScratchDir holds uploads and export results. It is wiped on start and stop.
func (c *FileConfig) ScratchDir() string {
	return filepath.Join(c.DataDirValue, "scratch")
}

// HistoryPath is the export log database; ":memory:" keeps it in process.
func (c *FileConfig) HistoryPath() string {
	if c.HistoryPathValue == "" {
		return DefaultHistoryPath
	}
	return c.HistoryPathValue
}

func (c *FileConfig) FFmpegPath() string { return c.FFmpegPathValue }

func (c *FileConfig) FFprobePath() string { return c.FFprobePathValue }

func (c *FileConfig) EngineInitTimeout() time.Duration { return c.engineInitTimeout }

func (c *FileConfig) MaxUploadBytes() int64 { return c.MaxUploadMBValue * 1024 * 1024 }

// Headless disables the system tray.
func (c *FileConfig) Headless() bool { return c.HeadlessValue }

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
