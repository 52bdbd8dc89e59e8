package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/databroker/errors"
	"github.com/wippyai/databroker/record"
)

// Environment variables that override file settings.
const (
	EnvModulePath = "BROKER_MODULE_PATH"
	EnvLogLevel   = "BROKER_LOG_LEVEL"
)

// Config is the complete broker configuration.
type Config struct {
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
	Records RecordConfig  `yaml:"records"`
	Modules ModuleConfig  `yaml:"modules"`
}

// SessionConfig holds session creation parameters.
type SessionConfig struct {
	Name string `yaml:"name"`
	Pad  int    `yaml:"pad"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// RecordConfig controls how table text is classified.
type RecordConfig struct {
	CommentMarker string    `yaml:"comment_marker"`
	SegmentMarker string    `yaml:"segment_marker"`
	Gap           GapConfig `yaml:"gap"`
	Columns       int       `yaml:"columns"`
}

// GapConfig enables gap detection on one column. A zero threshold disables it.
type GapConfig struct {
	Column    int     `yaml:"column"`
	Threshold float64 `yaml:"threshold"`
}

// ModuleConfig locates dynamic modules.
type ModuleConfig struct {
	SearchPath []string `yaml:"search_path"`
	// Preload lists .wasm files or directories loaded at startup.
	Preload          []string `yaml:"preload"`
	MemoryLimitPages uint32   `yaml:"memory_limit_pages"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Session: SessionConfig{Name: "broker", Pad: 2},
		Log:     LogConfig{Level: "info"},
		Records: RecordConfig{CommentMarker: "#", SegmentMarker: ">"},
	}
}

// Load reads a YAML file over the defaults, applies environment overrides
// and validates the result. An empty path yields the defaults plus
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.IO(errors.PhaseConfig, path, err)
		}
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads YAML from r over the defaults without consulting the
// environment.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(r); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode yaml")
	}
	return nil
}

// ApplyEnv overrides settings from the environment using getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvModulePath); v != "" {
		var dirs []string
		for _, d := range filepath.SplitList(v) {
			if d = strings.TrimSpace(d); d != "" {
				dirs = append(dirs, d)
			}
		}
		c.Modules.SearchPath = dirs
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the configuration for values the broker cannot use.
func (c *Config) Validate() error {
	if c.Session.Pad < 0 {
		return invalid("session.pad must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}
	r := c.Records
	if len(r.CommentMarker) != 1 || len(r.SegmentMarker) != 1 {
		return invalid("records markers must be single characters")
	}
	if r.CommentMarker == r.SegmentMarker {
		return invalid("records.comment_marker and records.segment_marker must differ")
	}
	if r.Columns < 0 {
		return invalid("records.columns must not be negative")
	}
	if r.Gap.Column < 0 || r.Gap.Threshold < 0 {
		return invalid("records.gap column and threshold must not be negative")
	}
	return nil
}

// ZapLevel returns the parsed log level, info if unparseable.
func (c LogConfig) ZapLevel() zapcore.Level {
	l, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// Options converts the record settings into reader options.
func (c RecordConfig) Options() record.Options {
	o := record.DefaultOptions()
	o.Columns = c.Columns
	if c.CommentMarker != "" {
		o.CommentMarker = c.CommentMarker[0]
	}
	if c.SegmentMarker != "" {
		o.SegmentMarker = c.SegmentMarker[0]
	}
	if c.Gap.Threshold > 0 {
		o.Gap = record.ColumnGap(c.Gap.Column, c.Gap.Threshold)
	}
	return o
}

func invalid(detail string) error {
	return errors.InvalidInput(errors.PhaseConfig, detail)
}
