// Package config loads the optional tgen profile file.
//
// A profile tunes the generator and the sink without changing their
// command-line contract. YAML profiles are decoded with gopkg.in/yaml.v3.
// JSON profiles may carry comments and trailing commas: they are cleaned
// with github.com/tidwall/jsonc before encoding/json parses them.
//
// With no profile, Default() applies: the 256 KiB 0xFF payload on every
// local IPv4 address, and a sink reading 8 MiB chunks once a second.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/claudiu-m/dev-tools/internal/model"
	"github.com/claudiu-m/dev-tools/internal/payload"
)

// Config is the root of a profile file.
type Config struct {
	Serve ServeConfig `yaml:"serve" json:"serve"`
	Sink  SinkConfig  `yaml:"sink" json:"sink"`
}

// ServeConfig tunes the generator workers.
type ServeConfig struct {
	// BindHost is the local address each worker listens on.
	// Empty means every IPv4 address.
	BindHost string `yaml:"bindHost" json:"bindHost"`

	// PayloadBytes is the size of the shared buffer written per send.
	PayloadBytes int `yaml:"payloadBytes" json:"payloadBytes"`

	// FillByte is the value of every payload byte (0-255).
	FillByte int `yaml:"fillByte" json:"fillByte"`
}

// SinkConfig tunes the receiving side.
type SinkConfig struct {
	// ReadBytes is the chunk size of each read.
	ReadBytes int `yaml:"readBytes" json:"readBytes"`

	// ReportInterval is a Go duration string ("1s", "250ms").
	ReportInterval string `yaml:"reportInterval" json:"reportInterval"`

	// Window is the number of rate samples averaged in the report line.
	Window int `yaml:"window" json:"window"`
}

// Default returns the built-in profile.
func Default() *Config {
	return &Config{
		Serve: ServeConfig{
			PayloadBytes: payload.DefaultSize,
			FillByte:     int(payload.DefaultFill),
		},
		Sink: SinkConfig{
			ReadBytes:      8 << 20,
			ReportInterval: "1s",
			Window:         256,
		},
	}
}

// Load reads the profile at path on top of Default(). An empty path
// returns the defaults. Every failure wraps model.ErrInvalidConfig.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidConfig, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", model.ErrInvalidConfig, path, err)
		}
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", model.ErrInvalidConfig, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported profile extension %q (use .yaml, .yml, .json or .jsonc)", model.ErrInvalidConfig, ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Serve.PayloadBytes <= 0 {
		return fmt.Errorf("%w: serve.payloadBytes must be positive, got %d", model.ErrInvalidConfig, c.Serve.PayloadBytes)
	}
	if c.Serve.FillByte < 0 || c.Serve.FillByte > 0xFF {
		return fmt.Errorf("%w: serve.fillByte %d out of range (0-255)", model.ErrInvalidConfig, c.Serve.FillByte)
	}
	if c.Sink.ReadBytes <= 0 {
		return fmt.Errorf("%w: sink.readBytes must be positive, got %d", model.ErrInvalidConfig, c.Sink.ReadBytes)
	}
	if c.Sink.Window <= 0 {
		return fmt.Errorf("%w: sink.window must be positive, got %d", model.ErrInvalidConfig, c.Sink.Window)
	}
	if _, err := c.Sink.Interval(); err != nil {
		return err
	}
	return nil
}

// Interval parses ReportInterval.
func (s SinkConfig) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(s.ReportInterval)
	if err != nil {
		return 0, fmt.Errorf("%w: sink.reportInterval: %v", model.ErrInvalidConfig, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: sink.reportInterval must be positive, got %s", model.ErrInvalidConfig, d)
	}
	return d, nil
}

// Payload builds the shared buffer described by the serve section.
func (s ServeConfig) Payload() (*payload.Payload, error) {
	p, err := payload.New(s.PayloadBytes, byte(s.FillByte))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidConfig, err)
	}
	return p, nil
}
