// Package config loads markscan configuration from files, environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
)

// Config represents the complete configuration for the markscan application.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Jobs     JobsConfig     `mapstructure:"jobs" yaml:"jobs" json:"jobs"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Roster   RosterConfig   `mapstructure:"roster" yaml:"roster" json:"roster"`
}

// PipelineConfig contains scan processing settings.
type PipelineConfig struct {
	// TemplateDir holds additional form template YAML files.
	TemplateDir string `mapstructure:"template_dir" yaml:"template_dir" json:"template_dir"`
	// MinWidth/MinHeight reject scans too small for bubble discrimination.
	MinWidth  int `mapstructure:"min_width" yaml:"min_width" json:"min_width"`
	MinHeight int `mapstructure:"min_height" yaml:"min_height" json:"min_height"`
	// AcceptThreshold is the minimum overall confidence for auto-acceptance.
	AcceptThreshold float64 `mapstructure:"accept_threshold" yaml:"accept_threshold" json:"accept_threshold"`
}

// JobsConfig contains worker pool and job store settings.
type JobsConfig struct {
	StorePath  string `mapstructure:"store_path" yaml:"store_path" json:"store_path"`
	Workers    int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	QueueSize  int    `mapstructure:"queue_size" yaml:"queue_size" json:"queue_size"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string `mapstructure:"host" yaml:"host" json:"host"`
	Port        int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin  string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	UploadDir   string `mapstructure:"upload_dir" yaml:"upload_dir" json:"upload_dir"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// RosterConfig points at the surrounding application's roster endpoint.
type RosterConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if c.Pipeline.AcceptThreshold < 0 || c.Pipeline.AcceptThreshold > 1 {
		return errors.New("accept_threshold must be in [0,1]")
	}
	if c.Pipeline.MinWidth < 0 || c.Pipeline.MinHeight < 0 {
		return errors.New("minimum dimensions must not be negative")
	}
	if c.Jobs.Workers < 0 {
		return errors.New("jobs.workers must not be negative")
	}
	if c.Jobs.TimeoutSec < 0 {
		return errors.New("jobs.timeout_sec must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB < 0 {
		return errors.New("server.max_upload_mb must not be negative")
	}
	return nil
}
