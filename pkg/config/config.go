// Package config handles loading and saving mxmh configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config: ~/.config/mxmh/config.yaml
//   - State:  ~/.local/state/mxmh/ (export wizard answers)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/mxmh/pkg/chart"
	"github.com/vanderheijden86/mxmh/pkg/dashboard"
	"github.com/vanderheijden86/mxmh/pkg/sankey"
)

const appName = "mxmh"

// DataConfig locates the survey data.
type DataConfig struct {
	Path     string `yaml:"path,omitempty"`     // survey CSV
	Snapshot string `yaml:"snapshot,omitempty"` // SQLite snapshot (default: Path with .db)
	Watch    bool   `yaml:"watch"`              // reload when the CSV changes
}

// SizeConfig overrides a view's surface size. Zero keeps the default.
type SizeConfig struct {
	Width  float64 `yaml:"width,omitempty"`
	Height float64 `yaml:"height,omitempty"`
}

// LayoutConfig tunes the Sankey layout. Zero keeps the default.
type LayoutConfig struct {
	NodeWidth   float64 `yaml:"node_width,omitempty"`
	NodePadding float64 `yaml:"node_padding,omitempty"`
	Iterations  int     `yaml:"iterations,omitempty"`
}

// DashboardConfig holds view behaviour settings.
type DashboardConfig struct {
	Basic      bool         `yaml:"basic"`
	Speed      float64      `yaml:"speed"`       // transition speed; 0 disables animation
	BrushScope string       `yaml:"brush_scope"` // rendered | all
	Bar        SizeConfig   `yaml:"bar,omitempty"`
	Scatter    SizeConfig   `yaml:"scatter,omitempty"`
	Sankey     SizeConfig   `yaml:"sankey,omitempty"`
	Layout     LayoutConfig `yaml:"layout,omitempty"`
}

// ServerConfig configures `mxmh --serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	FPS  int    `yaml:"fps"`
}

// ExportConfig configures snapshot export.
type ExportConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

// Config is the top-level configuration for mxmh.
type Config struct {
	Data      DataConfig      `yaml:"data"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Server    ServerConfig    `yaml:"server"`
	Export    ExportConfig    `yaml:"export"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Data: DataConfig{Path: "data/mxmh_survey_results.csv", Watch: true},
		Dashboard: DashboardConfig{
			Speed:      1,
			BrushScope: chart.BrushRendered.String(),
		},
		Server: ServerConfig{Addr: "127.0.0.1:8080", FPS: 30},
		Export: ExportConfig{Dir: "mxmh-export", Format: "svg"},
	}
}

// ConfigDir returns the XDG config directory for mxmh.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the XDG state directory for mxmh.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Data.Path = expandHome(cfg.Data.Path)
	cfg.Data.Snapshot = expandHome(cfg.Data.Snapshot)
	cfg.Export.Dir = expandHome(cfg.Export.Dir)
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	if c.Dashboard.Speed < 0 {
		return fmt.Errorf("dashboard.speed must not be negative, got %v", c.Dashboard.Speed)
	}
	if _, err := chart.ParseBrushScope(c.Dashboard.BrushScope); err != nil {
		return fmt.Errorf("dashboard.brush_scope: %w", err)
	}
	if c.Server.FPS < 0 || c.Server.FPS > 240 {
		return fmt.Errorf("server.fps must be between 0 and 240, got %d", c.Server.FPS)
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// DashboardOptions converts the dashboard section into binding options.
func (c Config) DashboardOptions() (dashboard.Options, error) {
	opts := dashboard.DefaultOptions()
	opts.Basic = c.Dashboard.Basic
	opts.Speed = c.Dashboard.Speed
	scope, err := chart.ParseBrushScope(c.Dashboard.BrushScope)
	if err != nil {
		return opts, err
	}
	opts.BrushScope = scope
	resize(&opts.Bar, c.Dashboard.Bar)
	resize(&opts.Scatter, c.Dashboard.Scatter)
	resize(&opts.Sankey, c.Dashboard.Sankey)

	opts.Layout = sankey.DefaultOptions(opts.Sankey.Width, opts.Sankey.Height)
	if l := c.Dashboard.Layout; l.NodeWidth > 0 {
		opts.Layout.NodeWidth = l.NodeWidth
	}
	if l := c.Dashboard.Layout; l.NodePadding > 0 {
		opts.Layout.NodePadding = l.NodePadding
	}
	if l := c.Dashboard.Layout; l.Iterations > 0 {
		opts.Layout.Iterations = l.Iterations
	}
	return opts, nil
}

// FrameInterval is the server's push interval.
func (c Config) FrameInterval() time.Duration {
	if c.Server.FPS <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.Server.FPS)
}

func resize(g *chart.Geometry, s SizeConfig) {
	if s.Width > 0 {
		g.Width = s.Width
	}
	if s.Height > 0 {
		g.Height = s.Height
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
