// Package config loads colsync configuration: the remote API, the
// collections to synchronize and the sync job. Files are YAML or JSON with
// comments (HuJSON), chosen by extension.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/h0rv/colsync/internal/domain"
)

// Environment variables consulted by Load.
const (
	EnvConfig  = "COLSYNC_CONFIG"
	EnvBaseURL = "COLSYNC_BASE_URL"
)

// Transport kinds.
const (
	TransportHTTP    = "http"
	TransportGraphQL = "graphql"
)

var (
	errConfigNotFound = errors.New("config file not found")
	errConfigInvalid  = errors.New("invalid config")
)

// Config holds all configuration options.
type Config struct {
	BaseURL      string            `yaml:"base_url" json:"base_url"`
	Token        string            `yaml:"token" json:"token,omitempty"`
	TokenCommand []string          `yaml:"token_command" json:"token_command,omitempty"`
	Transport    string            `yaml:"transport" json:"transport"`
	Timeout      Duration          `yaml:"timeout" json:"timeout"`
	Envelope     string            `yaml:"envelope" json:"envelope,omitempty"`
	Documents    map[string]string `yaml:"documents" json:"documents,omitempty"`
	LogLevel     string            `yaml:"log_level" json:"log_level"`
	MetricsAddr  string            `yaml:"metrics_addr" json:"metrics_addr,omitempty"`
	Resources    []Resource        `yaml:"resources" json:"resources"`
	Sync         *Sync             `yaml:"sync" json:"sync,omitempty"`
}

// Resource describes one collection container.
type Resource struct {
	Object      string        `yaml:"object" json:"object"`
	Store       string        `yaml:"store" json:"store,omitempty"`
	IDField     string        `yaml:"id_field" json:"id_field,omitempty"`
	IDParam     string        `yaml:"id_param" json:"id_param,omitempty"`
	IDsParam    string        `yaml:"ids_param" json:"ids_param,omitempty"`
	Params      domain.Values `yaml:"params" json:"params,omitempty"`
	Filters     domain.Values `yaml:"filters" json:"filters,omitempty"`
	Groups      domain.Values `yaml:"groups" json:"groups,omitempty"`
	SelectCheck string        `yaml:"select_check" json:"select_check,omitempty"`
	EasyFilter  bool          `yaml:"easy_filter" json:"easy_filter,omitempty"`
	Cache       *bool         `yaml:"cache" json:"cache,omitempty"`
	Title       string        `yaml:"title_field" json:"title_field,omitempty"`
	URL         string        `yaml:"url_field" json:"url_field,omitempty"`
	Move        *Move         `yaml:"move" json:"move,omitempty"`
	Export      *Export       `yaml:"export" json:"export,omitempty"`
}

// StoreName returns the configured store name or the last object segment.
func (r Resource) StoreName() string {
	if r.Store != "" {
		return r.Store
	}
	object := strings.Trim(r.Object, "/")
	return object[strings.LastIndex(object, "/")+1:]
}

// Move configures status moves of a resource.
type Move struct {
	Path         string        `yaml:"path" json:"path,omitempty"`
	TermField    string        `yaml:"term_field" json:"term_field,omitempty"`
	StatusField  string        `yaml:"status_field" json:"status_field,omitempty"`
	SummaryField string        `yaml:"summary_field" json:"summary_field,omitempty"`
	Scope        domain.Values `yaml:"scope" json:"scope,omitempty"`
	ScopeKeys    []string      `yaml:"scope_keys" json:"scope_keys,omitempty"`
}

// Export configures report downloads of a resource.
type Export struct {
	Path string `yaml:"path" json:"path"`
	Name string `yaml:"name" json:"name,omitempty"`
	// Dir receives files written by the file sink.
	Dir string `yaml:"dir" json:"dir,omitempty"`
	// S3 settings; when Bucket is set exports go to S3 instead of Dir.
	Bucket   string `yaml:"bucket" json:"bucket,omitempty"`
	Prefix   string `yaml:"prefix" json:"prefix,omitempty"`
	Region   string `yaml:"region" json:"region,omitempty"`
	Endpoint string `yaml:"endpoint" json:"endpoint,omitempty"`
}

// Sync configures the external sync job poller.
type Sync struct {
	Path     string   `yaml:"path" json:"path"`
	Store    string   `yaml:"store" json:"store,omitempty"`
	Attempts int      `yaml:"attempts" json:"attempts,omitempty"`
	Delay    Duration `yaml:"delay" json:"delay,omitempty"`
	Refresh  []string `yaml:"refresh" json:"refresh,omitempty"`
}

// Duration is a time.Duration written as "30s" in config files.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	return d.parse(s)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) parse(s string) error {
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Transport: TransportHTTP,
		Timeout:   Duration{30 * time.Second},
		LogLevel:  "info",
	}
}

// FileNames are the config files looked up in the working directory.
var FileNames = []string{"colsync.yaml", "colsync.yml", "colsync.json"}

// Load loads configuration with the following precedence (highest wins):
//  1. Defaults
//  2. The config file: path if non-empty, else $COLSYNC_CONFIG, else the
//     first of FileNames in the working directory, else
//     $XDG_CONFIG_HOME/colsync/config.yaml
//  3. Environment overrides ($COLSYNC_BASE_URL)
//
// It returns the path of the loaded file, empty when none was found.
func Load(path string) (Config, string, error) {
	cfg := Default()

	source, mustExist := path, path != ""
	if source == "" {
		if env := os.Getenv(EnvConfig); env != "" {
			source, mustExist = env, true
		}
	}
	if source == "" {
		source = lookup()
	}

	if source != "" {
		data, err := os.ReadFile(source) //nolint:gosec // path is intentionally user-controlled
		switch {
		case err == nil:
			if err := Parse(data, source, &cfg); err != nil {
				return Config{}, "", fmt.Errorf("%w %s: %w", errConfigInvalid, source, err)
			}
		case os.IsNotExist(err) && !mustExist:
			source = ""
		case os.IsNotExist(err):
			return Config{}, "", fmt.Errorf("%w: %s", errConfigNotFound, source)
		default:
			return Config{}, "", fmt.Errorf("read config %s: %w", source, err)
		}
	}

	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, "", fmt.Errorf("%w: %w", errConfigInvalid, err)
	}
	return cfg, source, nil
}

func lookup() string {
	for _, name := range FileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "colsync", "config.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "colsync", "config.yaml")
	}
	return ""
}

// Parse decodes data into cfg. Files ending in .json, .jsonc or .hujson are
// read as JSON with comments; anything else as YAML.
func Parse(data []byte, name string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".jsonc", ".hujson":
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return fmt.Errorf("invalid JSONC: %w", err)
		}
		if err := json.Unmarshal(standardized, cfg); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("invalid YAML: %w", err)
		}
	}
	return nil
}

// Validate checks the configuration for mistakes that would only surface
// at request time.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportHTTP, TransportGraphQL:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}

	seen := make(map[string]bool, len(c.Resources))
	for i, r := range c.Resources {
		if strings.Trim(r.Object, "/") == "" {
			return fmt.Errorf("resources[%d]: %w", i, domain.ErrObjectName)
		}
		name := r.StoreName()
		if seen[name] {
			return fmt.Errorf("resources[%d]: duplicate store %q", i, name)
		}
		seen[name] = true
		if r.Export != nil && r.Export.Path == "" {
			return fmt.Errorf("resources[%d]: export path must be set", i)
		}
	}

	if c.Sync != nil {
		if c.Sync.Path == "" {
			return errors.New("sync: path must be set")
		}
		for _, name := range append([]string{c.Sync.Store}, c.Sync.Refresh...) {
			if name != "" && !seen[name] {
				return fmt.Errorf("sync: unknown store %q", name)
			}
		}
	}
	return nil
}

// Resource returns the resource whose store name is name.
func (c Config) Resource(name string) (Resource, bool) {
	for _, r := range c.Resources {
		if r.StoreName() == name {
			return r, true
		}
	}
	return Resource{}, false
}

// Format returns the config as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}
	return string(data), nil
}
