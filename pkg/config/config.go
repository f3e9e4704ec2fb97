// Package config loads engine settings from YAML.
//
// A configuration file looks like:
//
//	checked: true
//	max_depth: 128
//	step_budget: 100000
//	cache_size: 512
//	allow_reflection: false
//	aliases:
//	  float: float64
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Defaults for settings the file leaves out.
const (
	DefaultMaxDepth  = 256
	DefaultCacheSize = 256
)

// Config holds the engine settings.
type Config struct {
	// Checked turns on overflow checking outside checked/unchecked scopes.
	Checked bool `yaml:"checked"`
	// MaxDepth limits parser nesting.
	MaxDepth int `yaml:"max_depth"`
	// StepBudget limits node executions per run; 0 is unlimited.
	StepBudget int64 `yaml:"step_budget"`
	// CacheSize is the compiled program cache capacity; 0 disables caching.
	CacheSize int `yaml:"cache_size"`
	// AllowReflection permits member access on reflection types.
	AllowReflection bool `yaml:"allow_reflection"`
	// Aliases maps extra keywords to type names, on top of the built-in
	// aliases. An empty value removes a built-in alias.
	Aliases map[string]string `yaml:"aliases,omitempty"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		MaxDepth:  DefaultMaxDepth,
		CacheSize: DefaultCacheSize,
	}
}

// Load reads and validates a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs *multierror.Error
	if c.MaxDepth <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth))
	}
	if c.StepBudget < 0 {
		errs = multierror.Append(errs, fmt.Errorf("step_budget must not be negative, got %d", c.StepBudget))
	}
	if c.CacheSize < 0 {
		errs = multierror.Append(errs, fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize))
	}
	for _, k := range slices.Sorted(maps.Keys(c.Aliases)) {
		if strings.TrimSpace(k) == "" || strings.ContainsAny(k, " \t.<>[]") {
			errs = multierror.Append(errs, fmt.Errorf("alias %q is not a keyword", k))
		}
	}
	return errs.ErrorOrNil()
}

// Marshal encodes the settings as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
