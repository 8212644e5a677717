package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/beancontainer/errors"
)

// DefaultEnvPrefix prefixes every environment override
const DefaultEnvPrefix = "BEANCONTAINER"

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	getenv     func(string) string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		getenv:    os.Getenv,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables schema and consistency checks on Load
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// WithEnv replaces the environment lookup, for tests
func (l *Loader) WithEnv(getenv func(string) string) *Loader {
	l.getenv = getenv
	return l
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, every layer and the environment overrides, in that order
func (l *Loader) Load() (*Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "Load", "encode defaults")
	}

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "load "+path)
		}
		merged = deepMergeMaps(merged, raw)
	}

	if l.validation {
		if err := ValidateDocument(merged); err != nil {
			return nil, err
		}
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "encode merged layers")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"Loader", "Load", "decode merged layers")
	}

	if err := l.applyEnvOverrides(&cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "apply environment overrides")
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// loadRaw reads a JSON or YAML layer as a generic map
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := readLayer(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	if err := checkNesting(raw, 1); err != nil {
		return nil, err
	}
	return raw, nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	env := func(name string) (string, error) {
		key := l.envPrefix + "_" + name
		val := l.getenv(key)
		return val, checkEnvValue(key, val)
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"CONTAINER_APP", &cfg.Container.App},
		{"CONTAINER_MODULE", &cfg.Container.Module},
		{"SESSION_ACCESS", &cfg.Container.SessionAccess},
		{"DATASTORE_BACKEND", &cfg.DataStore.Backend},
		{"DATASTORE_BUCKET", &cfg.DataStore.Bucket},
		{"NATS_USERNAME", &cfg.NATS.Username},
		{"NATS_PASSWORD", &cfg.NATS.Password},
		{"NATS_TOKEN", &cfg.NATS.Token},
		{"HTTP_ADDR", &cfg.HTTP.Addr},
	}
	for _, s := range strs {
		val, err := env(s.name)
		if err != nil {
			return err
		}
		if val != "" {
			*s.dst = val
		}
	}

	durations := []struct {
		name string
		dst  *Duration
	}{
		{"SWEEP_INTERVAL", &cfg.Container.SweepInterval},
		{"DEFAULT_IDLE_TIMEOUT", &cfg.Container.DefaultIdleTimeout},
		{"SHUTDOWN_TIMEOUT", &cfg.Container.ShutdownTimeout},
	}
	for _, d := range durations {
		val, err := env(d.name)
		if err != nil {
			return err
		}
		if val == "" {
			continue
		}
		parsed, err := parseDurationWithDays(val)
		if err != nil {
			return fmt.Errorf("%w: %s_%s=%q: %v", errors.ErrInvalidConfig, l.envPrefix, d.name, val, err)
		}
		*d.dst = Duration(parsed)
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"NATS_ENABLED", &cfg.NATS.Enabled},
		{"HTTP_ENABLED", &cfg.HTTP.Enabled},
	}
	for _, b := range bools {
		val, err := env(b.name)
		if err != nil {
			return err
		}
		if val == "" {
			continue
		}
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%w: %s_%s=%q: %v", errors.ErrInvalidConfig, l.envPrefix, b.name, val, err)
		}
		*b.dst = parsed
	}

	urls, err := env("NATS_URLS")
	if err != nil {
		return err
	}
	if urls != "" {
		cfg.NATS.URLs = strings.Split(urls, ",")
	}
	return nil
}
