package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/c360/beancontainer/errors"
)

// Data store backends
const (
	BackendMemory = "memory" // process-local maps
	BackendKV     = "kv"     // NATS JetStream key-value bucket
)

// Session access modes
const (
	AccessSerialize = "serialize"
	AccessReject    = "reject"
)

// Config represents the complete container configuration
type Config struct {
	Container  ContainerConfig            `json:"container"`
	DataStore  DataStoreConfig            `json:"datastore"`
	NATS       NATSConfig                 `json:"nats"`
	HTTP       HTTPConfig                 `json:"http"`
	Components map[string]ComponentConfig `json:"components,omitempty"`
}

// ContainerConfig holds the runtime settings of the component container
type ContainerConfig struct {
	App                string     `json:"app,omitempty"` // empty for a standalone module
	Module             string     `json:"module"`
	SweepInterval      Duration   `json:"sweep_interval"`
	TombstoneGrace     Duration   `json:"tombstone_grace"`
	DefaultIdleTimeout Duration   `json:"default_idle_timeout"`
	SessionAccess      string     `json:"session_access"`
	ShutdownTimeout    Duration   `json:"shutdown_timeout"`
	Pool               PoolConfig `json:"pool"`
}

// PoolConfig tunes the stateless instance pool
type PoolConfig struct {
	MaxIdle int `json:"max_idle"` // 0 keeps every released instance
}

// DataStoreConfig selects the data store backend
type DataStoreConfig struct {
	Backend string `json:"backend"`
	Bucket  string `json:"bucket,omitempty"`
	History int    `json:"history,omitempty"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	Enabled       bool     `json:"enabled"`
	URLs          []string `json:"urls,omitempty"`
	MaxReconnects int      `json:"max_reconnects,omitempty"`
	ReconnectWait Duration `json:"reconnect_wait,omitempty"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"password,omitempty"`
	Token         string   `json:"token,omitempty"`
	SubjectPrefix string   `json:"subject_prefix,omitempty"`
	QueueGroup    string   `json:"queue_group,omitempty"`
}

// HTTPConfig defines the HTTP gateway
type HTTPConfig struct {
	Enabled   bool    `json:"enabled"`
	Addr      string  `json:"addr,omitempty"`
	RateLimit float64 `json:"rate_limit,omitempty"` // requests per second, 0 disables limiting
	Burst     int     `json:"burst,omitempty"`
	// MaxRequestSize caps request bodies in bytes
	MaxRequestSize int64 `json:"max_request_size,omitempty"`
}

// ComponentConfig overrides the declared settings of one component
type ComponentConfig struct {
	IdleTimeout Duration       `json:"idle_timeout,omitempty"`
	Env         map[string]any `json:"env,omitempty"`
}

// Duration is a time.Duration that reads Go duration strings, a "d" day suffix
// or plain nanoseconds, and writes Go duration strings.
type Duration time.Duration

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		parsed, err := parseDurationWithDays(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(val))
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// Default returns the configuration used when no layer overrides anything
func Default() *Config {
	return &Config{
		Container: ContainerConfig{
			Module:          "beancontainer",
			SweepInterval:   Duration(30 * time.Second),
			TombstoneGrace:  Duration(5 * time.Minute),
			SessionAccess:   AccessSerialize,
			ShutdownTimeout: Duration(30 * time.Second),
		},
		DataStore: DataStoreConfig{
			Backend: BackendMemory,
			Bucket:  "BEANCONTAINER_DATA",
			History: 1,
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
			SubjectPrefix: "beancontainer",
			QueueGroup:    "beancontainer",
		},
		HTTP: HTTPConfig{
			Enabled:        true,
			Addr:           ":8080",
			RateLimit:      100,
			Burst:          200,
			MaxRequestSize: 1 << 20,
		},
	}
}

// Validate checks that the config is internally consistent
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.WrapInvalid(errors.Newf(errors.ErrInvalidConfig, format, args...),
			"Config", "Validate", "check configuration")
	}

	if c.Container.Module == "" {
		return invalid("container.module is required")
	}
	for _, part := range []string{c.Container.App, c.Container.Module} {
		if strings.ContainsAny(part, "/!: ") {
			return invalid("container app and module names must not contain '/', '!', ':' or spaces (got %q)", part)
		}
	}
	if c.Container.SweepInterval < 0 || c.Container.TombstoneGrace < 0 ||
		c.Container.DefaultIdleTimeout < 0 || c.Container.ShutdownTimeout < 0 {
		return invalid("container durations must not be negative")
	}
	switch c.Container.SessionAccess {
	case "", AccessSerialize, AccessReject:
	default:
		return invalid("container.session_access must be %q or %q, got %q",
			AccessSerialize, AccessReject, c.Container.SessionAccess)
	}
	if c.Container.Pool.MaxIdle < 0 {
		return invalid("container.pool.max_idle must not be negative")
	}

	switch c.DataStore.Backend {
	case BackendMemory:
	case BackendKV:
		if !c.NATS.Enabled {
			return invalid("datastore.backend %q requires nats.enabled", BackendKV)
		}
		if c.DataStore.Bucket == "" {
			return invalid("datastore.bucket is required for the %q backend", BackendKV)
		}
	default:
		return invalid("unknown datastore.backend %q", c.DataStore.Backend)
	}

	if c.NATS.Enabled && len(c.NATS.URLs) == 0 {
		return invalid("nats.urls is required when nats is enabled")
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return invalid("http.addr is required when http is enabled")
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.Burst < 0 || c.HTTP.MaxRequestSize < 0 {
		return invalid("http rate limit, burst and max request size must not be negative")
	}

	for name, cc := range c.Components {
		if name == "" {
			return invalid("component override name cannot be empty")
		}
		if cc.IdleTimeout < 0 {
			return invalid("components.%s.idle_timeout must not be negative", name)
		}
	}
	return nil
}

// IdleTimeouts returns the per-component idle timeout overrides
func (c *Config) IdleTimeouts() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for name, cc := range c.Components {
		if cc.IdleTimeout > 0 {
			out[name] = cc.IdleTimeout.Std()
		}
	}
	return out
}

// Env returns the environment entries configured for a component, never nil
func (c *Config) Env(component string) map[string]any {
	if env := c.Components[component].Env; env != nil {
		return env
	}
	return map[string]any{}
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// String returns a JSON representation of the config with secrets redacted
func (c *Config) String() string {
	redacted := c.Clone()
	if redacted.NATS.Password != "" {
		redacted.NATS.Password = "***"
	}
	if redacted.NATS.Token != "" {
		redacted.NATS.Token = "***"
	}
	data, _ := json.MarshalIndent(redacted, "", "  ")
	return string(data)
}
