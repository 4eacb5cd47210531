package conf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
)

// ConfigPathEnv names the environment variable holding a config file path.
const ConfigPathEnv = "MONET_CONFIG_PATH"

type configKey struct{}

// AutosaveConfig controls the autosave and version recovery subsystem.
type AutosaveConfig struct {
	// DelaySeconds is how long after the first unsaved edit an autosave fires.
	DelaySeconds int
	// KeepVersions is how many autosaves are retained per document.
	KeepVersions int
	// BasePath is where the autosave endpoints are mounted under the admin.
	BasePath string
}

// A Config holds options for the running website.
type Config struct {
	Debug      bool
	ListenAddr string

	SessionSecret string

	// DatabaseURI is a connectable URI string
	DatabaseURI string

	Autosave AutosaveConfig
}

// String returns the config as a string.
func (c *Config) String() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	err := enc.Encode(c)
	if err != nil {
		panic(err)
	}
	return buf.String()
}

// FromPath loads a config from path and merges it into c.
func (c *Config) FromPath(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.FromReader(f)
}

// FromReader loads a config from the reader r.
func (c *Config) FromReader(r io.Reader) error {
	return json.NewDecoder(r).Decode(c)
}

// Validate reports settings that would leave the site unusable.
func (c *Config) Validate() error {
	if c.Autosave.DelaySeconds <= 0 {
		return fmt.Errorf("autosave delay must be positive, got %d", c.Autosave.DelaySeconds)
	}
	if c.Autosave.KeepVersions <= 0 {
		return fmt.Errorf("autosave must keep at least one version, got %d", c.Autosave.KeepVersions)
	}
	if len(c.SessionSecret) == 0 {
		return fmt.Errorf("session secret is empty")
	}
	return nil
}

// AddConfigMiddleware adds this config to the request contxt.
func (c *Config) AddConfigMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(c.WithConfig(r.Context())))
	})
}

// WithConfig adds this config to the context. Get it back out with
// conf.ConfigFromContext(ctx).
func (c *Config) WithConfig(ctx context.Context) context.Context {
	return context.WithValue(ctx, configKey{}, c)
}

// ConfigFromContext returns the config embedded within the context, or
// nil if there isn't one.
func ConfigFromContext(ctx context.Context) *Config {
	c, _ := ctx.Value(configKey{}).(*Config)
	return c
}

// Default returns a sensible default config with the file at
// $MONET_CONFIG_PATH loaded into it, if that is set.
func Default() *Config {
	c := &Config{}
	c.ListenAddr = "0.0.0.0:7000"
	c.DatabaseURI = "monet.db"
	c.SessionSecret = "SET-IN-CONFIG-FILE"
	c.Autosave = AutosaveConfig{
		DelaySeconds: 300,
		KeepVersions: 10,
		BasePath:     "/autosave",
	}

	if path := os.Getenv(ConfigPathEnv); len(path) > 0 {
		if err := c.FromPath(path); err != nil {
			slog.Error("loading config", "path", path, "err", err)
		}
	}

	return c
}
