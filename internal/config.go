package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/docvault/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	Auth   AuthConfig        `yaml:"auth"`
	Events EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Host is the interface to listen on. Use "0.0.0.0" to accept remote
	// clients, together with token auth.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig controls where vaults live and how they are presented.
type VaultConfig struct {
	// BaseDir holds one subdirectory per vault id.
	BaseDir     string   `yaml:"base_dir"`
	CopySuffix  string   `yaml:"copy_suffix"`
	ScanExclude []string `yaml:"scan_exclude"`
	Watch       bool     `yaml:"watch"`
	// ImportRoots lists host directories that imports may read from while
	// auth is disabled.
	ImportRoots []string `yaml:"import_roots"`
}

var absolutePath = validation.By(func(v any) error {
	p, _ := v.(string)
	if !filepath.IsAbs(p) {
		return errors.New("must be an absolute path")
	}
	return nil
})

var validPattern = validation.By(func(v any) error {
	p, _ := v.(string)
	if !doublestar.ValidatePattern(p) {
		return errors.New("must be a valid glob pattern")
	}
	return nil
})

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseDir, validation.Required),
		validation.Field(&c.ScanExclude, validation.Each(validation.Required, validPattern)),
		validation.Field(&c.ImportRoots, validation.Each(validation.Required, absolutePath)),
	)
}

// StoreOptions returns the storage options this configuration asks for.
func (c *VaultConfig) StoreOptions() []storage.Option {
	return []storage.Option{
		storage.WithCopySuffix(c.CopySuffix),
		storage.WithExclude(c.ScanExclude...),
	}
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// EventsConfig tunes the change event stream.
type EventsConfig struct {
	// TreeThrottle is the minimum gap between tree.updated events of one vault.
	TreeThrottle time.Duration `yaml:"tree_throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TreeThrottle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			BaseDir:    "./data/vaults",
			CopySuffix: storage.DefaultCopySuffix,
			Watch:      true,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Events: EventsConfig{
			TreeThrottle: 2 * time.Second,
		},
	}
}
