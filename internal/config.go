package internal

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/inkhorn/easel/internal/imagegen"
	"github.com/inkhorn/easel/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Gallery    GalleryConfig     `yaml:"gallery"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Canvas     CanvasConfig      `yaml:"canvas"`
	Generation GenerationConfig  `yaml:"generation"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Gallery.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Canvas.Validate(); err != nil {
		return err
	}
	return c.Generation.Validate()
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
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// GalleryConfig holds the path to the gallery image directory.
type GalleryConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the gallery configuration.
func (c *GalleryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
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

// CanvasConfig holds the fixed internal resolution and drawing defaults for
// new boards.
type CanvasConfig struct {
	Width      int       `yaml:"width"`
	Height     int       `yaml:"height"`
	Pen        PenConfig `yaml:"pen"`
	MaxHistory int       `yaml:"max_history"`
}

// PenConfig holds the default pen state for new boards.
type PenConfig struct {
	Color string  `yaml:"color"`
	Width float64 `yaml:"width"`
}

// Validate validates the canvas configuration.
func (c *CanvasConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Width, validation.Required, validation.Min(16), validation.Max(4096)),
		validation.Field(&c.Height, validation.Required, validation.Min(16), validation.Max(4096)),
		validation.Field(&c.MaxHistory, validation.Min(0)),
	); err != nil {
		return err
	}
	// ozzo's ValidateStruct only accepts pointers to direct fields, so the
	// nested pen fields are validated against their own struct.
	return validation.ValidateStruct(&c.Pen,
		validation.Field(&c.Pen.Color, validation.Required),
		validation.Field(&c.Pen.Width, validation.Required, validation.Min(0.5)),
	)
}

// DefaultPen returns the configured pen as a domain value.
func (c *CanvasConfig) DefaultPen() models.Pen {
	return models.Pen{Color: c.Pen.Color, Width: c.Pen.Width}
}

// GenerationConfig holds image generation service configuration.
//
// APIKey may reference an environment variable in the YAML file
// (api_key: ${GEMINI_API_KEY}); when left empty it falls back to the
// GEMINI_API_KEY environment variable directly. A key stored via the
// credential API takes precedence over both at request time.
type GenerationConfig struct {
	Endpoint       string   `yaml:"endpoint"`
	Model          string   `yaml:"model"`
	Models         []string `yaml:"models"`
	APIKey         string   `yaml:"api_key"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	StyleHint      string   `yaml:"style_hint"`
}

// Validate validates the generation configuration.
func (c *GenerationConfig) Validate() error {
	if c.Endpoint == "" {
		c.Endpoint = imagegen.DefaultEndpoint
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Models, validation.Required),
		validation.Field(&c.TimeoutSeconds, validation.Min(0)),
	); err != nil {
		return err
	}
	if !slices.Contains(c.Models, c.Model) {
		return fmt.Errorf("generation: default model %q is not in the models list", c.Model)
	}
	return nil
}

// Timeout returns the per-request generation timeout.
func (c *GenerationConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Gallery: GalleryConfig{
			Path: "./gallery",
		},
		SQLite: SQLiteConfig{
			Path: "./easel.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Canvas: CanvasConfig{
			Width:      960,
			Height:     540,
			Pen:        PenConfig{Color: "#000000", Width: 3},
			MaxHistory: 50,
		},
		Generation: GenerationConfig{
			Endpoint: imagegen.DefaultEndpoint,
			Model:    "gemini-2.0-flash-preview-image-generation",
			Models: []string{
				"gemini-2.0-flash-preview-image-generation",
				"gemini-2.5-flash-image-preview",
			},
			TimeoutSeconds: 120,
			StyleHint:      "keep the same minimal line drawing style",
		},
	}
}
