// Package imagegen provides the client for the external image-generation
// service. It turns a raster plus prompt into a generateContent request and
// classifies every failure at this boundary; callers never see raw transport
// faults.
package imagegen

import (
	"context"
	"log/slog"
	"time"
)

// DefaultEndpoint is the Gemini API base URL.
const DefaultEndpoint = "https://generativelanguage.googleapis.com"

// Request is one generation submission. Image is the composited PNG of the
// current raster; nil means a prompt-only request.
type Request struct {
	Model  string
	Prompt string
	Image  []byte
}

// Result is a successful generation response. Image holds the first returned
// inline image; Text is any accompanying commentary from the model.
type Result struct {
	Image []byte
	MIME  string
	Text  string
}

// Generator submits generation requests.
type Generator interface {
	Generate(ctx context.Context, apiKey string, req Request) (*Result, error)
}

// Config configures the generation client.
type Config struct {
	// Endpoint is the API base URL. Defaults to DefaultEndpoint.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Timeout per HTTP request. Default: 120s; image generation is slow.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Logger for debug/error messages. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// New creates a Generator from config.
func New(cfg Config) Generator {
	cfg.defaults()
	return newGeminiClient(cfg)
}
