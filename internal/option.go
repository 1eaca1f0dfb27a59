package internal

import (
	"io"

	"github.com/starford/bookbot/internal/bookservice"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	models    *bookservice.Models
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithModels replaces the provider-backed embedding and chat clients.
func WithModels(m bookservice.Models) Option {
	return func(a *application) {
		a.models = &m
	}
}

// WithLogOutput sends the JSON log to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
