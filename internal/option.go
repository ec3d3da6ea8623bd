package internal

import (
	"io"
	"os"

	"github.com/starford/docvault/internal/storage"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	opener   storage.Revealer
	logOut   io.Writer
	noSignal bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRevealer replaces the platform file manager bridge.
func WithRevealer(r storage.Revealer) Option {
	return func(a *application) {
		a.opener = r
	}
}

// WithLogOutput sends logs to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

// WithoutSignals stops Run from listening for SIGINT and SIGTERM; only ctx
// ends it.
func WithoutSignals() Option {
	return func(a *application) {
		a.noSignal = true
	}
}

func newApplication(opts []Option) *application {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	return app
}
