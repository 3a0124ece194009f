package internal

import "io"

// Mode selects what Run does.
type Mode string

// Run modes.
const (
	ModeScan  Mode = "scan"
	ModeWatch Mode = "watch"
	ModeServe Mode = "serve"
	ModeMCP   Mode = "mcp"
)

func (m Mode) valid() bool {
	switch m {
	case ModeScan, ModeWatch, ModeServe, ModeMCP:
		return true
	}
	return false
}

// longRunning reports whether the mode keeps serving after the first scan.
func (m Mode) longRunning() bool {
	return m == ModeWatch || m == ModeServe || m == ModeMCP
}

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	mode    Mode
	version string
	stdout  io.Writer
	stderr  io.Writer
	noColor bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode sets the run mode. The default is ModeScan.
func WithMode(m Mode) Option {
	return func(a *application) {
		a.mode = m
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithOutput redirects the console report and the logs.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *application) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// WithNoColor disables colored console output.
func WithNoColor(v bool) Option {
	return func(a *application) {
		a.noColor = v
	}
}
