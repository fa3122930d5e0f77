package cmd

// Options holds the shared command-line options for the reviewdeck CLI.
type Options struct {
	Format    string
	Provider  string
	Verbosity int
	Demo      bool
	TUI       *bool // nil = auto-detect, true = force TUI, false = disable TUI
}

// Option is a functional option for configuring Options.
type Option func(*Options)

// NewOptions creates a new Options with defaults and applies any provided options.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithFormat sets the output format (table, json).
func WithFormat(format string) Option {
	return func(o *Options) {
		o.Format = format
	}
}

// WithProvider sets the provider filter for repository commands.
func WithProvider(provider string) Option {
	return func(o *Options) {
		o.Provider = provider
	}
}

// WithVerbosity sets the verbosity level.
func WithVerbosity(v int) Option {
	return func(o *Options) {
		o.Verbosity = v
	}
}

// WithDemo enables the deterministic demo dataset.
func WithDemo(demo bool) Option {
	return func(o *Options) {
		o.Demo = demo
	}
}

// WithTUI controls TUI mode (nil = auto-detect, true = force, false = disable).
func WithTUI(tui *bool) Option {
	return func(o *Options) {
		o.TUI = tui
	}
}
