package cmd

// Options holds the global command-line options for gqlc. Empty values
// fall back to the loaded configuration.
type Options struct {
	Endpoint             string
	SubscriptionEndpoint string
	Headers              []string // "Name: value" pairs added to every request
	Output               string
	Verbosity            int
	Timeout              string
	TUI                  *bool // nil = auto-detect, true = force TUI, false = disable TUI

	// Store options
	CacheBackend string
	CacheDir     string
	TokenEnv     string

	// Profiling options
	CPUProfile string // Write CPU profile to file
	MemProfile string // Write memory profile to file
	Trace      string // Write execution trace to file
}

// Option is a functional option for configuring Options.
type Option func(*Options)

// NewOptions creates a new Options and applies any provided options.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithEndpoint sets the GraphQL endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.Endpoint = endpoint
	}
}

// WithSubscriptionEndpoint sets the websocket URL used for subscriptions.
func WithSubscriptionEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.SubscriptionEndpoint = endpoint
	}
}

// WithHeaders adds "Name: value" request headers.
func WithHeaders(headers ...string) Option {
	return func(o *Options) {
		o.Headers = append(o.Headers, headers...)
	}
}

// WithOutput sets the output format (json, raw, yaml).
func WithOutput(format string) Option {
	return func(o *Options) {
		o.Output = format
	}
}

// WithVerbosity sets the verbosity level.
func WithVerbosity(v int) Option {
	return func(o *Options) {
		o.Verbosity = v
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d string) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithCacheBackend selects the store backend (memory, file, badger).
func WithCacheBackend(backend string) Option {
	return func(o *Options) {
		o.CacheBackend = backend
	}
}

// WithCacheDir sets the directory of persistent store backends.
func WithCacheDir(dir string) Option {
	return func(o *Options) {
		o.CacheDir = dir
	}
}

// WithTokenEnv names the environment variable holding the bearer token.
func WithTokenEnv(name string) Option {
	return func(o *Options) {
		o.TokenEnv = name
	}
}

// WithTUI controls TUI mode (nil = auto-detect, true = force, false = disable).
func WithTUI(tui *bool) Option {
	return func(o *Options) {
		o.TUI = tui
	}
}

// WithCPUProfile sets the CPU profile output file.
func WithCPUProfile(path string) Option {
	return func(o *Options) {
		o.CPUProfile = path
	}
}

// WithMemProfile sets the memory profile output file.
func WithMemProfile(path string) Option {
	return func(o *Options) {
		o.MemProfile = path
	}
}

// WithTrace sets the execution trace output file.
func WithTrace(path string) Option {
	return func(o *Options) {
		o.Trace = path
	}
}
