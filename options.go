package lfspull

import (
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ProgressFunc hands out a progress sink for one object download. It is
// called once per download attempt with the object id and its size; a
// nil writer disables reporting for that object.
type ProgressFunc func(oid string, size int64) io.Writer

// Option adjusts how a pull runs.
type Option func(*config)

type config struct {
	accessToken     string
	maxAttempts     int
	delay           time.Duration
	timeout         *time.Duration
	randomizerBytes int
	debounce        time.Duration
	progress        ProgressFunc
	logger          *zap.Logger
	httpClient      *http.Client
}

func newConfig(opts []Option) *config {
	cfg := &config{
		maxAttempts: 3,
		delay:       time.Second,
		logger:      zap.NewNop(),
		httpClient:  &http.Client{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithAccessToken authenticates against the lfs server with a personal
// access token.
func WithAccessToken(token string) Option {
	return func(cfg *config) {
		cfg.accessToken = token
	}
}

// WithMaxRetry caps how many times a failing download is attempted.
func WithMaxRetry(attempts int) Option {
	return func(cfg *config) {
		cfg.maxAttempts = attempts
	}
}

// WithTimeoutSeconds fixes the per-attempt deadline instead of deriving
// it from the object size. Zero seconds disables the deadline.
func WithTimeoutSeconds(seconds uint32) Option {
	return func(cfg *config) {
		timeout := time.Duration(seconds) * time.Second
		cfg.timeout = &timeout
	}
}

// WithUnlimitedTimeout disables the per-attempt deadline.
func WithUnlimitedTimeout() Option {
	return WithTimeoutSeconds(0)
}

// WithRandomizerBytes salts cache temp file names with n random bytes
// so concurrent pulls of the same object never collide.
func WithRandomizerBytes(n int) Option {
	return func(cfg *config) {
		cfg.randomizerBytes = n
	}
}

// WithDebounce adjusts how long watch mode waits for writes to a file
// to settle before pulling it.
func WithDebounce(debounce time.Duration) Option {
	return func(cfg *config) {
		cfg.debounce = debounce
	}
}

// WithProgress reports download progress to the returned writers.
func WithProgress(progress ProgressFunc) Option {
	return func(cfg *config) {
		cfg.progress = progress
	}
}

// WithLogger routes pull logs to the given logger instead of dropping
// them.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// withHTTPClient swaps the transport, letting tests bring their own
// certificate trust.
func withHTTPClient(httpClient *http.Client) Option {
	return func(cfg *config) {
		cfg.httpClient = httpClient
	}
}
