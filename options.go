package bloomfilter

import (
	"log/slog"

	"github.com/hupe1980/bloomfilter/codec"
)

type options struct {
	strategy         codec.Strategy
	legacyMode       codec.LegacyMode
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures filter construction.
type Option func(*options)

// WithStrategy selects the codec strategy used by Save and Load.
// Both strategies produce identical bytes; Accelerated is the default.
func WithStrategy(s codec.Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithLegacyMode controls whether Load accepts header-less legacy streams.
// The default, codec.LegacyLenient, accepts them.
func WithLegacyMode(m codec.LegacyMode) Option {
	return func(o *options) {
		o.legacyMode = m
	}
}

// WithMetricsCollector configures metrics collection for filter operations.
// Pass nil to disable metrics.
//
// Example:
//
//	metrics := &bloomfilter.BasicMetricsCollector{}
//	f, _ := bloomfilter.NewString(0.01, 1000, bloomfilter.WithMetricsCollector(metrics))
//	_ = f.Add("key")
//	fmt.Println(metrics.GetStats().AddCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for save, load and parameter
// derivation. Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		strategy:         codec.Accelerated,
		legacyMode:       codec.LegacyLenient,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
