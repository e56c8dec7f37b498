package repository

import (
	"runtime"

	"github.com/hupe1980/bloomfilter"
	"github.com/hupe1980/bloomfilter/manifest"
	"github.com/hupe1980/bloomfilter/persistence"
	"github.com/hupe1980/bloomfilter/resource"
)

type options struct {
	codec       manifest.Codec
	compression persistence.Compression
	controller  *resource.Controller
	logger      *bloomfilter.Logger
	filterOpts  []bloomfilter.Option
}

// Option configures a Repository.
type Option func(*options)

// WithCodec sets the codec used for new manifests.
// Existing manifests are always read with the codec they name.
func WithCodec(c manifest.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithCompression sets the envelope compression for new snapshots.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithController bounds concurrency, in-flight image memory and blob IO.
func WithController(c *resource.Controller) Option {
	return func(o *options) {
		if c != nil {
			o.controller = c
		}
	}
}

// WithLogger sets the repository logger.
func WithLogger(l *bloomfilter.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = bloomfilter.NoopLogger()
		}
		o.logger = l
	}
}

// WithFilterOptions sets the options applied to every loaded filter.
func WithFilterOptions(opts ...bloomfilter.Option) Option {
	return func(o *options) {
		o.filterOpts = append(o.filterOpts, opts...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:       manifest.Default,
		compression: persistence.CompressionZSTD,
		controller: resource.NewController(resource.Config{
			MaxConcurrency: int64(runtime.GOMAXPROCS(0)),
		}),
		logger: bloomfilter.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}
