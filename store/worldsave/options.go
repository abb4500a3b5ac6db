package worldsave

import (
	"golang.org/x/time/rate"

	"github.com/flow/commons"
	"github.com/flow/commons/store/block"
)

type options struct {
	compression block.Compression
	logger      *commons.Logger
	collector   Collector
	concurrency int
	limiter     *rate.Limiter
}

// Option configures Open behavior.
type Option func(*options)

// WithCompression selects the snapshot codec. The default is LZ4; zstd
// trades save speed for smaller cold storage.
func WithCompression(c block.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithLogger routes save, load and commit records through l. The
// default discards them.
func WithLogger(l *commons.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = commons.NoopLogger()
		}
		o.logger = l
	}
}

// WithCollector installs a metrics collector. If nil is passed,
// NoopCollector is used.
func WithCollector(c Collector) Option {
	return func(o *options) {
		if c == nil {
			c = NoopCollector{}
		}
		o.collector = c
	}
}

// WithConcurrency bounds how many blobs SaveBatch and LoadBatch keep in
// flight at once. Values below 1 are treated as 1.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.concurrency = n
	}
}

// WithRateLimit caps save and load throughput at bytesPerSec of encoded
// data. Blobs larger than burst are admitted in burst-sized slices, so
// the burst bounds jitter, not blob size. A bytesPerSec of zero or less
// disables the limit.
func WithRateLimit(bytesPerSec, burst int) Option {
	return func(o *options) {
		if bytesPerSec <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = bytesPerSec
		}
		o.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
	}
}

func defaultOptions() options {
	return options{
		compression: block.CompressionLZ4,
		logger:      commons.NoopLogger(),
		collector:   NoopCollector{},
		concurrency: 4,
	}
}
