package fusego

import (
	"time"

	"github.com/fusego/fusego/cache"
	"github.com/fusego/fusego/index"
	"github.com/fusego/fusego/lexical/bm25"
	"github.com/fusego/fusego/persistence"
	"golang.org/x/time/rate"
)

const (
	// DefaultOversampling is the candidate multiplier applied before
	// fusion and filtering. Each retriever fetches k * oversampling
	// candidates so filters have enough survivors to fill k results.
	DefaultOversampling = 10

	// DefaultEmbedConcurrency bounds parallel embedder calls during the
	// corpus build.
	DefaultEmbedConcurrency = 8

	// Default fusion weights, favoring the semantic signal.
	DefaultSemanticWeight = 0.7
	DefaultLexicalWeight  = 0.3
)

type options struct {
	logger           *Logger
	metrics          MetricsCollector
	cache            cache.Store
	cacheTTL         time.Duration
	vectorIndex      index.Index
	bm25Options      []func(*bm25.Options)
	oversampling     int
	embedConcurrency int
	embedLimiter     *rate.Limiter
	compression      persistence.Compression
}

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metrics:          NoopMetricsCollector{},
		oversampling:     DefaultOversampling,
		embedConcurrency: DefaultEmbedConcurrency,
		compression:      persistence.CompressionZSTD,
	}
}

// Option configures Engine constructor behavior.
type Option func(*options)

// WithLogger configures structured logging. If nil is passed, logging
// stays disabled.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsCollector configures operational metrics collection.
func WithMetricsCollector(metrics MetricsCollector) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithEmbeddingCache configures a Store for embedding reuse across
// engines and processes. A non-positive ttl stores entries without
// expiry.
func WithEmbeddingCache(store cache.Store, ttl time.Duration) Option {
	return func(o *options) {
		o.cache = store
		o.cacheTTL = ttl
	}
}

// WithVectorIndex configures the vector index variant. The index must be
// unbuilt; the engine builds it during Index. Defaults to HNSW.
func WithVectorIndex(idx index.Index) Option {
	return func(o *options) {
		o.vectorIndex = idx
	}
}

// WithBM25Options configures the lexical scorer.
func WithBM25Options(optFns ...func(*bm25.Options)) Option {
	return func(o *options) {
		o.bm25Options = optFns
	}
}

// WithOversampling configures the candidate multiplier applied before
// fusion and filtering. Values below 1 are coerced to 1.
func WithOversampling(factor int) Option {
	return func(o *options) {
		if factor < 1 {
			factor = 1
		}
		o.oversampling = factor
	}
}

// WithEmbedConcurrency bounds parallel embedder calls during the corpus
// build. Useful against providers with per-connection limits.
func WithEmbedConcurrency(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.embedConcurrency = n
	}
}

// WithEmbedRateLimit throttles embedder calls to r requests per second
// with the given burst. Cache hits are not throttled.
func WithEmbedRateLimit(r rate.Limit, burst int) Option {
	return func(o *options) {
		o.embedLimiter = rate.NewLimiter(r, burst)
	}
}

// WithSnapshotCompression configures the block compression used by
// Snapshot. Defaults to ZSTD.
func WithSnapshotCompression(compression persistence.Compression) Option {
	return func(o *options) {
		o.compression = compression
	}
}
