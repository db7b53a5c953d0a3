package docvec

import (
	"log/slog"

	"github.com/grapedb/docvec/blobstore"
	"github.com/grapedb/docvec/codec"
	"github.com/grapedb/docvec/embedding"
	"github.com/grapedb/docvec/hnsw"
	"github.com/grapedb/docvec/persistence"
	"github.com/grapedb/docvec/rerank"
)

type options struct {
	storage           blobstore.Store
	codec             codec.Codec
	compression       persistence.Compression
	metricsCollector  MetricsCollector
	logger            *Logger
	reranker          rerank.Reranker
	fanout            int
	lexicalWeight     float32
	snippetLength     int
	hnswOptions       []func(o *hnsw.Options)
	vectorizerOptions []func(o *embedding.VectorizerOptions)
}

// Option configures Store constructor behavior.
type Option func(*options)

// WithStorage configures the blob store backing Save and Load. Without it
// the store is memory-only and Save/Load fail.
func WithStorage(store blobstore.Store) Option {
	return func(o *options) {
		o.storage = store
	}
}

// WithLocalStorage is a convenience wrapper configuring filesystem storage
// rooted at dir. Errors surface on the first Save or Load.
func WithLocalStorage(dir string) Option {
	return func(o *options) {
		store, err := blobstore.NewLocalStore(dir)
		if err != nil {
			// Defer the failure to Save/Load rather than panicking in an
			// option closure.
			o.storage = nil
			return
		}
		o.storage = store
	}
}

// WithCodec configures the codec used for newly-written snapshots.
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures the compression used for newly-written
// snapshots. If nil is passed, the persistence default is used.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) {
		if c == nil {
			c = persistence.DefaultCompression
		}
		o.compression = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &docvec.BasicMetricsCollector{}
//	store, _ := docvec.New(backend, docvec.WithMetricsCollector(metrics))
//	// ... use store ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
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

// WithReranker configures a second-stage reranker applied to the blended
// candidate head before truncation. Pass nil to disable reranking.
func WithReranker(r rerank.Reranker) Option {
	return func(o *options) {
		o.reranker = r
	}
}

// WithFanout configures the candidate multiplier requested from the vector
// index: a search for k results fetches k*fanout candidates to give the
// lexical blend and reranker headroom.
func WithFanout(fanout int) Option {
	return func(o *options) {
		if fanout > 0 {
			o.fanout = fanout
		}
	}
}

// WithLexicalWeight configures the share of the final score taken from the
// keyword signal; the remainder keeps the vector similarity. Values are
// clamped to [0, 1].
func WithLexicalWeight(w float32) Option {
	return func(o *options) {
		if w < 0 {
			w = 0
		}
		if w > 1 {
			w = 1
		}
		o.lexicalWeight = w
	}
}

// WithSnippetLength configures the maximum content snippet length in
// search results.
func WithSnippetLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.snippetLength = n
		}
	}
}

// WithHNSWOptions configures the underlying graph built on index rebuilds.
func WithHNSWOptions(optFns ...func(o *hnsw.Options)) Option {
	return func(o *options) {
		o.hnswOptions = append(o.hnswOptions, optFns...)
	}
}

// WithVectorizerOptions configures the embedding cache and batch scheduling.
func WithVectorizerOptions(optFns ...func(o *embedding.VectorizerOptions)) Option {
	return func(o *options) {
		o.vectorizerOptions = append(o.vectorizerOptions, optFns...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		compression:      persistence.DefaultCompression,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		fanout:           3,
		lexicalWeight:    0.3,
		snippetLength:    200,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
