package coldstore

import (
	"golang.org/x/time/rate"

	"github.com/chainkit/coldstore/blobstore"
)

type options struct {
	dir      string
	remote   blobstore.Store
	cacheDir string
	limiter  *rate.Limiter
	logger   *Logger
}

// Option configures Open.
type Option func(*options)

// Local serves segments from a local directory, memory-mapped.
func Local(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// Remote serves segments from a blobstore. Combine with WithCacheDir so
// remote segments are downloaded once and mapped locally; without a cache
// dir every read goes to the remote store.
func Remote(store blobstore.Store) Option {
	return func(o *options) { o.remote = store }
}

// WithCacheDir sets the directory remote segments are cached in.
func WithCacheDir(dir string) Option {
	return func(o *options) { o.cacheDir = dir }
}

// WithDownloadRateLimit caps remote segment downloads at bytesPerSec.
// Only meaningful together with Remote and WithCacheDir.
func WithDownloadRateLimit(bytesPerSec int) Option {
	return func(o *options) {
		o.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
	}
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *Logger) Option {
	return func(o *options) { o.logger = l }
}
