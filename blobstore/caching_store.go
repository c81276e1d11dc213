package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/time/rate"
)

// CachingStore serves blobs from a local cache directory, downloading them
// from a remote inner store on first open. Cached files are mapped exactly
// like LocalStore blobs, so the cost of the remote store is paid once per
// segment.
//
// Downloads may be rate-limited to keep a cold start from saturating the
// link. A nil limiter downloads at full speed.
type CachingStore struct {
	inner   Store
	dir     string
	local   *LocalStore
	limiter *rate.Limiter

	// mu serializes downloads so two opens of the same name do not race on
	// the cache file.
	mu sync.Mutex
}

// NewCachingStore creates a CachingStore that caches blobs from inner
// under dir.
func NewCachingStore(inner Store, dir string, limiter *rate.Limiter) *CachingStore {
	return &CachingStore{
		inner:   inner,
		dir:     dir,
		local:   NewLocalStore(dir),
		limiter: limiter,
	}
}

// Open returns the cached blob, downloading it first if needed.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
		return s.local.Open(ctx, name)
	}
	if err := s.download(ctx, name); err != nil {
		return nil, err
	}
	return s.local.Open(ctx, name)
}

// List lists the remote store; the cache is a subset of it.
func (s *CachingStore) List(ctx context.Context) ([]string, error) {
	return s.inner.List(ctx)
}

func (s *CachingStore) download(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := filepath.Join(s.dir, name)
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, name+".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := &limitedWriterAt{ctx: ctx, f: tmp, limiter: s.limiter}
	if dl, ok := s.inner.(Downloader); ok {
		_, err = dl.Download(ctx, name, w)
	} else {
		err = s.copyFrom(ctx, name, w)
	}
	if err != nil {
		tmp.Close()
		return fmt.Errorf("blobstore: download %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		return err
	}
	// Rename is atomic on the same filesystem; readers never observe a
	// partial segment file.
	return os.Rename(tmp.Name(), dst)
}

func (s *CachingStore) copyFrom(ctx context.Context, name string, w io.WriterAt) error {
	blob, err := s.inner.Open(ctx, name)
	if err != nil {
		return err
	}
	defer blob.Close()

	_, err = io.Copy(io.NewOffsetWriter(w, 0), io.NewSectionReader(blob, 0, blob.Size()))
	return err
}

// limitedWriterAt throttles writes through a shared limiter. Writes larger
// than the limiter burst are split so WaitN never fails on burst size.
type limitedWriterAt struct {
	ctx     context.Context
	f       io.WriterAt
	limiter *rate.Limiter
}

func (w *limitedWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if w.limiter == nil {
		return w.f.WriteAt(p, off)
	}

	written := 0
	for len(p) > 0 {
		chunk := len(p)
		if burst := w.limiter.Burst(); chunk > burst {
			chunk = burst
		}
		if err := w.limiter.WaitN(w.ctx, chunk); err != nil {
			return written, err
		}
		n, err := w.f.WriteAt(p[:chunk], off)
		written += n
		if err != nil {
			return written, err
		}
		off += int64(n)
		p = p[chunk:]
	}
	return written, nil
}
