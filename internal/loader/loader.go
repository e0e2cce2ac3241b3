// Package loader is the file-backed Loader for the record engine: it finds a
// record set's file, tokenizes and binds it, caches the result, and runs
// relationship resolution passes over loaded sets.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/tabload/internal/core"
)

// DefaultPreloadConcurrency bounds parallel file loads in Preload.
const DefaultPreloadConcurrency = 4

// Options configures a Loader.
type Options struct {
	DataDir            string
	Manifest           *Manifest       // Optional; nil means <key>.csv with Tokenizer
	Tokenizer          core.Tokenizer  // Defaults for every set
	Schemas            *core.SchemaRegistry
	Converters         *core.Converters // nil uses core.DefaultConverters
	Cache              core.CacheStore  // nil creates a core.SyncCache
	PreloadConcurrency int
	Logger             *slog.Logger
}

// Loader implements core.SetLoader over a directory of delimited files.
type Loader struct {
	dataDir     string
	manifest    *Manifest
	tokenizer   core.Tokenizer
	schemas     *core.SchemaRegistry
	binder      *core.Binder
	cache       core.CacheStore
	resolver    *core.Resolver
	concurrency int
	logger      *slog.Logger

	group singleflight.Group

	// resolveMu is held for writing by resolution passes, which mutate
	// cached records, and for reading while views are built from them.
	resolveMu sync.RWMutex
}

// New creates a Loader.
func New(opts Options) (*Loader, error) {
	if opts.Schemas == nil {
		return nil, errors.New("loader: schema registry is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Cache == nil {
		opts.Cache = core.NewSyncCache()
	}
	if opts.Tokenizer.Delimiter == 0 {
		opts.Tokenizer = core.DefaultTokenizer()
	}
	if opts.PreloadConcurrency <= 0 {
		opts.PreloadConcurrency = DefaultPreloadConcurrency
	}

	l := &Loader{
		dataDir:     opts.DataDir,
		manifest:    opts.Manifest,
		tokenizer:   opts.Tokenizer,
		schemas:     opts.Schemas,
		binder:      core.NewBinder(opts.Converters, opts.Logger),
		cache:       opts.Cache,
		concurrency: opts.PreloadConcurrency,
		logger:      opts.Logger,
	}
	l.resolver = core.NewResolver(opts.Schemas, l, opts.Logger)
	return l, nil
}

// Cache returns the store holding loaded sets.
func (l *Loader) Cache() core.CacheStore { return l.cache }

// Schemas returns the registry the Loader binds with.
func (l *Loader) Schemas() *core.SchemaRegistry { return l.schemas }

// Resolver returns the resolver used by Load.
func (l *Loader) Resolver() *core.Resolver { return l.resolver }

// LoadSet returns the column-bound records for key, reading the file on the
// first request and serving the cache afterwards. Concurrent requests for
// the same key share one read.
func (l *Loader) LoadSet(ctx context.Context, key string) (any, error) {
	if set, ok := l.cache.Get(key); ok {
		return set, nil
	}

	set, err, _ := l.group.Do(key, func() (any, error) {
		// Another caller may have finished the read while this one waited.
		if l.cache.Contains(key) {
			if set, ok := l.cache.Get(key); ok {
				return set, nil
			}
		}
		return l.readSet(ctx, key)
	})
	return set, err
}

// Load returns the records for key with eager relationships resolved in a
// fresh pass. Later passes rewrite relationship properties of the returned
// records; concurrent readers should use Views.
func (l *Loader) Load(ctx context.Context, key string) (any, error) {
	set, err := l.LoadSet(ctx, key)
	if err != nil {
		return nil, err
	}

	l.resolveMu.Lock()
	defer l.resolveMu.Unlock()

	if err := l.resolver.Resolve(ctx, set, nil); err != nil {
		return nil, fmt.Errorf("resolving %s: %w", key, err)
	}
	return set, nil
}

// Views returns acyclic snapshots of the records for key, resolving a fresh
// pass first when resolve is true. Unlike Load, the records are read under
// the same lock that resolution passes take, so it is safe to call while
// other goroutines resolve.
func (l *Loader) Views(ctx context.Context, key string, resolve bool) ([]core.RecordView, error) {
	schema, ok := l.schemas.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownSchema, key)
	}

	set, err := l.LoadSet(ctx, key)
	if err != nil {
		return nil, err
	}

	if !resolve {
		l.resolveMu.RLock()
		defer l.resolveMu.RUnlock()
		return schema.Views(set)
	}

	l.resolveMu.Lock()
	defer l.resolveMu.Unlock()
	if err := l.resolver.Resolve(ctx, set, nil); err != nil {
		return nil, fmt.Errorf("resolving %s: %w", key, err)
	}
	return schema.Views(set)
}

// Preload reads the given sets in parallel into the cache. With no keys it
// preloads every registered schema.
func (l *Loader) Preload(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		keys = l.schemas.Keys()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, key := range keys {
		g.Go(func() error {
			_, err := l.LoadSet(ctx, key)
			return err
		})
	}
	return g.Wait()
}

// Invalidate drops a set from the cache so the next load rereads its file.
func (l *Loader) Invalidate(key string) bool {
	return l.cache.Remove(key)
}

// Path returns the file a set is read from.
func (l *Loader) Path(key string) string {
	file, _ := l.manifest.entry(key, l.tokenizer)
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(l.dataDir, file)
}

func (l *Loader) readSet(ctx context.Context, key string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("operation cancelled: %w", err)
	}

	schema, ok := l.schemas.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownSchema, key)
	}

	start := time.Now()
	_, tok := l.manifest.entry(key, l.tokenizer)
	path := l.Path(key)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", key, err)
	}
	defer f.Close()

	table, err := ReadTable(f, tok)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	set, report := l.binder.Bind(schema, table.Header, table.Rows)
	elapsed := time.Since(start)
	l.cache.Set(key, set, elapsed)

	l.logger.Info("record set loaded",
		"schema", key,
		"path", path,
		"rows", report.Rows,
		"malformed", report.Malformed,
		"skipped_lines", table.Skipped,
		"bytes", table.BytesRead,
		"duration_ms", elapsed.Milliseconds(),
	)
	return set, nil
}
