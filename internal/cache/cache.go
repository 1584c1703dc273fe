// Package cache persists the results of expensive upstream lookups on disk.
//
// Entries are keyed by a hash over the canonical representation of the
// lookup inputs and are never invalidated: callers must include every
// field that should bust the cache in the key material.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-logr/logr"
	"github.com/spf13/afero"

	"containerdisk.run/internal/utils"
)

// DefaultDir is the cache directory name below the working directory.
const DefaultDir = "cache"

const fileExtension = ".cbor"

// New returns a Cache storing entries below dir.
func New(dir string, opts ...Option) *Cache {
	var cfg Config

	cfg.Option(opts...)
	cfg.Default()

	return &Cache{dir: dir, cfg: cfg}
}

type Cache struct {
	dir string
	cfg Config
}

type Config struct {
	Log logr.Logger
	Fs  afero.Fs
}

func (c *Config) Option(opts ...Option) {
	for _, opt := range opts {
		opt.ConfigureCache(c)
	}
}

func (c *Config) Default() {
	if c.Log.GetSink() == nil {
		c.Log = logr.Discard()
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
}

type Option interface {
	ConfigureCache(*Config)
}

type WithLog struct{ Log logr.Logger }

func (w WithLog) ConfigureCache(c *Config) {
	c.Log = w.Log
}

type WithFs struct{ Fs afero.Fs }

func (w WithFs) ConfigureCache(c *Config) {
	c.Fs = w.Fs
}

// Path returns the file an entry for the given namespace and key material is stored in.
func (c *Cache) Path(namespace string, keyMaterial any) string {
	return filepath.Join(c.dir, namespace+"_"+utils.ComputeSHA256Hash(keyMaterial)+fileExtension)
}

// FetchFunc produces the value for a cache miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// GetOrFetch returns the value persisted for keyMaterial.
// On a miss fetch is invoked and its result persisted before being returned.
// A persisted entry that cannot be decoded fails with a *CacheError.
func GetOrFetch[T any](ctx context.Context, c *Cache, namespace string, keyMaterial any, fetch FetchFunc[T]) (T, error) {
	var value T

	path := c.Path(namespace, keyMaterial)
	log := c.cfg.Log.WithValues("path", path)

	data, err := afero.ReadFile(c.cfg.Fs, path)
	switch {
	case err == nil:
		if err := cbor.Unmarshal(data, &value); err != nil {
			return value, &CacheError{Reason: ReasonCorrupt, Path: path, Err: err}
		}
		log.Info("loaded cached entry")

		return value, nil

	case errors.Is(err, fs.ErrNotExist):
		log.Info("cache entry does not exist, fetching")

	default:
		return value, &CacheError{Reason: ReasonUnreadable, Path: path, Err: err}
	}

	value, err = fetch(ctx)
	if err != nil {
		return value, err
	}

	if err := c.store(path, value); err != nil {
		return value, err
	}
	log.Info("cached entry")

	return value, nil
}

func (c *Cache) store(path string, value any) error {
	data, err := cbor.Marshal(value)
	if err != nil {
		return &CacheError{Reason: ReasonUnwritable, Path: path, Err: err}
	}

	if err := c.cfg.Fs.MkdirAll(c.dir, 0o755); err != nil {
		return &CacheError{Reason: ReasonUnwritable, Path: path, Err: err}
	}

	// Write to a sibling first so readers never observe a truncated entry.
	tmp := path + ".tmp"
	if err := afero.WriteFile(c.cfg.Fs, tmp, data, 0o644); err != nil {
		return &CacheError{Reason: ReasonUnwritable, Path: path, Err: err}
	}
	if err := c.cfg.Fs.Rename(tmp, path); err != nil {
		return &CacheError{Reason: ReasonUnwritable, Path: path, Err: err}
	}

	return nil
}

// CacheError reports a persisted entry that could not be read or written.
type CacheError struct {
	Reason Reason
	Path   string
	Err    error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Reason, e.Path, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

type Reason string

const (
	ReasonCorrupt    Reason = "cache entry corrupt"
	ReasonUnreadable Reason = "cache entry unreadable"
	ReasonUnwritable Reason = "cache entry unwritable"
)
