// Package fetch downloads upstream disk images, decompressing them if needed.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/afero"
)

// Request describes one artifact to download.
type Request struct {
	URL         string
	Destination string
	// Compressed sources are decompressed after download; the codec
	// follows the URL suffix.
	Compressed bool
}

// Result describes the outcome of a Fetch.
type Result struct {
	Path string
	// Skipped is set when the destination already existed.
	Skipped bool
	// Bytes counts the bytes transferred over the network.
	Bytes int64
}

// DefaultResponseHeaderTimeout bounds the wait for response headers.
// Bodies of multi-GB images may stream for a long time, so the overall
// request is only bounded by ctx.
const DefaultResponseHeaderTimeout = time.Minute

func NewFetcher(opts ...Option) *Fetcher {
	var cfg Config

	cfg.Option(opts...)
	cfg.Default()

	return &Fetcher{cfg: cfg}
}

type Fetcher struct {
	cfg Config
}

type Config struct {
	Log    logr.Logger
	Client *resty.Client
	Fs     afero.Fs
	// ResponseHeaderTimeout applies to the default client only.
	ResponseHeaderTimeout time.Duration
}

func (c *Config) Option(opts ...Option) {
	for _, opt := range opts {
		opt.ConfigureFetcher(c)
	}
}

func (c *Config) Default() {
	if c.Log.GetSink() == nil {
		c.Log = logr.Discard()
	}
	if c.ResponseHeaderTimeout == 0 {
		c.ResponseHeaderTimeout = DefaultResponseHeaderTimeout
	}
	if c.Client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = c.ResponseHeaderTimeout
		c.Client = resty.New().SetTransport(transport)
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
}

type Option interface {
	ConfigureFetcher(*Config)
}

// Fetch downloads req.URL to req.Destination unless the destination exists.
// Only the existence of the destination is checked, never its freshness.
// The destination only appears once it is complete.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Result, error) {
	log := f.cfg.Log.WithValues("url", req.URL, "destination", req.Destination)

	exists, err := afero.Exists(f.cfg.Fs, req.Destination)
	if err != nil {
		return Result{}, &FetchError{Reason: ReasonFilesystem, URL: req.URL, Path: req.Destination, Err: err}
	}
	if exists {
		log.Info("already downloaded, skipping")
		return Result{Path: req.Destination, Skipped: true}, nil
	}

	if err := f.cfg.Fs.MkdirAll(filepath.Dir(req.Destination), 0o755); err != nil {
		return Result{}, &FetchError{Reason: ReasonFilesystem, URL: req.URL, Path: req.Destination, Err: err}
	}

	tmp := req.Destination + ".tmp"
	var n int64
	if !req.Compressed {
		if n, err = f.download(ctx, req.URL, tmp); err != nil {
			return Result{}, err
		}
	} else {
		c, ok := codecFor(req.URL)
		if !ok {
			return Result{}, &FetchError{Reason: ReasonUnsupportedCompression, URL: req.URL}
		}
		compressed := tmp + c.ext
		if n, err = f.download(ctx, req.URL, compressed); err != nil {
			return Result{}, err
		}
		log.Info("decompressing", "codec", c.ext)
		if err := f.decompress(c, compressed, tmp); err != nil {
			return Result{}, &FetchError{Reason: ReasonDecompress, URL: req.URL, Path: compressed, Err: err}
		}
		if err := f.cfg.Fs.Remove(compressed); err != nil {
			return Result{}, &FetchError{Reason: ReasonFilesystem, URL: req.URL, Path: compressed, Err: err}
		}
	}

	if err := f.cfg.Fs.Rename(tmp, req.Destination); err != nil {
		return Result{}, &FetchError{Reason: ReasonFilesystem, URL: req.URL, Path: req.Destination, Err: err}
	}
	log.Info("downloaded", "bytes", n)

	return Result{Path: req.Destination, Bytes: n}, nil
}

func (f *Fetcher) download(ctx context.Context, url, dest string) (int64, error) {
	f.cfg.Log.Info("downloading", "url", url, "to", dest)

	resp, err := f.cfg.Client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return 0, &FetchError{Reason: ReasonTransfer, URL: url, Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return 0, &FetchError{
			Reason: ReasonHTTPStatus, URL: url,
			Err: fmt.Errorf("status %d", resp.StatusCode()),
		}
	}

	out, err := f.cfg.Fs.Create(dest)
	if err != nil {
		return 0, &FetchError{Reason: ReasonFilesystem, URL: url, Path: dest, Err: err}
	}
	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, &FetchError{Reason: ReasonTransfer, URL: url, Path: dest, Err: err}
	}

	return n, nil
}

func (f *Fetcher) decompress(c codec, src, dest string) error {
	in, err := f.cfg.Fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	r, err := c.open(in)
	if err != nil {
		return err
	}
	defer r.Close()

	out, err := f.cfg.Fs.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
