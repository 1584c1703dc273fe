package fetch

import (
	"io"
	"net/url"
	"path"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type codec struct {
	ext  string
	open func(io.Reader) (io.ReadCloser, error)
}

var codecs = []codec{
	{ext: ".gz", open: func(r io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(r)
	}},
	{ext: ".xz", open: func(r io.Reader) (io.ReadCloser, error) {
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}

		return io.NopCloser(xr), nil
	}},
	{ext: ".zst", open: func(r io.Reader) (io.ReadCloser, error) {
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}

		return d.IOReadCloser(), nil
	}},
}

// codecFor picks the decompressor from the suffix of the URL path.
func codecFor(rawURL string) (codec, bool) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := path.Ext(p)
	for _, c := range codecs {
		if c.ext == ext {
			return c, true
		}
	}

	return codec{}, false
}
