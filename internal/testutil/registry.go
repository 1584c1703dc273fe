package testutil

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/registry"
)

// InMemoryRegistry serves the registry API without listening on a socket.
// Any registry host name resolves to it through CraneOpt.
type InMemoryRegistry struct {
	RoundTripper http.RoundTripper
	Handler      http.Handler
	CraneOpt     crane.Option
}

type (
	inMemoryRegistryWriter struct {
		resp *http.Response
		body *bytes.Buffer
	}
	inMemoryRegistryRoundTripper struct {
		handler http.Handler
	}
)

func NewInMemoryRegistry() *InMemoryRegistry {
	r := &InMemoryRegistry{}
	r.Handler = registry.New(registry.Logger(log.New(io.Discard, "", 0)))
	r.RoundTripper = &inMemoryRegistryRoundTripper{r.Handler}
	r.CraneOpt = crane.WithTransport(r.RoundTripper)

	return r
}

func (w *inMemoryRegistryWriter) Header() http.Header { return w.resp.Header }

func (w *inMemoryRegistryWriter) Write(data []byte) (int, error) {
	return w.body.Write(data)
}

func (w *inMemoryRegistryWriter) WriteHeader(statusCode int) { w.resp.StatusCode = statusCode }

func (t inMemoryRegistryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body == nil {
		req.Body = io.NopCloser(&bytes.Buffer{})
	}
	resp := &http.Response{Status: "ok", StatusCode: http.StatusOK, Header: http.Header{}, Request: req}
	w := &inMemoryRegistryWriter{resp: resp, body: &bytes.Buffer{}}
	t.handler.ServeHTTP(w, req)
	resp.Status = http.StatusText(resp.StatusCode)
	resp.Body = io.NopCloser(w.body)
	resp.ContentLength = int64(w.body.Len())
	if cl, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
		resp.ContentLength = cl
	}

	return resp, nil
}
