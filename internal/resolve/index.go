package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-logr/logr"
	"github.com/go-resty/resty/v2"
)

// DefaultIndexTimeout bounds a whole index page request.
const DefaultIndexTimeout = time.Minute

// IndexLister returns the hyperlink targets of a directory listing page.
type IndexLister interface {
	ListHrefs(ctx context.Context, indexURL string) ([]string, error)
}

// NewHTTPIndexLister returns an IndexLister fetching pages over HTTP(S).
func NewHTTPIndexLister(opts ...IndexListerOption) *HTTPIndexLister {
	var cfg IndexListerConfig

	cfg.Option(opts...)
	cfg.Default()

	return &HTTPIndexLister{cfg: cfg}
}

type HTTPIndexLister struct {
	cfg IndexListerConfig
}

type IndexListerConfig struct {
	Log    logr.Logger
	Client *resty.Client
	// Timeout applies to the default client only.
	Timeout time.Duration
}

func (c *IndexListerConfig) Option(opts ...IndexListerOption) {
	for _, opt := range opts {
		opt.ConfigureIndexLister(c)
	}
}

func (c *IndexListerConfig) Default() {
	if c.Log.GetSink() == nil {
		c.Log = logr.Discard()
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultIndexTimeout
	}
	if c.Client == nil {
		c.Client = resty.New().SetTimeout(c.Timeout)
	}
}

type IndexListerOption interface {
	ConfigureIndexLister(*IndexListerConfig)
}

// HTTPStatusError is returned for index pages answering with a non-2xx status.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

func (l *HTTPIndexLister) ListHrefs(ctx context.Context, indexURL string) ([]string, error) {
	resp, err := l.cfg.Client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(indexURL)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", indexURL, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return nil, &HTTPStatusError{URL: indexURL, StatusCode: resp.StatusCode()}
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parsing index %s: %w", indexURL, err)
	}

	var hrefs []string
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	l.cfg.Log.V(1).Info("parsed index", "url", indexURL, "hrefs", len(hrefs))

	return hrefs, nil
}

// FirstIndex lists the candidate indexes in priority order and returns the
// first one that responds successfully. Failing candidates are skipped;
// if all fail, every candidate's error is joined into the ResolutionError.
func FirstIndex(ctx context.Context, log logr.Logger, lister IndexLister, arch string, indexURLs ...string) (
	indexURL string, hrefs []string, err error,
) {
	log.Info("trying indexes", "indexes", indexURLs)

	var errs []error
	for _, u := range indexURLs {
		hrefs, err := lister.ListHrefs(ctx, u)
		if err != nil {
			log.V(1).Info("skipping index", "url", u, "error", err.Error())
			errs = append(errs, err)
			continue
		}

		return u, hrefs, nil
	}

	return "", nil, &ResolutionError{
		Reason:  ReasonNoIndex,
		Arch:    arch,
		Details: "tried " + strings.Join(indexURLs, ", "),
		Err:     errors.Join(errs...),
	}
}

// LatestDatedDirectory returns the lexicographically greatest dated
// directory ("20..../") linked from an index, without its trailing slash.
func LatestDatedDirectory(arch string, hrefs []string) (string, error) {
	var dated []string
	for _, href := range hrefs {
		if strings.HasPrefix(href, "20") && strings.HasSuffix(href, "/") {
			dated = append(dated, strings.TrimSuffix(href, "/"))
		}
	}
	dated = unique(dated)

	if len(dated) == 0 {
		return "", &ResolutionError{Reason: ReasonNoDatedDirectory, Arch: arch}
	}

	return dated[len(dated)-1], nil
}

// JoinIndexURL appends a relative href to a directory index URL.
func JoinIndexURL(indexURL, href string) string {
	if !strings.HasSuffix(indexURL, "/") {
		indexURL += "/"
	}

	return indexURL + strings.TrimPrefix(href, "/")
}

// unique returns the sorted distinct values of in.
func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)

	return out
}
