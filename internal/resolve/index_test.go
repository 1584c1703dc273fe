package resolve

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing(hrefs ...string) string {
	page := "<html><body><pre>"
	for _, h := range hrefs {
		page += fmt.Sprintf("<a href=%q>%s</a>\n", h, h)
	}
	page += "<a>no href</a></pre></body></html>"

	return page
}

func TestHTTPIndexListerListHrefs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listing("../", "20240101-1/", "latest/"))
	}))
	defer srv.Close()

	hrefs, err := NewHTTPIndexLister().ListHrefs(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{"../", "20240101-1/", "latest/"}, hrefs)
}

func TestHTTPIndexListerNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewHTTPIndexLister().ListHrefs(context.Background(), srv.URL+"/missing/")

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestFirstIndexFallback(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.Handle("/pub/", http.NotFoundHandler())
	mux.HandleFunc("/vault/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listing("Rocky-8-GenericCloud-LVM-8.9-20231119.0.x86_64.qcow2"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	indexURL, hrefs, err := FirstIndex(context.Background(), logr.Discard(), NewHTTPIndexLister(), "x86_64",
		srv.URL+"/pub/8/images/x86_64/",
		srv.URL+"/vault/8/images/x86_64/",
	)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/vault/8/images/x86_64/", indexURL)
	assert.Equal(t, []string{"Rocky-8-GenericCloud-LVM-8.9-20231119.0.x86_64.qcow2"}, hrefs)
}

func TestFirstIndexNoneValid(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, _, err := FirstIndex(context.Background(), logr.Discard(), NewHTTPIndexLister(), "amd64",
		srv.URL+"/a/", srv.URL+"/b/")

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, ReasonNoIndex, resErr.Reason)
	assert.Contains(t, resErr.Error(), srv.URL+"/b/")
}

func TestFirstIndexNoneValidKeepsEveryError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.Handle("/pub/", http.NotFoundHandler())
	mux.HandleFunc("/vault/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, _, err := FirstIndex(context.Background(), logr.Discard(), NewHTTPIndexLister(), "x86_64",
		srv.URL+"/pub/", srv.URL+"/vault/")

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Error(t, resErr.Err)

	var statuses []int
	for _, e := range resErr.Err.(interface{ Unwrap() []error }).Unwrap() {
		var statusErr *HTTPStatusError
		require.ErrorAs(t, e, &statusErr)
		statuses = append(statuses, statusErr.StatusCode)
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusBadGateway}, statuses)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestHTTPIndexListerDefaultTimeout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultIndexTimeout, NewHTTPIndexLister().cfg.Client.GetClient().Timeout)
}

func TestFirstIndexSkipsHangingIndex(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/hang/", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	mux.HandleFunc("/ok/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listing("20240101-1/"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	lister := NewHTTPIndexLister(WithIndexTimeout(100 * time.Millisecond))
	indexURL, hrefs, err := FirstIndex(context.Background(), logr.Discard(), lister, "amd64",
		srv.URL+"/hang/", srv.URL+"/ok/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/ok/", indexURL)
	assert.Equal(t, []string{"20240101-1/"}, hrefs)
}

func TestLatestDatedDirectory(t *testing.T) {
	t.Parallel()

	dir, err := LatestDatedDirectory("amd64", []string{
		"../", "20240102-1614/", "20231228-1609/", "20240102-1614/", "latest/", "20240101-0000",
	})
	require.NoError(t, err)
	assert.Equal(t, "20240102-1614", dir)

	_, err = LatestDatedDirectory("amd64", []string{"../", "latest/"})
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, ReasonNoDatedDirectory, resErr.Reason)
}

func TestJoinIndexURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://m/x/y.qcow2", JoinIndexURL("https://m/x/", "y.qcow2"))
	assert.Equal(t, "https://m/x/y.qcow2", JoinIndexURL("https://m/x", "y.qcow2"))
}
