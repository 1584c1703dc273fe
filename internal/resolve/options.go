package resolve

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-resty/resty/v2"
)

type WithLog struct{ Log logr.Logger }

func (w WithLog) ConfigureIndexLister(c *IndexListerConfig) {
	c.Log = w.Log
}

func (w WithLog) ConfigureGitHubReleases(c *GitHubReleasesConfig) {
	c.Log = w.Log
}

type WithIndexTimeout time.Duration

func (w WithIndexTimeout) ConfigureIndexLister(c *IndexListerConfig) {
	c.Timeout = time.Duration(w)
}

type WithRestyClient struct{ Client *resty.Client }

func (w WithRestyClient) ConfigureIndexLister(c *IndexListerConfig) {
	c.Client = w.Client
}

type WithHTTPClient struct{ Client *http.Client }

func (w WithHTTPClient) ConfigureGitHubReleases(c *GitHubReleasesConfig) {
	c.HTTPClient = w.Client
}

type WithToken string

func (w WithToken) ConfigureGitHubReleases(c *GitHubReleasesConfig) {
	c.Token = string(w)
}

type WithBaseURL struct{ URL *url.URL }

func (w WithBaseURL) ConfigureGitHubReleases(c *GitHubReleasesConfig) {
	c.BaseURL = w.URL
}
