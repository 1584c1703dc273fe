package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/go-github/v66/github"

	"containerdisk.run/internal/cache"
)

// Release is a published release and all of its downloadable assets.
type Release struct {
	TagName string
	Assets  []Asset
}

// Asset is a single downloadable file attached to a release.
type Asset struct {
	Name               string
	BrowserDownloadURL string
}

// ReleaseSource looks up releases of a repository.
type ReleaseSource interface {
	// Release returns the release tagged tag, or the newest release if tag is empty.
	Release(ctx context.Context, orgRepo, tag string) (*Release, error)
}

// NewGitHubReleases returns a ReleaseSource backed by the GitHub REST API.
func NewGitHubReleases(opts ...GitHubReleasesOption) *GitHubReleases {
	var cfg GitHubReleasesConfig

	cfg.Option(opts...)
	cfg.Default()

	client := github.NewClient(cfg.HTTPClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != nil {
		client.BaseURL = cfg.BaseURL
	}

	return &GitHubReleases{cfg: cfg, client: client}
}

type GitHubReleases struct {
	cfg    GitHubReleasesConfig
	client *github.Client
}

type GitHubReleasesConfig struct {
	Log        logr.Logger
	Token      string
	HTTPClient *http.Client
	// BaseURL overrides the API endpoint. It must end with a slash.
	BaseURL *url.URL
}

func (c *GitHubReleasesConfig) Option(opts ...GitHubReleasesOption) {
	for _, opt := range opts {
		opt.ConfigureGitHubReleases(c)
	}
}

func (c *GitHubReleasesConfig) Default() {
	if c.Log.GetSink() == nil {
		c.Log = logr.Discard()
	}
}

type GitHubReleasesOption interface {
	ConfigureGitHubReleases(*GitHubReleasesConfig)
}

func (g *GitHubReleases) Release(ctx context.Context, orgRepo, tag string) (*Release, error) {
	owner, repo, ok := strings.Cut(orgRepo, "/")
	if !ok {
		return nil, fmt.Errorf("%w: repository %q is not of the form org/repo", ErrInvalidRepository, orgRepo)
	}
	if g.cfg.Token == "" {
		g.cfg.Log.Info("no GitHub token configured, using anonymous API calls with lower rate limits")
	}

	var rel *github.RepositoryRelease
	if tag == "" {
		g.cfg.Log.Info("fetching first page of releases", "repository", orgRepo)

		releases, _, err := g.client.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("listing releases of %s: %w", orgRepo, err)
		}
		if len(releases) == 0 {
			return nil, &ResolutionError{Reason: ReasonNoRelease, Details: orgRepo}
		}
		// Only the newest release is considered.
		rel = releases[0]
	} else {
		g.cfg.Log.Info("fetching release", "repository", orgRepo, "tag", tag)

		r, _, err := g.client.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
		if err != nil {
			return nil, fmt.Errorf("getting release %s of %s: %w", tag, orgRepo, err)
		}
		rel = r
	}

	out := &Release{TagName: rel.GetTagName()}
	opts := &github.ListOptions{PerPage: 100}
	for {
		assets, resp, err := g.client.Repositories.ListReleaseAssets(ctx, owner, repo, rel.GetID(), opts)
		if err != nil {
			return nil, fmt.Errorf("listing assets of %s %s: %w", orgRepo, out.TagName, err)
		}
		for _, a := range assets {
			out.Assets = append(out.Assets, Asset{Name: a.GetName(), BrowserDownloadURL: a.GetBrowserDownloadURL()})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	g.cfg.Log.V(1).Info("fetched release", "repository", orgRepo, "tag", out.TagName, "assets", len(out.Assets))

	return out, nil
}

// ErrInvalidRepository is returned for malformed org/repo identifiers.
var ErrInvalidRepository = errors.New("invalid repository")

// NewCachedReleases wraps source so that release listings are persisted
// in c and every later lookup for the same repository and tag is served
// from disk.
func NewCachedReleases(source ReleaseSource, c *cache.Cache) *CachedReleases {
	return &CachedReleases{source: source, cache: c}
}

type CachedReleases struct {
	source ReleaseSource
	cache  *cache.Cache
}

type releaseCacheKey struct {
	OrgRepo    string
	ReleaseTag string
}

const releaseCacheNamespace = "gh_release_assets"

func (c *CachedReleases) Release(ctx context.Context, orgRepo, tag string) (*Release, error) {
	key := releaseCacheKey{OrgRepo: orgRepo, ReleaseTag: tag}
	if tag == "" {
		key.ReleaseTag = "latest"
	}

	rel, err := cache.GetOrFetch(ctx, c.cache, releaseCacheNamespace, key,
		func(ctx context.Context) (Release, error) {
			r, err := c.source.Release(ctx, orgRepo, tag)
			if err != nil {
				return Release{}, err
			}

			return *r, nil
		})
	if err != nil {
		return nil, err
	}

	return &rel, nil
}

// FirstMatchingAsset scans the assets of rel in order and returns the
// first one matching c.
func FirstMatchingAsset(arch string, rel *Release, c Criteria) (Asset, error) {
	for _, a := range rel.Assets {
		if c.Matches(a.Name) {
			return a, nil
		}
	}

	return Asset{}, &ResolutionError{
		Reason:  ReasonNoAsset,
		Arch:    arch,
		Details: fmt.Sprintf("release %s: %s", rel.TagName, c),
	}
}
