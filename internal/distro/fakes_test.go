package distro

import (
	"context"
	"fmt"

	"containerdisk.run/internal/resolve"
)

type fakeIndex map[string][]string

func (f fakeIndex) ListHrefs(_ context.Context, url string) ([]string, error) {
	hrefs, ok := f[url]
	if !ok {
		return nil, &resolve.HTTPStatusError{URL: url, StatusCode: 404}
	}

	return hrefs, nil
}

type fakeReleases struct {
	releases map[string]*resolve.Release
	calls    int
}

func (f *fakeReleases) Release(_ context.Context, orgRepo, tag string) (*resolve.Release, error) {
	f.calls++
	rel, ok := f.releases[orgRepo]
	if !ok {
		return nil, fmt.Errorf("no release for %s@%s", orgRepo, tag)
	}

	return rel, nil
}
