package distro

import (
	"context"
	"fmt"
	"path"
	"strings"

	"containerdisk.run/internal/resolve"
)

const (
	DefaultFedoraMirror  = "https://download.fedoraproject.org/pub/fedora"
	DefaultFedoraRelease = "39"
)

// Fedora resolves the Cloud Base image of a Fedora release.
type Fedora struct {
	Base
	Mirror string

	src Sources
}

func NewFedora(release, mirror string, src Sources) *Fedora {
	return &Fedora{Base: Base{Release: release}, Mirror: mirror, src: src}
}

func (f *Fedora) Name() string { return "fedora" }
func (f *Fedora) Slug() string { return "fedora-" + f.Release }

func (f *Fedora) KernelCmdline() []string {
	return []string{"root=LABEL=fedora", "ro", "rootflags=subvol=root"}
}

func (f *Fedora) Resolve(ctx context.Context, arch Arch) (resolve.Result, error) {
	log := f.src.log(f.Slug())

	indexURL, hrefs, err := resolve.FirstIndex(ctx, log, f.src.Index, arch.Slug,
		mirrorURL(f.Mirror, "linux", "releases", f.Release, "Cloud", arch.Slug, "images"))
	if err != nil {
		return resolve.Result{}, err
	}
	href, err := resolve.ExactlyOne(arch.Slug, hrefs, resolve.Criteria{
		Suffix:   ".qcow2",
		Excludes: []string{".latest."},
	})
	if err != nil {
		return resolve.Result{}, err
	}

	// Fedora-Cloud-Base-<release>-<version>.<arch>.qcow2
	name := path.Base(href)
	fields := strings.Split(name, "-")
	if len(fields) < 5 || fields[3] != f.Release {
		return resolve.Result{}, &resolve.ResolutionError{
			Reason:  resolve.ReasonUnexpectedName,
			Arch:    arch.Slug,
			Details: fmt.Sprintf("%q is not a Fedora %s cloud image", name, f.Release),
		}
	}

	res := resolve.Result{
		Version:   strings.TrimSuffix(fields[4], "."+arch.Slug+".qcow2"),
		SourceURL: resolve.JoinIndexURL(indexURL, href),
	}
	derivedFilenames(&res, name, name)

	return res, nil
}
