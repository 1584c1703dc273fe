package distro

import (
	"context"
	"path"
	"strings"

	"containerdisk.run/internal/resolve"
)

const (
	DefaultDebianMirror  = "https://cloud.debian.org/images/cloud"
	DefaultDebianRelease = "bookworm"
	DefaultDebianVariant = "generic"
)

// Debian resolves the newest daily build of a Debian cloud image.
type Debian struct {
	Base
	Variant string
	Mirror  string

	src Sources
}

func NewDebian(release, variant, mirror string, src Sources) *Debian {
	return &Debian{Base: Base{Release: release}, Variant: variant, Mirror: mirror, src: src}
}

func (d *Debian) Name() string   { return "debian" }
func (d *Debian) Slug() string   { return "debian-" + d.Release }
func (d *Debian) Arches() []Arch { return DebianArches }

func (d *Debian) BootLayout(Arch) BootLayout {
	return BootLayout{
		PartitionNum:   1,
		DirPrefix:      "boot/",
		KernelGlobs:    []string{"vmlinuz-*"},
		InitramfsGlobs: []string{"initrd.img-*"},
	}
}

func (d *Debian) KernelCmdline() []string {
	return []string{"root=/dev/vda1", "ro"}
}

func (d *Debian) Resolve(ctx context.Context, arch Arch) (resolve.Result, error) {
	log := d.src.log(d.Slug())

	indexURL, hrefs, err := resolve.FirstIndex(ctx, log, d.src.Index, arch.Slug,
		mirrorURL(d.Mirror, d.Release, "daily"))
	if err != nil {
		return resolve.Result{}, err
	}
	version, err := resolve.LatestDatedDirectory(arch.Slug, hrefs)
	if err != nil {
		return resolve.Result{}, err
	}

	dirURL := resolve.JoinIndexURL(indexURL, version+"/")
	if hrefs, err = listDir(ctx, d.src, arch.Slug, dirURL); err != nil {
		return resolve.Result{}, err
	}
	href, err := resolve.ExactlyOne(arch.Slug, hrefs, resolve.Criteria{
		Suffix:   ".qcow2",
		Contains: []string{"-" + arch.Slug + "-", "-" + d.Variant + "-"},
	})
	if err != nil {
		return resolve.Result{}, err
	}

	name := path.Base(href)
	res := resolve.Result{Version: version, SourceURL: resolve.JoinIndexURL(dirURL, href)}
	derivedFilenames(&res, strings.TrimSuffix(name, ".qcow2"), name)

	return res, nil
}
