package distro

import (
	"context"
	"path"
	"strings"

	"containerdisk.run/internal/resolve"
)

const (
	DefaultUbuntuMirror  = "https://cloud-images.ubuntu.com"
	DefaultUbuntuRelease = "noble"
)

// Ubuntu resolves the newest dated build of an Ubuntu cloud image.
type Ubuntu struct {
	Base
	Mirror string

	src Sources
}

func NewUbuntu(release, mirror string, src Sources) *Ubuntu {
	return &Ubuntu{Base: Base{Release: release}, Mirror: mirror, src: src}
}

func (u *Ubuntu) Name() string   { return "ubuntu" }
func (u *Ubuntu) Slug() string   { return "ubuntu-" + u.Release }
func (u *Ubuntu) Arches() []Arch { return DebianArches }

func (u *Ubuntu) BootLayout(Arch) BootLayout {
	return BootLayout{
		PartitionNum:   1,
		DirPrefix:      "boot/",
		KernelGlobs:    []string{"vmlinuz-*"},
		InitramfsGlobs: []string{"initrd.img-*"},
	}
}

func (u *Ubuntu) KernelCmdline() []string {
	return []string{"root=LABEL=cloudimg-rootfs", "ro"}
}

func (u *Ubuntu) Resolve(ctx context.Context, arch Arch) (resolve.Result, error) {
	log := u.src.log(u.Slug())

	indexURL, hrefs, err := resolve.FirstIndex(ctx, log, u.src.Index, arch.Slug, mirrorURL(u.Mirror, u.Release))
	if err != nil {
		return resolve.Result{}, err
	}
	version, err := resolve.LatestDatedDirectory(arch.Slug, hrefs)
	if err != nil {
		return resolve.Result{}, err
	}

	dirURL := resolve.JoinIndexURL(indexURL, version+"/")
	if hrefs, err = listDir(ctx, u.src, arch.Slug, dirURL); err != nil {
		return resolve.Result{}, err
	}
	href, err := resolve.ExactlyOne(arch.Slug, hrefs, resolve.Criteria{
		Suffix:   ".img",
		Contains: []string{"-" + arch.Slug + "."},
	})
	if err != nil {
		return resolve.Result{}, err
	}

	// Ubuntu ships qcow2 content under an .img name without the build date.
	basename := strings.TrimSuffix(path.Base(href), ".img")
	res := resolve.Result{Version: version, SourceURL: resolve.JoinIndexURL(dirURL, href)}
	derivedFilenames(&res, basename, basename+"-"+version+".qcow2")

	return res, nil
}
