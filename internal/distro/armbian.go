package distro

import (
	"context"
	"strings"

	"containerdisk.run/internal/resolve"
)

const (
	ArmbianRepository     = "rpardini/armbian-release"
	DefaultArmbianRelease = "bookworm"
	DefaultArmbianBranch  = "current"
)

var armbianArches = []Arch{
	{Slug: "Uefi-arm64", DockerArch: "arm64"},
	{Slug: "Uefi-x86", DockerArch: "amd64"},
}

// Armbian resolves cloud images from the newest Armbian GitHub release.
type Armbian struct {
	Base
	Branch string

	src Sources
}

func NewArmbian(release, branch string, src Sources) *Armbian {
	return &Armbian{Base: Base{Release: release}, Branch: branch, src: src}
}

func (a *Armbian) Name() string   { return "armbian" }
func (a *Armbian) Slug() string   { return "armbian-" + a.Release + "-" + a.Branch }
func (a *Armbian) Arches() []Arch { return armbianArches }

func (a *Armbian) Tags(version string) (string, string) {
	prefix := a.Release + "-" + a.Branch + "-"

	return prefix + version, prefix + "latest"
}

func (a *Armbian) BootLayout(arch Arch) BootLayout {
	return ubuntuLikeBootLayout(arch)
}

func (a *Armbian) KernelCmdline() []string {
	return []string{"root=PARTLABEL=rootfs", "ro"}
}

func (a *Armbian) Resolve(ctx context.Context, arch Arch) (resolve.Result, error) {
	rel, err := a.src.Releases.Release(ctx, ArmbianRepository, "")
	if err != nil {
		return resolve.Result{}, err
	}
	asset, err := resolve.FirstMatchingAsset(arch.Slug, rel, resolve.Criteria{
		Suffix:   ".qcow2.xz",
		Contains: []string{"-metadata-cloud.img", arch.Slug + "_" + a.Release + "_" + a.Branch},
	})
	if err != nil {
		return resolve.Result{}, err
	}

	basename := strings.TrimSuffix(asset.Name, ".img.qcow2.xz")
	res := resolve.Result{
		Version:    rel.TagName,
		SourceURL:  asset.BrowserDownloadURL,
		Compressed: true,
	}
	derivedFilenames(&res, basename, basename+".qcow2")

	return res, nil
}

// ubuntuLikeBootLayout is the layout of images with an EFI partition
// in front of root, plus a BIOS boot partition on x86.
func ubuntuLikeBootLayout(arch Arch) BootLayout {
	partition := 3
	if arch.DockerArch == "arm64" {
		partition = 2
	}

	return BootLayout{
		PartitionNum:   partition,
		DirPrefix:      "boot/",
		KernelGlobs:    []string{"vmlinuz-*"},
		InitramfsGlobs: []string{"initrd.img-*", "initramfs-*"},
	}
}
