package distro

import (
	"context"
	"strings"

	"containerdisk.run/internal/resolve"
)

const FatsoRepository = "k8s-avengers/fatso-images"

// Fatso resolves prebuilt images published as fatso-images GitHub releases.
// Release listings are cached across runs.
type Fatso struct {
	Base
	Flavor string
	// FID identifies the image line in registry tags.
	FID string

	src Sources
}

func NewFatso(flavor, fid string, src Sources) *Fatso {
	return &Fatso{Flavor: flavor, FID: fid, src: src}
}

func (f *Fatso) Name() string { return "fatso" }
func (f *Fatso) Slug() string { return "fatso-" + f.FID }

func (f *Fatso) Tags(version string) (string, string) {
	return f.FID + "-" + version, f.FID + "-latest"
}

func (f *Fatso) BootLayout(arch Arch) BootLayout {
	return ubuntuLikeBootLayout(arch)
}

func (f *Fatso) KernelCmdline() []string {
	return []string{"root=PARTLABEL=rootfs", "ro"}
}

func (f *Fatso) Resolve(ctx context.Context, arch Arch) (resolve.Result, error) {
	source := f.src.CachedReleases
	if source == nil {
		source = f.src.Releases
	}

	rel, err := source.Release(ctx, FatsoRepository, "")
	if err != nil {
		return resolve.Result{}, err
	}
	asset, err := resolve.FirstMatchingAsset(arch.Slug, rel, resolve.Criteria{
		Suffix:   ".qcow2.gz",
		Contains: []string{f.Flavor + "_" + arch.DockerArch},
	})
	if err != nil {
		return resolve.Result{}, err
	}

	// Assets are published both with and without the .img infix.
	basename := strings.TrimSuffix(strings.TrimSuffix(asset.Name, ".qcow2.gz"), ".img")
	res := resolve.Result{
		Version:    rel.TagName,
		SourceURL:  asset.BrowserDownloadURL,
		Compressed: true,
	}
	derivedFilenames(&res, basename, basename+".qcow2")

	return res, nil
}
