// Package distro models the supported cloud image lineages, their
// architectures and how each of them is resolved against upstream.
package distro

import (
	"context"

	"github.com/go-logr/logr"

	"containerdisk.run/internal/resolve"
)

// Arch is one CPU architecture variant of a distribution.
type Arch struct {
	// Slug is the architecture as spelled in upstream artifact names.
	Slug string
	// DockerArch is the architecture used for registry platforms and tags.
	DockerArch string
}

// BootLayout describes where kernel and initramfs live inside a disk image.
type BootLayout struct {
	PartitionNum   int
	DirPrefix      string
	KernelGlobs    []string
	InitramfsGlobs []string
}

// Family is implemented by every supported distribution family.
// Embed Base to get the default behaviour and override what differs.
type Family interface {
	// Name is the family name used for default registry references.
	Name() string
	// Slug identifies family and release, e.g. "debian-bookworm".
	Slug() string
	Arches() []Arch
	Resolve(ctx context.Context, arch Arch) (resolve.Result, error)
	// Tags returns the version-pinned and the floating registry tag.
	Tags(version string) (tagVersion, tagLatest string)
	BootLayout(arch Arch) BootLayout
	KernelCmdline() []string
}

var (
	// DebianArches use the Debian architecture names upstream.
	DebianArches = []Arch{
		{Slug: "arm64", DockerArch: "arm64"},
		{Slug: "amd64", DockerArch: "amd64"},
	}
	// RedHatArches use the kernel architecture names upstream.
	RedHatArches = []Arch{
		{Slug: "aarch64", DockerArch: "arm64"},
		{Slug: "x86_64", DockerArch: "amd64"},
	}

	DefaultBootLayout = BootLayout{
		PartitionNum:   2,
		KernelGlobs:    []string{"vmlinuz-*"},
		InitramfsGlobs: []string{"initramfs-*"},
	}
)

// Sources are the upstream lookups families resolve against.
type Sources struct {
	Log      logr.Logger
	Index    resolve.IndexLister
	Releases resolve.ReleaseSource
	// CachedReleases persists release listings across runs.
	CachedReleases resolve.ReleaseSource
}

func (s Sources) log(name string) logr.Logger {
	if s.Log.GetSink() == nil {
		return logr.Discard()
	}

	return s.Log.WithName(name)
}

// Base carries the defaults shared by most families.
type Base struct {
	Release string
}

func (b Base) Tags(version string) (string, string) {
	return b.Release + "-" + version, b.Release + "-latest"
}

func (Base) Arches() []Arch {
	return RedHatArches
}

func (Base) BootLayout(Arch) BootLayout {
	return DefaultBootLayout
}

func (Base) KernelCmdline() []string {
	return []string{"ro"}
}
