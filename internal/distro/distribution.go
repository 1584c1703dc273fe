package distro

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"containerdisk.run/internal/resolve"
)

// DefaultBaseOCIRef prefixes the default registry references of all families.
const DefaultBaseOCIRef = "ghcr.io/rpardini/"

// Refs configures where the disk and kernel images of a distribution are published.
// Empty Disk and Kernel references are derived from Base and the family name.
type Refs struct {
	Base   string
	Disk   string
	Kernel string
}

// Distribution is one release of a family and owns its architecture targets.
type Distribution struct {
	family  Family
	log     logr.Logger
	targets []*ArchTarget
	refs    Refs
	release *ResolvedRelease
}

// ArchTarget is one architecture of a Distribution.
// Resolution fills the embedded result, fetch and extraction use it to
// locate the files on disk.
type ArchTarget struct {
	Arch
	resolve.Result

	// distro is the non-owning back reference to the owning distribution.
	distro   *Distribution
	resolved bool
}

// ResolvedRelease is the merged outcome of resolving all architectures.
type ResolvedRelease struct {
	Version    string
	TagVersion string
	TagLatest  string
}

// New creates a Distribution with one empty target per family architecture.
func New(family Family, refs Refs, log logr.Logger) *Distribution {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	if refs.Base == "" {
		refs.Base = DefaultBaseOCIRef
	}
	if refs.Disk == "" {
		refs.Disk = refs.Base + family.Name() + "-cloud-container-disk"
	}
	if refs.Kernel == "" {
		refs.Kernel = refs.Base + family.Name() + "-cloud-kernel-kv"
	}

	d := &Distribution{
		family: family,
		log:    log.WithValues("distribution", family.Slug()),
		refs:   refs,
	}
	for _, arch := range family.Arches() {
		d.targets = append(d.targets, &ArchTarget{Arch: arch, distro: d})
	}

	return d
}

func (d *Distribution) Family() Family          { return d.family }
func (d *Distribution) Slug() string            { return d.family.Slug() }
func (d *Distribution) Targets() []*ArchTarget  { return d.targets }
func (d *Distribution) DiskRef() string         { return d.refs.Disk }
func (d *Distribution) KernelRef() string       { return d.refs.Kernel }
func (d *Distribution) KernelCmdline() []string { return d.family.KernelCmdline() }

// Release returns the resolved release, if resolution already completed.
func (d *Distribution) Release() (ResolvedRelease, bool) {
	if d.release == nil {
		return ResolvedRelease{}, false
	}

	return *d.release, true
}

// LatestTag returns the floating tag, which does not depend on resolution.
func (d *Distribution) LatestTag() string {
	_, latest := d.family.Tags("")

	return latest
}

// ResolveVersions resolves every architecture in order and merges their
// versions into one release. Any failing architecture fails the whole call
// and leaves the release unset.
func (d *Distribution) ResolveVersions(ctx context.Context) (ResolvedRelease, error) {
	versions := make([]string, 0, len(d.targets))
	for _, t := range d.targets {
		d.log.Info("resolving version", "arch", t.Slug)

		res, err := d.family.Resolve(ctx, t.Arch)
		if err != nil {
			return ResolvedRelease{}, fmt.Errorf("resolving %s: %w", t.Slug, err)
		}
		if err := res.Validate(); err != nil {
			return ResolvedRelease{}, fmt.Errorf("resolving %s: %w", t.Slug, err)
		}

		t.Result = res
		t.resolved = true
		versions = append(versions, res.Version)
		d.log.Info("resolved", "arch", t.Slug, "version", res.Version, "url", res.SourceURL)
	}

	version := JoinVersions(versions)
	tagVersion, tagLatest := d.family.Tags(version)
	d.release = &ResolvedRelease{
		Version:    version,
		TagVersion: tagVersion,
		TagLatest:  tagLatest,
	}
	d.log.Info("resolved release", "version", version, "tagVersion", tagVersion, "tagLatest", tagLatest)

	return *d.release, nil
}

// JoinVersions joins the distinct versions with "-".
// Architectures disagreeing on the upstream version produce a compound
// version instead of an error.
func JoinVersions(versions []string) string {
	set := map[string]struct{}{}
	for _, v := range versions {
		set[v] = struct{}{}
	}
	distinct := maps.Keys(set)
	slices.Sort(distinct)

	return strings.Join(distinct, "-")
}

// Distribution returns the distribution owning t.
func (t *ArchTarget) Distribution() *Distribution { return t.distro }

// Resolved reports whether resolution populated t.
func (t *ArchTarget) Resolved() bool { return t.resolved }

// BootLayout returns where the kernel of t lives inside its disk image.
func (t *ArchTarget) BootLayout() BootLayout { return t.distro.family.BootLayout(t.Arch) }
