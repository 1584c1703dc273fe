package distro

import (
	"context"
	"fmt"
	"path"
	"strings"

	"containerdisk.run/internal/resolve"
)

const (
	DefaultRockyMirror      = "https://dl.rockylinux.org/pub/rocky"
	DefaultRockyVaultMirror = "https://dl.rockylinux.org/vault/rocky"
	DefaultRockyRelease     = "8"
	DefaultRockyVariant     = "GenericCloud-LVM"
)

// Rocky resolves a Rocky Linux cloud image, falling back to the vault
// mirror once a release left the main mirror.
type Rocky struct {
	Base
	Variant     string
	Mirror      string
	VaultMirror string

	src Sources
}

func NewRocky(release, variant, mirror, vaultMirror string, src Sources) *Rocky {
	return &Rocky{
		Base:        Base{Release: release},
		Variant:     variant,
		Mirror:      mirror,
		VaultMirror: vaultMirror,
		src:         src,
	}
}

func (r *Rocky) Name() string { return "rocky" }
func (r *Rocky) Slug() string { return "rocky-" + r.Release }

func (r *Rocky) KernelCmdline() []string {
	return []string{
		"root=/dev/mapper/rocky-root", "rd.lvm.lv=rocky/root", "ro",
		"no_timer_check", "net.ifnames=0", "crashkernel=auto",
	}
}

func (r *Rocky) Resolve(ctx context.Context, arch Arch) (resolve.Result, error) {
	log := r.src.log(r.Slug())

	indexURL, hrefs, err := resolve.FirstIndex(ctx, log, r.src.Index, arch.Slug,
		mirrorURL(r.Mirror, r.Release, "images", arch.Slug),
		mirrorURL(r.VaultMirror, r.Release, "images", arch.Slug),
	)
	if err != nil {
		return resolve.Result{}, err
	}
	href, err := resolve.ExactlyOne(arch.Slug, hrefs, resolve.Criteria{
		Suffix:   ".qcow2",
		Contains: []string{r.Variant},
		Excludes: []string{".latest."},
	})
	if err != nil {
		return resolve.Result{}, err
	}

	// Rocky-<major>-<variant>-<kind>-<minor>-<date>.<arch>.qcow2
	name := path.Base(href)
	fields := strings.Split(name, "-")
	if len(fields) < 6 {
		return resolve.Result{}, &resolve.ResolutionError{
			Reason:  resolve.ReasonUnexpectedName,
			Arch:    arch.Slug,
			Details: fmt.Sprintf("%q has fewer than six dash separated fields", name),
		}
	}

	res := resolve.Result{
		Version:   fields[4] + "-" + strings.TrimSuffix(fields[5], "."+arch.Slug+".qcow2"),
		SourceURL: resolve.JoinIndexURL(indexURL, href),
	}
	derivedFilenames(&res, strings.TrimSuffix(name, ".qcow2"), name)

	return res, nil
}
