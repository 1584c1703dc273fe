package distro

import (
	"context"
	"path"
	"strings"

	"containerdisk.run/internal/resolve"
)

// listDir lists a single index that must exist.
func listDir(ctx context.Context, src Sources, arch, indexURL string) ([]string, error) {
	hrefs, err := src.Index.ListHrefs(ctx, indexURL)
	if err != nil {
		return nil, &resolve.ResolutionError{
			Reason:  resolve.ReasonNoIndex,
			Arch:    arch,
			Details: indexURL,
			Err:     err,
		}
	}

	return hrefs, nil
}

// derivedFilenames names the local artifact, kernel and initramfs files after
// the basename of the upstream artifact.
func derivedFilenames(res *resolve.Result, basename, artifact string) {
	res.ArtifactFilename = artifact
	res.KernelFilename = basename + ".vmlinuz"
	res.InitramfsFilename = basename + ".initramfs"
}

func mirrorURL(mirror string, elems ...string) string {
	u := strings.TrimSuffix(mirror, "/")
	if len(elems) > 0 {
		u += "/" + path.Join(elems...)
	}

	return u + "/"
}
