package containerdisk

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"containerdisk.run/internal/testutil"
)

func TestCranePublisher(t *testing.T) {
	t.Parallel()

	reg := testutil.NewInMemoryRegistry()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/arm.qcow2", []byte("arm disk"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/work/amd.qcow2", []byte("amd disk"), 0o644))

	p := NewCranePublisher(WithFs{Fs: fs}, WithWorkdir("/work"), WithCraneOptions{reg.CraneOpt})
	f := NewImageFamily(KindDisk, "registry.test/disk", "v1", "latest")
	f.AddDisk("arm64", "arm.qcow2")
	f.AddDisk("amd64", "amd.qcow2")

	ctx := context.Background()
	require.NoError(t, p.Build(ctx, f))
	require.NoError(t, p.Push(ctx, f))

	for _, list := range []string{"registry.test/disk:v1", "registry.test/disk:latest"} {
		ref, err := name.ParseReference(list)
		require.NoError(t, err)
		idx, err := remote.Index(ref, remote.WithTransport(reg.RoundTripper))
		require.NoError(t, err)
		m, err := idx.IndexManifest()
		require.NoError(t, err)

		require.Len(t, m.Manifests, 2)
		assert.Equal(t, "arm64", m.Manifests[0].Platform.Architecture)
		assert.Equal(t, "amd64", m.Manifests[1].Platform.Architecture)
	}

	img, err := crane.Pull("registry.test/disk:v1-amd64", reg.CraneOpt)
	require.NoError(t, err)
	cfg, err := img.ConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "amd64", cfg.Architecture)
	assert.Contains(t, cfg.Config.Labels[descriptionLabel], "/disk/amd.qcow2")

	layers, err := img.Layers()
	require.NoError(t, err)
	require.Len(t, layers, 1)
	rc, err := layers[0].Uncompressed()
	require.NoError(t, err)
	defer rc.Close()

	tr := tar.NewReader(rc)
	var files []string
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, OwnerID, hdr.Uid)
		assert.Equal(t, OwnerID, hdr.Gid)
		files = append(files, hdr.Name)
		if hdr.Typeflag == tar.TypeReg {
			content, err := io.ReadAll(tr)
			require.NoError(t, err)
			assert.Equal(t, "amd disk", string(content))
		}
	}
	assert.Equal(t, []string{"disk/", "disk/amd.qcow2"}, files)
}

func TestCranePublisher_MissingPayload(t *testing.T) {
	t.Parallel()

	p := NewCranePublisher(WithFs{Fs: afero.NewMemMapFs()}, WithWorkdir("/work"))
	f := NewImageFamily(KindKernel, "registry.test/k", "v1", "latest")
	f.AddKernel("amd64", "missing.vmlinuz", "missing.initramfs")

	err := p.Build(context.Background(), f)

	var perr *PublishError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ReasonBuild, perr.Reason)
}

func TestCranePublisher_PushUnbuilt(t *testing.T) {
	t.Parallel()

	reg := testutil.NewInMemoryRegistry()
	p := NewCranePublisher(WithCraneOptions{reg.CraneOpt})
	f := NewImageFamily(KindDisk, "registry.test/disk", "v1", "latest")
	f.AddDisk("amd64", "x.qcow2")

	var perr *PublishError
	require.ErrorAs(t, p.Push(context.Background(), f), &perr)
	assert.Equal(t, ReasonPush, perr.Reason)
}
