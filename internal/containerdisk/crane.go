package containerdisk

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/spf13/afero"
)

const descriptionLabel = "org.opencontainers.image.description"

var _ Publisher = (*CranePublisher)(nil)

// NewCranePublisher returns a Publisher assembling images in process
// and pushing them straight to the registry.
func NewCranePublisher(opts ...CranePublisherOption) *CranePublisher {
	var cfg CranePublisherConfig

	cfg.Option(opts...)
	cfg.Default()

	return &CranePublisher{cfg: cfg, built: map[string]v1.Image{}}
}

type CranePublisher struct {
	cfg CranePublisherConfig

	mu    sync.Mutex
	built map[string]v1.Image
}

type CranePublisherConfig struct {
	Log          logr.Logger
	Fs           afero.Fs
	Workdir      string
	CraneOptions []crane.Option
}

func (c *CranePublisherConfig) Option(opts ...CranePublisherOption) {
	for _, opt := range opts {
		opt.ConfigureCranePublisher(c)
	}
}

func (c *CranePublisherConfig) Default() {
	if c.Log.GetSink() == nil {
		c.Log = logr.Discard()
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	if c.Workdir == "" {
		c.Workdir = "."
	}
}

type CranePublisherOption interface {
	ConfigureCranePublisher(*CranePublisherConfig)
}

func (p *CranePublisher) Build(_ context.Context, f *ImageFamily) error {
	for _, a := range f.Arches() {
		ref := f.ArchVersionRef(a.DockerArch)
		p.cfg.Log.Info("assembling image", "kind", f.Kind, "arch", a.DockerArch, "image", ref)

		img, err := p.image(a)
		if err != nil {
			return &PublishError{Reason: ReasonBuild, Ref: ref, Arch: a.DockerArch, Err: err}
		}

		p.mu.Lock()
		p.built[ref] = img
		p.mu.Unlock()
	}

	return nil
}

func (p *CranePublisher) image(a ArchImage) (v1.Image, error) {
	for _, pl := range a.Payloads {
		if _, err := p.cfg.Fs.Stat(filepath.Join(p.cfg.Workdir, pl.Src)); err != nil {
			return nil, err
		}
	}

	configFile := &v1.ConfigFile{
		Architecture: a.DockerArch,
		OS:           "linux",
		Config:       v1.Config{Labels: map[string]string{descriptionLabel: a.Description}},
		RootFS:       v1.RootFS{Type: "layers"},
	}
	img, err := mutate.ConfigFile(empty.Image, configFile)
	if err != nil {
		return nil, err
	}
	img = mutate.MediaType(img, types.OCIManifestSchema1)
	img = mutate.ConfigMediaType(img, types.OCIConfigJSON)

	layer, err := tarball.LayerFromOpener(p.opener(a.Payloads), tarball.WithMediaType(types.OCILayer))
	if err != nil {
		return nil, fmt.Errorf("create layer: %w", err)
	}
	img, err = mutate.AppendLayers(img, layer)
	if err != nil {
		return nil, fmt.Errorf("create image from layer: %w", err)
	}

	return img, nil
}

// opener streams the payload tar so disk images are never held in memory.
func (p *CranePublisher) opener(payloads []Payload) tarball.Opener {
	return func() (io.ReadCloser, error) {
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(p.writeTar(pw, payloads))
		}()

		return pr, nil
	}
}

func (p *CranePublisher) writeTar(w io.Writer, payloads []Payload) error {
	tw := tar.NewWriter(w)
	dirs := map[string]struct{}{}

	for _, pl := range payloads {
		dest := strings.TrimPrefix(path.Clean(pl.Dest), "/")
		if dir := path.Dir(dest); dir != "." {
			if _, ok := dirs[dir]; !ok {
				dirs[dir] = struct{}{}
				if err := tw.WriteHeader(&tar.Header{
					Typeflag: tar.TypeDir, Name: dir + "/", Mode: 0o755, Uid: OwnerID, Gid: OwnerID,
				}); err != nil {
					return err
				}
			}
		}

		if err := p.writeFile(tw, pl.Src, dest); err != nil {
			return err
		}
	}

	return tw.Close()
}

func (p *CranePublisher) writeFile(tw *tar.Writer, src, dest string) error {
	f, err := p.cfg.Fs.Open(filepath.Join(p.cfg.Workdir, src))
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg, Name: dest, Size: fi.Size(), Mode: 0o644, Uid: OwnerID, Gid: OwnerID,
	}); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)

	return err
}

func (p *CranePublisher) Push(ctx context.Context, f *ImageFamily) error {
	opts := append(append([]crane.Option{}, p.cfg.CraneOptions...), crane.WithContext(ctx))
	log := p.cfg.Log.WithValues("kind", f.Kind)

	images := make([]v1.Image, 0, len(f.Arches()))
	for _, a := range f.Arches() {
		p.mu.Lock()
		img, ok := p.built[f.ArchVersionRef(a.DockerArch)]
		p.mu.Unlock()
		if !ok {
			return &PublishError{
				Reason: ReasonPush, Ref: f.ArchVersionRef(a.DockerArch), Arch: a.DockerArch,
				Err: fmt.Errorf("image was not built"),
			}
		}
		images = append(images, img)

		for _, ref := range []string{f.ArchVersionRef(a.DockerArch), f.ArchLatestRef(a.DockerArch)} {
			log.Info("pushing", "image", ref)
			if err := crane.Push(img, ref, opts...); err != nil {
				return &PublishError{Reason: ReasonPush, Ref: ref, Arch: a.DockerArch, Err: err}
			}
		}
	}

	o := crane.GetOptions(opts...)
	for _, tag := range f.tags() {
		log.Info("pushing manifest list", "list", tag.list)
		if err := pushIndex(tag.list, f.Arches(), images, o); err != nil {
			return &PublishError{Reason: ReasonManifest, Ref: tag.list, Err: err}
		}
	}

	return nil
}

func pushIndex(list string, arches []ArchImage, images []v1.Image, o crane.Options) error {
	ref, err := name.ParseReference(list, o.Name...)
	if err != nil {
		return err
	}

	adds := make([]mutate.IndexAddendum, 0, len(arches))
	for i, a := range arches {
		adds = append(adds, mutate.IndexAddendum{
			Add: images[i],
			Descriptor: v1.Descriptor{
				Platform: &v1.Platform{OS: "linux", Architecture: a.DockerArch},
			},
		})
	}
	idx := mutate.AppendManifests(mutate.IndexMediaType(empty.Index, types.OCIImageIndex), adds...)

	return remote.WriteIndex(ref, idx, o.Remote...)
}
