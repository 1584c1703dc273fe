package containerdisk

import (
	"context"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"

	"containerdisk.run/internal/shell"
)

var _ Publisher = (*DockerPublisher)(nil)

// NewDockerPublisher returns a Publisher driving the docker CLI.
func NewDockerPublisher(opts ...DockerPublisherOption) *DockerPublisher {
	var cfg DockerPublisherConfig

	cfg.Option(opts...)
	cfg.Default()

	return &DockerPublisher{cfg: cfg}
}

type DockerPublisher struct {
	cfg DockerPublisherConfig
}

type DockerPublisherConfig struct {
	Log    logr.Logger
	Runner shell.Runner
	Fs     afero.Fs
	// Workdir is the build context and holds the payload files.
	Workdir string
}

func (c *DockerPublisherConfig) Option(opts ...DockerPublisherOption) {
	for _, opt := range opts {
		opt.ConfigureDockerPublisher(c)
	}
}

func (c *DockerPublisherConfig) Default() {
	if c.Log.GetSink() == nil {
		c.Log = logr.Discard()
	}
	if c.Runner == nil {
		c.Runner = shell.NewExecRunner(shell.WithLog{Log: c.Log})
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	if c.Workdir == "" {
		c.Workdir = "."
	}
}

type DockerPublisherOption interface {
	ConfigureDockerPublisher(*DockerPublisherConfig)
}

func (p *DockerPublisher) Build(ctx context.Context, f *ImageFamily) error {
	log := p.cfg.Log.WithValues("kind", f.Kind, "ref", f.VersionRef())

	for _, img := range f.Arches() {
		versionRef, latestRef := f.ArchVersionRef(img.DockerArch), f.ArchLatestRef(img.DockerArch)
		log.Info("building", "arch", img.DockerArch, "version", versionRef, "latest", latestRef)

		desc, err := RenderBuildDescriptor(img)
		if err != nil {
			return &PublishError{Reason: ReasonBuildContext, Ref: versionRef, Arch: img.DockerArch, Err: err}
		}
		log.V(1).Info("build descriptor", "dockerfile", string(desc.Dockerfile), "dockerignore", string(desc.Dockerignore))
		if err := p.writeContext(desc); err != nil {
			return &PublishError{Reason: ReasonBuildContext, Ref: versionRef, Arch: img.DockerArch, Err: err}
		}

		if err := p.cfg.Runner.Passthrough(ctx, "docker", "build", "-t", versionRef, p.cfg.Workdir); err != nil {
			return &PublishError{Reason: ReasonBuild, Ref: versionRef, Arch: img.DockerArch, Err: err}
		}
		if err := p.cfg.Runner.Passthrough(ctx, "docker", "tag", versionRef, latestRef); err != nil {
			return &PublishError{Reason: ReasonBuild, Ref: latestRef, Arch: img.DockerArch, Err: err}
		}
	}

	return nil
}

func (p *DockerPublisher) writeContext(desc BuildDescriptor) error {
	if err := afero.WriteFile(p.cfg.Fs, filepath.Join(p.cfg.Workdir, DockerfileName), desc.Dockerfile, 0o644); err != nil {
		return err
	}

	return afero.WriteFile(p.cfg.Fs, filepath.Join(p.cfg.Workdir, DockerignoreName), desc.Dockerignore, 0o644)
}

func (p *DockerPublisher) Push(ctx context.Context, f *ImageFamily) error {
	log := p.cfg.Log.WithValues("kind", f.Kind, "ref", f.VersionRef())

	for _, img := range f.Arches() {
		for _, ref := range []string{f.ArchVersionRef(img.DockerArch), f.ArchLatestRef(img.DockerArch)} {
			log.Info("pushing", "arch", img.DockerArch, "image", ref)
			if err := p.cfg.Runner.Passthrough(ctx, "docker", "push", ref); err != nil {
				return &PublishError{Reason: ReasonPush, Ref: ref, Arch: img.DockerArch, Err: err}
			}
		}
	}

	for _, tag := range f.tags() {
		if err := p.pushManifestList(ctx, log, f, tag); err != nil {
			return &PublishError{Reason: ReasonManifest, Ref: tag.list, Err: err}
		}
	}

	return nil
}

func (p *DockerPublisher) pushManifestList(ctx context.Context, log logr.Logger, f *ImageFamily, tag tagRefs) error {
	log.Info("creating manifest list", "list", tag.list)

	args := []string{"manifest", "create", "--amend", tag.list}
	for _, img := range f.Arches() {
		args = append(args, tag.archs(img.DockerArch))
	}
	if _, err := p.cfg.Runner.Output(ctx, "docker", args...); err != nil {
		return err
	}

	for _, img := range f.Arches() {
		log.Info("annotating", "list", tag.list, "arch", img.DockerArch)
		if err := p.cfg.Runner.Passthrough(ctx, "docker", "manifest", "annotate",
			tag.list, tag.archs(img.DockerArch), "--arch", img.DockerArch); err != nil {
			return err
		}
	}

	log.Info("pushing manifest list", "list", tag.list)

	return p.cfg.Runner.Passthrough(ctx, "docker", "manifest", "push", tag.list)
}
