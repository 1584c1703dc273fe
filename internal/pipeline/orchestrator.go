// Package pipeline sequences resolution, idempotency check, download,
// extraction and publishing for one distribution.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"

	"containerdisk.run/internal/blockdev"
	"containerdisk.run/internal/containerdisk"
	"containerdisk.run/internal/distro"
	"containerdisk.run/internal/fetch"
)

// DefaultFirstSlot is the first network block device slot handed out.
const DefaultFirstSlot = 2

type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error)
}

type Extractor interface {
	Extract(ctx context.Context, req blockdev.Request) (blockdev.Result, error)
}

// Outputs receives name=value results for downstream automation.
type Outputs interface {
	Set(name, value string) error
}

// Observer is notified about stage executions.
type Observer interface {
	ObserveStage(distribution, stage string, d time.Duration, err error)
	ObserveDownload(distribution, arch string, bytes int64)
	SetUpToDate(distribution string, upToDate bool)
}

// Outcome summarizes a successful run.
type Outcome struct {
	Release  distro.ResolvedRelease
	Families []*containerdisk.ImageFamily
	// UpToDate is set when all image families were already published.
	UpToDate bool
	// Stage is where the run stopped.
	Stage Stage
}

func NewOrchestrator(opts ...Option) *Orchestrator {
	var cfg Config

	cfg.Option(opts...)
	cfg.Default()

	return &Orchestrator{cfg: cfg}
}

// Orchestrator runs distributions strictly sequentially, one architecture
// after the other.
type Orchestrator struct {
	cfg Config
}

type Config struct {
	Log       logr.Logger
	Fetcher   Fetcher
	Extractor Extractor
	Publisher containerdisk.Publisher
	Inspector containerdisk.Inspector
	Outputs   Outputs
	Observer  Observer
	Workdir   string
	FirstSlot int
	// DryRun stops after the idempotency check.
	DryRun bool
}

func (c *Config) Option(opts ...Option) {
	for _, opt := range opts {
		opt.ConfigureOrchestrator(c)
	}
}

func (c *Config) Default() {
	if c.Log.GetSink() == nil {
		c.Log = logr.Discard()
	}
	if c.Outputs == nil {
		c.Outputs = noopOutputs{}
	}
	if c.Observer == nil {
		c.Observer = noopObserver{}
	}
	if c.Workdir == "" {
		c.Workdir = "."
	}
	if c.FirstSlot == 0 {
		c.FirstSlot = DefaultFirstSlot
	}
}

type Option interface {
	ConfigureOrchestrator(*Config)
}

// Run takes d through all stages. Any failure aborts the run and is
// returned as a *StageError.
func (o *Orchestrator) Run(ctx context.Context, d *distro.Distribution) (Outcome, error) {
	log := o.cfg.Log.WithValues("distribution", d.Slug())
	var out Outcome

	if err := o.stage(ctx, log, d, StageResolvingVersions, func(ctx context.Context) (err error) {
		out.Release, err = d.ResolveVersions(ctx)
		if err != nil {
			return err
		}
		out.Families = Families(d, out.Release)

		return o.setResolvedOutputs(d, out.Release)
	}); err != nil {
		return out, err
	}

	if err := o.stage(ctx, log, d, StageCheckingIdempotency, func(ctx context.Context) (err error) {
		out.UpToDate, err = o.published(ctx, log, out.Families)
		if err != nil {
			return err
		}
		o.cfg.Observer.SetUpToDate(d.Slug(), out.UpToDate)

		return o.cfg.Outputs.Set("uptodate", yesNo(out.UpToDate))
	}); err != nil {
		return out, err
	}

	if out.UpToDate {
		log.Info("all images already published, nothing to do", "version", out.Release.TagVersion)
		out.Stage = StageDone
		return out, nil
	}
	if o.cfg.DryRun {
		log.Info("dry run, stopping before fetching")
		out.Stage = StageCheckingIdempotency
		return out, nil
	}

	stages := []struct {
		stage Stage
		run   func(ctx context.Context) error
	}{
		{StageFetching, func(ctx context.Context) error { return o.fetch(ctx, d) }},
		{StageExtracting, func(ctx context.Context) error { return o.extract(ctx, d) }},
		{StageBuilding, func(ctx context.Context) error {
			for _, f := range out.Families {
				if err := o.cfg.Publisher.Build(ctx, f); err != nil {
					return err
				}
			}
			return nil
		}},
		{StagePublishing, func(ctx context.Context) error {
			for _, f := range out.Families {
				if err := o.cfg.Publisher.Push(ctx, f); err != nil {
					return err
				}
			}
			return nil
		}},
	}
	for _, s := range stages {
		if err := o.stage(ctx, log, d, s.stage, s.run); err != nil {
			return out, err
		}
	}

	log.Info("done", "version", out.Release.TagVersion)
	out.Stage = StageDone

	return out, nil
}

func (o *Orchestrator) stage(
	ctx context.Context, log logr.Logger, d *distro.Distribution, stage Stage, run func(context.Context) error,
) error {
	log.Info("entering stage", "stage", stage)

	start := time.Now()
	err := run(ctx)
	o.cfg.Observer.ObserveStage(d.Slug(), string(stage), time.Since(start), err)
	if err != nil {
		log.Error(err, "stage failed", "stage", stage)
		return &StageError{Distribution: d.Slug(), Stage: stage, Err: err}
	}

	return nil
}

func (o *Orchestrator) setResolvedOutputs(d *distro.Distribution, rel distro.ResolvedRelease) error {
	outputs := [][2]string{
		{"version", rel.Version},
		{"tag_version", rel.TagVersion},
		{"tag_latest", rel.TagLatest},
	}
	for _, t := range d.Targets() {
		outputs = append(outputs, [2]string{t.DockerArch + "_qcow2", t.ArtifactFilename})
	}
	for _, kv := range outputs {
		if err := o.cfg.Outputs.Set(kv[0], kv[1]); err != nil {
			return err
		}
	}

	return nil
}

// published reports whether the version tag of every family already exists.
func (o *Orchestrator) published(ctx context.Context, log logr.Logger, families []*containerdisk.ImageFamily) (bool, error) {
	all := true
	for _, f := range families {
		manifest, err := o.cfg.Inspector.Inspect(ctx, f.VersionRef())
		if err != nil {
			return false, err
		}
		exists := manifest != nil
		log.Info("checked registry", "kind", f.Kind, "ref", f.VersionRef(), "exists", exists)
		all = all && exists
	}

	return all, nil
}

func (o *Orchestrator) fetch(ctx context.Context, d *distro.Distribution) error {
	for _, t := range d.Targets() {
		res, err := o.cfg.Fetcher.Fetch(ctx, fetch.Request{
			URL:         t.SourceURL,
			Destination: filepath.Join(o.cfg.Workdir, t.ArtifactFilename),
			Compressed:  t.Compressed,
		})
		if err != nil {
			return err
		}
		o.cfg.Observer.ObserveDownload(d.Slug(), t.DockerArch, res.Bytes)
	}

	return nil
}

// extract hands out one device slot per architecture, starting at FirstSlot.
func (o *Orchestrator) extract(ctx context.Context, d *distro.Distribution) error {
	slot := o.cfg.FirstSlot
	for _, t := range d.Targets() {
		layout := t.BootLayout()
		if _, err := o.cfg.Extractor.Extract(ctx, blockdev.Request{
			ImagePath:      filepath.Join(o.cfg.Workdir, t.ArtifactFilename),
			Slot:           slot,
			PartitionNum:   layout.PartitionNum,
			BootDirPrefix:  layout.DirPrefix,
			KernelGlobs:    layout.KernelGlobs,
			InitramfsGlobs: layout.InitramfsGlobs,
			KernelDest:     filepath.Join(o.cfg.Workdir, t.KernelFilename),
			InitramfsDest:  filepath.Join(o.cfg.Workdir, t.InitramfsFilename),
			Workdir:        o.cfg.Workdir,
		}); err != nil {
			return err
		}
		slot++
	}

	return nil
}

// Families returns the kernel and disk image families of a resolved
// distribution, kernel first.
func Families(d *distro.Distribution, rel distro.ResolvedRelease) []*containerdisk.ImageFamily {
	kernel := containerdisk.NewImageFamily(containerdisk.KindKernel, d.KernelRef(), rel.TagVersion, rel.TagLatest)
	disk := containerdisk.NewImageFamily(containerdisk.KindDisk, d.DiskRef(), rel.TagVersion, rel.TagLatest)
	for _, t := range d.Targets() {
		kernel.AddKernel(t.DockerArch, t.KernelFilename, t.InitramfsFilename)
		disk.AddDisk(t.DockerArch, t.ArtifactFilename)
	}

	return []*containerdisk.ImageFamily{kernel, disk}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

type noopOutputs struct{}

func (noopOutputs) Set(string, string) error { return nil }

type noopObserver struct{}

func (noopObserver) ObserveStage(string, string, time.Duration, error) {}
func (noopObserver) ObserveDownload(string, string, int64)             {}
func (noopObserver) SetUpToDate(string, bool)                          {}
