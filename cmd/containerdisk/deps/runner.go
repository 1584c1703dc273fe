package deps

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/crane"

	"containerdisk.run/cmd/containerdisk/familycmd"
	"containerdisk.run/cmd/containerdisk/rootcmd"
	"containerdisk.run/internal/blockdev"
	"containerdisk.run/internal/cache"
	"containerdisk.run/internal/containerdisk"
	"containerdisk.run/internal/distro"
	"containerdisk.run/internal/fetch"
	"containerdisk.run/internal/metrics"
	"containerdisk.run/internal/pipeline"
	"containerdisk.run/internal/report"
	"containerdisk.run/internal/resolve"
	"containerdisk.run/internal/shell"
)

func ProvideRunner(streams rootcmd.IOStreams, opts *rootcmd.GlobalOptions, f LogFactory) familycmd.Runner {
	return &defaultRunner{
		streams:    streams,
		opts:       opts,
		logFactory: f,
	}
}

// defaultRunner wires all pipeline components from the global options.
type defaultRunner struct {
	streams    rootcmd.IOStreams
	opts       *rootcmd.GlobalOptions
	logFactory LogFactory
}

func (r *defaultRunner) Run(ctx context.Context, build familycmd.FamilyBuilder) (err error) {
	log := r.logFactory.Logger()

	family, err := build(r.sources(log))
	if err != nil {
		return err
	}
	d := distro.New(family, r.opts.Refs(), log)

	recorder := metrics.NewRecorder()
	if r.opts.MetricsTextfile != "" {
		defer func() {
			if werr := recorder.WriteTextfile(r.opts.MetricsTextfile); werr != nil {
				err = errors.Join(err, fmt.Errorf("writing metrics: %w", werr))
			}
		}()
	}

	outcome, runErr := r.orchestrator(log, recorder).Run(ctx, d)
	if _, resolved := d.Release(); resolved {
		if perr := r.printPlan(d, outcome); perr != nil {
			return errors.Join(runErr, perr)
		}
	}
	if runErr != nil {
		return runErr
	}

	printer := report.NewPrinter(report.WithOut{Out: r.streams.Out})
	switch {
	case outcome.UpToDate:
		return printer.PrintfOut("%s is up to date at %s\n", d.Slug(), outcome.Release.TagVersion)
	case outcome.Stage == pipeline.StageDone:
		return printer.PrintfOut("%s published %s\n", d.Slug(), outcome.Release.TagVersion)
	default:
		return printer.PrintfOut("%s needs publishing %s, stopped at %s\n", d.Slug(), outcome.Release.TagVersion, outcome.Stage)
	}
}

func (r *defaultRunner) sources(log logr.Logger) distro.Sources {
	releases := resolve.NewGitHubReleases(
		resolve.WithLog{Log: log},
		resolve.WithToken(r.opts.GitHubToken),
	)
	c := cache.New(
		filepath.Join(r.opts.Workdir, cache.DefaultDir),
		cache.WithLog{Log: log},
	)

	return distro.Sources{
		Log:            log,
		Index:          resolve.NewHTTPIndexLister(resolve.WithLog{Log: log}),
		Releases:       releases,
		CachedReleases: resolve.NewCachedReleases(releases, c),
	}
}

func (r *defaultRunner) orchestrator(log logr.Logger, recorder *metrics.Recorder) *pipeline.Orchestrator {
	runner := shell.NewExecRunner(
		shell.WithLog{Log: log},
		shell.WithStdout{Writer: r.streams.ErrOut},
		shell.WithStderr{Writer: r.streams.ErrOut},
	)
	craneOpts := r.craneOptions()

	var publisher containerdisk.Publisher
	switch r.opts.Publisher {
	case rootcmd.PublisherCrane:
		publisher = containerdisk.NewCranePublisher(
			containerdisk.WithLog{Log: log},
			containerdisk.WithWorkdir(r.opts.Workdir),
			containerdisk.WithCraneOptions(craneOpts),
		)
	default:
		publisher = containerdisk.NewDockerPublisher(
			containerdisk.WithLog{Log: log},
			containerdisk.WithRunner{Runner: runner},
			containerdisk.WithWorkdir(r.opts.Workdir),
		)
	}

	return pipeline.NewOrchestrator(
		pipeline.WithLog{Log: log},
		pipeline.WithFetcher{Fetcher: fetch.NewFetcher(fetch.WithLog{Log: log})},
		pipeline.WithExtractor{Extractor: blockdev.NewExtractor(
			blockdev.WithLog{Log: log},
			blockdev.WithRunner{Runner: runner},
			blockdev.WithRequireRoot(true),
		)},
		pipeline.WithPublisher{Publisher: publisher},
		pipeline.WithInspector{Inspector: containerdisk.NewRemoteInspector(
			containerdisk.WithLog{Log: log},
			containerdisk.WithCraneOptions(craneOpts),
		)},
		pipeline.WithOutputs{Outputs: report.NewOutputs(r.opts.GitHubOutput, report.WithLog{Log: log})},
		pipeline.WithObserver{Observer: recorder},
		pipeline.WithWorkdir(r.opts.Workdir),
		pipeline.WithFirstSlot(r.opts.NBDFirstSlot),
		pipeline.WithDryRun(r.opts.DryRun),
	)
}

func (r *defaultRunner) craneOptions() []crane.Option {
	var opts []crane.Option
	if r.opts.InsecureRegistry {
		opts = append(opts, crane.Insecure)
	}

	return opts
}

func (r *defaultRunner) printPlan(d *distro.Distribution, outcome pipeline.Outcome) error {
	printer := report.NewPrinter(report.WithOut{Out: r.streams.Out})

	if err := printer.PrintTable(report.TargetTable(d)); err != nil {
		return err
	}

	return printer.PrintTree(report.PlanTree(d, outcome.Families))
}
