package pipeline

import (
	"github.com/go-logr/logr"

	"containerdisk.run/internal/containerdisk"
)

type WithLog struct{ Log logr.Logger }

func (w WithLog) ConfigureOrchestrator(c *Config) {
	c.Log = w.Log
}

type WithFetcher struct{ Fetcher Fetcher }

func (w WithFetcher) ConfigureOrchestrator(c *Config) {
	c.Fetcher = w.Fetcher
}

type WithExtractor struct{ Extractor Extractor }

func (w WithExtractor) ConfigureOrchestrator(c *Config) {
	c.Extractor = w.Extractor
}

type WithPublisher struct{ Publisher containerdisk.Publisher }

func (w WithPublisher) ConfigureOrchestrator(c *Config) {
	c.Publisher = w.Publisher
}

type WithInspector struct{ Inspector containerdisk.Inspector }

func (w WithInspector) ConfigureOrchestrator(c *Config) {
	c.Inspector = w.Inspector
}

type WithOutputs struct{ Outputs Outputs }

func (w WithOutputs) ConfigureOrchestrator(c *Config) {
	c.Outputs = w.Outputs
}

type WithObserver struct{ Observer Observer }

func (w WithObserver) ConfigureOrchestrator(c *Config) {
	c.Observer = w.Observer
}

type WithWorkdir string

func (w WithWorkdir) ConfigureOrchestrator(c *Config) {
	c.Workdir = string(w)
}

type WithFirstSlot int

func (w WithFirstSlot) ConfigureOrchestrator(c *Config) {
	c.FirstSlot = int(w)
}

type WithDryRun bool

func (w WithDryRun) ConfigureOrchestrator(c *Config) {
	c.DryRun = bool(w)
}
