package blockdev

import (
	"github.com/go-logr/logr"
	"github.com/spf13/afero"

	"containerdisk.run/internal/shell"
)

type WithLog struct{ Log logr.Logger }

func (w WithLog) ConfigureExtractor(c *Config) {
	c.Log = w.Log
}

type WithRunner struct{ Runner shell.Runner }

func (w WithRunner) ConfigureExtractor(c *Config) {
	c.Runner = w.Runner
}

type WithFs struct{ Fs afero.Fs }

func (w WithFs) ConfigureExtractor(c *Config) {
	c.Fs = w.Fs
}

type WithRequireRoot bool

func (w WithRequireRoot) ConfigureExtractor(c *Config) {
	c.RequireRoot = bool(w)
}

type WithGeteuid func() int

func (w WithGeteuid) ConfigureExtractor(c *Config) {
	c.Geteuid = w
}
