package report

import (
	"io"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"
)

// WithOut configures the Out stream
// to the given io.Writer implementations.
type WithOut struct{ Out io.Writer }

func (w WithOut) ConfigurePrinter(c *PrinterConfig) {
	c.Out = w.Out
}

type WithLog struct{ Log logr.Logger }

func (w WithLog) ConfigureOutputs(c *OutputsConfig) {
	c.Log = w.Log
}

type WithFs struct{ Fs afero.Fs }

func (w WithFs) ConfigureOutputs(c *OutputsConfig) {
	c.Fs = w.Fs
}
