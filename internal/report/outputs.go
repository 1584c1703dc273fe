// Package report publishes run results to automation and to the terminal.
package report

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"
)

// NewOutputs returns Outputs appending to the file at path.
// With an empty path outputs are only logged.
func NewOutputs(path string, opts ...OutputsOption) *Outputs {
	var cfg OutputsConfig

	cfg.Option(opts...)
	cfg.Default()

	return &Outputs{cfg: cfg, path: path}
}

// Outputs writes name=value lines for downstream automation,
// in the format of the GitHub Actions GITHUB_OUTPUT file.
type Outputs struct {
	cfg  OutputsConfig
	path string
}

type OutputsConfig struct {
	Log logr.Logger
	Fs  afero.Fs
}

func (c *OutputsConfig) Option(opts ...OutputsOption) {
	for _, opt := range opts {
		opt.ConfigureOutputs(c)
	}
}

func (c *OutputsConfig) Default() {
	if c.Log.GetSink() == nil {
		c.Log = logr.Discard()
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
}

type OutputsOption interface {
	ConfigureOutputs(*OutputsConfig)
}

func (o *Outputs) Set(name, value string) error {
	if o.path == "" {
		o.cfg.Log.V(1).Info("no output file configured, not setting output", "name", name, "value", value)
		return nil
	}

	f, err := o.cfg.Fs.OpenFile(o.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening output file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s=%s\n", name, value); err != nil {
		f.Close()
		return fmt.Errorf("writing output %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	o.cfg.Log.Info("set output", "name", name, "bytes", len(value), "value", value)

	return nil
}
