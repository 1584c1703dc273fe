package shell

import (
	"io"

	"github.com/go-logr/logr"
)

type WithLog struct{ Log logr.Logger }

func (w WithLog) ConfigureExecRunner(c *ExecRunnerConfig) {
	c.Log = w.Log
}

type WithStdout struct{ Writer io.Writer }

func (w WithStdout) ConfigureExecRunner(c *ExecRunnerConfig) {
	c.Stdout = w.Writer
}

type WithStderr struct{ Writer io.Writer }

func (w WithStderr) ConfigureExecRunner(c *ExecRunnerConfig) {
	c.Stderr = w.Writer
}
