package containerdisk

import (
	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/spf13/afero"

	"containerdisk.run/internal/shell"
)

type WithLog struct{ Log logr.Logger }

func (w WithLog) ConfigureDockerPublisher(c *DockerPublisherConfig) {
	c.Log = w.Log
}

func (w WithLog) ConfigureCranePublisher(c *CranePublisherConfig) {
	c.Log = w.Log
}

func (w WithLog) ConfigureRemoteInspector(c *RemoteInspectorConfig) {
	c.Log = w.Log
}

type WithRunner struct{ Runner shell.Runner }

func (w WithRunner) ConfigureDockerPublisher(c *DockerPublisherConfig) {
	c.Runner = w.Runner
}

type WithFs struct{ Fs afero.Fs }

func (w WithFs) ConfigureDockerPublisher(c *DockerPublisherConfig) {
	c.Fs = w.Fs
}

func (w WithFs) ConfigureCranePublisher(c *CranePublisherConfig) {
	c.Fs = w.Fs
}

type WithWorkdir string

func (w WithWorkdir) ConfigureDockerPublisher(c *DockerPublisherConfig) {
	c.Workdir = string(w)
}

func (w WithWorkdir) ConfigureCranePublisher(c *CranePublisherConfig) {
	c.Workdir = string(w)
}

type WithCraneOptions []crane.Option

func (w WithCraneOptions) ConfigureCranePublisher(c *CranePublisherConfig) {
	c.CraneOptions = append(c.CraneOptions, w...)
}

func (w WithCraneOptions) ConfigureRemoteInspector(c *RemoteInspectorConfig) {
	c.CraneOptions = append(c.CraneOptions, w...)
}
