package versioncmd

import (
	"bytes"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"containerdisk.run/internal/version"
)

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Empty(t, stderr.String())
	assert.Regexp(t, `^containerdisk \S+ \(`, stdout.String())
	assert.Contains(t, stdout.String(), runtime.Version())
}

func TestVersionCmdRejectsArgs(t *testing.T) {
	t.Parallel()

	cmd := NewCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})

	require.Error(t, cmd.Execute())
}

func TestPrintInfoDeps(t *testing.T) {
	t.Parallel()

	info := version.Info{
		Version:   "v0.3.0",
		Commit:    "1a2b3c4d5e6f",
		GoVersion: "go1.22.1",
		Deps: []*debug.Module{
			{Path: "github.com/google/go-containerregistry", Version: "v0.20.2"},
			{Path: "github.com/spf13/afero", Version: "v1.11.0", Replace: &debug.Module{Path: "../afero", Version: ""}},
		},
	}

	var out bytes.Buffer
	printInfo(&out, info, options{})
	assert.Equal(t, "containerdisk v0.3.0 (1a2b3c4d5e6f, go1.22.1)\n", out.String())

	out.Reset()
	printInfo(&out, info, options{Deps: true})
	assert.Equal(t, "containerdisk v0.3.0 (1a2b3c4d5e6f, go1.22.1)\n"+
		"  github.com/google/go-containerregistry v0.20.2\n"+
		"  github.com/spf13/afero v1.11.0 => ../afero\n", out.String())
}
