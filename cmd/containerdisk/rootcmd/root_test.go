package rootcmd

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"containerdisk.run/internal/distro"
)

func TestProvideRootCmd(t *testing.T) {
	t.Parallel()

	opts := &GlobalOptions{}
	params := Params{
		Streams: IOStreams{
			In:     &bytes.Buffer{},
			Out:    &bytes.Buffer{},
			ErrOut: &bytes.Buffer{},
		},
		Args:    []string{"noop", "--workdir", "/data", "-v", "2"},
		Options: opts,
		Env:     NewEnv(viper.New()),
		SubCommands: []*cobra.Command{
			{Use: "noop", Run: func(*cobra.Command, []string) {}},
		},
	}

	cmd := ProvideRootCmd(params)

	assert.Same(t, params.Streams.In, cmd.InOrStdin())
	assert.Same(t, params.Streams.Out, cmd.OutOrStdout())
	assert.Same(t, params.Streams.ErrOut, cmd.ErrOrStderr())

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "/data", opts.Workdir)
	assert.Equal(t, 2, opts.Verbosity)
	assert.Equal(t, PublisherDocker, opts.Publisher)
	assert.Equal(t, distro.DefaultBaseOCIRef, opts.BaseOCIRef)
}

func TestGlobalOptions_EnvDefaults(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("PUBLISHER", "crane")
	v.Set("NBD_FIRST_SLOT", "5")
	v.Set("INSECURE_REGISTRY", "true")

	var opts GlobalOptions
	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	opts.AddFlags(cmd.Flags(), NewEnv(v))
	cmd.SetArgs([]string{"--nbd-first-slot", "7"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, PublisherCrane, opts.Publisher)
	assert.True(t, opts.InsecureRegistry)
	// Flags win over the environment.
	assert.Equal(t, 7, opts.NBDFirstSlot)
}

func TestGlobalOptions_Validate(t *testing.T) {
	t.Parallel()

	valid := GlobalOptions{Workdir: ".", Publisher: PublisherDocker, NBDFirstSlot: 2}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		modify func(o *GlobalOptions)
	}{
		{name: "publisher", modify: func(o *GlobalOptions) { o.Publisher = "podman" }},
		{name: "slot", modify: func(o *GlobalOptions) { o.NBDFirstSlot = 0 }},
		{name: "workdir", modify: func(o *GlobalOptions) { o.Workdir = "" }},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			o := valid
			test.modify(&o)
			require.ErrorIs(t, o.Validate(), ErrInvalidArgs)
		})
	}
}

func TestGlobalOptions_Refs(t *testing.T) {
	t.Parallel()

	o := GlobalOptions{BaseOCIRef: "reg/", KernelOCIRef: "other/kernel"}
	assert.Equal(t, distro.Refs{Base: "reg/", Kernel: "other/kernel"}, o.Refs())
}
