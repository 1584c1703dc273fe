package rootcmd

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/dig"

	"containerdisk.run/internal/version"
)

type Params struct {
	dig.In

	Streams     IOStreams
	Args        []string
	Options     *GlobalOptions
	Env         *Env
	SubCommands []*cobra.Command `group:"rootSubCommands"`
}

type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

func ProvideRootCmd(params Params) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "containerdisk",
		Short:        "repackage cloud images into multi-arch container disk and kernel images",
		Version:      version.Get().String(),
		SilenceUsage: true,
	}
	cmd.SetIn(params.Streams.In)
	cmd.SetOut(params.Streams.Out)
	cmd.SetErr(params.Streams.ErrOut)
	cmd.SetArgs(params.Args)
	params.Options.AddFlags(cmd.PersistentFlags(), params.Env)

	for _, sub := range params.SubCommands {
		cmd.AddCommand(sub)
	}

	return cmd
}
