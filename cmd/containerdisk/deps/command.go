package deps

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/dig"

	"containerdisk.run/cmd/containerdisk/familycmd"
	"containerdisk.run/cmd/containerdisk/rootcmd"
	"containerdisk.run/cmd/containerdisk/templatecmd"
	"containerdisk.run/cmd/containerdisk/versioncmd"
)

func ProvideIOStreams() rootcmd.IOStreams {
	return rootcmd.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

func ProvideArgs() []string {
	return os.Args[1:]
}

func ProvideGlobalOptions() *rootcmd.GlobalOptions {
	return &rootcmd.GlobalOptions{}
}

func ProvideEnv() *rootcmd.Env {
	return rootcmd.NewEnv(viper.New())
}

type RootSubCommandResult struct {
	dig.Out

	SubCommand *cobra.Command `group:"rootSubCommands"`
}

type RootSubCommandsResult struct {
	dig.Out

	SubCommands []*cobra.Command `group:"rootSubCommands,flatten"`
}

func ProvideFamilyCmds(runner familycmd.Runner, opts *rootcmd.GlobalOptions, env *rootcmd.Env) RootSubCommandsResult {
	return RootSubCommandsResult{
		SubCommands: familycmd.NewCmds(runner, opts, env),
	}
}

func ProvideTemplateCmd(opts *rootcmd.GlobalOptions, env *rootcmd.Env) RootSubCommandResult {
	return RootSubCommandResult{
		SubCommand: templatecmd.NewCmd(opts, env),
	}
}

func ProvideVersionCmd() RootSubCommandResult {
	return RootSubCommandResult{
		SubCommand: versioncmd.NewCmd(),
	}
}
