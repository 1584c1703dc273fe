package familycmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"containerdisk.run/cmd/containerdisk/rootcmd"
)

// Runner takes one family through the whole pipeline.
type Runner interface {
	Run(ctx context.Context, build FamilyBuilder) error
}

// NewCmds returns one pipeline subcommand per supported family.
func NewCmds(runner Runner, opts *rootcmd.GlobalOptions, env *rootcmd.Env) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(Families))
	for _, f := range Families {
		cmds = append(cmds, NewCmd(f, runner, opts, env))
	}

	return cmds
}

func NewCmd(f Family, runner Runner, opts *rootcmd.GlobalOptions, env *rootcmd.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   f.Use,
		Short: "Resolve, repackage and publish " + f.Short,
		Args:  cobra.NoArgs,
	}

	build := f.Bind(cmd.Flags(), env)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := opts.Validate(); err != nil {
			return err
		}
		if err := runner.Run(cmd.Context(), build); err != nil {
			return fmt.Errorf("running %s: %w", f.Use, err)
		}

		return nil
	}

	return cmd
}
