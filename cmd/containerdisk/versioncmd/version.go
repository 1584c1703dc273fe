package versioncmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"containerdisk.run/internal/version"
)

func NewCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "version",
		Short: "print the containerdisk release, commit and Go version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printInfo(cmd.OutOrStdout(), version.Get(), opts)
		},
	}
	opts.AddFlags(cmd.Flags())

	return cmd
}

type options struct {
	Deps bool
}

func (o *options) AddFlags(flags *pflag.FlagSet) {
	flags.BoolVar(&o.Deps, "deps", o.Deps,
		"Also list the module versions compiled into the binary, e.g. go-containerregistry.")
}

func printInfo(out io.Writer, info version.Info, opts options) {
	fmt.Fprintln(out, "containerdisk", info)
	if !opts.Deps {
		return
	}
	for _, dep := range info.Deps {
		line := dep.Path + " " + dep.Version
		if r := dep.Replace; r != nil {
			line = strings.TrimSpace(line + " => " + r.Path + " " + r.Version)
		}
		fmt.Fprintln(out, " ", line)
	}
}
