package templatecmd

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"containerdisk.run/cmd/containerdisk/familycmd"
	"containerdisk.run/cmd/containerdisk/rootcmd"
	"containerdisk.run/internal/distro"
	"containerdisk.run/internal/kubevirt"
)

func NewCmd(globals *rootcmd.GlobalOptions, env *rootcmd.Env) *cobra.Command {
	const (
		templateUse   = "template"
		templateShort = "print an example KubeVirt VirtualMachine booting the published images"
	)

	cmd := &cobra.Command{
		Use:   templateUse,
		Short: templateShort,
	}

	var opts options

	opts.AddFlags(cmd.PersistentFlags())

	for _, f := range familycmd.Families {
		cmd.AddCommand(newFamilyCmd(f, globals, env, &opts))
	}

	return cmd
}

func newFamilyCmd(f familycmd.Family, globals *rootcmd.GlobalOptions, env *rootcmd.Env, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   f.Use,
		Short: "VirtualMachine for " + f.Short,
		Args:  cobra.NoArgs,
	}

	build := f.Bind(cmd.Flags(), env)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		// Templates never resolve, so no upstream sources are needed.
		family, err := build(distro.Sources{})
		if err != nil {
			return err
		}
		d := distro.New(family, globals.Refs(), logr.Discard())

		params := kubevirt.ParamsFor(d)
		if opts.Name != "" {
			params.Name = opts.Name
		}
		params.Namespace = opts.Namespace
		params.Memory = opts.Memory
		if opts.Tag != "" {
			params.DiskImage = d.DiskRef() + ":" + opts.Tag
			params.KernelImage = d.KernelRef() + ":" + opts.Tag
		}

		vm, err := kubevirt.VirtualMachine(params)
		if err != nil {
			return fmt.Errorf("building virtual machine: %w", err)
		}
		out, err := kubevirt.Marshal(vm)
		if err != nil {
			return fmt.Errorf("marshaling virtual machine: %w", err)
		}
		if _, err := cmd.OutOrStdout().Write(out); err != nil {
			return fmt.Errorf("printing to out stream: %w", err)
		}

		return nil
	}

	return cmd
}

type options struct {
	Name      string
	Namespace string
	Memory    string
	Tag       string
}

func (o *options) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(
		&o.Name,
		"name",
		o.Name,
		"Name of the VirtualMachine. Defaults to the distribution slug.",
	)
	flags.StringVarP(
		&o.Namespace,
		"namespace",
		"n",
		o.Namespace,
		"Namespace of the VirtualMachine. Defaults to none.",
	)
	flags.StringVar(
		&o.Memory,
		"memory",
		kubevirt.DefaultMemory,
		"Memory requested by the VirtualMachine.",
	)
	flags.StringVar(
		&o.Tag,
		"tag",
		o.Tag,
		"Image tag to boot. Defaults to the floating latest tag.",
	)
}
