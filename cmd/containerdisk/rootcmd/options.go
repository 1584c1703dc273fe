package rootcmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"containerdisk.run/internal/distro"
	"containerdisk.run/internal/pipeline"
)

const (
	PublisherDocker = "docker"
	PublisherCrane  = "crane"
)

// GlobalOptions are shared by all subcommands and bound to persistent flags
// of the root command.
type GlobalOptions struct {
	Workdir          string
	BaseOCIRef       string
	DiskOCIRef       string
	KernelOCIRef     string
	GitHubToken      string
	GitHubOutput     string
	Publisher        string
	InsecureRegistry bool
	MetricsTextfile  string
	NBDFirstSlot     int
	DryRun           bool
	Verbosity        int
}

func (o *GlobalOptions) AddFlags(flags *pflag.FlagSet, env *Env) {
	flags.StringVar(
		&o.Workdir,
		"workdir",
		env.String("WORKDIR", "."),
		"Directory for downloaded images, extracted kernels and the lookup cache.",
	)
	flags.StringVar(
		&o.BaseOCIRef,
		"base-oci-ref",
		env.String("BASE_OCI_REF", distro.DefaultBaseOCIRef),
		"Registry prefix default image references are derived from.",
	)
	flags.StringVar(
		&o.DiskOCIRef,
		"disk-oci-ref",
		env.String("DISK_OCI_REF", ""),
		"Reference of the disk image, without tag. Defaults to <base-oci-ref><family>-cloud-container-disk.",
	)
	flags.StringVar(
		&o.KernelOCIRef,
		"kernel-oci-ref",
		env.String("KERNEL_OCI_REF", ""),
		"Reference of the kernel image, without tag. Defaults to <base-oci-ref><family>-cloud-kernel-kv.",
	)
	flags.StringVar(
		&o.GitHubToken,
		"github-token",
		env.String("GITHUB_TOKEN", ""),
		"Token used for GitHub release lookups.",
	)
	flags.StringVar(
		&o.GitHubOutput,
		"github-output",
		env.String("GITHUB_OUTPUT", ""),
		"File name=value outputs are appended to. Outputs are only logged when empty.",
	)
	flags.StringVar(
		&o.Publisher,
		"publisher",
		env.String("PUBLISHER", PublisherDocker),
		strings.Join([]string{
			"How images are built and pushed.",
			`"docker" drives the docker CLI,`,
			`"crane" builds and pushes in process.`,
		}, " "),
	)
	flags.BoolVar(
		&o.InsecureRegistry,
		"insecure-registry",
		env.Bool("INSECURE_REGISTRY", false),
		"Allow plain HTTP registries for inspection and the crane publisher.",
	)
	flags.StringVar(
		&o.MetricsTextfile,
		"metrics-textfile",
		env.String("METRICS_TEXTFILE", ""),
		"Write stage metrics in Prometheus text format to this file.",
	)
	flags.IntVar(
		&o.NBDFirstSlot,
		"nbd-first-slot",
		env.Int("NBD_FIRST_SLOT", pipeline.DefaultFirstSlot),
		"First /dev/nbdN slot handed out, incremented per architecture.",
	)
	flags.BoolVar(
		&o.DryRun,
		"dry-run",
		env.Bool("DRY_RUN", false),
		"Stop after resolving versions and checking the registry.",
	)
	flags.IntVarP(
		&o.Verbosity,
		"verbosity",
		"v",
		env.Int("VERBOSITY", 0),
		"Log verbosity, 0 logs info and above.",
	)
}

// Validate checks option values flags cannot constrain.
func (o *GlobalOptions) Validate() error {
	switch o.Publisher {
	case PublisherDocker, PublisherCrane:
	default:
		return fmt.Errorf("%w: unknown publisher %q", ErrInvalidArgs, o.Publisher)
	}
	if o.NBDFirstSlot < 1 {
		return fmt.Errorf("%w: nbd-first-slot must be positive", ErrInvalidArgs)
	}
	if o.Workdir == "" {
		return fmt.Errorf("%w: workdir must not be empty", ErrInvalidArgs)
	}

	return nil
}

// Refs returns the image references configured for all distributions.
func (o *GlobalOptions) Refs() distro.Refs {
	return distro.Refs{
		Base:   o.BaseOCIRef,
		Disk:   o.DiskOCIRef,
		Kernel: o.KernelOCIRef,
	}
}

// Env supplies flag defaults from environment variables.
type Env struct {
	v *viper.Viper
}

func NewEnv(v *viper.Viper) *Env {
	v.AutomaticEnv()

	return &Env{v: v}
}

func (e *Env) String(key, def string) string {
	e.bind(key, def)
	return e.v.GetString(key)
}

func (e *Env) Bool(key string, def bool) bool {
	e.bind(key, def)
	return e.v.GetBool(key)
}

func (e *Env) Int(key string, def int) int {
	e.bind(key, def)
	return e.v.GetInt(key)
}

func (e *Env) bind(key string, def any) {
	e.v.SetDefault(key, def)
	// BindEnv only fails without a key.
	_ = e.v.BindEnv(key)
}
