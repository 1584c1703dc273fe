package familycmd

import (
	"fmt"

	"github.com/spf13/pflag"

	"containerdisk.run/cmd/containerdisk/rootcmd"
	"containerdisk.run/internal/distro"
)

// FamilyBuilder constructs a family from the parsed flags once the
// upstream sources are known.
type FamilyBuilder func(src distro.Sources) (distro.Family, error)

// Family describes the subcommand of one distribution family.
type Family struct {
	Use   string
	Short string
	// Bind registers the family flags and returns the builder reading them.
	Bind func(flags *pflag.FlagSet, env *rootcmd.Env) FamilyBuilder
}

// Families lists all supported distribution families.
var Families = []Family{
	{
		Use:   "debian",
		Short: "Debian generic cloud images from the daily builds",
		Bind: func(flags *pflag.FlagSet, env *rootcmd.Env) FamilyBuilder {
			var release, variant, mirror string
			releaseFlag(flags, env, &release, distro.DefaultDebianRelease)
			variantFlag(flags, env, &variant, distro.DefaultDebianVariant)
			flags.StringVar(&mirror, "mirror", env.String("DEBIAN_MIRROR", distro.DefaultDebianMirror), "Debian cloud image mirror.")

			return func(src distro.Sources) (distro.Family, error) {
				return distro.NewDebian(release, variant, mirror, src), nil
			}
		},
	},
	{
		Use:   "ubuntu",
		Short: "Ubuntu cloud images",
		Bind: func(flags *pflag.FlagSet, env *rootcmd.Env) FamilyBuilder {
			var release, mirror string
			releaseFlag(flags, env, &release, distro.DefaultUbuntuRelease)
			flags.StringVar(&mirror, "mirror", env.String("UBUNTU_MIRROR", distro.DefaultUbuntuMirror), "Ubuntu cloud image mirror.")

			return func(src distro.Sources) (distro.Family, error) {
				return distro.NewUbuntu(release, mirror, src), nil
			}
		},
	},
	{
		Use:   "fedora",
		Short: "Fedora Cloud Base images",
		Bind: func(flags *pflag.FlagSet, env *rootcmd.Env) FamilyBuilder {
			var release, mirror string
			releaseFlag(flags, env, &release, distro.DefaultFedoraRelease)
			flags.StringVar(&mirror, "mirror", env.String("FEDORA_MIRROR", distro.DefaultFedoraMirror), "Fedora mirror.")

			return func(src distro.Sources) (distro.Family, error) {
				return distro.NewFedora(release, mirror, src), nil
			}
		},
	},
	{
		Use:   "rocky",
		Short: "Rocky Linux generic cloud images, falling back to the vault",
		Bind: func(flags *pflag.FlagSet, env *rootcmd.Env) FamilyBuilder {
			var release, variant, mirror, vault string
			releaseFlag(flags, env, &release, distro.DefaultRockyRelease)
			variantFlag(flags, env, &variant, distro.DefaultRockyVariant)
			flags.StringVar(&mirror, "rocky-mirror", env.String("ROCKY_MIRROR", distro.DefaultRockyMirror), "Rocky Linux mirror.")
			flags.StringVar(&vault, "rocky-vault-mirror",
				env.String("ROCKY_VAULT_MIRROR", distro.DefaultRockyVaultMirror), "Rocky Linux vault mirror.")

			return func(src distro.Sources) (distro.Family, error) {
				return distro.NewRocky(release, variant, mirror, vault, src), nil
			}
		},
	},
	{
		Use:   "armbian",
		Short: "Armbian UEFI cloud images from GitHub releases",
		Bind: func(flags *pflag.FlagSet, env *rootcmd.Env) FamilyBuilder {
			var release, branch string
			releaseFlag(flags, env, &release, distro.DefaultArmbianRelease)
			flags.StringVar(&branch, "branch", env.String("BRANCH", distro.DefaultArmbianBranch), "Armbian kernel branch.")

			return func(src distro.Sources) (distro.Family, error) {
				return distro.NewArmbian(release, branch, src), nil
			}
		},
	},
	{
		Use:   "fatso",
		Short: "fatso images from GitHub releases",
		Bind: func(flags *pflag.FlagSet, env *rootcmd.Env) FamilyBuilder {
			var flavor, fid string
			flags.StringVar(&flavor, "flavor", env.String("FLAVOR", ""), "Image flavor, required.")
			flags.StringVar(&fid, "fid", env.String("FID", ""), "Release identifier used in tags and the image name, required.")

			return func(src distro.Sources) (distro.Family, error) {
				if flavor == "" || fid == "" {
					return nil, fmt.Errorf("%w: fatso needs --flavor and --fid", rootcmd.ErrInvalidArgs)
				}

				return distro.NewFatso(flavor, fid, src), nil
			}
		},
	},
}

func releaseFlag(flags *pflag.FlagSet, env *rootcmd.Env, dst *string, def string) {
	flags.StringVar(dst, "release", env.String("RELEASE", def), "Distribution release.")
}

func variantFlag(flags *pflag.FlagSet, env *rootcmd.Env, dst *string, def string) {
	flags.StringVar(dst, "variant", env.String("VARIANT", def), "Image variant.")
}
