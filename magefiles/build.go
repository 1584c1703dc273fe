//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	module  = "containerdisk.run"
	command = "containerdisk"
)

type archTarget struct {
	OS   string
	Arch string
}

var (
	nativeArch = archTarget{runtime.GOOS, runtime.GOARCH}
	// Block device handling only works on linux.
	releaseArchitectures = []archTarget{
		{"linux", "amd64"},
		{"linux", "arm64"},
	}
)

type Build mg.Namespace

// Builds the containerdisk binary for the architecture of this machine.
func (Build) Native() {
	mg.Deps(mg.F(Build.Binary, nativeArch.OS, nativeArch.Arch))
}

// Builds the containerdisk binary for all release architectures and
// copies them to bin/.
func (Build) ReleaseBinaries() {
	targets := []any{}
	for _, arch := range releaseArchitectures {
		targets = append(targets, mg.F(Build.Binary, arch.OS, arch.Arch))
	}
	mg.Deps(targets...)

	for _, arch := range releaseArchitectures {
		dst := filepath.Join("bin", fmt.Sprintf("%s_%s_%s", command, arch.OS, arch.Arch))
		must(sh.Copy(dst, binaryDst(arch)))
	}
}

// Builds the binary from cmd/containerdisk.
func (Build) Binary(goos, goarch string) {
	env := map[string]string{
		"GOOS":   goos,
		"GOARCH": goarch,
	}
	if _, cgoOK := os.LookupEnv("CGO_ENABLED"); !cgoOK {
		env["CGO_ENABLED"] = "0"
	}

	ldflags := "-w -s --extldflags '-zrelro -znow -O1' " +
		fmt.Sprintf("-X '%s/internal/version.version=%s'", module, applicationVersion())
	cmdline := []string{
		"build", "--ldflags", ldflags, "--trimpath", "--mod=readonly", "-v",
		"-o", binaryDst(archTarget{goos, goarch}), "./cmd/" + command,
	}

	if err := sh.RunWithV(env, "go", cmdline...); err != nil {
		panic(fmt.Errorf("compiling cmd/%s: %w", command, err))
	}
}

func binaryDst(arch archTarget) string {
	return filepath.Join(".cache", "bin", arch.OS+"_"+arch.Arch, command)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
