//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/magefile/mage/sh"
	"golang.org/x/mod/semver"
)

// applicationVersion is taken from VERSION or git describe and must be
// valid semver. Untagged checkouts become v0.0.0 pre-releases.
func applicationVersion() string {
	v, fromEnv := os.LookupEnv("VERSION")
	if !fromEnv {
		out, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
		must(err)
		v = strings.TrimSpace(out)
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !fromEnv && !semver.IsValid(v) {
		v = "v0.0.0-" + strings.TrimPrefix(v, "v")
	}
	if !semver.IsValid(v) {
		panic(fmt.Errorf("version %q is not valid semver", v))
	}

	return v
}
