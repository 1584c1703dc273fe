//go:build mage
// +build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Test mg.Namespace

// Runs linters.
func (Test) Lint() { mg.SerialDeps(Test.GolangCILint, Test.GoModTidy) }

func (Test) GolangCILint() {
	must(sh.RunV("golangci-lint", "run", "./...", "--deadline=15m"))
}

func (Test) GoModTidy() {
	must(sh.RunV("go", "mod", "tidy"))
}

// Runs unittests.
func (Test) Unit() {
	// cgo needed to enable race detector -race
	must(sh.RunWithV(map[string]string{"CGO_ENABLED": "1"},
		"go", "test", "-cover", "-race", "./internal/...", "./cmd/..."))
}
