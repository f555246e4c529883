//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

// Build compiles the muonbar executable into ./bin
func Build() error {
	mg.Deps(BuildMuonbar)
	fmt.Println("Compilation finished")
	return nil
}

// HDF5 is linked through cgo, so CGO_CFLAGS/CGO_LDFLAGS from the
// environment are passed through.
func BuildMuonbar() error {
	fmt.Println("Building muonbar executable...")
	return goCommand("build", "-o", "./bin/muonbar", "./muonbar")
}

// Test runs the unit tests of every package.
func Test() error {
	return goCommand("test", "./...")
}

func goCommand(args ...string) error {
	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=1",
		fmt.Sprintf("CGO_LDFLAGS=%s", os.Getenv("CGO_LDFLAGS")),
		fmt.Sprintf("CGO_CFLAGS=%s", os.Getenv("CGO_CFLAGS")))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
