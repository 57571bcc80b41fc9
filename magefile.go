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

func Build() error {
	mg.Deps(BuildRawdataCopy)
	fmt.Println("Compilation finished")
	return nil
}

func BuildRawdataCopy() error {
	fmt.Println("Building rawdatacopy executable...")
	return goCommand(false, "build", "-o", "./bin/rawdatacopy", "./rawdatacopy")
}

// BuildHDF5 builds rawdatacopy with the HDF5 container engine.
func BuildHDF5() error {
	fmt.Println("Building rawdatacopy executable with HDF5 support...")
	return goCommand(true, "build", "-tags", "hdf5", "-o", "./bin/rawdatacopy", "./rawdatacopy")
}

func Test() error {
	fmt.Println("Running tests...")
	return goCommand(false, "test", "./...")
}

// TestHDF5 also runs the tests of the HDF5 engine. It needs the HDF5
// library, found through CGO_CFLAGS and CGO_LDFLAGS.
func TestHDF5() error {
	mg.Deps(Test)
	fmt.Println("Running HDF5 tests...")
	return goCommand(true, "test", "-tags", "hdf5", "./pkg/container/h5store/...", "./rawdatacopy/...")
}

func goCommand(cgo bool, args ...string) error {
	cmd := exec.Command("go", args...)
	cmd.Env = os.Environ()
	if cgo {
		ldflags := os.Getenv("CGO_LDFLAGS")
		cflags := os.Getenv("CGO_CFLAGS")
		cmd.Env = append(cmd.Env,
			"CGO_ENABLED=1",
			fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
			fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
