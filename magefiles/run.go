//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the demo on the software backend.
func (Run) Demo() error {
	mg.Deps(Build.All)
	fmt.Println("Run demo...")
	if _, err := executeCmd("go", withArgs("run", ".", "-frames", "120"), withStream()); err != nil {
		return err
	}
	return nil
}
