package main

import (
	"os"
	"os/exec"

	"github.com/goyek/goyek/v2"
)

func run(a *goyek.A, name string, args ...string) {
	a.Helper()
	cmd := exec.CommandContext(a.Context(), name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		a.Error(err)
	}
}

var vet = goyek.Define(goyek.Task{
	Name:  "vet",
	Usage: "Run go vet on all packages",
	Action: func(a *goyek.A) {
		run(a, "go", "vet", "./...")
	},
})

var test = goyek.Define(goyek.Task{
	Name:  "test",
	Usage: "Run the tests of all packages",
	Action: func(a *goyek.A) {
		run(a, "go", "test", "-race", "./...")
	},
})

var buildCLI = goyek.Define(goyek.Task{
	Name:  "build",
	Usage: "Build the perfcollector binary",
	Action: func(a *goyek.A) {
		run(a, "go", "build", "-o", "bin/perfcollector", "./cmd/perfcollector")
	},
})

var _ = goyek.Define(goyek.Task{
	Name:  "all",
	Usage: "Vet, test and build",
	Deps:  goyek.Deps{vet, test, buildCLI},
})

func main() {
	goyek.Main(os.Args[1:])
}
