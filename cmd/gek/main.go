// gek runs design-of-experiments campaigns for an adjoint CFD solver.
package main

import (
	"os"

	"github.com/gekflow/gek/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
