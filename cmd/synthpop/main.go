// Command synthpop builds and runs the synthetic-population epidemic
// simulator.
package main

import (
	"fmt"
	"os"

	"github.com/dsnet-sim/synthpop/synthpoputil"
)

func main() {
	if err := synthpoputil.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
