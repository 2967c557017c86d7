package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	release = "0.0.0"
	commit  = ""
)

func main() {

	commandInit()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}

	os.Exit(errorStatusCode)

}

var rootCmd = &cobra.Command{
	Use:   "tspbuild",
	Short: "Builds and inspects time-space partitioning trees for volumetric datasets",
	Long: `tspbuild turns a raw volumetric timeseries into a TSP tree file: a full
octree over each timestep folded into a per-node time binary search tree, so
a renderer can fetch any (space, time) resolution pair directly by seeking.`,
}
