// Package cli implements hustlexpd's command-line surface: serve, worker,
// migrate, and version, mirroring the teacher's cobra-based internal/cli
// package retargeted from XRPL node subcommands to the marketplace core's
// server/worker processes.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "hustlexpd",
	Short: "hustlexpd - HustleXP transactional core",
	Long: `hustlexpd is the transactional core of the HustleXP task marketplace:
task lifecycle, escrow custody, trust/eligibility, disputes, and the XP/tax
ledger, fronted by a thin internal gRPC edge.`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path (default hustlexpd.toml)")
}
