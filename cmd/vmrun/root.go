// Command vmrun is a thin embedding program built on top of gojvm-core: it
// wires a classpath together, asks the class manager for a class, and
// either verifies it or runs it to completion. None of this logic lives in
// the core itself -- an embedder is expected to write its own equivalent of
// this file.
package main

import (
	"fmt"
	"os"

	"github.com/igor-laevsky/gojvm-core/pkg/config"
	"github.com/igor-laevsky/gojvm-core/pkg/vmlog"
	"github.com/spf13/cobra"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "vmrun",
	Short: "Load, verify and run class files on gojvm-core",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		cfg = loaded
		return vmlog.Init(cfg.LogLevel, cfg.LogJSON)
	},
}

func main() {
	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(runCmd, verifyCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
