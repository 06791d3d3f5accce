package main

import (
	"fmt"
	"os"

	"github.com/igor-laevsky/gojvm-core/pkg/classfile"
	"github.com/igor-laevsky/gojvm-core/pkg/verifier"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <class-file>",
	Short: "Decode and verify a single .class file without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		cls, err := classfile.Decode(f)
		if err != nil {
			return err
		}

		if err := verifier.VerifyClass(cls); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: FAIL: %v\n", cls.Name, err)
			os.Exit(1)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", cls.Name)
		return nil
	},
}
