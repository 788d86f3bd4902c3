package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFuncsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "funcs",
		Short: "List registered functions with their ids and signatures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for i, d := range a.reg.Defs() {
				fmt.Fprintf(out, "%4d  %s\n", i, d)
			}
			return nil
		},
	}
}
