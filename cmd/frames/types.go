package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/frames/internal/serialize"
)

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered type names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range serialize.DefaultRegistry.Names() {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t0x%016x\n", name, serialize.TypeCode(name)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
