package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newAggregateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate <isrc>",
		Short: "Look up an ISRC across all sources and print the reconciled record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.aggregator.Aggregate(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}
