package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/threatviz/cmd/threatviz/internal"
	"github.com/zero-day-ai/threatviz/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if current.flags != nil && current.flags.GetOutputFormat() == internal.FormatJSON {
			return internal.NewPrinter(internal.FormatJSON, cmd.OutOrStdout()).Value(version.Info())
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
		return err
	},
}
