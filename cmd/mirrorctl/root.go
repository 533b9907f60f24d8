package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	format string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "mirrorctl",
		Short:         "Learn and render mirror templates from local files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.format, "output", "o", formatYAML, "output format: yaml or json")

	cmd.AddCommand(
		newLearnCmd(opts),
		newFingerprintCmd(opts),
		newMatchCmd(opts),
		newRenderCmd(opts),
	)
	return cmd
}
