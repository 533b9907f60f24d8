package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/modules/mirror/render"
)

func newRenderCmd(root *rootOptions) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "render <schema.yaml|json> <values.yaml|json>",
		Short: "Render a sheet from a schema and a value map",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var schema mirror.Schema
			if err := readDoc(args[0], &schema); err != nil {
				return fmt.Errorf("read schema: %w", err)
			}
			values := mirror.ValueMap{}
			if err := readDoc(args[1], &values); err != nil {
				return fmt.Errorf("read values: %w", err)
			}
			res, err := render.Render(&schema, values, render.Options{OutputDir: outDir})
			if err != nil {
				return err
			}
			return writeDoc(cmd.OutOrStdout(), root.format, res)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", ".", "directory for the rendered file")
	return cmd
}
