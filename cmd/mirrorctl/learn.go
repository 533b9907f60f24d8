package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/modules/mirror/classify"
	"github.com/yungbote/sheetmirror-backend/internal/modules/mirror/fingerprint"
	"github.com/yungbote/sheetmirror-backend/internal/modules/mirror/layout"
)

func newLearnCmd(root *rootOptions) *cobra.Command {
	var sheet, client, id string
	var raw bool
	cmd := &cobra.Command{
		Use:   "learn <file.xlsx>",
		Short: "Print the draft schema learned from a filled sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			learned, err := layout.LearnFile(args[0], layout.Options{Sheet: sheet})
			if err != nil {
				return err
			}
			if raw {
				return writeDoc(cmd.OutOrStdout(), root.format, learned)
			}
			if id == "" {
				id = "draft"
			}
			draft := classify.Classify(learned, classify.Options{ID: id, ClientKey: client})
			draft.Fingerprint = fingerprint.Compute(learned)
			return writeDoc(cmd.OutOrStdout(), root.format, draft)
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet name (default: active sheet)")
	cmd.Flags().StringVar(&client, "client", "", "client key stored on the draft")
	cmd.Flags().StringVar(&id, "id", "", "id for the draft schema")
	cmd.Flags().BoolVar(&raw, "layout", false, "print the learned cell layout instead of a schema")
	return cmd
}

func newFingerprintCmd(root *rootOptions) *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "fingerprint <file.xlsx>",
		Short: "Print the layout fingerprint of a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			learned, err := layout.LearnFile(args[0], layout.Options{Sheet: sheet})
			if err != nil {
				return err
			}
			return writeDoc(cmd.OutOrStdout(), root.format, fingerprint.Compute(learned))
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet name (default: active sheet)")
	return cmd
}

type matchReport struct {
	Matched    bool    `json:"matched"`
	Similarity float64 `json:"similarity"`
	SameGrid   bool    `json:"sameGrid"`
}

func newMatchCmd(root *rootOptions) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "match <a.xlsx> <b.xlsx>",
		Short: "Report whether two sheets share a template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fps := make([]mirror.Fingerprint, 0, 2)
			for _, path := range args {
				learned, err := layout.LearnFile(path, layout.Options{})
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fps = append(fps, fingerprint.Compute(learned))
			}
			ok, score := fingerprint.Match(fps[0], fps[1], threshold)
			return writeDoc(cmd.OutOrStdout(), root.format, matchReport{
				Matched:    ok,
				Similarity: score,
				SameGrid:   fps[0].GridHash == fps[1].GridHash,
			})
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0.8, "minimum label-set similarity")
	return cmd
}
