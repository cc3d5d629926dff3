package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func retrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retrain",
		Short: "Train a new model bundle from the seed corpus and persist it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, container, _, _, err := wire(cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			b, err := container.Calculator.Retrain(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Trained bundle %s\n", b.ID)
			fmt.Fprintf(out, "  Schema:   %s (%d features)\n", b.SchemaVersion, b.FeatureCount)
			fmt.Fprintf(out, "  Corpus:   %s\n", b.CorpusVersion)
			fmt.Fprintf(out, "  Saved to: %s\n", container.ModelStore.Dir())
			return nil
		},
	}
}
