package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medvis/chexray/vision/dataset"
)

// statsCmd prints the dataset statistics a training run would use
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show class counts, loss weights and step counts for the configured dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Data.TrainDir == "" || cfg.Data.ValDir == "" {
			return fmt.Errorf("data.train_dir and data.val_dir must be configured")
		}

		stats, err := dataset.Collect(cfg.Data.TrainDir, cfg.Data.ValDir,
			dataset.DefaultClassMap, cfg.Training.BatchSize, cfg.Training.ValBatchSize)
		if err != nil {
			return err
		}

		fmt.Printf("training samples: %d\n", stats.Total)
		for i, name := range dataset.DefaultClassMap {
			fmt.Printf("  %-10s %d\n", name, stats.Counts[i])
		}
		fmt.Printf("validation samples: %d\n", stats.ValTotal)
		fmt.Printf("loss weights: w0=%.6f w1=%.6f\n", stats.Weights.W0, stats.Weights.W1)
		fmt.Printf("steps per epoch: train=%d val=%d\n", stats.TrainSteps, stats.ValSteps)
		return nil
	},
}
