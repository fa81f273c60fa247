package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/medvis/chexray/checkpoints"
	"github.com/medvis/chexray/model"
	"github.com/medvis/chexray/training"
	"github.com/medvis/chexray/vision/dataloader"
	"github.com/medvis/chexray/vision/dataset"
)

var checkpointFlag string

// evaluateCmd scores a saved checkpoint against the test split
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a saved checkpoint on the configured test split",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Data.TestDir == "" {
			return fmt.Errorf("data.test_dir must be configured")
		}

		path := checkpointFlag
		if path == "" {
			path = filepath.Join(cfg.Model.CheckpointDir, "best.json")
		}
		ckpt, err := checkpoints.Load(path)
		if err != nil {
			return err
		}

		model.SetRandomSeed(cfg.Model.Seed)
		clf, err := model.NewClassifier(model.NewPatchPoolBackbone(cfg.Model.BackboneGrid))
		if err != nil {
			return err
		}
		if err := ckpt.Apply(clf); err != nil {
			return err
		}

		testDS, err := dataset.NewImageFolderDataset(cfg.Data.TestDir, dataset.DefaultClassMap)
		if err != nil {
			return err
		}
		loader, err := dataloader.New(testDS, dataloader.Config{
			BatchSize: cfg.Training.ValBatchSize,
			ImageSize: cfg.Model.ImageSize,
			CacheSize: cfg.Training.CacheSize,
			Seed:      cfg.Model.Seed,
		})
		if err != nil {
			return err
		}

		steps := testDS.Len()/cfg.Training.ValBatchSize + 1
		cm := training.NewConfusionMatrix()
		for step := 0; step < steps; step++ {
			batch, err := loader.Next()
			if err != nil {
				return err
			}
			probs, err := clf.Forward(batch.Data)
			if err != nil {
				return err
			}
			if err := cm.Update(probs, batch.Labels); err != nil {
				return err
			}
		}

		fmt.Printf("checkpoint: %s (epoch %d, val_loss %.4f)\n",
			path, ckpt.TrainingState.Epoch, ckpt.TrainingState.BestLoss)
		fmt.Printf("samples:     %d\n", cm.Total())
		fmt.Printf("accuracy:    %.4f\n", cm.Accuracy())
		fmt.Printf("precision:   %.4f\n", cm.Precision())
		fmt.Printf("recall:      %.4f\n", cm.Recall())
		fmt.Printf("specificity: %.4f\n", cm.Specificity())
		fmt.Printf("f1:          %.4f\n", cm.F1())
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&checkpointFlag, "checkpoint", "", "checkpoint file to evaluate (defaults to <checkpoint_dir>/best.json)")
}
