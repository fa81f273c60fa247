package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/medvis/chexray/checkpoints"
	"github.com/medvis/chexray/history"
	"github.com/medvis/chexray/model"
	"github.com/medvis/chexray/training"
	"github.com/medvis/chexray/vision/dataloader"
	"github.com/medvis/chexray/vision/dataset"
)

// trainCmd runs the full training pipeline
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the pneumonia classifier on the configured dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Data.TrainDir == "" || cfg.Data.ValDir == "" {
			return fmt.Errorf("data.train_dir and data.val_dir must be configured")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		stats, err := dataset.Collect(cfg.Data.TrainDir, cfg.Data.ValDir,
			dataset.DefaultClassMap, cfg.Training.BatchSize, cfg.Training.ValBatchSize)
		if err != nil {
			return err
		}
		logger.Info("dataset statistics",
			zap.Ints("class_counts", stats.Counts),
			zap.Int("train_samples", stats.Total),
			zap.Int("val_samples", stats.ValTotal),
			zap.Float64("w0", stats.Weights.W0),
			zap.Float64("w1", stats.Weights.W1),
			zap.Int("train_steps", stats.TrainSteps),
			zap.Int("val_steps", stats.ValSteps))

		trainDS, err := dataset.NewImageFolderDataset(cfg.Data.TrainDir, dataset.DefaultClassMap)
		if err != nil {
			return err
		}
		valDS, err := dataset.NewImageFolderDataset(cfg.Data.ValDir, dataset.DefaultClassMap)
		if err != nil {
			return err
		}

		trainLoader, err := dataloader.New(trainDS, dataloader.Config{
			BatchSize: cfg.Training.BatchSize,
			ImageSize: cfg.Model.ImageSize,
			Shuffle:   true,
			Augment:   cfg.Training.Augment,
			CacheSize: cfg.Training.CacheSize,
			Seed:      cfg.Model.Seed,
		})
		if err != nil {
			return err
		}
		valLoader, err := dataloader.New(valDS, dataloader.Config{
			BatchSize: cfg.Training.ValBatchSize,
			ImageSize: cfg.Model.ImageSize,
			CacheSize: cfg.Training.CacheSize,
			Seed:      cfg.Model.Seed,
		})
		if err != nil {
			return err
		}

		model.SetRandomSeed(cfg.Model.Seed)
		clf, err := model.NewClassifier(model.NewPatchPoolBackbone(cfg.Model.BackboneGrid))
		if err != nil {
			return err
		}

		loss, err := training.NewWeightedBCELoss(stats.Weights.W0, stats.Weights.W1)
		if err != nil {
			return err
		}

		adamCfg := training.DefaultAdamConfig()
		adamCfg.LearningRate = cfg.Training.LearningRate
		adam, err := training.NewAdam(clf.Parameters(), adamCfg)
		if err != nil {
			return err
		}

		scheduler := training.NewReduceLROnPlateauScheduler(
			cfg.Training.PlateauFactor, cfg.Training.PlateauPatience, 1e-4, "min")

		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		runID, err := store.BeginRun(history.Run{
			Epochs:      cfg.Training.Epochs,
			BatchSize:   cfg.Training.BatchSize,
			BaseLR:      cfg.Training.LearningRate,
			ClassWeight: fmt.Sprintf("w0=%.6f,w1=%.6f", stats.Weights.W0, stats.Weights.W1),
		})
		if err != nil {
			return err
		}

		checkpointPath := filepath.Join(cfg.Model.CheckpointDir, "best.json")
		trainer, err := training.NewTrainer(clf, loss, adam, scheduler, training.TrainerConfig{
			Epochs:     cfg.Training.Epochs,
			TrainSteps: stats.TrainSteps,
			ValSteps:   stats.ValSteps,
			OnEpochEnd: func(m training.EpochMetrics) error {
				return store.RecordEpoch(runID, m)
			},
			OnBestValidation: func(m training.EpochMetrics) error {
				ckpt, err := checkpoints.FromClassifier(clf, checkpoints.TrainingState{
					Epoch:        m.Epoch,
					LearningRate: m.LearningRate,
					BestLoss:     m.ValLoss,
					BestAccuracy: m.ValAccuracy,
				})
				if err != nil {
					return err
				}
				return ckpt.Save(checkpointPath)
			},
		}, logger)
		if err != nil {
			return err
		}

		epochs, err := trainer.Fit(ctx, trainLoader, valLoader)
		if err != nil {
			return err
		}

		summary, err := training.Summarize(epochs)
		if err != nil {
			return err
		}
		if err := store.FinishRun(runID, summary); err != nil {
			return err
		}

		lossCurve := filepath.Join(cfg.Model.CheckpointDir, "loss.png")
		accCurve := filepath.Join(cfg.Model.CheckpointDir, "accuracy.png")
		if err := training.RenderLossCurve(epochs, lossCurve); err != nil {
			return err
		}
		if err := training.RenderAccuracyCurve(epochs, accCurve); err != nil {
			return err
		}

		logger.Info("training finished",
			zap.Int64("run_id", runID),
			zap.Int("best_epoch", summary.BestEpoch),
			zap.Float64("best_val_loss", summary.BestValLoss),
			zap.Float64("best_val_accuracy", summary.BestValAccuracy),
			zap.String("checkpoint", checkpointPath),
			zap.Duration("duration", summary.TotalDuration))
		return nil
	},
}
