package training

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/medvis/chexray/tensor"
	"github.com/medvis/chexray/vision/dataloader"
)

// Model is the trainable classifier seen by the trainer: a forward pass
// producing probabilities and an explicit backward pass accumulating
// gradients on its parameters.
type Model interface {
	Forward(images *tensor.Tensor) (*tensor.Tensor, error)
	Backward(gradOutput *tensor.Tensor) error
	Parameters() []*tensor.Tensor
}

// BatchSource produces batches indefinitely, cycling through its
// dataset when exhausted.
type BatchSource interface {
	Next() (*dataloader.Batch, error)
}

// EpochMetrics captures the results of one training epoch.
type EpochMetrics struct {
	Epoch         int
	TrainLoss     float64
	TrainAccuracy float64
	ValLoss       float64
	ValAccuracy   float64
	ValPrecision  float64
	ValRecall     float64
	ValF1         float64
	LearningRate  float64
	Duration      time.Duration
}

// TrainerConfig holds the step-driven training schedule. TrainSteps and
// ValSteps come from the dataset statistics, matching the
// count/batch + 1 convention.
type TrainerConfig struct {
	Epochs     int
	TrainSteps int
	ValSteps   int

	// OnEpochEnd, if set, is called after every epoch with its metrics.
	OnEpochEnd func(EpochMetrics) error

	// OnBestValidation, if set, is called whenever an epoch achieves a
	// new lowest validation loss. Used for save-best checkpointing.
	OnBestValidation func(EpochMetrics) error
}

// Trainer drives the training loop: forward, weighted loss, backward,
// optimizer step, per-epoch validation, plateau-based LR decay, and
// best-model callbacks.
type Trainer struct {
	model     Model
	loss      Loss
	optimizer Optimizer
	scheduler LRScheduler
	config    TrainerConfig
	logger    *zap.Logger

	bestValLoss float64
}

// NewTrainer assembles a trainer. A nil scheduler disables LR decay and
// a nil logger disables logging.
func NewTrainer(model Model, loss Loss, opt Optimizer, scheduler LRScheduler, config TrainerConfig, logger *zap.Logger) (*Trainer, error) {
	if model == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}
	if loss == nil {
		return nil, fmt.Errorf("loss cannot be nil")
	}
	if opt == nil {
		return nil, fmt.Errorf("optimizer cannot be nil")
	}
	if config.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", config.Epochs)
	}
	if config.TrainSteps <= 0 {
		return nil, fmt.Errorf("train steps must be positive, got %d", config.TrainSteps)
	}
	if config.ValSteps < 0 {
		return nil, fmt.Errorf("validation steps cannot be negative, got %d", config.ValSteps)
	}
	if scheduler == nil {
		scheduler = &NoOpScheduler{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Trainer{
		model:       model,
		loss:        loss,
		optimizer:   opt,
		scheduler:   scheduler,
		config:      config,
		logger:      logger,
		bestValLoss: math.Inf(1),
	}, nil
}

// Fit runs the full training schedule and returns per-epoch metrics.
// The context is checked between steps so training can be cancelled.
func (t *Trainer) Fit(ctx context.Context, trainData, valData BatchSource) ([]EpochMetrics, error) {
	history := make([]EpochMetrics, 0, t.config.Epochs)

	t.logger.Info("starting training",
		zap.Int("epochs", t.config.Epochs),
		zap.Int("train_steps", t.config.TrainSteps),
		zap.Int("val_steps", t.config.ValSteps),
		zap.Float64("learning_rate", t.optimizer.GetLR()),
		zap.String("scheduler", t.scheduler.GetName()))

	for epoch := 1; epoch <= t.config.Epochs; epoch++ {
		start := time.Now()

		trainLoss, trainAcc, err := t.trainEpoch(ctx, trainData)
		if err != nil {
			return history, fmt.Errorf("epoch %d training failed: %w", epoch, err)
		}

		var valLoss, valAcc float64
		valCM := NewConfusionMatrix()
		if t.config.ValSteps > 0 && valData != nil {
			valLoss, valAcc, err = t.validate(ctx, valData, valCM)
			if err != nil {
				return history, fmt.Errorf("epoch %d validation failed: %w", epoch, err)
			}
		}

		metrics := EpochMetrics{
			Epoch:         epoch,
			TrainLoss:     trainLoss,
			TrainAccuracy: trainAcc,
			ValLoss:       valLoss,
			ValAccuracy:   valAcc,
			ValPrecision:  valCM.Precision(),
			ValRecall:     valCM.Recall(),
			ValF1:         valCM.F1(),
			LearningRate:  t.optimizer.GetLR(),
			Duration:      time.Since(start),
		}
		history = append(history, metrics)

		t.logger.Info("epoch complete",
			zap.Int("epoch", epoch),
			zap.Float64("train_loss", trainLoss),
			zap.Float64("train_accuracy", trainAcc),
			zap.Float64("val_loss", valLoss),
			zap.Float64("val_accuracy", valAcc),
			zap.Float64("val_f1", metrics.ValF1),
			zap.Float64("learning_rate", metrics.LearningRate),
			zap.Duration("duration", metrics.Duration))

		if t.config.ValSteps > 0 && valLoss < t.bestValLoss {
			t.bestValLoss = valLoss
			t.logger.Info("new best validation loss",
				zap.Int("epoch", epoch),
				zap.Float64("val_loss", valLoss))
			if t.config.OnBestValidation != nil {
				if err := t.config.OnBestValidation(metrics); err != nil {
					return history, fmt.Errorf("best-model callback failed: %w", err)
				}
			}
		}

		if t.config.ValSteps > 0 {
			currentLR := t.optimizer.GetLR()
			newLR := t.scheduler.Step(valLoss, currentLR)
			if newLR != currentLR {
				t.logger.Info("reducing learning rate",
					zap.Float64("old", currentLR),
					zap.Float64("new", newLR))
				t.optimizer.SetLR(newLR)
			}
		}

		if t.config.OnEpochEnd != nil {
			if err := t.config.OnEpochEnd(metrics); err != nil {
				return history, fmt.Errorf("epoch callback failed: %w", err)
			}
		}
	}

	return history, nil
}

// BestValidationLoss returns the lowest validation loss seen so far.
func (t *Trainer) BestValidationLoss() float64 {
	return t.bestValLoss
}

func (t *Trainer) trainEpoch(ctx context.Context, data BatchSource) (float64, float64, error) {
	var totalLoss float64
	cm := NewConfusionMatrix()

	for step := 0; step < t.config.TrainSteps; step++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		batch, err := data.Next()
		if err != nil {
			return 0, 0, fmt.Errorf("step %d: %w", step, err)
		}

		probs, err := t.model.Forward(batch.Data)
		if err != nil {
			return 0, 0, fmt.Errorf("step %d forward: %w", step, err)
		}

		lossTensor, err := t.loss.Forward(probs, batch.Labels)
		if err != nil {
			return 0, 0, fmt.Errorf("step %d loss: %w", step, err)
		}
		lossVal, err := lossTensor.Item()
		if err != nil {
			return 0, 0, err
		}
		totalLoss += lossVal

		if err := cm.Update(probs, batch.Labels); err != nil {
			return 0, 0, err
		}

		t.optimizer.ZeroGrad()
		grad, err := t.loss.Backward(probs, batch.Labels)
		if err != nil {
			return 0, 0, fmt.Errorf("step %d loss backward: %w", step, err)
		}
		if err := t.model.Backward(grad); err != nil {
			return 0, 0, fmt.Errorf("step %d model backward: %w", step, err)
		}
		if err := t.optimizer.Step(); err != nil {
			return 0, 0, fmt.Errorf("step %d optimizer: %w", step, err)
		}
	}

	return totalLoss / float64(t.config.TrainSteps), cm.Accuracy(), nil
}

func (t *Trainer) validate(ctx context.Context, data BatchSource, cm *ConfusionMatrix) (float64, float64, error) {
	var totalLoss float64

	for step := 0; step < t.config.ValSteps; step++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}

		batch, err := data.Next()
		if err != nil {
			return 0, 0, fmt.Errorf("validation step %d: %w", step, err)
		}

		probs, err := t.model.Forward(batch.Data)
		if err != nil {
			return 0, 0, fmt.Errorf("validation step %d forward: %w", step, err)
		}

		lossTensor, err := t.loss.Forward(probs, batch.Labels)
		if err != nil {
			return 0, 0, fmt.Errorf("validation step %d loss: %w", step, err)
		}
		lossVal, err := lossTensor.Item()
		if err != nil {
			return 0, 0, err
		}
		totalLoss += lossVal

		if err := cm.Update(probs, batch.Labels); err != nil {
			return 0, 0, err
		}
	}

	return totalLoss / float64(t.config.ValSteps), cm.Accuracy(), nil
}
