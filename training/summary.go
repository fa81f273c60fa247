package training

import (
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
)

// RunSummary aggregates a training run's history for reporting and the
// run database.
type RunSummary struct {
	Epochs          int
	BestEpoch       int
	BestValLoss     float64
	FinalValLoss    float64
	MeanValLoss     float64
	MedianValLoss   float64
	BestValAccuracy float64
	FinalLR         float64
	TotalDuration   time.Duration
}

// Summarize computes a RunSummary over per-epoch metrics.
func Summarize(history []EpochMetrics) (*RunSummary, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("history is empty")
	}

	valLosses := make([]float64, len(history))
	summary := &RunSummary{
		Epochs:       len(history),
		BestEpoch:    history[0].Epoch,
		BestValLoss:  history[0].ValLoss,
		FinalValLoss: history[len(history)-1].ValLoss,
		FinalLR:      history[len(history)-1].LearningRate,
	}

	for i, m := range history {
		valLosses[i] = m.ValLoss
		if m.ValLoss < summary.BestValLoss {
			summary.BestValLoss = m.ValLoss
			summary.BestEpoch = m.Epoch
		}
		if m.ValAccuracy > summary.BestValAccuracy {
			summary.BestValAccuracy = m.ValAccuracy
		}
		summary.TotalDuration += m.Duration
	}

	mean, err := stats.Mean(valLosses)
	if err != nil {
		return nil, fmt.Errorf("failed to compute mean val loss: %v", err)
	}
	median, err := stats.Median(valLosses)
	if err != nil {
		return nil, fmt.Errorf("failed to compute median val loss: %v", err)
	}
	summary.MeanValLoss = mean
	summary.MedianValLoss = median

	return summary, nil
}

func (s *RunSummary) String() string {
	return fmt.Sprintf("epochs=%d best_epoch=%d best_val_loss=%.4f best_val_acc=%.4f duration=%s",
		s.Epochs, s.BestEpoch, s.BestValLoss, s.BestValAccuracy, s.TotalDuration.Round(time.Second))
}
