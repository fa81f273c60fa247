package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrEmptyDataset reports a counting pass that found zero samples in total.
// Training must abort here rather than divide by zero when deriving class
// weights.
var ErrEmptyDataset = errors.New("dataset contains no samples")

// ClassWeights are the loss weights for a two-class problem. W0 applies to
// elements whose true label is 0, W1 to elements whose true label is 1.
type ClassWeights struct {
	W0 float64
	W1 float64
}

// DatasetStats is everything the training loop needs to know about the
// data on disk: per-class counts, derived loss weights, and the number of
// steps that make up one epoch. It is computed once per run, before the
// model is built, and never mutated afterwards.
type DatasetStats struct {
	Counts     []int
	Total      int
	ValTotal   int
	Weights    ClassWeights
	TrainSteps int
	ValSteps   int
}

// InverseClassFrequencyWeights derives loss weights from two class counts
// by cross-assignment: each class is weighted by the other class's share
// of the total, so the rarer class weighs more. The formula is only
// meaningful for exactly two classes; an N-class generalization would need
// a different parameterization (e.g. total / (numClasses * count)).
func InverseClassFrequencyWeights(counts []int) (ClassWeights, error) {
	if len(counts) != 2 {
		return ClassWeights{}, fmt.Errorf("inverse class frequency weighting requires exactly 2 classes, got %d", len(counts))
	}

	total := counts[0] + counts[1]
	if total == 0 {
		return ClassWeights{}, ErrEmptyDataset
	}

	// W1 comes from counts[0] and W0 from counts[1]. This looks backwards
	// but is intentional: the weight applied to a class is the opposite
	// class's relative frequency.
	return ClassWeights{
		W0: float64(counts[1]) / float64(total),
		W1: float64(counts[0]) / float64(total),
	}, nil
}

// Collect scans the train and validation roots and produces the statistics
// for one training run.
//
// For each class index i with directory name d, the number of image files
// directly under root/d/ is counted; a missing directory is an error, not a
// zero. Steps per epoch follow the original paper's convention of
// total/batch + 1, which is at least 1 even for an empty split.
func Collect(trainRoot, valRoot string, classes ClassMap, trainBatch, valBatch int) (*DatasetStats, error) {
	if err := classes.Validate(); err != nil {
		return nil, err
	}
	if trainBatch <= 0 {
		return nil, fmt.Errorf("train batch size must be positive, got %d", trainBatch)
	}
	if valBatch <= 0 {
		return nil, fmt.Errorf("validation batch size must be positive, got %d", valBatch)
	}

	counts := make([]int, len(classes))
	total := 0
	for i, name := range classes {
		files, err := listImageFiles(filepath.Join(trainRoot, name))
		if err != nil {
			return nil, err
		}
		counts[i] = len(files)
		total += len(files)
	}

	if total == 0 {
		return nil, fmt.Errorf("%w: no training samples under %s", ErrEmptyDataset, trainRoot)
	}

	weights, err := InverseClassFrequencyWeights(counts)
	if err != nil {
		return nil, err
	}

	valTotal := 0
	for _, name := range classes {
		files, err := listImageFiles(filepath.Join(valRoot, name))
		if err != nil {
			return nil, err
		}
		valTotal += len(files)
	}

	return &DatasetStats{
		Counts:     counts,
		Total:      total,
		ValTotal:   valTotal,
		Weights:    weights,
		TrainSteps: total/trainBatch + 1,
		ValSteps:   valTotal/valBatch + 1,
	}, nil
}

// String returns a printable summary of the statistics.
func (s *DatasetStats) String() string {
	return fmt.Sprintf("counts=%v total=%d val_total=%d w0=%.4f w1=%.4f train_steps=%d val_steps=%d",
		s.Counts, s.Total, s.ValTotal, s.Weights.W0, s.Weights.W1, s.TrainSteps, s.ValSteps)
}
