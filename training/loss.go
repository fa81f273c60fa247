package training

import (
	"fmt"
	"math"

	"github.com/medvis/chexray/tensor"
)

// Loss interface defines methods that all loss functions must implement
type Loss interface {
	Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error)
	Backward(predicted, target *tensor.Tensor) (*tensor.Tensor, error)
}

// probEpsilon keeps predicted probabilities away from 0 and 1 so the
// log terms stay finite.
const probEpsilon = 1e-7

// WeightedBCELoss implements binary cross-entropy with per-class
// weights, used to counter class imbalance. Each element's loss is
// scaled by W1 when the target is positive and by W0 when negative:
//
//	L_i = -(y*W1 + (1-y)*W0) * (y*log(p) + (1-y)*log(1-p))
//
// The final loss is the mean over the batch.
type WeightedBCELoss struct {
	W0 float64 // weight applied to negative (class 0) targets
	W1 float64 // weight applied to positive (class 1) targets
}

// NewWeightedBCELoss creates a weighted binary cross-entropy loss.
// Weights of (1, 1) reduce to plain BCE.
func NewWeightedBCELoss(w0, w1 float64) (*WeightedBCELoss, error) {
	if w0 < 0 || w1 < 0 {
		return nil, fmt.Errorf("class weights must be non-negative, got (%g, %g)", w0, w1)
	}
	return &WeightedBCELoss{W0: w0, W1: w1}, nil
}

func (l *WeightedBCELoss) validate(predicted, target *tensor.Tensor) error {
	if predicted.DType != tensor.Float32 || target.DType != tensor.Float32 {
		return fmt.Errorf("weighted BCE requires Float32 tensors")
	}
	if len(predicted.Shape) != len(target.Shape) {
		return fmt.Errorf("predicted and target tensors must have the same shape")
	}
	for i, dim := range predicted.Shape {
		if dim != target.Shape[i] {
			return fmt.Errorf("predicted shape %v does not match target shape %v",
				predicted.Shape, target.Shape)
		}
	}
	if predicted.NumElems == 0 {
		return fmt.Errorf("cannot compute loss over empty tensors")
	}
	return nil
}

// Forward computes the mean weighted BCE over all elements, returning
// a [1] tensor.
func (l *WeightedBCELoss) Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	if err := l.validate(predicted, target); err != nil {
		return nil, err
	}

	preds := predicted.Data.([]float32)
	targets := target.Data.([]float32)

	var total float64
	for i := range preds {
		p := clampProb(float64(preds[i]))
		y := float64(targets[i])
		weight := y*l.W1 + (1-y)*l.W0
		total += -weight * (y*math.Log(p) + (1-y)*math.Log(1-p))
	}
	mean := total / float64(len(preds))

	return tensor.NewTensor([]int{1}, tensor.Float32, []float32{float32(mean)})
}

// Backward computes dL/dp for each prediction, with the same shape as
// the predicted tensor.
func (l *WeightedBCELoss) Backward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	if err := l.validate(predicted, target); err != nil {
		return nil, err
	}

	preds := predicted.Data.([]float32)
	targets := target.Data.([]float32)
	n := float64(len(preds))

	gradData := make([]float32, len(preds))
	for i := range preds {
		p := clampProb(float64(preds[i]))
		y := float64(targets[i])
		weight := y*l.W1 + (1-y)*l.W0
		gradData[i] = float32(-weight * (y/p - (1-y)/(1-p)) / n)
	}

	return tensor.NewTensor(predicted.Shape, tensor.Float32, gradData)
}

func clampProb(p float64) float64 {
	if p < probEpsilon {
		return probEpsilon
	}
	if p > 1-probEpsilon {
		return 1 - probEpsilon
	}
	return p
}
