package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/medvis/chexray/tensor"
)

// Global random source for deterministic weight initialization.
var globalRng = rand.New(rand.NewSource(1))

// SetRandomSeed sets the global random seed for deterministic weight
// initialization.
func SetRandomSeed(seed int64) {
	globalRng = rand.New(rand.NewSource(seed))
}

// GlobalAvgPool2D collapses a [n, c, h, w] feature map to [n, c] by
// averaging over the spatial dimensions.
func GlobalAvgPool2D(t *tensor.Tensor) (*tensor.Tensor, error) {
	if t.DType != tensor.Float32 {
		return nil, fmt.Errorf("GlobalAvgPool2D only supports Float32, got %s", t.DType)
	}
	if len(t.Shape) != 4 {
		return nil, fmt.Errorf("GlobalAvgPool2D requires a 4D tensor, got %v", t.Shape)
	}

	n, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	out, err := tensor.Zeros([]int{n, c}, tensor.Float32)
	if err != nil {
		return nil, err
	}

	data := t.Data.([]float32)
	outData := out.Data.([]float32)
	plane := h * w

	for i := 0; i < n; i++ {
		for j := 0; j < c; j++ {
			base := i*c*plane + j*plane
			var sum float32
			for k := 0; k < plane; k++ {
				sum += data[base+k]
			}
			outData[i*c+j] = sum / float32(plane)
		}
	}

	return out, nil
}

// SigmoidHead is the single trainable piece of the classifier: a dense
// layer with one sigmoid output, replacing the backbone's original
// classification layer. y = sigmoid(xW + b).
type SigmoidHead struct {
	weight *tensor.Tensor // [in, 1]
	bias   *tensor.Tensor // [1]

	// Cached for the backward pass of the most recent Forward.
	lastInput  *tensor.Tensor
	lastOutput *tensor.Tensor
}

// NewSigmoidHead creates a head over inputSize features, with Xavier
// uniform initialization.
func NewSigmoidHead(inputSize int) (*SigmoidHead, error) {
	if inputSize <= 0 {
		return nil, fmt.Errorf("input size must be positive, got %d", inputSize)
	}

	bound := math.Sqrt(6.0 / float64(inputSize+1))
	weightData := make([]float32, inputSize)
	for i := range weightData {
		weightData[i] = float32((globalRng.Float64()*2.0 - 1.0) * bound)
	}

	weight, err := tensor.NewTensor([]int{inputSize, 1}, tensor.Float32, weightData)
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %v", err)
	}
	weight.SetRequiresGrad(true)

	bias, err := tensor.Zeros([]int{1}, tensor.Float32)
	if err != nil {
		return nil, fmt.Errorf("failed to create bias tensor: %v", err)
	}
	bias.SetRequiresGrad(true)

	return &SigmoidHead{weight: weight, bias: bias}, nil
}

// Forward computes sigmoid(xW + b) for a [n, in] input, returning [n, 1]
// probabilities.
func (h *SigmoidHead) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 2 || input.Shape[1] != h.weight.Shape[0] {
		return nil, fmt.Errorf("input must be [n, %d], got %v", h.weight.Shape[0], input.Shape)
	}

	logits, err := tensor.MatMul(input, h.weight)
	if err != nil {
		return nil, fmt.Errorf("head matmul failed: %v", err)
	}

	biasVal := h.bias.Data.([]float32)[0]
	logitsData := logits.Data.([]float32)
	for i := range logitsData {
		logitsData[i] += biasVal
	}

	probs, err := tensor.Sigmoid(logits)
	if err != nil {
		return nil, err
	}

	h.lastInput = input
	h.lastOutput = probs
	return probs, nil
}

// Backward takes dL/dp for the probabilities returned by the most recent
// Forward and accumulates gradients on the head's weight and bias.
func (h *SigmoidHead) Backward(gradOutput *tensor.Tensor) error {
	if h.lastInput == nil || h.lastOutput == nil {
		return fmt.Errorf("Backward called before Forward")
	}

	n := h.lastInput.Shape[0]
	if len(gradOutput.Shape) != 2 || gradOutput.Shape[0] != n || gradOutput.Shape[1] != 1 {
		return fmt.Errorf("gradient must be [%d, 1], got %v", n, gradOutput.Shape)
	}

	// delta = dL/dp * dp/dz, with dp/dz = p * (1 - p) for the sigmoid.
	probs := h.lastOutput.Data.([]float32)
	gradData := gradOutput.Data.([]float32)
	deltaData := make([]float32, n)
	for i := 0; i < n; i++ {
		deltaData[i] = gradData[i] * probs[i] * (1 - probs[i])
	}
	delta, err := tensor.NewTensor([]int{n, 1}, tensor.Float32, deltaData)
	if err != nil {
		return err
	}

	// dL/dW = X^T delta, dL/db = sum(delta).
	inputT, err := tensor.Transpose(h.lastInput)
	if err != nil {
		return err
	}
	weightGrad, err := tensor.MatMul(inputT, delta)
	if err != nil {
		return fmt.Errorf("weight gradient failed: %v", err)
	}
	if err := h.weight.AccumulateGrad(weightGrad); err != nil {
		return err
	}

	biasGrad, err := tensor.Sum(delta)
	if err != nil {
		return err
	}
	return h.bias.AccumulateGrad(biasGrad)
}

// Parameters returns the trainable tensors.
func (h *SigmoidHead) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{h.weight, h.bias}
}
