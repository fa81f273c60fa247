package training

import (
	"fmt"
	"math"

	"github.com/medvis/chexray/tensor"
)

// Optimizer defines the common interface for parameter update rules.
type Optimizer interface {
	// Step applies one update using the gradients currently
	// accumulated on the parameters.
	Step() error

	// ZeroGrad clears the accumulated gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64

	// SetLR updates the learning rate (used by schedulers).
	SetLR(lr float64)
}

// AdamConfig holds configuration for the Adam optimizer
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
}

// DefaultAdamConfig returns default Adam optimizer configuration
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  0.0,
	}
}

// Adam implements the Adam optimizer with bias correction over a fixed
// set of parameter tensors.
type Adam struct {
	config AdamConfig
	params []*tensor.Tensor

	// First and second moment estimates, one slice per parameter.
	momentum [][]float64
	variance [][]float64

	stepCount uint64
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam(params []*tensor.Tensor, config AdamConfig) (*Adam, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("no parameters provided")
	}
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %g", config.LearningRate)
	}
	if config.Beta1 <= 0 || config.Beta1 >= 1 || config.Beta2 <= 0 || config.Beta2 >= 1 {
		return nil, fmt.Errorf("betas must be in (0, 1), got (%g, %g)", config.Beta1, config.Beta2)
	}

	adam := &Adam{
		config:   config,
		params:   params,
		momentum: make([][]float64, len(params)),
		variance: make([][]float64, len(params)),
	}
	for i, p := range params {
		if p.DType != tensor.Float32 {
			return nil, fmt.Errorf("parameter %d has dtype %s, only Float32 is supported", i, p.DType)
		}
		adam.momentum[i] = make([]float64, p.NumElems)
		adam.variance[i] = make([]float64, p.NumElems)
	}
	return adam, nil
}

// Step applies one Adam update. Parameters without a gradient are
// skipped.
func (a *Adam) Step() error {
	a.stepCount++
	correction1 := 1 - math.Pow(a.config.Beta1, float64(a.stepCount))
	correction2 := 1 - math.Pow(a.config.Beta2, float64(a.stepCount))

	for i, p := range a.params {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		gradData, err := grad.GetFloat32Data()
		if err != nil {
			return fmt.Errorf("parameter %d: %v", i, err)
		}
		weights, err := p.GetFloat32Data()
		if err != nil {
			return fmt.Errorf("parameter %d: %v", i, err)
		}
		if len(gradData) != len(weights) {
			return fmt.Errorf("parameter %d: gradient has %d elements, expected %d",
				i, len(gradData), len(weights))
		}

		m := a.momentum[i]
		v := a.variance[i]
		for j := range weights {
			g := float64(gradData[j])
			if a.config.WeightDecay > 0 {
				g += a.config.WeightDecay * float64(weights[j])
			}
			m[j] = a.config.Beta1*m[j] + (1-a.config.Beta1)*g
			v[j] = a.config.Beta2*v[j] + (1-a.config.Beta2)*g*g

			mHat := m[j] / correction1
			vHat := v[j] / correction2
			weights[j] -= float32(a.config.LearningRate * mHat / (math.Sqrt(vHat) + a.config.Epsilon))
		}
	}
	return nil
}

// ZeroGrad clears the gradients of all managed parameters.
func (a *Adam) ZeroGrad() {
	tensor.ZeroGrad(a.params)
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 {
	return a.config.LearningRate
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float64) {
	a.config.LearningRate = lr
}

// StepCount returns the number of updates applied so far.
func (a *Adam) StepCount() uint64 {
	return a.stepCount
}
