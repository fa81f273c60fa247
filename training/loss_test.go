package training

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvis/chexray/tensor"
)

func lossValue(t *testing.T, loss Loss, preds, targets []float32) float64 {
	t.Helper()
	p, err := tensor.NewTensor([]int{len(preds), 1}, tensor.Float32, preds)
	require.NoError(t, err)
	y, err := tensor.NewTensor([]int{len(targets), 1}, tensor.Float32, targets)
	require.NoError(t, err)
	out, err := loss.Forward(p, y)
	require.NoError(t, err)
	v, err := out.Item()
	require.NoError(t, err)
	return v
}

func TestWeightedBCELoss(t *testing.T) {
	t.Run("unit weights reduce to plain BCE", func(t *testing.T) {
		loss, err := NewWeightedBCELoss(1, 1)
		require.NoError(t, err)

		preds := []float32{0.9, 0.2, 0.7}
		targets := []float32{1, 0, 1}
		got := lossValue(t, loss, preds, targets)

		var want float64
		for i := range preds {
			p := float64(preds[i])
			y := float64(targets[i])
			want += -(y*math.Log(p) + (1-y)*math.Log(1-p))
		}
		want /= float64(len(preds))
		assert.InDelta(t, want, got, 1e-6)
	})

	t.Run("positive weight scales positive targets", func(t *testing.T) {
		plain, err := NewWeightedBCELoss(1, 1)
		require.NoError(t, err)
		weighted, err := NewWeightedBCELoss(1, 3)
		require.NoError(t, err)

		preds := []float32{0.6}
		targets := []float32{1}
		assert.InDelta(t, 3*lossValue(t, plain, preds, targets),
			lossValue(t, weighted, preds, targets), 1e-6)
	})

	t.Run("symmetric under class swap", func(t *testing.T) {
		a, err := NewWeightedBCELoss(0.2, 0.8)
		require.NoError(t, err)
		b, err := NewWeightedBCELoss(0.8, 0.2)
		require.NoError(t, err)

		// Swapping y -> 1-y and p -> 1-p while swapping the weights
		// leaves the loss unchanged.
		la := lossValue(t, a, []float32{0.9, 0.3}, []float32{1, 0})
		lb := lossValue(t, b, []float32{0.1, 0.7}, []float32{0, 1})
		assert.InDelta(t, la, lb, 1e-6)
	})

	t.Run("finite at saturated predictions", func(t *testing.T) {
		loss, err := NewWeightedBCELoss(1, 2)
		require.NoError(t, err)

		got := lossValue(t, loss, []float32{0, 1}, []float32{1, 0})
		assert.False(t, math.IsInf(got, 0))
		assert.False(t, math.IsNaN(got))
		// Clamping to 1e-7 bounds each term by -log(1e-7).
		assert.Less(t, got, 2*(-math.Log(1e-7)))
	})

	t.Run("perfect predictions give near-zero loss", func(t *testing.T) {
		loss, err := NewWeightedBCELoss(0.4, 0.6)
		require.NoError(t, err)
		got := lossValue(t, loss, []float32{1, 0}, []float32{1, 0})
		assert.InDelta(t, 0, got, 1e-5)
	})

	t.Run("rejects negative weights", func(t *testing.T) {
		_, err := NewWeightedBCELoss(-0.1, 1)
		assert.Error(t, err)
	})

	t.Run("rejects shape mismatch", func(t *testing.T) {
		loss, err := NewWeightedBCELoss(1, 1)
		require.NoError(t, err)
		p, err := tensor.Zeros([]int{2, 1}, tensor.Float32)
		require.NoError(t, err)
		y, err := tensor.Zeros([]int{3, 1}, tensor.Float32)
		require.NoError(t, err)
		_, err = loss.Forward(p, y)
		assert.Error(t, err)
	})

	t.Run("backward matches finite differences", func(t *testing.T) {
		loss, err := NewWeightedBCELoss(0.5, 1.5)
		require.NoError(t, err)

		preds := []float32{0.3, 0.8}
		targets := []float32{1, 0}
		p, err := tensor.NewTensor([]int{2, 1}, tensor.Float32, preds)
		require.NoError(t, err)
		y, err := tensor.NewTensor([]int{2, 1}, tensor.Float32, targets)
		require.NoError(t, err)

		grad, err := loss.Backward(p, y)
		require.NoError(t, err)
		gradData, err := grad.GetFloat32Data()
		require.NoError(t, err)

		const eps = 1e-4
		base := lossValue(t, loss, preds, targets)
		for i := range preds {
			bumped := make([]float32, len(preds))
			copy(bumped, preds)
			bumped[i] += eps
			numeric := (lossValue(t, loss, bumped, targets) - base) / eps
			assert.InDelta(t, numeric, float64(gradData[i]), 1e-2)
		}
	})

	t.Run("backward direction pushes toward target", func(t *testing.T) {
		loss, err := NewWeightedBCELoss(1, 1)
		require.NoError(t, err)
		p, err := tensor.NewTensor([]int{2, 1}, tensor.Float32, []float32{0.3, 0.8})
		require.NoError(t, err)
		y, err := tensor.NewTensor([]int{2, 1}, tensor.Float32, []float32{1, 0})
		require.NoError(t, err)

		grad, err := loss.Backward(p, y)
		require.NoError(t, err)
		gradData, err := grad.GetFloat32Data()
		require.NoError(t, err)

		// dL/dp is negative when the target is 1 (raise p) and
		// positive when the target is 0 (lower p).
		assert.Negative(t, gradData[0])
		assert.Positive(t, gradData[1])
	})
}
