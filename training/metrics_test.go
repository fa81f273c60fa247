package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvis/chexray/tensor"
)

func updateCM(t *testing.T, cm *ConfusionMatrix, probs, targets []float32) {
	t.Helper()
	p, err := tensor.NewTensor([]int{len(probs), 1}, tensor.Float32, probs)
	require.NoError(t, err)
	y, err := tensor.NewTensor([]int{len(targets), 1}, tensor.Float32, targets)
	require.NoError(t, err)
	require.NoError(t, cm.Update(p, y))
}

func TestConfusionMatrix(t *testing.T) {
	t.Run("counts outcomes", func(t *testing.T) {
		cm := NewConfusionMatrix()
		updateCM(t, cm,
			[]float32{0.9, 0.8, 0.2, 0.1, 0.7, 0.3},
			[]float32{1, 0, 1, 0, 1, 0})

		assert.Equal(t, 2, cm.TP) // 0.9/1, 0.7/1
		assert.Equal(t, 1, cm.FP) // 0.8/0
		assert.Equal(t, 1, cm.FN) // 0.2/1
		assert.Equal(t, 2, cm.TN) // 0.1/0, 0.3/0
		assert.Equal(t, 6, cm.Total())
	})

	t.Run("derived metrics", func(t *testing.T) {
		cm := &ConfusionMatrix{TP: 8, FP: 2, TN: 5, FN: 5, Threshold: 0.5}

		assert.InDelta(t, 13.0/20.0, cm.Accuracy(), 1e-9)
		assert.InDelta(t, 0.8, cm.Precision(), 1e-9)
		assert.InDelta(t, 8.0/13.0, cm.Recall(), 1e-9)
		assert.InDelta(t, 5.0/7.0, cm.Specificity(), 1e-9)

		p, r := cm.Precision(), cm.Recall()
		assert.InDelta(t, 2*p*r/(p+r), cm.F1(), 1e-9)
	})

	t.Run("empty matrix returns zeros", func(t *testing.T) {
		cm := NewConfusionMatrix()
		assert.Zero(t, cm.Accuracy())
		assert.Zero(t, cm.Precision())
		assert.Zero(t, cm.Recall())
		assert.Zero(t, cm.F1())
	})

	t.Run("accumulates across batches", func(t *testing.T) {
		cm := NewConfusionMatrix()
		updateCM(t, cm, []float32{0.9}, []float32{1})
		updateCM(t, cm, []float32{0.1}, []float32{0})
		assert.Equal(t, 1.0, cm.Accuracy())

		cm.Reset()
		assert.Zero(t, cm.Total())
	})

	t.Run("rejects size mismatch", func(t *testing.T) {
		cm := NewConfusionMatrix()
		p, err := tensor.Zeros([]int{2, 1}, tensor.Float32)
		require.NoError(t, err)
		y, err := tensor.Zeros([]int{3, 1}, tensor.Float32)
		require.NoError(t, err)
		assert.Error(t, cm.Update(p, y))
	})
}
