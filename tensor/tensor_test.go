package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTensor(t *testing.T) {
	t.Run("with data", func(t *testing.T) {
		tn, err := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3}, tn.Shape)
		assert.Equal(t, 6, tn.NumElems)
		assert.Equal(t, []int{3, 1}, tn.Strides)
	})

	t.Run("nil data allocates zeros", func(t *testing.T) {
		tn, err := NewTensor([]int{4}, Float32, nil)
		require.NoError(t, err)
		data, err := tn.GetFloat32Data()
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 0, 0, 0}, data)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := NewTensor([]int{2, 2}, Float32, []float32{1, 2})
		assert.Error(t, err)
	})

	t.Run("invalid shape", func(t *testing.T) {
		_, err := NewTensor([]int{2, 0}, Float32, nil)
		assert.Error(t, err)
	})

	t.Run("dtype mismatch", func(t *testing.T) {
		_, err := NewTensor([]int{2}, Int32, []float32{1, 2})
		assert.Error(t, err)
	})
}

func TestCreationHelpers(t *testing.T) {
	ones, err := Ones([]int{3}, Float32)
	require.NoError(t, err)
	data, _ := ones.GetFloat32Data()
	assert.Equal(t, []float32{1, 1, 1}, data)

	full, err := Full([]int{2}, 0.5, Float32)
	require.NoError(t, err)
	data, _ = full.GetFloat32Data()
	assert.Equal(t, []float32{0.5, 0.5}, data)

	scalar := FromScalar(2.0, Float32)
	v, err := scalar.Item()
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
}

func TestReshape(t *testing.T) {
	tn, err := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	flat, err := tn.Reshape([]int{6})
	require.NoError(t, err)
	assert.Equal(t, []int{6}, flat.Shape)

	_, err = tn.Reshape([]int{4})
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	tn, err := NewTensor([]int{2}, Float32, []float32{1, 2})
	require.NoError(t, err)

	clone, err := tn.Clone()
	require.NoError(t, err)

	require.NoError(t, clone.SetAt(9, 0))
	orig, _ := tn.At(0)
	assert.Equal(t, 1.0, orig)
}

func TestAtSetAt(t *testing.T) {
	tn, err := Zeros([]int{2, 2}, Float32)
	require.NoError(t, err)

	require.NoError(t, tn.SetAt(3.5, 1, 0))
	v, err := tn.At(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	_, err = tn.At(2, 0)
	assert.Error(t, err)
}

func TestGradAccumulation(t *testing.T) {
	param, err := NewTensor([]int{2}, Float32, []float32{1, 1})
	require.NoError(t, err)
	param.SetRequiresGrad(true)

	g1, _ := NewTensor([]int{2}, Float32, []float32{0.5, 1.0})
	g2, _ := NewTensor([]int{2}, Float32, []float32{0.25, 0.5})

	require.NoError(t, param.AccumulateGrad(g1))
	require.NoError(t, param.AccumulateGrad(g2))

	grad, err := param.Grad().GetFloat32Data()
	require.NoError(t, err)
	assert.InDelta(t, 0.75, float64(grad[0]), 1e-6)
	assert.InDelta(t, 1.5, float64(grad[1]), 1e-6)

	ZeroGrad([]*Tensor{param})
	assert.Nil(t, param.Grad())
}
