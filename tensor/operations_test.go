package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementwiseOps(t *testing.T) {
	a, err := NewTensor([]int{2, 2}, Float32, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	b, err := NewTensor([]int{2, 2}, Float32, []float32{4, 3, 2, 1})
	require.NoError(t, err)

	t.Run("Add", func(t *testing.T) {
		out, err := Add(a, b)
		require.NoError(t, err)
		data, _ := out.GetFloat32Data()
		assert.Equal(t, []float32{5, 5, 5, 5}, data)
	})

	t.Run("Sub", func(t *testing.T) {
		out, err := Sub(a, b)
		require.NoError(t, err)
		data, _ := out.GetFloat32Data()
		assert.Equal(t, []float32{-3, -1, 1, 3}, data)
	})

	t.Run("Mul", func(t *testing.T) {
		out, err := Mul(a, b)
		require.NoError(t, err)
		data, _ := out.GetFloat32Data()
		assert.Equal(t, []float32{4, 6, 6, 4}, data)
	})

	t.Run("Div", func(t *testing.T) {
		out, err := Div(a, b)
		require.NoError(t, err)
		data, _ := out.GetFloat32Data()
		assert.InDelta(t, 0.25, float64(data[0]), 1e-6)
	})

	t.Run("Div by zero", func(t *testing.T) {
		zero, _ := Zeros([]int{2, 2}, Float32)
		_, err := Div(a, zero)
		assert.Error(t, err)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		c, _ := Zeros([]int{3}, Float32)
		_, err := Add(a, c)
		assert.Error(t, err)
	})

	t.Run("scalar broadcast", func(t *testing.T) {
		out, err := Mul(a, FromScalar(2, Float32))
		require.NoError(t, err)
		data, _ := out.GetFloat32Data()
		assert.Equal(t, []float32{2, 4, 6, 8}, data)
	})
}

func TestUnaryOps(t *testing.T) {
	t.Run("Sigmoid", func(t *testing.T) {
		in, _ := NewTensor([]int{3}, Float32, []float32{0, -100, 100})
		out, err := Sigmoid(in)
		require.NoError(t, err)
		data, _ := out.GetFloat32Data()
		assert.InDelta(t, 0.5, float64(data[0]), 1e-6)
		assert.InDelta(t, 0.0, float64(data[1]), 1e-6)
		assert.InDelta(t, 1.0, float64(data[2]), 1e-6)
	})

	t.Run("Log rejects non-positive", func(t *testing.T) {
		in, _ := NewTensor([]int{2}, Float32, []float32{1, 0})
		_, err := Log(in)
		assert.Error(t, err)
	})

	t.Run("Exp then Log is identity", func(t *testing.T) {
		in, _ := NewTensor([]int{2}, Float32, []float32{0.5, 2})
		exp, err := Exp(in)
		require.NoError(t, err)
		back, err := Log(exp)
		require.NoError(t, err)
		data, _ := back.GetFloat32Data()
		assert.InDelta(t, 0.5, float64(data[0]), 1e-5)
		assert.InDelta(t, 2.0, float64(data[1]), 1e-5)
	})
}

func TestClamp(t *testing.T) {
	in, _ := NewTensor([]int{4}, Float32, []float32{-1, 0.5, 2, float32(math.Inf(1))})
	out, err := Clamp(in, 0, 1)
	require.NoError(t, err)
	data, _ := out.GetFloat32Data()
	assert.Equal(t, []float32{0, 0.5, 1, 1}, data)

	_, err = Clamp(in, 1, 0)
	assert.Error(t, err)
}

func TestSumScale(t *testing.T) {
	in, _ := NewTensor([]int{3}, Float32, []float32{1, 2, 3})

	sum, err := Sum(in)
	require.NoError(t, err)
	v, _ := sum.Item()
	assert.Equal(t, 6.0, v)

	scaled, err := Scale(in, 0.5)
	require.NoError(t, err)
	data, _ := scaled.GetFloat32Data()
	assert.Equal(t, []float32{0.5, 1, 1.5}, data)
}

func TestMatMul(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})
	b, _ := NewTensor([]int{3, 2}, Float32, []float32{7, 8, 9, 10, 11, 12})

	out, err := MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, out.Shape)
	data, _ := out.GetFloat32Data()
	assert.Equal(t, []float32{58, 64, 139, 154}, data)

	t.Run("inner dim mismatch", func(t *testing.T) {
		bad, _ := Zeros([]int{2, 2}, Float32)
		_, err := MatMul(a, bad)
		assert.Error(t, err)
	})
}

func TestTranspose(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})
	out, err := Transpose(a)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, out.Shape)
	data, _ := out.GetFloat32Data()
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, data)
}
