package tensor

import (
	"fmt"
)

// NewTensor creates a tensor with the given shape and data. Data may be nil,
// in which case a zero-filled backing slice is allocated.
func NewTensor(shape []int, dtype DType, data interface{}) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	t := &Tensor{
		Shape:    append([]int(nil), shape...),
		Strides:  calculateStrides(shape),
		DType:    dtype,
		NumElems: calculateNumElements(shape),
	}

	if err := t.setData(data); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Tensor) setData(data interface{}) error {
	if data == nil {
		switch t.DType {
		case Float32:
			t.Data = make([]float32, t.NumElems)
		case Int32:
			t.Data = make([]int32, t.NumElems)
		default:
			return fmt.Errorf("unsupported dtype: %s", t.DType)
		}
		return nil
	}

	switch t.DType {
	case Float32:
		slice, ok := data.([]float32)
		if !ok {
			return fmt.Errorf("data must be []float32 for Float32 tensor, got %T", data)
		}
		if len(slice) != t.NumElems {
			return fmt.Errorf("data length %d does not match tensor size %d", len(slice), t.NumElems)
		}
		t.Data = slice
	case Int32:
		slice, ok := data.([]int32)
		if !ok {
			return fmt.Errorf("data must be []int32 for Int32 tensor, got %T", data)
		}
		if len(slice) != t.NumElems {
			return fmt.Errorf("data length %d does not match tensor size %d", len(slice), t.NumElems)
		}
		t.Data = slice
	default:
		return fmt.Errorf("unsupported dtype: %s", t.DType)
	}

	return nil
}

// Zeros creates a zero-filled tensor.
func Zeros(shape []int, dtype DType) (*Tensor, error) {
	return NewTensor(shape, dtype, nil)
}

// Ones creates a tensor filled with ones.
func Ones(shape []int, dtype DType) (*Tensor, error) {
	return Full(shape, 1.0, dtype)
}

// Full creates a tensor filled with the given value.
func Full(shape []int, value float64, dtype DType) (*Tensor, error) {
	t, err := NewTensor(shape, dtype, nil)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case Float32:
		data := t.Data.([]float32)
		for i := range data {
			data[i] = float32(value)
		}
	case Int32:
		data := t.Data.([]int32)
		for i := range data {
			data[i] = int32(value)
		}
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}

	return t, nil
}

// FromScalar wraps a single value in a [1] tensor.
func FromScalar(value float64, dtype DType) *Tensor {
	t, _ := Full([]int{1}, value, dtype)
	return t
}
