package tensor

import (
	"fmt"
)

// Reshape returns a view-copy of the tensor with a new shape. The element
// count must be preserved.
func (t *Tensor) Reshape(newShape []int) (*Tensor, error) {
	if err := validateShape(newShape); err != nil {
		return nil, err
	}

	if calculateNumElements(newShape) != t.NumElems {
		return nil, fmt.Errorf("cannot reshape tensor of %d elements to shape %v", t.NumElems, newShape)
	}

	return &Tensor{
		Shape:    append([]int(nil), newShape...),
		Strides:  calculateStrides(newShape),
		DType:    t.DType,
		Data:     t.Data,
		NumElems: t.NumElems,
	}, nil
}

// Clone returns a deep copy of the tensor. Gradient state is not copied.
func (t *Tensor) Clone() (*Tensor, error) {
	clone, err := NewTensor(t.Shape, t.DType, nil)
	if err != nil {
		return nil, err
	}

	switch t.DType {
	case Float32:
		copy(clone.Data.([]float32), t.Data.([]float32))
	case Int32:
		copy(clone.Data.([]int32), t.Data.([]int32))
	default:
		return nil, fmt.Errorf("unsupported dtype for Clone: %s", t.DType)
	}

	return clone, nil
}

func (t *Tensor) GetFloat32Data() ([]float32, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("tensor is %s, not Float32", t.DType)
	}
	return t.Data.([]float32), nil
}

func (t *Tensor) GetInt32Data() ([]int32, error) {
	if t.DType != Int32 {
		return nil, fmt.Errorf("tensor is %s, not Int32", t.DType)
	}
	return t.Data.([]int32), nil
}

// Item returns the value of a single-element tensor as float64.
func (t *Tensor) Item() (float64, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("Item requires a single-element tensor, got %d elements", t.NumElems)
	}

	switch t.DType {
	case Float32:
		return float64(t.Data.([]float32)[0]), nil
	case Int32:
		return float64(t.Data.([]int32)[0]), nil
	default:
		return 0, fmt.Errorf("unsupported dtype for Item: %s", t.DType)
	}
}

func (t *Tensor) flatIndex(indices []int) (int, error) {
	if len(indices) != len(t.Shape) {
		return 0, fmt.Errorf("expected %d indices, got %d", len(t.Shape), len(indices))
	}

	flat := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.Shape[i] {
			return 0, fmt.Errorf("index %d out of range [0, %d) for dimension %d", idx, t.Shape[i], i)
		}
		flat += idx * t.Strides[i]
	}
	return flat, nil
}

// At returns the element at the given multi-dimensional indices as float64.
func (t *Tensor) At(indices ...int) (float64, error) {
	flat, err := t.flatIndex(indices)
	if err != nil {
		return 0, err
	}

	switch t.DType {
	case Float32:
		return float64(t.Data.([]float32)[flat]), nil
	case Int32:
		return float64(t.Data.([]int32)[flat]), nil
	default:
		return 0, fmt.Errorf("unsupported dtype for At: %s", t.DType)
	}
}

// SetAt writes the element at the given multi-dimensional indices.
func (t *Tensor) SetAt(value float64, indices ...int) error {
	flat, err := t.flatIndex(indices)
	if err != nil {
		return err
	}

	switch t.DType {
	case Float32:
		t.Data.([]float32)[flat] = float32(value)
	case Int32:
		t.Data.([]int32)[flat] = int32(value)
	default:
		return fmt.Errorf("unsupported dtype for SetAt: %s", t.DType)
	}
	return nil
}

func (t *Tensor) Size() []int {
	return t.Shape
}

func (t *Tensor) Numel() int {
	return t.NumElems
}

func (t *Tensor) Dim() int {
	return len(t.Shape)
}

// Equal reports whether two tensors have identical shape, dtype, and data.
func (t *Tensor) Equal(other *Tensor) bool {
	if t.DType != other.DType || len(t.Shape) != len(other.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != other.Shape[i] {
			return false
		}
	}

	switch t.DType {
	case Float32:
		a := t.Data.([]float32)
		b := other.Data.([]float32)
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	case Int32:
		a := t.Data.([]int32)
		b := other.Data.([]int32)
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	default:
		return false
	}

	return true
}

// AccumulateGrad adds grad into the tensor's gradient, allocating it on
// first use.
func (t *Tensor) AccumulateGrad(grad *Tensor) error {
	if t.grad == nil {
		clone, err := grad.Clone()
		if err != nil {
			return err
		}
		t.grad = clone
		return nil
	}

	sum, err := Add(t.grad, grad)
	if err != nil {
		return fmt.Errorf("gradient accumulation failed: %v", err)
	}
	t.grad = sum
	return nil
}
