package model

import (
	"fmt"

	"github.com/medvis/chexray/tensor"
)

// NamedParameter pairs a trainable tensor with a stable name for
// checkpointing.
type NamedParameter struct {
	Name   string
	Tensor *tensor.Tensor
}

// Classifier is a transfer-learning pneumonia classifier: a frozen
// feature backbone followed by global average pooling and a trainable
// sigmoid head. Only the head's parameters receive gradients.
type Classifier struct {
	backbone Backbone
	head     *SigmoidHead
}

// NewClassifier builds a classifier over the given frozen backbone.
func NewClassifier(backbone Backbone) (*Classifier, error) {
	if backbone == nil {
		return nil, fmt.Errorf("backbone cannot be nil")
	}

	head, err := NewSigmoidHead(backbone.FeatureChannels())
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier head: %v", err)
	}

	return &Classifier{backbone: backbone, head: head}, nil
}

// Forward runs a [n, 3, h, w] image batch through the frozen backbone
// and the head, returning [n, 1] pneumonia probabilities.
func (c *Classifier) Forward(images *tensor.Tensor) (*tensor.Tensor, error) {
	features, err := c.backbone.Extract(images)
	if err != nil {
		return nil, fmt.Errorf("backbone failed: %v", err)
	}

	pooled, err := GlobalAvgPool2D(features)
	if err != nil {
		return nil, fmt.Errorf("pooling failed: %v", err)
	}

	return c.head.Forward(pooled)
}

// Backward propagates dL/dp into the head. The backbone is frozen, so
// no gradient flows past the pooled features.
func (c *Classifier) Backward(gradOutput *tensor.Tensor) error {
	return c.head.Backward(gradOutput)
}

// Parameters returns the trainable tensors (head only).
func (c *Classifier) Parameters() []*tensor.Tensor {
	return c.head.Parameters()
}

// NamedParameters returns the trainable tensors with checkpoint names.
func (c *Classifier) NamedParameters() []NamedParameter {
	return []NamedParameter{
		{Name: "head.weight", Tensor: c.head.weight},
		{Name: "head.bias", Tensor: c.head.bias},
	}
}

// LoadParameters copies saved values into the matching named parameters.
func (c *Classifier) LoadParameters(params map[string][]float32) error {
	for _, np := range c.NamedParameters() {
		values, ok := params[np.Name]
		if !ok {
			return fmt.Errorf("missing parameter %q", np.Name)
		}
		dst, err := np.Tensor.GetFloat32Data()
		if err != nil {
			return err
		}
		if len(values) != len(dst) {
			return fmt.Errorf("parameter %q has %d values, expected %d", np.Name, len(values), len(dst))
		}
		copy(dst, values)
	}
	return nil
}
