package model

import (
	"fmt"

	"github.com/medvis/chexray/tensor"
)

// Backbone is the pretrained convolutional feature extractor the classifier
// fine-tunes on top of. It is a frozen external collaborator: Extract takes
// a [n, 3, s, s] image batch and returns a [n, c, h, w] feature map from
// the penultimate layer. Implementations own their weights; the trainer
// never updates them.
type Backbone interface {
	Extract(images *tensor.Tensor) (*tensor.Tensor, error)
	FeatureChannels() int
}

// PatchPoolBackbone is a parameter-free extractor that averages each color
// channel over a g x g grid of patches, producing a [n, 3*g*g, 1, 1]
// feature map. It stands in where no pretrained convolutional backbone is
// wired up (tests, smoke runs); production use plugs a real backbone behind
// the Backbone interface.
type PatchPoolBackbone struct {
	grid int
}

// NewPatchPoolBackbone creates a patch-pooling backbone with a g x g grid.
func NewPatchPoolBackbone(grid int) *PatchPoolBackbone {
	if grid <= 0 {
		grid = 7 // matches the 7x7 feature map of the usual backbones
	}
	return &PatchPoolBackbone{grid: grid}
}

func (b *PatchPoolBackbone) FeatureChannels() int {
	return 3 * b.grid * b.grid
}

func (b *PatchPoolBackbone) Extract(images *tensor.Tensor) (*tensor.Tensor, error) {
	if images.DType != tensor.Float32 {
		return nil, fmt.Errorf("images must be Float32, got %s", images.DType)
	}
	if len(images.Shape) != 4 || images.Shape[1] != 3 {
		return nil, fmt.Errorf("images must be [n, 3, s, s], got %v", images.Shape)
	}

	n := images.Shape[0]
	h := images.Shape[2]
	w := images.Shape[3]
	if h < b.grid || w < b.grid {
		return nil, fmt.Errorf("image %dx%d smaller than %dx%d grid", h, w, b.grid, b.grid)
	}

	out, err := tensor.Zeros([]int{n, b.FeatureChannels(), 1, 1}, tensor.Float32)
	if err != nil {
		return nil, err
	}

	imgData := images.Data.([]float32)
	outData := out.Data.([]float32)

	cellH := h / b.grid
	cellW := w / b.grid
	plane := h * w

	for i := 0; i < n; i++ {
		for c := 0; c < 3; c++ {
			base := i*3*plane + c*plane
			for gy := 0; gy < b.grid; gy++ {
				for gx := 0; gx < b.grid; gx++ {
					var sum float32
					count := 0
					for y := gy * cellH; y < (gy+1)*cellH; y++ {
						for x := gx * cellW; x < (gx+1)*cellW; x++ {
							sum += imgData[base+y*w+x]
							count++
						}
					}
					feature := c*b.grid*b.grid + gy*b.grid + gx
					outData[i*b.FeatureChannels()+feature] = sum / float32(count)
				}
			}
		}
	}

	return out, nil
}
