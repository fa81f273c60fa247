package preprocessing

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sync"
)

// ImageNet channel statistics. Pixel values are scaled to [0, 1] first,
// then shifted by the mean and divided by the standard deviation, matching
// the preprocessing the backbone was pretrained with.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// ImageProcessor decodes and preprocesses images for network input,
// reusing internal buffers across calls. Safe for concurrent use.
type ImageProcessor struct {
	mu              sync.Mutex
	tempImageBuffer *image.RGBA
	processBuffer   []float32
	targetSize      int
}

// NewImageProcessor creates an image processor producing square images of
// the given side length.
func NewImageProcessor(targetSize int) *ImageProcessor {
	return &ImageProcessor{
		targetSize: targetSize,
	}
}

// ProcessedImage is a normalized image in CHW layout, ready for the
// backbone.
type ProcessedImage struct {
	Data     []float32
	Width    int
	Height   int
	Channels int
}

// DecodeAndPreprocess decodes a JPEG or PNG image, resizes it to the target
// size, scales pixels to [0, 1], and applies ImageNet normalization.
// The result is CHW float32 data.
func (p *ImageProcessor) DecodeAndPreprocess(reader io.Reader) (*ProcessedImage, error) {
	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image has empty bounds %v", bounds)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tempImageBuffer == nil || p.tempImageBuffer.Bounds().Dx() != p.targetSize || p.tempImageBuffer.Bounds().Dy() != p.targetSize {
		p.tempImageBuffer = image.NewRGBA(image.Rect(0, 0, p.targetSize, p.targetSize))
	}
	targetImg := p.tempImageBuffer

	// Nearest-neighbor resize. X-rays arrive at wildly varying resolutions;
	// interpolation quality is not a factor for a 224x224 input.
	scaleX := float64(width) / float64(p.targetSize)
	scaleY := float64(height) / float64(p.targetSize)

	for y := 0; y < p.targetSize; y++ {
		for x := 0; x < p.targetSize; x++ {
			srcX := bounds.Min.X + int(float64(x)*scaleX)
			srcY := bounds.Min.Y + int(float64(y)*scaleY)

			if srcX >= bounds.Max.X {
				srcX = bounds.Max.X - 1
			}
			if srcY >= bounds.Max.Y {
				srcY = bounds.Max.Y - 1
			}

			targetImg.Set(x, y, img.At(srcX, srcY))
		}
	}

	requiredSize := 3 * p.targetSize * p.targetSize
	if len(p.processBuffer) < requiredSize {
		p.processBuffer = make([]float32, requiredSize)
	}
	data := p.processBuffer[:requiredSize]

	plane := p.targetSize * p.targetSize
	for y := 0; y < p.targetSize; y++ {
		for x := 0; x < p.targetSize; x++ {
			r, g, b, _ := targetImg.At(x, y).RGBA()

			idx := y*p.targetSize + x
			data[0*plane+idx] = (float32(r)/65535.0 - imagenetMean[0]) / imagenetStd[0]
			data[1*plane+idx] = (float32(g)/65535.0 - imagenetMean[1]) / imagenetStd[1]
			data[2*plane+idx] = (float32(b)/65535.0 - imagenetMean[2]) / imagenetStd[2]
		}
	}

	// Copy out: the process buffer is reused on the next call.
	result := make([]float32, len(data))
	copy(result, data)

	return &ProcessedImage{
		Data:     result,
		Width:    p.targetSize,
		Height:   p.targetSize,
		Channels: 3,
	}, nil
}

// HorizontalFlip mirrors CHW image data left-to-right in place. Used as the
// single training-time augmentation, per the paper.
func HorizontalFlip(data []float32, channels, size int) error {
	if len(data) != channels*size*size {
		return fmt.Errorf("data length %d does not match %d channels of %dx%d", len(data), channels, size, size)
	}

	plane := size * size
	for c := 0; c < channels; c++ {
		for y := 0; y < size; y++ {
			row := c*plane + y*size
			for x := 0; x < size/2; x++ {
				data[row+x], data[row+size-1-x] = data[row+size-1-x], data[row+x]
			}
		}
	}
	return nil
}
