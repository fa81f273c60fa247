package preprocessing

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeSolid returns an encoded image of the given size filled with one
// color.
func encodeSolid(t *testing.T, w, h int, c color.Color, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))
	case "png":
		require.NoError(t, png.Encode(&buf, img))
	default:
		t.Fatalf("unknown format %q", format)
	}
	return buf.Bytes()
}

func TestDecodeAndPreprocess(t *testing.T) {
	t.Run("white image normalizes to (1-mean)/std", func(t *testing.T) {
		p := NewImageProcessor(8)
		data := encodeSolid(t, 32, 32, color.White, "png")

		img, err := p.DecodeAndPreprocess(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 8, img.Width)
		assert.Equal(t, 8, img.Height)
		assert.Equal(t, 3, img.Channels)
		assert.Len(t, img.Data, 3*8*8)

		// Channel planes carry channel-specific normalization.
		plane := 8 * 8
		assert.InDelta(t, (1.0-0.485)/0.229, float64(img.Data[0]), 1e-3)
		assert.InDelta(t, (1.0-0.456)/0.224, float64(img.Data[plane]), 1e-3)
		assert.InDelta(t, (1.0-0.406)/0.225, float64(img.Data[2*plane]), 1e-3)
	})

	t.Run("black image normalizes to -mean/std", func(t *testing.T) {
		p := NewImageProcessor(4)
		data := encodeSolid(t, 10, 20, color.Black, "jpeg")

		img, err := p.DecodeAndPreprocess(bytes.NewReader(data))
		require.NoError(t, err)
		assert.InDelta(t, -0.485/0.229, float64(img.Data[0]), 1e-2)
	})

	t.Run("jpeg and png both decode", func(t *testing.T) {
		p := NewImageProcessor(4)
		for _, format := range []string{"jpeg", "png"} {
			data := encodeSolid(t, 6, 6, color.Gray{Y: 128}, format)
			_, err := p.DecodeAndPreprocess(bytes.NewReader(data))
			require.NoError(t, err, format)
		}
	})

	t.Run("garbage input fails", func(t *testing.T) {
		p := NewImageProcessor(4)
		_, err := p.DecodeAndPreprocess(bytes.NewReader([]byte("not an image")))
		assert.Error(t, err)
	})

	t.Run("buffer reuse does not alias results", func(t *testing.T) {
		p := NewImageProcessor(4)
		white, err := p.DecodeAndPreprocess(bytes.NewReader(encodeSolid(t, 8, 8, color.White, "png")))
		require.NoError(t, err)
		first := white.Data[0]

		_, err = p.DecodeAndPreprocess(bytes.NewReader(encodeSolid(t, 8, 8, color.Black, "png")))
		require.NoError(t, err)
		assert.Equal(t, first, white.Data[0])
	})
}

func TestHorizontalFlip(t *testing.T) {
	// 1 channel, 2x2: row [1 2] flips to [2 1].
	data := []float32{
		1, 2,
		3, 4,
	}
	require.NoError(t, HorizontalFlip(data, 1, 2))
	assert.Equal(t, []float32{2, 1, 4, 3}, data)

	t.Run("double flip is identity", func(t *testing.T) {
		data := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}
		orig := append([]float32(nil), data...)
		require.NoError(t, HorizontalFlip(data, 1, 3))
		require.NoError(t, HorizontalFlip(data, 1, 3))
		assert.Equal(t, orig, data)
	})

	t.Run("length mismatch", func(t *testing.T) {
		assert.Error(t, HorizontalFlip([]float32{1, 2, 3}, 1, 2))
	})
}
