package dataloader

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/medvis/chexray/tensor"
	"github.com/medvis/chexray/vision/preprocessing"
)

// Dataset is the contract a DataLoader consumes.
type Dataset interface {
	Len() int
	GetItem(index int) (imagePath string, label int, err error)
}

// Batch is one step's worth of preprocessed data. Data is [n, 3, s, s]
// float32; Labels is [n, 1] float32 with values 0 or 1, matching the
// sigmoid output of the classification head.
type Batch struct {
	Data   *tensor.Tensor
	Labels *tensor.Tensor
	Size   int
}

// Config holds configuration for a DataLoader.
type Config struct {
	BatchSize int
	ImageSize int
	Shuffle   bool
	Augment   bool // random horizontal flip, training only
	CacheSize int  // decoded images kept in the LRU cache
	Seed      int64
}

// DataLoader assembles batches from an image folder dataset. Batches cycle:
// when the dataset is exhausted mid-epoch the loader reshuffles and wraps,
// so a fixed steps-per-epoch loop never starves.
type DataLoader struct {
	dataset   Dataset
	cfg       Config
	processor *preprocessing.ImageProcessor
	cache     *lru.Cache[string, []float32]
	rng       *rand.Rand

	mu       sync.Mutex
	indices  []int
	position int
	hits     int64
	misses   int64
	skipped  int64
}

// New creates a DataLoader over the dataset.
func New(dataset Dataset, cfg Config) (*DataLoader, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.ImageSize <= 0 {
		return nil, fmt.Errorf("image size must be positive, got %d", cfg.ImageSize)
	}
	if dataset.Len() == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}

	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %v", err)
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	dl := &DataLoader{
		dataset:   dataset,
		cfg:       cfg,
		processor: preprocessing.NewImageProcessor(cfg.ImageSize),
		cache:     cache,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		indices:   indices,
	}
	if cfg.Shuffle {
		dl.shuffleLocked()
	}
	return dl, nil
}

func (dl *DataLoader) shuffleLocked() {
	dl.rng.Shuffle(len(dl.indices), func(i, j int) {
		dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
	})
}

// Reset rewinds the loader to the start of the dataset, reshuffling if
// configured.
func (dl *DataLoader) Reset() {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.position = 0
	if dl.cfg.Shuffle {
		dl.shuffleLocked()
	}
}

// Next assembles the next batch, wrapping around the dataset as needed.
// The returned batch always holds cfg.BatchSize samples unless every
// remaining image fails to decode.
func (dl *DataLoader) Next() (*Batch, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	size := dl.cfg.ImageSize
	pixelsPerImage := 3 * size * size

	data, err := tensor.Zeros([]int{dl.cfg.BatchSize, 3, size, size}, tensor.Float32)
	if err != nil {
		return nil, err
	}
	labels, err := tensor.Zeros([]int{dl.cfg.BatchSize, 1}, tensor.Float32)
	if err != nil {
		return nil, err
	}

	dataSlice := data.Data.([]float32)
	labelSlice := labels.Data.([]float32)

	filled := 0
	attempts := 0
	maxAttempts := 2 * dl.dataset.Len()

	for filled < dl.cfg.BatchSize {
		if attempts >= maxAttempts {
			if filled == 0 {
				return nil, fmt.Errorf("no loadable images after %d attempts", attempts)
			}
			break
		}
		attempts++

		if dl.position >= len(dl.indices) {
			dl.position = 0
			if dl.cfg.Shuffle {
				dl.shuffleLocked()
			}
		}

		idx := dl.indices[dl.position]
		dl.position++

		imagePath, label, err := dl.dataset.GetItem(idx)
		if err != nil {
			dl.skipped++
			continue
		}

		imgData, err := dl.loadImage(imagePath)
		if err != nil {
			dl.skipped++
			continue
		}

		region := dataSlice[filled*pixelsPerImage : (filled+1)*pixelsPerImage]
		copy(region, imgData)

		// Flip the batch copy, never the cached original.
		if dl.cfg.Augment && dl.rng.Intn(2) == 1 {
			if err := preprocessing.HorizontalFlip(region, 3, size); err != nil {
				return nil, err
			}
		}

		labelSlice[filled] = float32(label)
		filled++
	}

	if filled < dl.cfg.BatchSize {
		data, err = shrinkBatch(data, filled, pixelsPerImage)
		if err != nil {
			return nil, err
		}
		labels, err = shrinkBatch(labels, filled, 1)
		if err != nil {
			return nil, err
		}
	}

	return &Batch{Data: data, Labels: labels, Size: filled}, nil
}

func shrinkBatch(t *tensor.Tensor, n, itemSize int) (*tensor.Tensor, error) {
	shape := append([]int(nil), t.Shape...)
	shape[0] = n
	return tensor.NewTensor(shape, tensor.Float32, t.Data.([]float32)[:n*itemSize])
}

func (dl *DataLoader) loadImage(imagePath string) ([]float32, error) {
	if cached, ok := dl.cache.Get(imagePath); ok {
		dl.hits++
		return cached, nil
	}
	dl.misses++

	file, err := os.Open(imagePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	processed, err := dl.processor.DecodeAndPreprocess(file)
	if err != nil {
		return nil, err
	}

	dl.cache.Add(imagePath, processed.Data)
	return processed.Data, nil
}

// Stats describes cache behavior and skipped samples.
type Stats struct {
	CacheLen int
	Hits     int64
	Misses   int64
	Skipped  int64
}

func (s Stats) String() string {
	return fmt.Sprintf("cache=%d hits=%d misses=%d skipped=%d", s.CacheLen, s.Hits, s.Misses, s.Skipped)
}

// Stats returns a snapshot of loader statistics.
func (dl *DataLoader) Stats() Stats {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return Stats{
		CacheLen: dl.cache.Len(),
		Hits:     dl.hits,
		Misses:   dl.misses,
		Skipped:  dl.skipped,
	}
}
