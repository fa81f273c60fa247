package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/medvis/chexray/model"
)

// Checkpoint is the on-disk snapshot of a trained classifier: the head
// weights plus enough training state to resume or audit a run.
type Checkpoint struct {
	Weights []WeightTensor `json:"weights"`

	TrainingState TrainingState `json:"training_state"`

	Metadata CheckpointMetadata `json:"metadata"`
}

// WeightTensor represents a model parameter tensor with its data
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// TrainingState captures the current training progress
type TrainingState struct {
	Epoch        int     `json:"epoch"`
	LearningRate float64 `json:"learning_rate"`
	BestLoss     float64 `json:"best_loss"`
	BestAccuracy float64 `json:"best_accuracy"`
}

// CheckpointMetadata contains checkpoint metadata
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// FromClassifier builds a checkpoint from a classifier's trainable
// parameters and the given training state.
func FromClassifier(clf *model.Classifier, state TrainingState) (*Checkpoint, error) {
	if clf == nil {
		return nil, fmt.Errorf("classifier cannot be nil")
	}

	params := clf.NamedParameters()
	weights := make([]WeightTensor, 0, len(params))
	for _, np := range params {
		data, err := np.Tensor.GetFloat32Data()
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %v", np.Name, err)
		}
		copied := make([]float32, len(data))
		copy(copied, data)

		shape := make([]int, len(np.Tensor.Shape))
		copy(shape, np.Tensor.Shape)

		weights = append(weights, WeightTensor{
			Name:  np.Name,
			Shape: shape,
			Data:  copied,
		})
	}

	return &Checkpoint{
		Weights:       weights,
		TrainingState: state,
	}, nil
}

// Apply loads the checkpoint's weights into the classifier. Parameter
// names and sizes must match.
func (c *Checkpoint) Apply(clf *model.Classifier) error {
	if clf == nil {
		return fmt.Errorf("classifier cannot be nil")
	}

	params := make(map[string][]float32, len(c.Weights))
	for _, w := range c.Weights {
		params[w.Name] = w.Data
	}
	return clf.LoadParameters(params)
}

// Save writes the checkpoint as pretty-printed JSON, creating parent
// directories as needed.
func (c *Checkpoint) Save(path string) error {
	if c.Metadata.Framework == "" {
		c.Metadata.Framework = "chexray"
		c.Metadata.Version = "1.0.0"
	}
	if c.Metadata.CreatedAt.IsZero() {
		c.Metadata.CreatedAt = time.Now()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %v", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}
	return nil
}

// Load reads a checkpoint from a JSON file.
func Load(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %v", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}
	return &checkpoint, nil
}
