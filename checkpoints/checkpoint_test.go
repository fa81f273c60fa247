package checkpoints

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvis/chexray/model"
)

func TestCheckpointRoundTrip(t *testing.T) {
	model.SetRandomSeed(11)

	source, err := model.NewClassifier(model.NewPatchPoolBackbone(2))
	require.NoError(t, err)

	state := TrainingState{
		Epoch:        7,
		LearningRate: 0.0001,
		BestLoss:     0.42,
		BestAccuracy: 0.91,
	}
	checkpoint, err := FromClassifier(source, state)
	require.NoError(t, err)
	require.Len(t, checkpoint.Weights, 2)

	path := filepath.Join(t.TempDir(), "nested", "best.json")
	require.NoError(t, checkpoint.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, state, loaded.TrainingState)
	assert.Equal(t, "chexray", loaded.Metadata.Framework)
	assert.False(t, loaded.Metadata.CreatedAt.IsZero())

	// A fresh classifier gets different random weights; applying the
	// checkpoint must restore the saved ones exactly.
	target, err := model.NewClassifier(model.NewPatchPoolBackbone(2))
	require.NoError(t, err)
	require.NoError(t, loaded.Apply(target))

	for i, np := range target.NamedParameters() {
		data, err := np.Tensor.GetFloat32Data()
		require.NoError(t, err)
		assert.Equal(t, checkpoint.Weights[i].Data, data, np.Name)
	}
}

func TestCheckpointSnapshotIsIsolated(t *testing.T) {
	model.SetRandomSeed(5)

	clf, err := model.NewClassifier(model.NewPatchPoolBackbone(1))
	require.NoError(t, err)

	checkpoint, err := FromClassifier(clf, TrainingState{})
	require.NoError(t, err)
	saved := make([]float32, len(checkpoint.Weights[0].Data))
	copy(saved, checkpoint.Weights[0].Data)

	// Mutating the live parameters must not change the snapshot.
	live, err := clf.NamedParameters()[0].Tensor.GetFloat32Data()
	require.NoError(t, err)
	for i := range live {
		live[i] = 99
	}
	assert.Equal(t, saved, checkpoint.Weights[0].Data)
}

func TestCheckpointApplyRejectsMismatch(t *testing.T) {
	model.SetRandomSeed(5)

	small, err := model.NewClassifier(model.NewPatchPoolBackbone(1))
	require.NoError(t, err)
	large, err := model.NewClassifier(model.NewPatchPoolBackbone(2))
	require.NoError(t, err)

	checkpoint, err := FromClassifier(small, TrainingState{})
	require.NoError(t, err)
	assert.Error(t, checkpoint.Apply(large))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
