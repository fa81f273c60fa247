package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReduceLROnPlateauScheduler(t *testing.T) {
	t.Run("reduces after patience exhausted", func(t *testing.T) {
		s := NewReduceLROnPlateauScheduler(0.1, 2, 1e-4, "min")

		lr := s.Step(1.0, 0.001) // initializes best
		assert.Equal(t, 0.001, lr)

		lr = s.Step(1.0, lr) // bad epoch 1
		assert.Equal(t, 0.001, lr)

		lr = s.Step(1.0, lr) // bad epoch 2 -> reduce
		assert.InDelta(t, 0.0001, lr, 1e-12)
	})

	t.Run("improvement resets patience", func(t *testing.T) {
		s := NewReduceLROnPlateauScheduler(0.1, 2, 1e-4, "min")

		lr := s.Step(1.0, 0.001)
		lr = s.Step(1.0, lr)  // bad epoch 1
		lr = s.Step(0.5, lr)  // improvement resets counter
		lr = s.Step(0.51, lr) // bad epoch 1 again
		assert.Equal(t, 0.001, lr)
	})

	t.Run("threshold gates tiny improvements", func(t *testing.T) {
		s := NewReduceLROnPlateauScheduler(0.5, 1, 0.01, "min")

		lr := s.Step(1.0, 0.001)
		// 0.995 is within the threshold of the best, so it counts as
		// a bad epoch and triggers a reduction at patience 1.
		lr = s.Step(0.995, lr)
		assert.InDelta(t, 0.0005, lr, 1e-12)
	})

	t.Run("max mode tracks increasing metrics", func(t *testing.T) {
		s := NewReduceLROnPlateauScheduler(0.1, 1, 1e-4, "max")

		lr := s.Step(0.5, 0.01)
		lr = s.Step(0.6, lr) // improvement
		assert.Equal(t, 0.01, lr)
		lr = s.Step(0.55, lr) // worse -> reduce at patience 1
		assert.InDelta(t, 0.001, lr, 1e-12)
	})

	t.Run("invalid arguments fall back to defaults", func(t *testing.T) {
		s := NewReduceLROnPlateauScheduler(2.0, -1, -1, "bogus")
		assert.Equal(t, 0.1, s.Factor)
		assert.Equal(t, 10, s.Patience)
		assert.Equal(t, 1e-4, s.Threshold)
		assert.Equal(t, "min", s.Mode)
	})
}

func TestNoOpScheduler(t *testing.T) {
	s := &NoOpScheduler{}
	assert.Equal(t, 0.001, s.Step(42.0, 0.001))
	assert.Equal(t, "ConstantLR", s.GetName())
}
