package training

import (
	"fmt"

	"github.com/medvis/chexray/tensor"
)

// ConfusionMatrix accumulates binary classification outcomes across
// batches. Predictions are probabilities thresholded against 0.5.
type ConfusionMatrix struct {
	TP int
	FP int
	TN int
	FN int

	Threshold float32
}

// NewConfusionMatrix creates an empty binary confusion matrix with the
// standard 0.5 decision threshold.
func NewConfusionMatrix() *ConfusionMatrix {
	return &ConfusionMatrix{Threshold: 0.5}
}

// Reset clears all accumulated counts.
func (cm *ConfusionMatrix) Reset() {
	cm.TP, cm.FP, cm.TN, cm.FN = 0, 0, 0, 0
}

// Update adds a batch of probabilities and targets to the matrix. Both
// tensors must have the same number of elements, with targets in {0, 1}.
func (cm *ConfusionMatrix) Update(probs, targets *tensor.Tensor) error {
	if probs.NumElems != targets.NumElems {
		return fmt.Errorf("predictions have %d elements, targets have %d",
			probs.NumElems, targets.NumElems)
	}
	probData, err := probs.GetFloat32Data()
	if err != nil {
		return err
	}
	targetData, err := targets.GetFloat32Data()
	if err != nil {
		return err
	}

	for i := range probData {
		predicted := probData[i] >= cm.Threshold
		actual := targetData[i] >= 0.5
		switch {
		case predicted && actual:
			cm.TP++
		case predicted && !actual:
			cm.FP++
		case !predicted && actual:
			cm.FN++
		default:
			cm.TN++
		}
	}
	return nil
}

// Total returns the number of samples seen.
func (cm *ConfusionMatrix) Total() int {
	return cm.TP + cm.FP + cm.TN + cm.FN
}

// Accuracy returns the fraction of correct predictions.
func (cm *ConfusionMatrix) Accuracy() float64 {
	total := cm.Total()
	if total == 0 {
		return 0
	}
	return float64(cm.TP+cm.TN) / float64(total)
}

// Precision returns TP / (TP + FP).
func (cm *ConfusionMatrix) Precision() float64 {
	if cm.TP+cm.FP == 0 {
		return 0
	}
	return float64(cm.TP) / float64(cm.TP+cm.FP)
}

// Recall returns TP / (TP + FN), the sensitivity.
func (cm *ConfusionMatrix) Recall() float64 {
	if cm.TP+cm.FN == 0 {
		return 0
	}
	return float64(cm.TP) / float64(cm.TP+cm.FN)
}

// Specificity returns TN / (TN + FP).
func (cm *ConfusionMatrix) Specificity() float64 {
	if cm.TN+cm.FP == 0 {
		return 0
	}
	return float64(cm.TN) / float64(cm.TN+cm.FP)
}

// F1 returns the harmonic mean of precision and recall.
func (cm *ConfusionMatrix) F1() float64 {
	p := cm.Precision()
	r := cm.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (cm *ConfusionMatrix) String() string {
	return fmt.Sprintf("TP=%d FP=%d TN=%d FN=%d acc=%.4f prec=%.4f rec=%.4f f1=%.4f",
		cm.TP, cm.FP, cm.TN, cm.FN, cm.Accuracy(), cm.Precision(), cm.Recall(), cm.F1())
}
