package lyricflow

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Metric accumulates a score over logits rows and their target class indices
type Metric interface {
	reset()
	update(logits, targets *tensor)
	result() float64
	name() string
}

// AccuracyMetric - fraction of rows whose argmax equals the target
type AccuracyMetric struct {
	correct int
	total   int
}

func Accuracy() Metric {
	return &AccuracyMetric{}
}

func (a *AccuracyMetric) reset() {
	a.correct = 0
	a.total = 0
}

func (a *AccuracyMetric) update(logits, targets *tensor) {
	numClasses := logits.shape[len(logits.shape)-1]
	rows := len(logits.data) / numClasses
	for i := 0; i < rows; i++ {
		if floats.MaxIdx(logits.data[i*numClasses:(i+1)*numClasses]) == int(targets.data[i]) {
			a.correct++
		}
		a.total++
	}
}

func (a *AccuracyMetric) result() float64 {
	if a.total == 0 {
		return 0
	}
	return float64(a.correct) / float64(a.total)
}

func (a *AccuracyMetric) name() string { return "accuracy" }

// TopKAccuracyMetric - fraction of rows whose target is among the k best logits
type TopKAccuracyMetric struct {
	K       int
	correct int
	total   int
}

type TopKConfig struct {
	K int
}

func TopKAccuracy(config TopKConfig) Metric {
	return &TopKAccuracyMetric{K: config.K}
}

func (t *TopKAccuracyMetric) reset() {
	t.correct = 0
	t.total = 0
}

func (t *TopKAccuracyMetric) update(logits, targets *tensor) {
	numClasses := logits.shape[len(logits.shape)-1]
	rows := len(logits.data) / numClasses

	for i := 0; i < rows; i++ {
		target := int(targets.data[i])
		for _, idx := range topK(logits.data[i*numClasses:(i+1)*numClasses], t.K) {
			if idx == target {
				t.correct++
				break
			}
		}
		t.total++
	}
}

func (t *TopKAccuracyMetric) result() float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.correct) / float64(t.total)
}

func (t *TopKAccuracyMetric) name() string { return "top_k_accuracy" }

// topK returns the indices of the k largest values, largest first.
// Equal values keep ascending index order.
func topK(values []float64, k int) []int {
	indices := make([]int, len(values))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return values[indices[a]] > values[indices[b]]
	})
	return indices[:minInt(k, len(indices))]
}
