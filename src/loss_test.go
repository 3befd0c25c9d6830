package lyricflow

import (
	"math"
	"testing"
)

func TestCrossEntropyMatchesDefinition(t *testing.T) {
	logits := &tensor{data: []float64{1, 2, 3, 0, 0, 0}, shape: []int{2, 3}}
	targets := &tensor{data: []float64{2, 0}, shape: []int{2}}

	lse := math.Log(math.Exp(1) + math.Exp(2) + math.Exp(3))
	want := ((lse - 3) + math.Log(3)) / 2

	got := CrossEntropy(CrossEntropyConfig{}).compute(logits, targets)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("loss = %v, expected %v", got, want)
	}
}

func TestCrossEntropyLargeLogitsStayFinite(t *testing.T) {
	logits := &tensor{data: []float64{1000, -1000, 0}, shape: []int{1, 3}}
	targets := &tensor{data: []float64{1}, shape: []int{1}}
	loss := CrossEntropy(CrossEntropyConfig{})

	got := loss.compute(logits, targets)
	if math.IsInf(got, 0) || math.IsNaN(got) {
		t.Fatalf("loss not finite: %v", got)
	}
	if math.Abs(got-2000) > 1e-9 {
		t.Errorf("loss = %v, expected 2000", got)
	}
}

func TestCrossEntropyGradient(t *testing.T) {
	logits := &tensor{data: []float64{0.3, -1.2, 2.0, 0.5, 0.1, -0.4}, shape: []int{2, 3}}
	targets := &tensor{data: []float64{1, 2}, shape: []int{2}}

	for _, smoothing := range []float64{0, 0.1} {
		loss := CrossEntropy(CrossEntropyConfig{LabelSmoothing: smoothing})
		grad := newTensor(2, 3)
		loss.gradient(logits, targets, grad)

		eps := 1e-6
		for i := range logits.data {
			w0 := logits.data[i]
			logits.data[i] = w0 + eps
			lp := loss.compute(logits, targets)
			logits.data[i] = w0 - eps
			lm := loss.compute(logits, targets)
			logits.data[i] = w0

			num := (lp - lm) / (2 * eps)
			if math.Abs(num-grad.data[i]) > 1e-7 {
				t.Errorf("smoothing %v: grad[%d] num=%v ana=%v", smoothing, i, num, grad.data[i])
			}
		}
	}
}

func TestTopKOrdering(t *testing.T) {
	tests := []struct {
		values []float64
		k      int
		want   []int
	}{
		{[]float64{0.1, 0.5, 0.2, 0.9}, 3, []int{3, 1, 2}},
		{[]float64{0.3, 0.3, 0.3, 0.1}, 3, []int{0, 1, 2}}, // ties keep index order
		{[]float64{0.2, 0.8}, 3, []int{1, 0}},
	}
	for _, tc := range tests {
		got := topK(tc.values, tc.k)
		if len(got) != len(tc.want) {
			t.Fatalf("topK(%v, %d) = %v, expected %v", tc.values, tc.k, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("topK(%v, %d) = %v, expected %v", tc.values, tc.k, got, tc.want)
				break
			}
		}
	}
}

func TestAccuracyMetrics(t *testing.T) {
	logits := &tensor{data: []float64{
		0.1, 0.7, 0.2, 0.0,
		0.5, 0.1, 0.3, 0.2,
		0.1, 0.2, 0.3, 0.4,
	}, shape: []int{3, 4}}
	targets := &tensor{data: []float64{1, 2, 0}, shape: []int{3}}

	acc := Accuracy()
	acc.update(logits, targets)
	if got := acc.result(); math.Abs(got-1.0/3) > 1e-12 {
		t.Errorf("accuracy = %v, expected 1/3", got)
	}

	top := TopKAccuracy(TopKConfig{K: 2})
	top.update(logits, targets)
	if got := top.result(); math.Abs(got-2.0/3) > 1e-12 {
		t.Errorf("top-2 accuracy = %v, expected 2/3", got)
	}

	top.reset()
	if top.result() != 0 {
		t.Error("reset did not clear the metric")
	}
}
