package lyricflow

import (
	"errors"
	"math"
	"testing"
)

func tinyTrainConfig() TrainConfig {
	cfg := DefaultConfig().Train
	cfg.Epochs = 25
	cfg.BatchSize = 4
	cfg.LR = 0.01
	return cfg
}

// countingCallback counts batches per epoch and can fail an epoch
type countingCallback struct {
	batches   []int
	failEpoch int
	began     bool
	ended     bool
}

func (c *countingCallback) onTrainBegin(logs map[string]float64) { c.began = true }
func (c *countingCallback) onTrainEnd(logs map[string]float64)   { c.ended = true }
func (c *countingCallback) onEpochBegin(epoch int, logs map[string]float64) {
	c.batches = append(c.batches, 0)
}
func (c *countingCallback) onEpochEnd(epoch int, logs map[string]float64) error {
	if epoch == c.failEpoch {
		return errors.New("stop here")
	}
	return nil
}
func (c *countingCallback) onBatchEnd(batch int, logs map[string]float64) {
	c.batches[len(c.batches)-1]++
}
func (c *countingCallback) name() string { return "counting" }

func TestFitReducesLoss(t *testing.T) {
	ds := tinyDataset(t)
	m := tinyModel(t, ds.Vocab.Size())
	trainer, err := NewTrainer(m, tinyTrainConfig())
	if err != nil {
		t.Fatal(err)
	}

	result, err := trainer.Fit(ds.Inputs, ds.Targets, nil)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	losses := result.History["loss"]
	if len(losses) != 25 {
		t.Fatalf("history has %d epochs, expected 25", len(losses))
	}
	if losses[len(losses)-1] >= losses[0] {
		t.Errorf("loss did not decrease: first=%.4f last=%.4f", losses[0], losses[len(losses)-1])
	}
	for _, key := range []string{"accuracy", "top_k_accuracy", "perplexity"} {
		if _, ok := result.FinalMetrics[key]; !ok {
			t.Errorf("missing final metric %q", key)
		}
	}
	if math.Abs(result.FinalMetrics["perplexity"]-math.Exp(result.FinalLoss)) > 1e-9 {
		t.Errorf("perplexity %v != exp(loss %v)", result.FinalMetrics["perplexity"], result.FinalLoss)
	}
	if result.FinalMetrics["top_k_accuracy"] < result.FinalMetrics["accuracy"] {
		t.Error("top-k accuracy below top-1 accuracy")
	}
	if m.Training() {
		t.Error("model left in training mode after Fit")
	}
}

func TestFitBatching(t *testing.T) {
	ds := tinyDataset(t)
	n := len(ds.Inputs)

	for _, dropLast := range []bool{true, false} {
		cfg := tinyTrainConfig()
		cfg.Epochs = 2
		cfg.BatchSize = 5
		cfg.DropLast = dropLast

		m := tinyModel(t, ds.Vocab.Size())
		trainer, err := NewTrainer(m, cfg)
		if err != nil {
			t.Fatal(err)
		}
		cb := &countingCallback{failEpoch: -1}
		if _, err := trainer.Fit(ds.Inputs, ds.Targets, []Callback{cb}); err != nil {
			t.Fatalf("dropLast=%v: %v", dropLast, err)
		}

		want := n / 5
		if !dropLast && n%5 != 0 {
			want++
		}
		if len(cb.batches) != 2 || cb.batches[0] != want || cb.batches[1] != want {
			t.Errorf("dropLast=%v: batches per epoch %v, expected %d", dropLast, cb.batches, want)
		}
		if !cb.began || !cb.ended {
			t.Errorf("train begin/end callbacks not called")
		}
	}
}

func TestFitTooFewPairs(t *testing.T) {
	ds := tinyDataset(t)
	cfg := tinyTrainConfig()
	cfg.BatchSize = len(ds.Inputs) + 1

	trainer, err := NewTrainer(tinyModel(t, ds.Vocab.Size()), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := trainer.Fit(ds.Inputs, ds.Targets, nil); !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("expected ErrEmptyCorpus, got %v", err)
	}

	cfg.DropLast = false
	cfg.Epochs = 1
	trainer, err = NewTrainer(tinyModel(t, ds.Vocab.Size()), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := trainer.Fit(ds.Inputs, ds.Targets, nil); err != nil {
		t.Errorf("single partial batch without DropLast: %v", err)
	}
}

func TestFitCallbackErrorAborts(t *testing.T) {
	ds := tinyDataset(t)
	cfg := tinyTrainConfig()
	cfg.Epochs = 5

	trainer, err := NewTrainer(tinyModel(t, ds.Vocab.Size()), cfg)
	if err != nil {
		t.Fatal(err)
	}
	cb := &countingCallback{failEpoch: 1}
	if _, err := trainer.Fit(ds.Inputs, ds.Targets, []Callback{cb}); err == nil {
		t.Fatal("expected callback error")
	}
	if len(cb.batches) != 2 {
		t.Errorf("ran %d epochs, expected to stop after 2", len(cb.batches))
	}
}

func TestFitShuffleKeepsCallerOrder(t *testing.T) {
	ds := tinyDataset(t)
	first := append([]int(nil), ds.Inputs[0]...)

	cfg := tinyTrainConfig()
	cfg.Epochs = 2
	cfg.Shuffle = true
	trainer, err := NewTrainer(tinyModel(t, ds.Vocab.Size()), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := trainer.Fit(ds.Inputs, ds.Targets, nil); err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if ds.Inputs[0][i] != first[i] {
			t.Fatal("Fit reordered the caller's inputs")
		}
	}
}

func TestFitInputErrors(t *testing.T) {
	m := tinyModel(t, 5)
	trainer, err := NewTrainer(m, tinyTrainConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := trainer.Fit(nil, nil, nil); !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("no data: got %v", err)
	}
	if _, err := trainer.Fit([][]int{{1}}, [][]int{{1}, {2}}, nil); err == nil {
		t.Error("length mismatch accepted")
	}
	if _, err := NewTrainer(nil, tinyTrainConfig()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("nil model: got %v", err)
	}
	bad := tinyTrainConfig()
	bad.GradientClip.Mode = ""
	if _, err := NewTrainer(m, bad); err == nil {
		t.Error("empty clip mode accepted")
	}
}
