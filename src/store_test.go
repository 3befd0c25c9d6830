package lyricflow

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreEpochHistory(t *testing.T) {
	s := openTestStore(t)

	runID, err := s.BeginRun(DefaultConfig().Train)
	if err != nil {
		t.Fatal(err)
	}
	other, err := s.BeginRun(DefaultConfig().Train)
	if err != nil {
		t.Fatal(err)
	}
	if other == runID {
		t.Fatal("runs share an id")
	}

	for epoch, loss := range []float64{3.2, 2.9, 2.5} {
		if err := s.RecordEpoch(runID, epoch, map[string]float64{"loss": loss}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RecordEpoch(other, 0, map[string]float64{"loss": 9}); err != nil {
		t.Fatal(err)
	}

	history, err := s.EpochHistory(runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("got %d epochs, expected 3", len(history))
	}
	if history[0].Epoch != 0 || history[2].Logs["loss"] != 2.5 {
		t.Errorf("history = %+v", history)
	}
}

func TestStoreRecentLyrics(t *testing.T) {
	s := openTestStore(t)
	for i, text := range []string{"first", "second", "third"} {
		if err := s.SaveLyric(LyricRecord{Seed: "seed", WordCount: i + 1, Censored: i == 1, Text: text}); err != nil {
			t.Fatal(err)
		}
	}
	recent, err := s.RecentLyrics(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Text != "second" || recent[1].Text != "third" {
		t.Fatalf("RecentLyrics = %+v", recent)
	}
	if !recent[0].Censored || recent[1].Censored {
		t.Errorf("censored flags = %v, %v", recent[0].Censored, recent[1].Censored)
	}
	if recent[0].Created.IsZero() {
		t.Error("missing timestamp")
	}
}

func TestRecordRunCallback(t *testing.T) {
	s := openTestStore(t)
	ds := tinyDataset(t)
	cfg := tinyTrainConfig()
	cfg.Epochs = 3

	runID, err := s.BeginRun(cfg)
	if err != nil {
		t.Fatal(err)
	}
	trainer, err := NewTrainer(tinyModel(t, ds.Vocab.Size()), cfg)
	if err != nil {
		t.Fatal(err)
	}
	history := History()
	if _, err := trainer.Fit(ds.Inputs, ds.Targets, []Callback{RecordRun(s, runID), history}); err != nil {
		t.Fatal(err)
	}

	stored, err := s.EpochHistory(runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored %d epochs, expected 3", len(stored))
	}
	for i, rec := range stored {
		if rec.Logs["loss"] != history.History["loss"][i] {
			t.Errorf("epoch %d loss %v, history has %v", i, rec.Logs["loss"], history.History["loss"][i])
		}
	}
}
