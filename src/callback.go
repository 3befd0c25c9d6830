package lyricflow

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// Callback is called during training at various points.
// An error from onEpochEnd aborts Fit.
type Callback interface {
	onTrainBegin(logs map[string]float64)
	onTrainEnd(logs map[string]float64)
	onEpochBegin(epoch int, logs map[string]float64)
	onEpochEnd(epoch int, logs map[string]float64) error
	onBatchEnd(batch int, logs map[string]float64)
	name() string
}

// formatLogs renders logs with sorted keys
func formatLogs(logs map[string]float64) string {
	keys := make([]string, 0, len(logs))
	for k := range logs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%.4f", k, logs[k])
	}
	return b.String()
}

// PrintProgressCallback logs training progress
type PrintProgressCallback struct {
	PrintEvery int
}

type PrintProgressConfig struct {
	PrintEvery int
}

func PrintProgress(config PrintProgressConfig) Callback {
	if config.PrintEvery <= 0 {
		config.PrintEvery = 1
	}
	return &PrintProgressCallback{PrintEvery: config.PrintEvery}
}

func (p *PrintProgressCallback) onTrainBegin(logs map[string]float64) {
	log.Println("Training started...")
}

func (p *PrintProgressCallback) onTrainEnd(logs map[string]float64) {
	log.Printf("Training complete. %s", formatLogs(logs))
}

func (p *PrintProgressCallback) onEpochBegin(epoch int, logs map[string]float64) {}

func (p *PrintProgressCallback) onEpochEnd(epoch int, logs map[string]float64) error {
	if (epoch+1)%p.PrintEvery == 0 {
		log.Printf("Epoch %d: %s", epoch+1, formatLogs(logs))
	}
	return nil
}

func (p *PrintProgressCallback) onBatchEnd(batch int, logs map[string]float64) {}
func (p *PrintProgressCallback) name() string                                  { return "print_progress" }

// HistoryCallback records per-epoch logs
type HistoryCallback struct {
	History map[string][]float64
}

func History() *HistoryCallback {
	return &HistoryCallback{
		History: make(map[string][]float64),
	}
}

func (h *HistoryCallback) onTrainBegin(logs map[string]float64) {
	h.History = make(map[string][]float64)
}

func (h *HistoryCallback) onTrainEnd(logs map[string]float64) {}

func (h *HistoryCallback) onEpochBegin(epoch int, logs map[string]float64) {}

func (h *HistoryCallback) onEpochEnd(epoch int, logs map[string]float64) error {
	for k, v := range logs {
		h.History[k] = append(h.History[k], v)
	}
	return nil
}

func (h *HistoryCallback) onBatchEnd(batch int, logs map[string]float64) {}
func (h *HistoryCallback) name() string                                  { return "history" }

// RecordRunCallback writes every epoch's logs to a Store
type RecordRunCallback struct {
	Store *Store
	RunID int64
}

// RecordRun persists epoch logs under runID (see Store.BeginRun)
func RecordRun(store *Store, runID int64) Callback {
	return &RecordRunCallback{Store: store, RunID: runID}
}

func (r *RecordRunCallback) onTrainBegin(logs map[string]float64)            {}
func (r *RecordRunCallback) onTrainEnd(logs map[string]float64)              {}
func (r *RecordRunCallback) onEpochBegin(epoch int, logs map[string]float64) {}

func (r *RecordRunCallback) onEpochEnd(epoch int, logs map[string]float64) error {
	return r.Store.RecordEpoch(r.RunID, epoch, logs)
}

func (r *RecordRunCallback) onBatchEnd(batch int, logs map[string]float64) {}
func (r *RecordRunCallback) name() string                                  { return "record_run" }
