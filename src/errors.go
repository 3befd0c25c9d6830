package lyricflow

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// =============================================================================
// ERROR TYPES
// Sentinels for conditions callers branch on, plus a detailed error for
// numerical failures inside the pipeline.
// =============================================================================

var (
	// ErrUnknownWord is returned when a word has no vocabulary index.
	ErrUnknownWord = errors.New("lyricflow: unknown word")
	// ErrIndexOutOfRange is returned when an index has no vocabulary word.
	ErrIndexOutOfRange = errors.New("lyricflow: index out of range")
	// ErrNotInitialized is returned when a model or generator is used before it is built.
	ErrNotInitialized = errors.New("lyricflow: model not initialized")
	// ErrEmptyCorpus is returned when no usable training data remains after cleaning.
	ErrEmptyCorpus = errors.New("lyricflow: empty corpus")
	// ErrEmptySeed is returned when generation is seeded with no words.
	ErrEmptySeed = errors.New("lyricflow: empty seed text")
	// ErrInvalidWordCount is returned when fewer than one word is requested.
	ErrInvalidWordCount = errors.New("lyricflow: word count must be >= 1")
	// ErrShapeMismatch is returned when tensors or state disagree on shape.
	ErrShapeMismatch = errors.New("lyricflow: shape mismatch")
)

// TensorInfo captures tensor state for error reporting
type TensorInfo struct {
	Shape      []int
	Size       int
	NaNCount   int
	InfCount   int
	MinValue   float64
	MaxValue   float64
	BadIndices []int // First 10 corrupted indices
}

// Format returns a compact string representation
func (t *TensorInfo) Format() string {
	s := fmt.Sprintf("%v size=%d", t.Shape, t.Size)
	if t.NaNCount > 0 || t.InfCount > 0 {
		s += fmt.Sprintf(" (corrupt: %d NaN, %d Inf)", t.NaNCount, t.InfCount)
	} else {
		s += fmt.Sprintf(" range=[%.4f, %.4f]", t.MinValue, t.MaxValue)
	}
	return s
}

// PipelineError reports a failure inside a pipeline component
type PipelineError struct {
	Component string      // "trainer", "model", "sampler", ...
	ErrorType string      // "NaN detected", "Inf detected", ...
	Phase     string      // "forward", "backward", "loss", "generate"
	Epoch     int         // 0-indexed, -1 when not training
	Batch     int         // 0-indexed, -1 when not training
	Info      *TensorInfo // nil if not relevant
	Cause     string      // human-readable cause
	Err       error       // wrapped sentinel, may be nil
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "lyricflow: %s %s during %s", e.Component, e.ErrorType, e.Phase)
	if e.Epoch >= 0 {
		fmt.Fprintf(&b, " (epoch %d, batch %d)", e.Epoch, e.Batch)
	}
	b.WriteString("\n")

	if e.Info != nil {
		fmt.Fprintf(&b, "  tensor: %s\n", e.Info.Format())
	}

	fmt.Fprintf(&b, "  cause:  %s", e.Cause)

	return b.String()
}

// Unwrap exposes the wrapped sentinel to errors.Is
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// ScanTensor checks for NaN/Inf and collects stats
func ScanTensor(t *tensor) *TensorInfo {
	if t == nil {
		return nil
	}

	info := &TensorInfo{
		Shape:      t.shape,
		Size:       len(t.data),
		MinValue:   math.Inf(1),
		MaxValue:   math.Inf(-1),
		BadIndices: make([]int, 0, 10),
	}

	for i, v := range t.data {
		if math.IsNaN(v) {
			info.NaNCount++
			if len(info.BadIndices) < 10 {
				info.BadIndices = append(info.BadIndices, i)
			}
		} else if math.IsInf(v, 0) {
			info.InfCount++
			if len(info.BadIndices) < 10 {
				info.BadIndices = append(info.BadIndices, i)
			}
		} else {
			if v < info.MinValue {
				info.MinValue = v
			}
			if v > info.MaxValue {
				info.MaxValue = v
			}
		}
	}

	// Handle empty or all-corrupt tensors
	if math.IsInf(info.MinValue, 1) {
		info.MinValue = 0
	}
	if math.IsInf(info.MaxValue, -1) {
		info.MaxValue = 0
	}

	return info
}

// validateFinite returns a PipelineError when t holds NaN or Inf values
func validateFinite(t *tensor, component, phase string, epoch, batch int) error {
	info := ScanTensor(t)
	if info.NaNCount > 0 {
		return &PipelineError{
			Component: component,
			ErrorType: "NaN detected",
			Phase:     phase,
			Epoch:     epoch,
			Batch:     batch,
			Info:      info,
			Cause:     fmt.Sprintf("%d NaN values at indices %v", info.NaNCount, info.BadIndices),
		}
	}
	if info.InfCount > 0 {
		return &PipelineError{
			Component: component,
			ErrorType: "Inf detected",
			Phase:     phase,
			Epoch:     epoch,
			Batch:     batch,
			Info:      info,
			Cause:     fmt.Sprintf("%d Inf values at indices %v - likely overflow", info.InfCount, info.BadIndices),
		}
	}
	return nil
}
