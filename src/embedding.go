package lyricflow

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// =============================================================================
// EMBEDDING LAYER
// Maps word indices to dense vectors (lookup table)
// =============================================================================

type EmbeddingLayer struct {
	vocabSize   int
	embedDim    int
	initializer Initializer
	seqLen      int

	weights  *tensor // [vocabSize, embedDim]
	gradW    *tensor
	inputIdx []int // Cached input indices for backward
	built    bool
}

type EmbeddingBuilder struct {
	layer *EmbeddingLayer
}

// Embedding creates an embedding layer
// Input: word indices [batch, seqLen] (stored as float64)
// Output: dense vectors [batch, seqLen, embedDim]
func Embedding(vocabSize, embedDim int) *EmbeddingBuilder {
	return &EmbeddingBuilder{
		layer: &EmbeddingLayer{
			vocabSize: vocabSize,
			embedDim:  embedDim,
		},
	}
}

func (b *EmbeddingBuilder) WithInitializer(init Initializer) *EmbeddingBuilder {
	b.layer.initializer = init
	return b
}

func (b *EmbeddingBuilder) Build() *EmbeddingLayer {
	return b.layer
}

func (e *EmbeddingLayer) build(inputShape []int, rng *rand.Rand) error {
	if e.vocabSize <= 0 {
		return errors.New("lyricflow: Embedding requires a non-empty vocabulary")
	}
	if e.initializer == nil {
		return errors.New("lyricflow: Embedding requires initializer - use WithInitializer()")
	}
	if len(inputShape) >= 1 {
		e.seqLen = inputShape[0]
	}

	e.weights = newTensor(e.vocabSize, e.embedDim)
	e.initializer.initialize(e.weights, e.vocabSize, e.embedDim, rng)

	e.gradW = newTensor(e.vocabSize, e.embedDim)
	e.built = true
	return nil
}

func (e *EmbeddingLayer) forward(input *tensor, training bool) (*tensor, error) {
	if !e.built {
		return nil, ErrNotInitialized
	}

	batchSize := input.shape[0]
	seqLen := input.shape[1]

	e.inputIdx = make([]int, batchSize*seqLen)
	output := newTensor(batchSize, seqLen, e.embedDim)

	for i, v := range input.data {
		idx := int(v)
		if idx < 0 || idx >= e.vocabSize {
			return nil, fmt.Errorf("%w: embedding index %d (vocab size %d)", ErrIndexOutOfRange, idx, e.vocabSize)
		}
		e.inputIdx[i] = idx
		copy(output.data[i*e.embedDim:(i+1)*e.embedDim], e.weights.data[idx*e.embedDim:(idx+1)*e.embedDim])
	}

	return output, nil
}

// backward accumulates into gradW; rows that were not looked up stay untouched
func (e *EmbeddingLayer) backward(gradOutput *tensor) (*tensor, error) {
	if e.inputIdx == nil {
		return nil, errors.New("lyricflow: backward called before forward")
	}
	for i, idx := range e.inputIdx {
		dst := e.gradW.data[idx*e.embedDim : (idx+1)*e.embedDim]
		src := gradOutput.data[i*e.embedDim : (i+1)*e.embedDim]
		for d := range dst {
			dst[d] += src[d]
		}
	}

	// Indices are not differentiable
	return nil, nil
}

func (e *EmbeddingLayer) parameters() []*tensor {
	return []*tensor{e.weights}
}

func (e *EmbeddingLayer) gradients() []*tensor {
	return []*tensor{e.gradW}
}

func (e *EmbeddingLayer) outputShape() []int {
	return []int{e.seqLen, e.embedDim}
}

func (e *EmbeddingLayer) name() string { return "embedding" }
