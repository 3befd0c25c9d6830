package lyricflow

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Model is the word-level language model:
// Embedding -> stacked LSTM -> Dropout -> Dense(vocab) logits.
type Model struct {
	config    ModelConfig
	vocabSize int

	embedding *EmbeddingLayer
	lstm      *LSTMLayer
	dropout   *DropoutLayer
	fc        *DenseLayer

	rng      *rand.Rand
	training bool

	// Shape of the last forward batch, needed to reshape gradients
	lastBatch  int
	lastSeqLen int
}

// NewModel builds every layer for the given vocabulary size.
// Parameter shapes are fixed from here on.
func NewModel(cfg ModelConfig, vocabSize int, seed int64) (*Model, error) {
	if err := ValidateModelConfig(cfg); err != nil {
		return nil, err
	}
	if vocabSize <= 0 {
		return nil, fmt.Errorf("%w: vocabulary size %d", ErrEmptyCorpus, vocabSize)
	}

	m := &Model{
		config:    cfg,
		vocabSize: vocabSize,
		rng:       newRNG(seed),
	}

	m.embedding = Embedding(vocabSize, cfg.EmbedSize).
		WithInitializer(RandomNormal(0, 1)).
		Build()
	m.lstm = LSTM(cfg.NumHidden).
		WithNumLayers(cfg.NumLayers).
		WithDropout(cfg.Dropout).
		WithInitializer(FanUniform(true)).
		WithRecurrentInitializer(FanUniform(true)).
		WithBiasInitializer(FanUniform(true)).
		Build()
	m.dropout = Dropout(cfg.Dropout).Build()
	m.fc = Dense(vocabSize).
		WithActivation(Linear()).
		WithInitializer(FanUniform(false)).
		WithBias(true).
		WithBiasInitializer(FanUniform(false)).
		Build()

	// Sequence length is not fixed; 0 marks it as variable
	if err := m.embedding.build([]int{0}, m.rng); err != nil {
		return nil, errorf("layer 1 (%s): %v", m.embedding.name(), err)
	}
	if err := m.lstm.build([]int{0, cfg.EmbedSize}, m.rng); err != nil {
		return nil, errorf("layer 2 (%s): %v", m.lstm.name(), err)
	}
	if err := m.dropout.build([]int{0, cfg.NumHidden}, m.rng); err != nil {
		return nil, errorf("layer 3 (%s): %v", m.dropout.name(), err)
	}
	if err := m.fc.build([]int{cfg.NumHidden}, m.rng); err != nil {
		return nil, errorf("layer 4 (%s): %v", m.fc.name(), err)
	}

	return m, nil
}

// Config returns the shape configuration the model was built with
func (m *Model) Config() ModelConfig { return m.config }

// VocabSize returns the number of output classes
func (m *Model) VocabSize() int { return m.vocabSize }

// SetTraining switches dropout on (true) or off (false)
func (m *Model) SetTraining(training bool) { m.training = training }

// Training reports whether the model is in training mode
func (m *Model) Training() bool { return m.training }

// InitHidden returns zero cell and hidden state for batch sequences
func (m *Model) InitHidden(batch int) HiddenState {
	return m.lstm.initState(batch)
}

// Forward maps [batch][seqLen] word indices to logits of shape
// (batch*seqLen, vocabSize) and the state after the last position.
func (m *Model) Forward(input [][]int, state HiddenState) (*mat.Dense, HiddenState, error) {
	logits, next, err := m.forward(input, state)
	if err != nil {
		return nil, HiddenState{}, err
	}
	return mat.NewDense(logits.shape[0], logits.shape[1], logits.data), next, nil
}

func (m *Model) forward(input [][]int, state HiddenState) (*tensor, HiddenState, error) {
	if m == nil || m.embedding == nil || !m.embedding.built {
		return nil, HiddenState{}, ErrNotInitialized
	}
	idx, err := indexTensor(input)
	if err != nil {
		return nil, HiddenState{}, err
	}
	batch, seqLen := idx.shape[0], idx.shape[1]

	emb, err := m.embedding.forward(idx, m.training)
	if err != nil {
		return nil, HiddenState{}, err
	}
	out, next, err := m.lstm.forward(emb, state, m.training)
	if err != nil {
		return nil, HiddenState{}, err
	}
	out, err = m.dropout.forward(out, m.training)
	if err != nil {
		return nil, HiddenState{}, err
	}
	logits, err := m.fc.forward(out, m.training)
	if err != nil {
		return nil, HiddenState{}, err
	}

	m.lastBatch = batch
	m.lastSeqLen = seqLen
	debugf("forward batch=%d seqLen=%d logits=%v", batch, seqLen, logits.shape)

	return logits, next, nil
}

// backward propagates dL/dlogits through every layer, accumulating gradients
func (m *Model) backward(gradLogits *tensor) error {
	grad, err := m.fc.backward(gradLogits)
	if err != nil {
		return err
	}
	grad = &tensor{data: grad.data, shape: []int{m.lastBatch, m.lastSeqLen, m.config.NumHidden}}

	grad, err = m.dropout.backward(grad)
	if err != nil {
		return err
	}
	grad, err = m.lstm.backward(grad)
	if err != nil {
		return err
	}
	_, err = m.embedding.backward(grad)
	return err
}

func (m *Model) parameters() []*tensor {
	var params []*tensor
	params = append(params, m.embedding.parameters()...)
	params = append(params, m.lstm.parameters()...)
	params = append(params, m.fc.parameters()...)
	return params
}

func (m *Model) gradients() []*tensor {
	var grads []*tensor
	grads = append(grads, m.embedding.gradients()...)
	grads = append(grads, m.lstm.gradients()...)
	grads = append(grads, m.fc.gradients()...)
	return grads
}

func (m *Model) zeroGrad() {
	for _, g := range m.gradients() {
		g.zero()
	}
}

// NumParams returns the total number of trainable values
func (m *Model) NumParams() int {
	total := 0
	for _, p := range m.parameters() {
		total += p.size()
	}
	return total
}

// Summary describes the model architecture
func (m *Model) Summary() string {
	var b strings.Builder
	b.WriteString("LyricFlow Model Summary\n")
	b.WriteString("=======================\n")

	layers := []struct {
		name   string
		params []*tensor
	}{
		{m.embedding.name(), m.embedding.parameters()},
		{m.lstm.name(), m.lstm.parameters()},
		{m.dropout.name(), nil},
		{m.fc.name(), m.fc.parameters()},
	}
	for i, l := range layers {
		n := 0
		for _, p := range l.params {
			n += p.size()
		}
		fmt.Fprintf(&b, "Layer %d: %s - %d params\n", i+1, l.name, n)
	}
	b.WriteString("=======================\n")
	fmt.Fprintf(&b, "Total parameters: %d\n", m.NumParams())
	return b.String()
}
