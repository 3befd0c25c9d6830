package lyricflow

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Sampler extends seed text one word at a time with a trained Model
type Sampler struct {
	model  *Model
	vocab  *Vocabulary
	config SampleConfig
	rng    *rand.Rand
}

// NewSampler checks that model and vocab agree and cfg is valid
func NewSampler(model *Model, vocab *Vocabulary, cfg SampleConfig) (*Sampler, error) {
	if model == nil || vocab == nil {
		return nil, ErrNotInitialized
	}
	if err := ValidateSampleConfig(cfg); err != nil {
		return nil, err
	}
	if model.VocabSize() != vocab.Size() {
		return nil, fmt.Errorf("%w: model has %d classes, vocabulary %d words", ErrShapeMismatch, model.VocabSize(), vocab.Size())
	}
	return &Sampler{
		model:  model,
		vocab:  vocab,
		config: cfg,
		rng:    newRNG(cfg.Seed),
	}, nil
}

// Predict runs one word through the model and picks the next word from the
// TopK most probable candidates: always the best one for SelectionTop1,
// uniformly among them for SelectionRandom.
func (s *Sampler) Predict(word string, state HiddenState) (string, HiddenState, error) {
	idx, err := s.vocab.Index(word)
	if err != nil {
		return "", HiddenState{}, err
	}
	logits, next, err := s.model.forward([][]int{{idx}}, state)
	if err != nil {
		return "", HiddenState{}, err
	}

	probs := make([]float64, logits.shape[1])
	softmaxRow(logits.data[:logits.shape[1]], probs)

	candidates := topK(probs, s.config.TopK)
	choice := candidates[0]
	if s.config.Selection == SelectionRandom {
		choice = candidates[s.rng.IntN(len(candidates))]
	}

	out, err := s.vocab.Word(choice)
	if err != nil {
		return "", HiddenState{}, err
	}
	return out, next, nil
}

// Generate warms a fresh state on every word of seed, then appends
// wordCount predicted words. The result is the seed followed by the
// generated words, space separated.
func (s *Sampler) Generate(seed string, wordCount int) (string, error) {
	if wordCount < 1 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidWordCount, wordCount)
	}
	tokens := strings.Fields(seed)
	if len(tokens) == 0 {
		return "", ErrEmptySeed
	}

	wasTraining := s.model.Training()
	s.model.SetTraining(false)
	defer s.model.SetTraining(wasTraining)

	state := s.model.InitHidden(1)
	var next string
	var err error
	for _, tok := range tokens {
		next, state, err = s.Predict(tok, state)
		if err != nil {
			return "", err
		}
	}

	out := append(tokens, next)
	for i := 1; i < wordCount; i++ {
		next, state, err = s.Predict(next, state)
		if err != nil {
			return "", err
		}
		out = append(out, next)
	}
	return strings.Join(out, " "), nil
}
