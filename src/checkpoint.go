package lyricflow

import (
	"encoding/json"
	"fmt"
	"os"
)

// ModelState is the serialized form of a trained model and its vocabulary.
// Optimizer state is not included.
type ModelState struct {
	Version string      `json:"version"`
	Config  ModelConfig `json:"config"`
	Words   []string    `json:"words"`
	Weights [][]float64 `json:"weights"`
	Shapes  [][]int     `json:"shapes"`
}

// SaveCheckpoint writes model weights and vocabulary to path as JSON
func SaveCheckpoint(path string, model *Model, vocab *Vocabulary) error {
	if model == nil || vocab == nil {
		return ErrNotInitialized
	}
	state := ModelState{
		Version: Version,
		Config:  model.Config(),
		Words:   vocab.Words(),
		Weights: make([][]float64, 0),
		Shapes:  make([][]int, 0),
	}
	for _, p := range model.parameters() {
		data := make([]float64, len(p.data))
		copy(data, p.data)
		state.Weights = append(state.Weights, data)
		state.Shapes = append(state.Shapes, p.shape)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("lyricflow: save checkpoint: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	if err := encoder.Encode(state); err != nil {
		return fmt.Errorf("lyricflow: save checkpoint: %w", err)
	}
	return file.Close()
}

// LoadCheckpoint rebuilds the model and vocabulary saved at path.
// The model is returned in evaluation mode.
func LoadCheckpoint(path string) (*Model, *Vocabulary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("lyricflow: load checkpoint: %w", err)
	}
	defer file.Close()

	var state ModelState
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&state); err != nil {
		return nil, nil, fmt.Errorf("lyricflow: decode checkpoint %s: %w", path, err)
	}

	vocab, err := VocabularyFromWords(state.Words)
	if err != nil {
		return nil, nil, err
	}
	model, err := NewModel(state.Config, vocab.Size(), 0)
	if err != nil {
		return nil, nil, err
	}

	params := model.parameters()
	if len(params) != len(state.Weights) || len(params) != len(state.Shapes) {
		return nil, nil, errorf("weight count mismatch: checkpoint has %d tensors, model %d", len(state.Weights), len(params))
	}
	for i, p := range params {
		if err := validateShape(p.shape, state.Shapes[i]); err != nil {
			return nil, nil, fmt.Errorf("tensor %d: %w", i, err)
		}
		if len(state.Weights[i]) != len(p.data) {
			return nil, nil, fmt.Errorf("%w: tensor %d has %d values, expected %d", ErrShapeMismatch, i, len(state.Weights[i]), len(p.data))
		}
		copy(p.data, state.Weights[i])
	}

	model.SetTraining(false)
	return model, vocab, nil
}
