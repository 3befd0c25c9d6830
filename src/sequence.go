package lyricflow

import (
	"fmt"
	"strings"
)

// CreateSequences slices line into every run of window+1 consecutive words.
// A line of window words or fewer is returned unchanged as the only element.
func CreateSequences(line string, window int) []string {
	words := strings.Fields(line)
	if len(words) <= window {
		return []string{line}
	}
	seqs := make([]string, 0, len(words)-window)
	for i := window; i < len(words); i++ {
		seqs = append(seqs, strings.Join(words[i-window:i+1], " "))
	}
	return seqs
}

// BuildSequences runs CreateSequences over every line and deduplicates
// the result, keeping first occurrences.
func BuildSequences(lines []string, window int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ln := range lines {
		for _, s := range CreateSequences(ln, window) {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// EncodeSequences splits each window+1 word sequence into a context of the
// first window words and a target shifted one word ahead. Shorter
// sequences cannot form a fixed-width pair and are skipped.
func EncodeSequences(seqs []string, vocab *Vocabulary, window int) (inputs, targets [][]int, err error) {
	for _, s := range seqs {
		words := strings.Fields(s)
		if len(words) != window+1 {
			continue
		}
		idx, err := vocab.Encode(words)
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, idx[:window])
		targets = append(targets, idx[1:])
	}
	return inputs, targets, nil
}

// Dataset is a corpus prepared for training
type Dataset struct {
	Sequences []string
	Vocab     *Vocabulary
	Inputs    [][]int
	Targets   [][]int
}

// Prepare builds sequences, the vocabulary and encoded training pairs from
// normalized corpus lines.
func Prepare(lines []string, window int) (*Dataset, error) {
	if window <= 0 {
		return nil, errorf("window must be > 0, got %d", window)
	}
	seqs := BuildSequences(lines, window)
	if len(seqs) == 0 {
		return nil, fmt.Errorf("%w: no sequences", ErrEmptyCorpus)
	}
	vocab := NewVocabulary(seqs)
	if vocab.Size() == 0 {
		return nil, fmt.Errorf("%w: no words", ErrEmptyCorpus)
	}
	inputs, targets, err := EncodeSequences(seqs, vocab, window)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no line has more than %d words", ErrEmptyCorpus, window)
	}
	debugf("prepared %d sequences, %d pairs, vocabulary %d", len(seqs), len(inputs), vocab.Size())
	return &Dataset{
		Sequences: seqs,
		Vocab:     vocab,
		Inputs:    inputs,
		Targets:   targets,
	}, nil
}
