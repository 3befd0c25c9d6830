package lyricflow

import (
	"fmt"
	"sort"
	"strings"
)

// Vocabulary is a bijection between words and indices 0..Size()-1.
// Indices follow sorted word order. It is read-only once built.
type Vocabulary struct {
	wordToIdx map[string]int
	idxToWord []string
}

// NewVocabulary collects the distinct words of all sequences
func NewVocabulary(sequences []string) *Vocabulary {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.Join(sequences, " ")) {
		set[w] = struct{}{}
	}
	words := make([]string, 0, len(set))
	for w := range set {
		words = append(words, w)
	}
	sort.Strings(words)
	return newVocabulary(words)
}

// VocabularyFromWords rebuilds a vocabulary from its index-ordered word list
func VocabularyFromWords(words []string) (*Vocabulary, error) {
	for i := 1; i < len(words); i++ {
		if words[i-1] >= words[i] {
			return nil, errorf("vocabulary words must be sorted and unique: %q before %q", words[i-1], words[i])
		}
	}
	for i, w := range words {
		if w == "" || strings.ContainsAny(w, " \t\n") {
			return nil, errorf("invalid vocabulary word %q at %d", w, i)
		}
	}
	return newVocabulary(append([]string(nil), words...)), nil
}

func newVocabulary(words []string) *Vocabulary {
	v := &Vocabulary{
		wordToIdx: make(map[string]int, len(words)),
		idxToWord: words,
	}
	for i, w := range words {
		v.wordToIdx[w] = i
	}
	return v
}

// Index returns the index of word or ErrUnknownWord
func (v *Vocabulary) Index(word string) (int, error) {
	idx, ok := v.wordToIdx[word]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWord, word)
	}
	return idx, nil
}

// Word returns the word at index or ErrIndexOutOfRange
func (v *Vocabulary) Word(index int) (string, error) {
	if index < 0 || index >= len(v.idxToWord) {
		return "", fmt.Errorf("%w: %d (vocabulary size %d)", ErrIndexOutOfRange, index, len(v.idxToWord))
	}
	return v.idxToWord[index], nil
}

// Size returns the number of words
func (v *Vocabulary) Size() int { return len(v.idxToWord) }

// Words returns a copy of the words in index order
func (v *Vocabulary) Words() []string {
	return append([]string(nil), v.idxToWord...)
}

// Encode maps words to indices, failing on the first unknown word
func (v *Vocabulary) Encode(words []string) ([]int, error) {
	out := make([]int, len(words))
	for i, w := range words {
		idx, err := v.Index(w)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}
