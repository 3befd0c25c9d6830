package lyricflow

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// GeneratorConfig wires the generation pipeline. Checker and Censor are
// optional; Store, when set, records every produced lyric.
type GeneratorConfig struct {
	Sample  SampleConfig
	Checker GrammarChecker
	Censor  Censor
	Store   *Store
}

// Generator owns everything GetLyric needs: vocabulary, model, sampler,
// post-processors, cache and store.
type Generator struct {
	mu      sync.Mutex
	model   *Model
	vocab   *Vocabulary
	sampler *Sampler
	config  GeneratorConfig
	cache   *lru.Cache // nil when disabled or not deterministic
}

type lyricKey struct {
	seed      string
	censor    bool
	wordCount int
}

// NewGenerator builds a Generator around a trained model
func NewGenerator(model *Model, vocab *Vocabulary, cfg GeneratorConfig) (*Generator, error) {
	sampler, err := NewSampler(model, vocab, cfg.Sample)
	if err != nil {
		return nil, err
	}
	g := &Generator{
		model:   model,
		vocab:   vocab,
		sampler: sampler,
		config:  cfg,
	}
	if cfg.Sample.CacheSize > 0 && cfg.Sample.Selection == SelectionTop1 {
		g.cache, err = lru.New(cfg.Sample.CacheSize)
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Vocabulary returns the generator's vocabulary
func (g *Generator) Vocabulary() *Vocabulary { return g.vocab }

// Generate returns raw sampler output without post-processing
func (g *Generator) Generate(seed string, wordCount int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sampler.Generate(seed, wordCount)
}

// GetLyric generates wordCount words after seed, applies grammar
// corrections and, only when censor is true, masks profanity.
// Errors from the checker or censor are returned unchanged.
func (g *Generator) GetLyric(seed string, censor bool, wordCount int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := lyricKey{seed: seed, censor: censor, wordCount: wordCount}
	if g.cache != nil {
		if v, ok := g.cache.Get(key); ok {
			debugf("lyric cache hit for %q", seed)
			return v.(string), nil
		}
	}

	text, err := g.sampler.Generate(seed, wordCount)
	if err != nil {
		return "", err
	}

	if g.config.Checker != nil {
		suggestions, err := g.config.Checker.Check(text)
		if err != nil {
			return "", err
		}
		text, err = g.config.Checker.Correct(text, suggestions)
		if err != nil {
			return "", err
		}
	}

	if censor && g.config.Censor != nil {
		text, err = g.config.Censor.Censor(text)
		if err != nil {
			return "", err
		}
	}

	if g.cache != nil {
		g.cache.Add(key, text)
	}
	if g.config.Store != nil {
		if err := g.config.Store.SaveLyric(LyricRecord{
			Seed:      seed,
			WordCount: wordCount,
			Censored:  censor,
			Text:      text,
		}); err != nil {
			return "", err
		}
	}
	return text, nil
}
