// Package lyricflow trains a word-level LSTM language model on a lyric corpus
// and samples new lyrics from it.
//
// Like the rest of the API, every hyperparameter is explicit. Start from
// DefaultConfig and override what you need.
//
// Basic usage:
//
//	cfg := lyricflow.DefaultConfig()
//	lines, err := lyricflow.ReadCorpus(cfg.CorpusPath)
//	ds, err := lyricflow.Prepare(lines, cfg.Window)
//
//	model, err := lyricflow.NewModel(cfg.Model, ds.Vocab.Size(), cfg.Seed)
//	trainer, err := lyricflow.NewTrainer(model, cfg.Train)
//	result, err := trainer.Fit(ds.Inputs, ds.Targets, []lyricflow.Callback{
//		lyricflow.PrintProgress(lyricflow.PrintProgressConfig{PrintEvery: 1}),
//	})
//
//	gen, err := lyricflow.NewGenerator(model, ds.Vocab, lyricflow.GeneratorConfig{
//		Sample:  cfg.Sample,
//		Checker: lyricflow.NewRuleChecker(),
//		Censor:  lyricflow.NewProfanityCensor(cfg.Censor),
//	})
//	text, err := gen.GetLyric("chicago", true, 10)
package lyricflow

import "log"

// Version of the lyricflow library
const Version = "1.0.0"

// DebugMode enables batch-level logging during training
var DebugMode = false

// SetDebug enables or disables debug mode
func SetDebug(enabled bool) {
	DebugMode = enabled
}

func debugf(format string, args ...interface{}) {
	if DebugMode {
		log.Printf("lyricflow: "+format, args...)
	}
}
