package lyricflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration - ALL fields required
type Config struct {
	CorpusPath     string       `yaml:"corpus_path"`
	CheckpointPath string       `yaml:"checkpoint_path"`
	StorePath      string       `yaml:"store_path"` // "" disables the sqlite store
	Seed           int64        `yaml:"seed"`
	Window         int          `yaml:"window"` // context words per training pair
	Model          ModelConfig  `yaml:"model"`
	Train          TrainConfig  `yaml:"train"`
	Sample         SampleConfig `yaml:"sample"`
	Censor         CensorConfig `yaml:"censor"`
}

// ModelConfig fixes the parameter shapes of the recurrent model
type ModelConfig struct {
	EmbedSize int     `yaml:"embed_size"`
	NumHidden int     `yaml:"num_hidden"`
	NumLayers int     `yaml:"num_layers"`
	Dropout   float64 `yaml:"dropout"` // between LSTM layers and before the projection
}

// TrainConfig holds all training configuration - ALL fields required
type TrainConfig struct {
	Epochs       int                `yaml:"epochs"`
	BatchSize    int                `yaml:"batch_size"`
	Shuffle      bool               `yaml:"shuffle"`
	DropLast     bool               `yaml:"drop_last"` // discard the final partial batch
	Seed         int64              `yaml:"seed"`
	Optimizer    string             `yaml:"optimizer"` // "adam" or "sgd"
	LR           float64            `yaml:"lr"`
	Beta1        float64            `yaml:"beta1"`
	Beta2        float64            `yaml:"beta2"`
	Epsilon      float64            `yaml:"epsilon"`
	Momentum     float64            `yaml:"momentum"`
	GradientClip GradientClipConfig `yaml:"gradient_clip"`
	TopK         int                `yaml:"top_k"` // k for the top_k_accuracy metric
}

// GradientClipConfig for gradient clipping
type GradientClipConfig struct {
	Mode     string  `yaml:"mode"` // "norm", "value", or "none"
	MaxNorm  float64 `yaml:"max_norm"`
	MaxValue float64 `yaml:"max_value"`
}

// SampleConfig controls next-word selection
type SampleConfig struct {
	TopK      int    `yaml:"top_k"`
	Selection string `yaml:"selection"` // "top1" or "random"
	Seed      int64  `yaml:"seed"`
	CacheSize int    `yaml:"cache_size"` // 0 disables the lyric cache
}

// CensorConfig extends the default profanity dictionary
type CensorConfig struct {
	ExtraWords     []string `yaml:"extra_words"`
	FalsePositives []string `yaml:"false_positives"`
}

const (
	SelectionTop1   = "top1"
	SelectionRandom = "random"
)

// DefaultConfig returns the reference hyperparameters
func DefaultConfig() Config {
	return Config{
		CorpusPath:     "lyrics.txt",
		CheckpointPath: "lyrics_model.json",
		StorePath:      "",
		Seed:           42,
		Window:         5,
		Model: ModelConfig{
			EmbedSize: 200,
			NumHidden: 256,
			NumLayers: 2,
			Dropout:   0.3,
		},
		Train: TrainConfig{
			Epochs:    20,
			BatchSize: 32,
			Shuffle:   false,
			DropLast:  true,
			Seed:      42,
			Optimizer: "adam",
			LR:        0.001,
			Beta1:     0.9,
			Beta2:     0.999,
			Epsilon:   1e-8,
			Momentum:  0,
			GradientClip: GradientClipConfig{
				Mode:    "norm",
				MaxNorm: 1.0,
			},
			TopK: 3,
		},
		Sample: SampleConfig{
			TopK:      3,
			Selection: SelectionTop1,
			Seed:      42,
			CacheSize: 128,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("lyricflow: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("lyricflow: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section
func (c Config) Validate() error {
	if c.CorpusPath == "" {
		return errorf("CorpusPath is required")
	}
	if c.Window <= 0 {
		return errorf("Window must be > 0, got %d", c.Window)
	}
	if err := ValidateModelConfig(c.Model); err != nil {
		return err
	}
	if err := ValidateTrainConfig(c.Train); err != nil {
		return err
	}
	return ValidateSampleConfig(c.Sample)
}

// ValidateModelConfig checks all required fields are set
func ValidateModelConfig(cfg ModelConfig) error {
	if cfg.EmbedSize <= 0 {
		return errorf("EmbedSize must be > 0, got %d", cfg.EmbedSize)
	}
	if cfg.NumHidden <= 0 {
		return errorf("NumHidden must be > 0, got %d", cfg.NumHidden)
	}
	if cfg.NumLayers <= 0 {
		return errorf("NumLayers must be > 0, got %d", cfg.NumLayers)
	}
	if cfg.Dropout < 0 || cfg.Dropout >= 1 {
		return errorf("Dropout must be in [0, 1), got %f", cfg.Dropout)
	}
	return nil
}

// ValidateTrainConfig checks all required fields are set
func ValidateTrainConfig(cfg TrainConfig) error {
	if cfg.Epochs <= 0 {
		return errorf("Epochs must be > 0, got %d", cfg.Epochs)
	}
	if cfg.BatchSize <= 0 {
		return errorf("BatchSize must be > 0, got %d", cfg.BatchSize)
	}
	if cfg.LR <= 0 {
		return errorf("LR must be > 0, got %f", cfg.LR)
	}
	switch cfg.Optimizer {
	case "adam":
		if cfg.Beta1 < 0 || cfg.Beta1 >= 1 || cfg.Beta2 < 0 || cfg.Beta2 >= 1 {
			return errorf("Adam betas must be in [0, 1), got %f, %f", cfg.Beta1, cfg.Beta2)
		}
		if cfg.Epsilon <= 0 {
			return errorf("Epsilon must be > 0, got %g", cfg.Epsilon)
		}
	case "sgd":
	default:
		return errorf("Optimizer must be 'adam' or 'sgd', got %q", cfg.Optimizer)
	}
	switch cfg.GradientClip.Mode {
	case "norm":
		if cfg.GradientClip.MaxNorm <= 0 {
			return errorf("GradientClip.MaxNorm must be > 0, got %f", cfg.GradientClip.MaxNorm)
		}
	case "value":
		if cfg.GradientClip.MaxValue <= 0 {
			return errorf("GradientClip.MaxValue must be > 0, got %f", cfg.GradientClip.MaxValue)
		}
	case "none":
	default:
		return errorf("GradientClip.Mode is required - use 'none' if not needed")
	}
	if cfg.TopK <= 0 {
		return errorf("TopK must be > 0, got %d", cfg.TopK)
	}
	return nil
}

// ValidateSampleConfig checks all required fields are set
func ValidateSampleConfig(cfg SampleConfig) error {
	if cfg.TopK <= 0 {
		return errorf("Sample.TopK must be > 0, got %d", cfg.TopK)
	}
	if cfg.Selection != SelectionTop1 && cfg.Selection != SelectionRandom {
		return errorf("Sample.Selection must be %q or %q, got %q", SelectionTop1, SelectionRandom, cfg.Selection)
	}
	if cfg.CacheSize < 0 {
		return errorf("Sample.CacheSize must be >= 0, got %d", cfg.CacheSize)
	}
	return nil
}
