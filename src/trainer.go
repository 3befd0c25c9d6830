package lyricflow

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// Trainer runs the mini-batch training loop over a Model
type Trainer struct {
	model     *Model
	config    TrainConfig
	optimizer Optimizer
	loss      Loss
	metrics   []Metric
	rng       *rand.Rand
}

// TrainResult holds training output
type TrainResult struct {
	History      map[string][]float64
	FinalLoss    float64
	FinalMetrics map[string]float64
}

// NewTrainer validates cfg and prepares the optimizer, loss and metrics
func NewTrainer(model *Model, cfg TrainConfig) (*Trainer, error) {
	if model == nil {
		return nil, ErrNotInitialized
	}
	if err := ValidateTrainConfig(cfg); err != nil {
		return nil, err
	}
	opt, err := newOptimizer(cfg)
	if err != nil {
		return nil, err
	}
	return &Trainer{
		model:     model,
		config:    cfg,
		optimizer: opt,
		loss:      CrossEntropy(CrossEntropyConfig{}),
		metrics: []Metric{
			Accuracy(),
			TopKAccuracy(TopKConfig{K: cfg.TopK}),
		},
		rng: newRNG(cfg.Seed),
	}, nil
}

// Fit trains on (inputs, targets) pairs of equal-length index rows.
// Batches are contiguous slices in order unless Shuffle is set; the
// final partial batch is skipped when DropLast is set. Hidden state
// starts at zero each epoch and is carried, detached, between batches.
func (t *Trainer) Fit(inputs, targets [][]int, callbacks []Callback) (*TrainResult, error) {
	numSamples := len(inputs)
	if numSamples == 0 {
		return nil, fmt.Errorf("%w: no training pairs", ErrEmptyCorpus)
	}
	if len(inputs) != len(targets) {
		return nil, errors.New("lyricflow: inputs and targets must have same length")
	}

	bs := t.config.BatchSize
	numBatches := batchCount(numSamples, bs, t.config.DropLast)
	if numBatches == 0 {
		return nil, fmt.Errorf("%w: %d training pairs is fewer than batch size %d", ErrEmptyCorpus, numSamples, bs)
	}

	// Work on copies so shuffling never reorders the caller's data
	x := append([][]int(nil), inputs...)
	y := append([][]int(nil), targets...)

	params := t.model.parameters()
	grads := t.model.gradients()

	result := &TrainResult{
		History:      make(map[string][]float64),
		FinalMetrics: make(map[string]float64),
	}
	logs := make(map[string]float64)

	t.model.SetTraining(true)
	defer t.model.SetTraining(false)

	for _, cb := range callbacks {
		cb.onTrainBegin(logs)
	}

	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		for _, cb := range callbacks {
			cb.onEpochBegin(epoch, logs)
		}

		if t.config.Shuffle {
			shuffleRows(x, y, t.rng)
		}

		epochLoss := 0.0
		for _, m := range t.metrics {
			m.reset()
		}

		state := t.model.InitHidden(bs)

		for batch := 0; batch < numBatches; batch++ {
			start := batch * bs
			end := minInt(start+bs, numSamples)
			batchX := x[start:end]
			batchY := y[start:end]

			if end-start != state.Shape()[1] {
				state = t.model.InitHidden(end - start)
			}
			state = state.Detach()
			t.model.zeroGrad()

			logits, next, err := t.model.forward(batchX, state)
			if err != nil {
				return nil, err
			}
			if err := validateFinite(logits, "model", "forward", epoch, batch); err != nil {
				return nil, err
			}

			targetTensor := flattenTargets(batchY)
			if len(targetTensor.data) != logits.shape[0] {
				return nil, fmt.Errorf("%w: %d targets for %d logits rows", ErrShapeMismatch, len(targetTensor.data), logits.shape[0])
			}

			batchLoss := t.loss.compute(logits, targetTensor)
			if math.IsNaN(batchLoss) || math.IsInf(batchLoss, 0) {
				return nil, &PipelineError{
					Component: "trainer",
					ErrorType: "non-finite loss",
					Phase:     "loss",
					Epoch:     epoch,
					Batch:     batch,
					Info:      ScanTensor(logits),
					Cause:     fmt.Sprintf("loss=%v", batchLoss),
				}
			}
			epochLoss += batchLoss

			for _, m := range t.metrics {
				m.update(logits, targetTensor)
			}

			gradLogits := newTensor(logits.shape...)
			t.loss.gradient(logits, targetTensor, gradLogits)
			if err := t.model.backward(gradLogits); err != nil {
				return nil, err
			}

			norm := clipGradients(grads, t.config.GradientClip)
			t.optimizer.step(params, grads)

			state = next
			debugf("epoch %d batch %d/%d loss=%.4f grad_norm=%.4f", epoch+1, batch+1, numBatches, batchLoss, norm)

			for _, cb := range callbacks {
				cb.onBatchEnd(batch, map[string]float64{"loss": batchLoss, "grad_norm": norm})
			}
		}

		logs["loss"] = epochLoss / float64(numBatches)
		logs["perplexity"] = math.Exp(logs["loss"])
		for _, m := range t.metrics {
			logs[m.name()] = m.result()
		}

		for k, v := range logs {
			result.History[k] = append(result.History[k], v)
		}

		for _, cb := range callbacks {
			if err := cb.onEpochEnd(epoch, logs); err != nil {
				return nil, fmt.Errorf("lyricflow: callback %s: %w", cb.name(), err)
			}
		}
	}

	for _, cb := range callbacks {
		cb.onTrainEnd(logs)
	}

	result.FinalLoss = logs["loss"]
	result.FinalMetrics["perplexity"] = logs["perplexity"]
	for _, m := range t.metrics {
		result.FinalMetrics[m.name()] = logs[m.name()]
	}

	return result, nil
}

// clipGradients applies the configured clipping in place and returns the
// global L2 norm measured before clipping.
func clipGradients(grads []*tensor, cfg GradientClipConfig) float64 {
	totalNorm := 0.0
	for _, g := range grads {
		norm := l2Norm(g)
		totalNorm += norm * norm
	}
	totalNorm = math.Sqrt(totalNorm)

	switch cfg.Mode {
	case "norm":
		if totalNorm > cfg.MaxNorm {
			scale := cfg.MaxNorm / (totalNorm + 1e-6)
			for _, g := range grads {
				mulScalar(g, scale)
			}
		}
	case "value":
		for _, g := range grads {
			clip(g, -cfg.MaxValue, cfg.MaxValue)
		}
	}
	return totalNorm
}
