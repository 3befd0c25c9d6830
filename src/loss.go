package lyricflow

import "math"

// Loss computes a scalar loss from logits and writes dL/dlogits.
// Targets hold one class index per logits row.
type Loss interface {
	compute(logits, targets *tensor) float64
	gradient(logits, targets *tensor, gradOut *tensor)
	name() string
}

// CrossEntropyLoss - softmax cross-entropy over raw logits, mean over rows
type CrossEntropyLoss struct {
	LabelSmoothing float64
}

type CrossEntropyConfig struct {
	LabelSmoothing float64
}

func CrossEntropy(config CrossEntropyConfig) Loss {
	return &CrossEntropyLoss{LabelSmoothing: config.LabelSmoothing}
}

// smoothed returns the target weight of class j for a row whose label is t
func (c *CrossEntropyLoss) smoothed(j, t, nClasses int) float64 {
	w := 0.0
	if j == t {
		w = 1.0
	}
	if c.LabelSmoothing > 0 {
		w = w*(1-c.LabelSmoothing) + c.LabelSmoothing/float64(nClasses)
	}
	return w
}

func (c *CrossEntropyLoss) compute(logits, targets *tensor) float64 {
	nClasses := logits.shape[len(logits.shape)-1]
	nSamples := len(logits.data) / nClasses

	sum := 0.0
	for i := 0; i < nSamples; i++ {
		row := logits.data[i*nClasses : (i+1)*nClasses]
		t := int(targets.data[i])

		// log-softmax with max shift
		maxV := row[0]
		for _, v := range row[1:] {
			if v > maxV {
				maxV = v
			}
		}
		lse := 0.0
		for _, v := range row {
			lse += math.Exp(v - maxV)
		}
		lse = maxV + math.Log(lse)

		if c.LabelSmoothing > 0 {
			for j, v := range row {
				sum -= c.smoothed(j, t, nClasses) * (v - lse)
			}
		} else {
			sum -= row[t] - lse
		}
	}
	return sum / float64(nSamples)
}

func (c *CrossEntropyLoss) gradient(logits, targets *tensor, gradOut *tensor) {
	nClasses := logits.shape[len(logits.shape)-1]
	nSamples := len(logits.data) / nClasses
	scale := 1.0 / float64(nSamples)

	for i := 0; i < nSamples; i++ {
		row := logits.data[i*nClasses : (i+1)*nClasses]
		out := gradOut.data[i*nClasses : (i+1)*nClasses]
		t := int(targets.data[i])

		// dL/dz = softmax(z) - target
		softmaxRow(row, out)
		for j := range out {
			out[j] = scale * (out[j] - c.smoothed(j, t, nClasses))
		}
	}
}

func (c *CrossEntropyLoss) name() string { return "cross_entropy" }
