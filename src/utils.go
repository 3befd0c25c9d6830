package lyricflow

import (
	"fmt"
	"math/rand/v2"
)

// newRNG returns a deterministic source for the given seed
func newRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// shuffleRows shuffles input and target rows in-place with the same permutation
func shuffleRows(inputs, targets [][]int, rng *rand.Rand) {
	rng.Shuffle(len(inputs), func(i, j int) {
		inputs[i], inputs[j] = inputs[j], inputs[i]
		targets[i], targets[j] = targets[j], targets[i]
	})
}

// indexTensor packs index rows into a [batch, seqLen] tensor
func indexTensor(rows [][]int) (*tensor, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errorf("empty index batch")
	}
	seqLen := len(rows[0])
	out := newTensor(len(rows), seqLen)
	for i, row := range rows {
		if len(row) != seqLen {
			return nil, fmt.Errorf("%w: row %d has %d indices, expected %d", ErrShapeMismatch, i, len(row), seqLen)
		}
		for j, idx := range row {
			out.data[i*seqLen+j] = float64(idx)
		}
	}
	return out, nil
}

// flattenTargets packs target rows into a [batch*seqLen] tensor of class indices
func flattenTargets(rows [][]int) *tensor {
	n := 0
	for _, row := range rows {
		n += len(row)
	}
	out := newTensor(n)
	k := 0
	for _, row := range rows {
		for _, idx := range row {
			out.data[k] = float64(idx)
			k++
		}
	}
	return out
}

// batchCount returns how many batches an epoch runs
func batchCount(n, batchSize int, dropLast bool) int {
	if dropLast {
		return n / batchSize
	}
	return (n + batchSize - 1) / batchSize
}

// errorf creates a formatted error
func errorf(format string, args ...interface{}) error {
	return fmt.Errorf("lyricflow: "+format, args...)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
