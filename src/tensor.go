package lyricflow

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Tensor is the core data structure - internal only, not exposed to users.
// Data is row-major; the last dimension is contiguous.
type tensor struct {
	data  []float64
	shape []int
}

func newTensor(shape ...int) *tensor {
	size := 1
	for _, s := range shape {
		if s <= 0 {
			s = 1 // Ensure non-zero size
		}
		size *= s
	}
	return &tensor{
		data:  make([]float64, size),
		shape: append([]int(nil), shape...),
	}
}

func (t *tensor) size() int {
	return len(t.data)
}

func (t *tensor) fill(value float64) {
	for i := range t.data {
		t.data[i] = value
	}
}

func (t *tensor) zero() {
	t.fill(0)
}

func (t *tensor) fillRandNorm(mean, std float64, rng *rand.Rand) {
	dist := distuv.Normal{Mu: mean, Sigma: std, Src: rng}
	for i := range t.data {
		t.data[i] = dist.Rand()
	}
}

func (t *tensor) fillRandUniform(low, high float64, rng *rand.Rand) {
	dist := distuv.Uniform{Min: low, Max: high, Src: rng}
	for i := range t.data {
		t.data[i] = dist.Rand()
	}
}

func (t *tensor) clone() *tensor {
	nt := newTensor(t.shape...)
	copy(nt.data, t.data)
	return nt
}

// dense views the tensor as a matrix whose columns are the last dimension.
// The view shares the tensor's backing slice.
func (t *tensor) dense() *mat.Dense {
	cols := t.shape[len(t.shape)-1]
	return mat.NewDense(len(t.data)/cols, cols, t.data)
}

// row returns the i-th slice of the leading dimension as a 2D view.
func (t *tensor) row(i int) *tensor {
	stride := len(t.data) / t.shape[0]
	return &tensor{
		data:  t.data[i*stride : (i+1)*stride],
		shape: t.shape[1:],
	}
}

// Matrix operations. Shapes are trusted; gonum panics on mismatch.

// out = a @ b
func matmul(a, b, out *tensor) {
	out.dense().Mul(a.dense(), b.dense())
}

// out += a @ b
func matmulAcc(a, b, out *tensor) {
	var tmp mat.Dense
	tmp.Mul(a.dense(), b.dense())
	floats.Add(out.data, tmp.RawMatrix().Data)
}

// out += a^T @ b
func matmulTransAAcc(a, b, out *tensor) {
	var tmp mat.Dense
	tmp.Mul(a.dense().T(), b.dense())
	floats.Add(out.data, tmp.RawMatrix().Data)
}

// out = a @ b^T
func matmulTransB(a, b, out *tensor) {
	out.dense().Mul(a.dense(), b.dense().T())
}

// addVec broadcasts b over the rows of a.
func addVec(a *tensor, b *tensor) {
	for i := range a.data {
		a.data[i] += b.data[i%len(b.data)]
	}
}

func mulScalar(a *tensor, s float64) {
	floats.Scale(s, a.data)
}

func elemMul(a, b, out *tensor) {
	floats.MulTo(out.data, a.data, b.data)
}

// sumAxis0Acc adds the column sums of a into out.
func sumAxis0Acc(a *tensor, out *tensor) {
	cols := out.size()
	rows := a.size() / cols
	for i := 0; i < rows; i++ {
		floats.Add(out.data, a.data[i*cols:(i+1)*cols])
	}
}

func clip(a *tensor, min, max float64) {
	for i := range a.data {
		if a.data[i] < min {
			a.data[i] = min
		} else if a.data[i] > max {
			a.data[i] = max
		}
	}
}

func l2Norm(a *tensor) float64 {
	return floats.Norm(a.data, 2)
}

func validateShape(expected, got []int) error {
	if len(expected) != len(got) {
		return fmt.Errorf("%w: %d dimensions, expected %d", ErrShapeMismatch, len(got), len(expected))
	}
	for i := range expected {
		if expected[i] != got[i] {
			return fmt.Errorf("%w: got %v, expected %v", ErrShapeMismatch, got, expected)
		}
	}
	return nil
}
