package lyricflow

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// HiddenState is the (cell, hidden) pair carried between recurrent steps.
// Both tensors are shaped [numLayers, batch, units].
type HiddenState struct {
	c *tensor
	h *tensor
}

// Shape returns [numLayers, batch, units]
func (s HiddenState) Shape() []int {
	if s.h == nil {
		return nil
	}
	return append([]int(nil), s.h.shape...)
}

// Cell returns a copy of the cell state values
func (s HiddenState) Cell() []float64 {
	return append([]float64(nil), s.c.data...)
}

// Hidden returns a copy of the hidden state values
func (s HiddenState) Hidden() []float64 {
	return append([]float64(nil), s.h.data...)
}

// Detach returns a copy that shares nothing with cached forward history
func (s HiddenState) Detach() HiddenState {
	return HiddenState{c: s.c.clone(), h: s.h.clone()}
}

func newHiddenState(numLayers, batch, units int) HiddenState {
	return HiddenState{
		c: newTensor(numLayers, batch, units),
		h: newTensor(numLayers, batch, units),
	}
}

// lstmCell - one LSTM layer over a full sequence.
// Gate order inside the fused weights: input, forget, cell candidate, output.
type lstmCell struct {
	inputDim int
	units    int

	Wx *tensor // [inputDim, 4*units]
	Wh *tensor // [units, 4*units]
	b  *tensor // [4*units]

	dWx, dWh, db *tensor

	// Cache for backward pass
	xs    []*tensor // x_t [batch, inputDim]
	gates []*tensor // activated gates [batch, 4*units]
	hs    []*tensor // h_0..h_T [batch, units]
	cs    []*tensor // c_0..c_T [batch, units]
}

func newLSTMCell(inputDim, units int, init, recurrentInit, biasInit Initializer, rng *rand.Rand) *lstmCell {
	l := &lstmCell{inputDim: inputDim, units: units}

	l.Wx = newTensor(inputDim, 4*units)
	l.Wh = newTensor(units, 4*units)
	l.b = newTensor(4 * units)
	init.initialize(l.Wx, inputDim, units, rng)
	recurrentInit.initialize(l.Wh, units, units, rng)
	biasInit.initialize(l.b, inputDim, units, rng)
	// Forget gate bias = 1 for better gradient flow
	for u := units; u < 2*units; u++ {
		l.b.data[u] = 1.0
	}

	l.dWx = newTensor(inputDim, 4*units)
	l.dWh = newTensor(units, 4*units)
	l.db = newTensor(4 * units)
	return l
}

// step extracts x_t [batch, features] from a [batch, seqLen, features] tensor
func step(input *tensor, t int) *tensor {
	batchSize, seqLen, features := input.shape[0], input.shape[1], input.shape[2]
	xt := newTensor(batchSize, features)
	for b := 0; b < batchSize; b++ {
		copy(xt.data[b*features:(b+1)*features], input.data[(b*seqLen+t)*features:(b*seqLen+t+1)*features])
	}
	return xt
}

func (l *lstmCell) forward(input, h0, c0 *tensor) (*tensor, *tensor, *tensor) {
	batchSize, seqLen := input.shape[0], input.shape[1]
	U := l.units

	l.xs = make([]*tensor, seqLen)
	l.gates = make([]*tensor, seqLen)
	l.hs = make([]*tensor, seqLen+1)
	l.cs = make([]*tensor, seqLen+1)
	l.hs[0] = h0
	l.cs[0] = c0

	output := newTensor(batchSize, seqLen, U)

	for t := 0; t < seqLen; t++ {
		xt := step(input, t)
		hPrev := l.hs[t]
		cPrev := l.cs[t]

		// z = x_t Wx + h_{t-1} Wh + b
		z := newTensor(batchSize, 4*U)
		matmul(xt, l.Wx, z)
		matmulAcc(hPrev, l.Wh, z)
		addVec(z, l.b)

		cNew := newTensor(batchSize, U)
		hNew := newTensor(batchSize, U)

		for b := 0; b < batchSize; b++ {
			g := z.data[b*4*U : (b+1)*4*U]
			for u := 0; u < U; u++ {
				g[u] = sigmoid(g[u])           // i_t
				g[U+u] = sigmoid(g[U+u])       // f_t
				g[2*U+u] = math.Tanh(g[2*U+u]) // c̃_t
				g[3*U+u] = sigmoid(g[3*U+u])   // o_t

				// C_t = f_t ⊙ C_{t-1} + i_t ⊙ c̃_t
				c := g[U+u]*cPrev.data[b*U+u] + g[u]*g[2*U+u]
				cNew.data[b*U+u] = c
				// h_t = o_t ⊙ tanh(C_t)
				hNew.data[b*U+u] = g[3*U+u] * math.Tanh(c)
				output.data[(b*seqLen+t)*U+u] = hNew.data[b*U+u]
			}
		}

		l.xs[t] = xt
		l.gates[t] = z
		l.hs[t+1] = hNew
		l.cs[t+1] = cNew
	}

	return output, l.hs[seqLen], l.cs[seqLen]
}

// backward runs BPTT over the cached sequence, accumulating parameter
// gradients. The initial state is treated as a constant.
func (l *lstmCell) backward(gradOutput *tensor) *tensor {
	seqLen := len(l.xs)
	batchSize := gradOutput.shape[0]
	U := l.units
	F := l.inputDim

	gradInput := newTensor(batchSize, seqLen, F)
	dh := newTensor(batchSize, U)
	dc := newTensor(batchSize, U)

	for t := seqLen - 1; t >= 0; t-- {
		for b := 0; b < batchSize; b++ {
			for u := 0; u < U; u++ {
				dh.data[b*U+u] += gradOutput.data[(b*seqLen+t)*U+u]
			}
		}

		gates := l.gates[t]
		cPrev := l.cs[t]
		cNew := l.cs[t+1]
		dz := newTensor(batchSize, 4*U)

		for b := 0; b < batchSize; b++ {
			g := gates.data[b*4*U : (b+1)*4*U]
			d := dz.data[b*4*U : (b+1)*4*U]
			for u := 0; u < U; u++ {
				i, f, cCand, o := g[u], g[U+u], g[2*U+u], g[3*U+u]
				tanhC := math.Tanh(cNew.data[b*U+u])
				dhVal := dh.data[b*U+u]

				// dL/dC = dL/dC_{t+1} * f_{t+1} + dL/dh * o * (1 - tanh²(C))
				dcVal := dc.data[b*U+u] + dhVal*o*(1-tanhC*tanhC)

				d[u] = dcVal * cCand * i * (1 - i)
				d[U+u] = dcVal * cPrev.data[b*U+u] * f * (1 - f)
				d[2*U+u] = dcVal * i * (1 - cCand*cCand)
				d[3*U+u] = dhVal * tanhC * o * (1 - o)

				dc.data[b*U+u] = dcVal * f
			}
		}

		matmulTransAAcc(l.xs[t], dz, l.dWx)
		matmulTransAAcc(l.hs[t], dz, l.dWh)
		sumAxis0Acc(dz, l.db)

		dx := newTensor(batchSize, F)
		matmulTransB(dz, l.Wx, dx)
		for b := 0; b < batchSize; b++ {
			copy(gradInput.data[(b*seqLen+t)*F:(b*seqLen+t+1)*F], dx.data[b*F:(b+1)*F])
		}

		dhPrev := newTensor(batchSize, U)
		matmulTransB(dz, l.Wh, dhPrev)
		dh = dhPrev
	}

	return gradInput
}

func (l *lstmCell) parameters() []*tensor { return []*tensor{l.Wx, l.Wh, l.b} }
func (l *lstmCell) gradients() []*tensor  { return []*tensor{l.dWx, l.dWh, l.db} }

// LSTMLayer - stacked Long Short-Term Memory with dropout between layers.
// Unlike the feed-forward layers it consumes and returns a HiddenState.
type LSTMLayer struct {
	units         int
	numLayers     int
	dropout       float64
	initializer   Initializer
	recurrentInit Initializer
	biasInit      Initializer

	cells    []*lstmCell
	dropouts []*DropoutLayer // len(cells)-1, applied between layers
	inputDim int
	seqLen   int
	built    bool
}

type LSTMBuilder struct {
	layer *LSTMLayer
}

func LSTM(units int) *LSTMBuilder {
	return &LSTMBuilder{
		layer: &LSTMLayer{
			units:     units,
			numLayers: 1,
		},
	}
}

func (b *LSTMBuilder) WithNumLayers(n int) *LSTMBuilder {
	b.layer.numLayers = n
	return b
}

// WithDropout sets the dropout applied to each layer's output except the last
func (b *LSTMBuilder) WithDropout(rate float64) *LSTMBuilder {
	b.layer.dropout = rate
	return b
}

func (b *LSTMBuilder) WithInitializer(init Initializer) *LSTMBuilder {
	b.layer.initializer = init
	return b
}

func (b *LSTMBuilder) WithRecurrentInitializer(init Initializer) *LSTMBuilder {
	b.layer.recurrentInit = init
	return b
}

func (b *LSTMBuilder) WithBiasInitializer(init Initializer) *LSTMBuilder {
	b.layer.biasInit = init
	return b
}

func (b *LSTMBuilder) Build() *LSTMLayer {
	return b.layer
}

func (l *LSTMLayer) build(inputShape []int, rng *rand.Rand) error {
	if len(inputShape) < 2 {
		return errors.New("lyricflow: LSTM requires input shape [seqLen, features]")
	}
	if l.numLayers <= 0 {
		return errors.New("lyricflow: LSTM requires at least one layer")
	}
	if l.initializer == nil {
		return errors.New("lyricflow: LSTM requires initializer")
	}
	if l.recurrentInit == nil {
		return errors.New("lyricflow: LSTM requires recurrent initializer")
	}
	if l.biasInit == nil {
		return errors.New("lyricflow: LSTM requires bias initializer")
	}

	l.seqLen = inputShape[0]
	l.inputDim = inputShape[1]

	l.cells = make([]*lstmCell, l.numLayers)
	l.dropouts = make([]*DropoutLayer, l.numLayers-1)
	in := l.inputDim
	for k := range l.cells {
		l.cells[k] = newLSTMCell(in, l.units, l.initializer, l.recurrentInit, l.biasInit, rng)
		in = l.units
	}
	for k := range l.dropouts {
		l.dropouts[k] = Dropout(l.dropout).Build()
		if err := l.dropouts[k].build([]int{l.seqLen, l.units}, rng); err != nil {
			return err
		}
	}

	l.built = true
	return nil
}

// initState returns zero-filled state for the given batch size
func (l *LSTMLayer) initState(batchSize int) HiddenState {
	return newHiddenState(l.numLayers, batchSize, l.units)
}

// forward runs input [batch, seqLen, features] through every layer starting
// from state, returning the last layer's outputs [batch, seqLen, units] and
// the final state of every layer.
func (l *LSTMLayer) forward(input *tensor, state HiddenState, training bool) (*tensor, HiddenState, error) {
	if !l.built {
		return nil, HiddenState{}, ErrNotInitialized
	}
	batchSize := input.shape[0]
	if input.shape[2] != l.inputDim {
		return nil, HiddenState{}, fmt.Errorf("%w: LSTM input features %d, expected %d", ErrShapeMismatch, input.shape[2], l.inputDim)
	}
	if err := validateShape([]int{l.numLayers, batchSize, l.units}, state.Shape()); err != nil {
		return nil, HiddenState{}, err
	}

	next := l.initState(batchSize)
	x := input
	for k, cell := range l.cells {
		h0 := state.h.row(k).clone()
		c0 := state.c.row(k).clone()

		out, hT, cT := cell.forward(x, h0, c0)
		copy(next.h.row(k).data, hT.data)
		copy(next.c.row(k).data, cT.data)

		if k < len(l.dropouts) {
			var err error
			out, err = l.dropouts[k].forward(out, training)
			if err != nil {
				return nil, HiddenState{}, err
			}
		}
		x = out
	}

	return x, next, nil
}

func (l *LSTMLayer) backward(gradOutput *tensor) (*tensor, error) {
	grad := gradOutput
	for k := len(l.cells) - 1; k >= 0; k-- {
		if k < len(l.dropouts) {
			var err error
			grad, err = l.dropouts[k].backward(grad)
			if err != nil {
				return nil, err
			}
		}
		grad = l.cells[k].backward(grad)
	}
	return grad, nil
}

func (l *LSTMLayer) parameters() []*tensor {
	var params []*tensor
	for _, c := range l.cells {
		params = append(params, c.parameters()...)
	}
	return params
}

func (l *LSTMLayer) gradients() []*tensor {
	var grads []*tensor
	for _, c := range l.cells {
		grads = append(grads, c.gradients()...)
	}
	return grads
}

func (l *LSTMLayer) outputShape() []int {
	return []int{l.seqLen, l.units}
}

func (l *LSTMLayer) name() string { return "lstm" }
