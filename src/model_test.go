package lyricflow

import (
	"errors"
	"math"
	"testing"
)

var tinyLines = []string{
	"chicago lights are burning on the river tonight",
	"we ride the train from the south side to the lake",
	"chicago winds keep calling out my name again",
	"hold me close and let the music take control",
}

func tinyModelConfig() ModelConfig {
	return ModelConfig{EmbedSize: 6, NumHidden: 8, NumLayers: 2, Dropout: 0}
}

func tinyDataset(t *testing.T) *Dataset {
	t.Helper()
	ds, err := Prepare(tinyLines, 3)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return ds
}

func tinyModel(t *testing.T, vocabSize int) *Model {
	t.Helper()
	m, err := NewModel(tinyModelConfig(), vocabSize, 7)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return m
}

func TestForwardShapes(t *testing.T) {
	m := tinyModel(t, 11)

	for _, tc := range []struct{ batch, seqLen int }{{1, 1}, {2, 3}, {4, 5}} {
		input := make([][]int, tc.batch)
		for i := range input {
			input[i] = make([]int, tc.seqLen)
			for j := range input[i] {
				input[i][j] = (i + j) % 11
			}
		}
		state := m.InitHidden(tc.batch)
		logits, next, err := m.Forward(input, state)
		if err != nil {
			t.Fatalf("Forward(%dx%d): %v", tc.batch, tc.seqLen, err)
		}
		r, c := logits.Dims()
		if r != tc.batch*tc.seqLen || c != 11 {
			t.Errorf("logits %dx%d, expected %dx%d", r, c, tc.batch*tc.seqLen, 11)
		}
		want := []int{2, tc.batch, 8}
		if err := validateShape(want, next.Shape()); err != nil {
			t.Errorf("state shape: %v", err)
		}
		if err := validateShape(want, state.Shape()); err != nil {
			t.Errorf("initial state shape changed: %v", err)
		}
	}
}

func TestInitHiddenIsZero(t *testing.T) {
	m := tinyModel(t, 5)
	s := m.InitHidden(3)
	for _, v := range append(s.Cell(), s.Hidden()...) {
		if v != 0 {
			t.Fatalf("expected zero state, got %v", v)
		}
	}
}

func TestForwardErrors(t *testing.T) {
	m := tinyModel(t, 5)

	if _, _, err := m.Forward([][]int{{0, 9}}, m.InitHidden(1)); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("out-of-range index: got %v", err)
	}
	if _, _, err := m.Forward([][]int{{0, 1}}, m.InitHidden(2)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("state batch mismatch: got %v", err)
	}
	if _, _, err := m.Forward([][]int{{0, 1}, {2}}, m.InitHidden(2)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("ragged batch: got %v", err)
	}

	var nilModel *Model
	if _, _, err := nilModel.Forward([][]int{{0}}, HiddenState{}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("nil model: got %v", err)
	}
}

func TestStateCarriesContext(t *testing.T) {
	m := tinyModel(t, 5)

	// Feeding [a b] at once must equal feeding a then b with the carried state
	whole, _, err := m.Forward([][]int{{1, 3}}, m.InitHidden(1))
	if err != nil {
		t.Fatal(err)
	}
	_, s1, err := m.Forward([][]int{{1}}, m.InitHidden(1))
	if err != nil {
		t.Fatal(err)
	}
	step, _, err := m.Forward([][]int{{3}}, s1)
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j < 5; j++ {
		if math.Abs(whole.At(1, j)-step.At(0, j)) > 1e-12 {
			t.Fatalf("logit %d: whole=%v stepwise=%v", j, whole.At(1, j), step.At(0, j))
		}
	}
}

func TestDetachCopies(t *testing.T) {
	m := tinyModel(t, 5)
	_, s, err := m.Forward([][]int{{1, 2}}, m.InitHidden(1))
	if err != nil {
		t.Fatal(err)
	}
	d := s.Detach()
	d.h.data[0] = 42
	if s.h.data[0] == 42 {
		t.Fatal("Detach shares storage with the original state")
	}
}

func TestDropoutOnlyInTraining(t *testing.T) {
	cfg := tinyModelConfig()
	cfg.Dropout = 0.5
	m, err := NewModel(cfg, 7, 3)
	if err != nil {
		t.Fatal(err)
	}
	input := [][]int{{1, 2, 3}}

	m.SetTraining(false)
	a, _, _ := m.Forward(input, m.InitHidden(1))
	b, _, _ := m.Forward(input, m.InitHidden(1))
	for i := 0; i < 3; i++ {
		for j := 0; j < 7; j++ {
			if a.At(i, j) != b.At(i, j) {
				t.Fatal("eval mode forward is not deterministic")
			}
		}
	}

	m.SetTraining(true)
	c, _, _ := m.Forward(input, m.InitHidden(1))
	same := true
	for i := 0; i < 3; i++ {
		for j := 0; j < 7; j++ {
			if a.At(i, j) != c.At(i, j) {
				same = false
			}
		}
	}
	if same {
		t.Error("training mode forward ignored dropout")
	}
}

// modelLoss is the mean cross-entropy of one forward pass from zero state
func modelLoss(t *testing.T, m *Model, x, y [][]int) float64 {
	t.Helper()
	logits, _, err := m.forward(x, m.InitHidden(len(x)))
	if err != nil {
		t.Fatal(err)
	}
	return CrossEntropy(CrossEntropyConfig{}).compute(logits, flattenTargets(y))
}

func TestModelGradCheck(t *testing.T) {
	m := tinyModel(t, 5)
	m.SetTraining(true)
	x := [][]int{{0, 1, 2}, {3, 4, 0}}
	y := [][]int{{1, 2, 3}, {4, 0, 1}}

	// Analytic grads
	m.zeroGrad()
	logits, _, err := m.forward(x, m.InitHidden(2))
	if err != nil {
		t.Fatal(err)
	}
	grad := newTensor(logits.shape...)
	CrossEntropy(CrossEntropyConfig{}).gradient(logits, flattenTargets(y), grad)
	if err := m.backward(grad); err != nil {
		t.Fatal(err)
	}
	analytic := make([]*tensor, 0)
	for _, g := range m.gradients() {
		analytic = append(analytic, g.clone())
	}

	names := []string{"embedding", "lstm0.Wx", "lstm0.Wh", "lstm0.b", "lstm1.Wx", "lstm1.Wh", "lstm1.b", "fc.W", "fc.b"}
	eps := 1e-5
	for pi, p := range m.parameters() {
		// A handful of elements from each tensor
		for _, j := range []int{0, len(p.data) / 3, len(p.data) / 2, len(p.data) - 1} {
			w0 := p.data[j]
			p.data[j] = w0 + eps
			lp := modelLoss(t, m, x, y)
			p.data[j] = w0 - eps
			lm := modelLoss(t, m, x, y)
			p.data[j] = w0

			num := (lp - lm) / (2 * eps)
			ana := analytic[pi].data[j]
			if math.Abs(num-ana) > 1e-6+1e-4*math.Abs(num) {
				t.Errorf("%s[%d] grad mismatch: num=%.8g ana=%.8g", names[pi], j, num, ana)
			}
		}
	}
}

func TestGradientsAccumulateUntilZeroed(t *testing.T) {
	m := tinyModel(t, 5)
	x := [][]int{{0, 1}}
	y := [][]int{{1, 2}}

	run := func() {
		logits, _, err := m.forward(x, m.InitHidden(1))
		if err != nil {
			t.Fatal(err)
		}
		g := newTensor(logits.shape...)
		CrossEntropy(CrossEntropyConfig{}).gradient(logits, flattenTargets(y), g)
		if err := m.backward(g); err != nil {
			t.Fatal(err)
		}
	}

	m.zeroGrad()
	run()
	once := m.fc.gradW.clone()
	run()
	for i := range once.data {
		if math.Abs(m.fc.gradW.data[i]-2*once.data[i]) > 1e-12 {
			t.Fatalf("second backward did not accumulate at %d", i)
		}
	}
	m.zeroGrad()
	if l2Norm(m.fc.gradW) != 0 {
		t.Fatal("zeroGrad left gradient values behind")
	}
}

func TestSummaryCountsParams(t *testing.T) {
	m := tinyModel(t, 5)
	// embedding 5*6, lstm0 6*32+8*32+32, lstm1 8*32+8*32+32, fc 8*5+5
	want := 30 + (192 + 256 + 32) + (256 + 256 + 32) + 45
	if m.NumParams() != want {
		t.Errorf("NumParams = %d, expected %d", m.NumParams(), want)
	}
	if m.Summary() == "" {
		t.Error("empty summary")
	}
}
