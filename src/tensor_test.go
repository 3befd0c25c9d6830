package lyricflow

import (
	"errors"
	"math"
	"testing"
)

func TestMatmulHelpers(t *testing.T) {
	a := &tensor{data: []float64{1, 2, 3, 4, 5, 6}, shape: []int{2, 3}}
	b := &tensor{data: []float64{1, 0, 0, 1, 1, 1}, shape: []int{3, 2}}

	out := newTensor(2, 2)
	matmul(a, b, out)
	want := []float64{4, 5, 10, 11}
	for i := range want {
		if out.data[i] != want[i] {
			t.Fatalf("matmul = %v, expected %v", out.data, want)
		}
	}

	matmulAcc(a, b, out)
	for i := range want {
		if out.data[i] != 2*want[i] {
			t.Fatalf("matmulAcc = %v, expected %v doubled", out.data, want)
		}
	}

	// a^T @ a
	ata := newTensor(3, 3)
	matmulTransAAcc(a, a, ata)
	if ata.data[0] != 17 || ata.data[4] != 29 || ata.data[8] != 45 {
		t.Errorf("matmulTransAAcc diagonal = %v", []float64{ata.data[0], ata.data[4], ata.data[8]})
	}

	// a @ a^T
	aat := newTensor(2, 2)
	matmulTransB(a, a, aat)
	if aat.data[0] != 14 || aat.data[1] != 32 || aat.data[3] != 77 {
		t.Errorf("matmulTransB = %v", aat.data)
	}
}

func TestRowIsView(t *testing.T) {
	x := newTensor(2, 3, 4)
	r := x.row(1)
	if err := validateShape([]int{3, 4}, r.shape); err != nil {
		t.Fatal(err)
	}
	r.data[0] = 7
	if x.data[12] != 7 {
		t.Error("row does not share storage")
	}
}

func TestSumAxis0AndClip(t *testing.T) {
	a := &tensor{data: []float64{1, 2, 3, 4}, shape: []int{2, 2}}
	out := &tensor{data: []float64{10, 10}, shape: []int{2}}
	sumAxis0Acc(a, out)
	if out.data[0] != 14 || out.data[1] != 16 {
		t.Errorf("sumAxis0Acc = %v", out.data)
	}

	clip(a, 1.5, 3.5)
	want := []float64{1.5, 2, 3, 3.5}
	for i := range want {
		if a.data[i] != want[i] {
			t.Fatalf("clip = %v, expected %v", a.data, want)
		}
	}
}

func TestClipGradients(t *testing.T) {
	g := &tensor{data: []float64{3, 4}, shape: []int{2}}
	norm := clipGradients([]*tensor{g}, GradientClipConfig{Mode: "norm", MaxNorm: 1})
	if norm != 5 {
		t.Errorf("pre-clip norm = %v, expected 5", norm)
	}
	if after := l2Norm(g); math.Abs(after-1) > 1e-5 {
		t.Errorf("post-clip norm = %v, expected 1", after)
	}

	small := &tensor{data: []float64{0.3, 0.4}, shape: []int{2}}
	clipGradients([]*tensor{small}, GradientClipConfig{Mode: "norm", MaxNorm: 1})
	if small.data[0] != 0.3 || small.data[1] != 0.4 {
		t.Errorf("norm below ceiling was rescaled: %v", small.data)
	}

	v := &tensor{data: []float64{-2, 0.5, 9}, shape: []int{3}}
	clipGradients([]*tensor{v}, GradientClipConfig{Mode: "value", MaxValue: 1})
	if v.data[0] != -1 || v.data[1] != 0.5 || v.data[2] != 1 {
		t.Errorf("value clip = %v", v.data)
	}
}

func TestValidateFinite(t *testing.T) {
	ok := &tensor{data: []float64{1, 2}, shape: []int{2}}
	if err := validateFinite(ok, "model", "forward", 0, 0); err != nil {
		t.Fatalf("finite tensor rejected: %v", err)
	}

	bad := &tensor{data: []float64{1, math.NaN(), math.Inf(1)}, shape: []int{3}}
	err := validateFinite(bad, "model", "forward", 2, 5)
	var perr *PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if perr.Info.NaNCount != 1 || perr.Info.InfCount != 1 || perr.Epoch != 2 || perr.Batch != 5 {
		t.Errorf("unexpected error detail: %+v", perr)
	}
}
