package ttcross

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/fumin/ttcross/tensor"
)

func TestDecompose(t *testing.T) {
	t.Parallel()
	tests := []struct {
		full   *tensor.Dense
		rank   Rank
		shapes [][]int
	}{
		{
			full:   ramp(5, 5, 5),
			rank:   Profile(1, 3, 3, 1),
			shapes: [][]int{{1, 5, 3}, {3, 5, 3}, {3, 5, 1}},
		},
		{
			full:   ramp(4, 4, 4, 4),
			rank:   Uniform(2),
			shapes: [][]int{{1, 4, 2}, {2, 4, 2}, {2, 4, 2}, {2, 4, 1}},
		},
		{
			full:   ramp(6, 5),
			rank:   Profile(1, 2, 1),
			shapes: [][]int{{1, 6, 2}, {2, 5, 1}},
		},
		{
			full:   ramp(7),
			rank:   Uniform(1),
			shapes: [][]int{{1, 7, 1}},
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.full.Shape()), func(t *testing.T) {
			t.Parallel()
			chain, err := Decompose(test.full, test.rank)
			if err != nil {
				t.Fatalf("%+v", err)
			}

			if len(chain) != len(test.shapes) {
				t.Fatalf("%d, expected %d", len(chain), len(test.shapes))
			}
			for k, core := range chain {
				if !slices.Equal(core.Shape(), test.shapes[k]) {
					t.Fatalf("%v, expected %v", core.Shape(), test.shapes[k])
				}
			}

			approx := Reconstruct(chain)
			approx.Add(-1, test.full)
			if approx.Norm() > 1e-5*test.full.Norm() {
				t.Fatalf("%g, expected %g", approx.Norm(), 1e-5*test.full.Norm())
			}
		})
	}
}

func TestDecomposeRecoversChain(t *testing.T) {
	t.Parallel()
	src := rand.New(rand.NewPCG(11, 11))
	chain := []*tensor.Dense{
		randTensor(src, 1, 4, 2),
		randTensor(src, 2, 5, 2),
		randTensor(src, 2, 3, 1),
	}
	full := Reconstruct(chain)

	decomposed, err := Decompose(full, Uniform(2), NewDecomposeOptions().Random(src))
	if err != nil {
		t.Fatalf("%+v", err)
	}

	approx := Reconstruct(decomposed)
	approx.Add(-1, full)
	if approx.Norm() > 1e-5*full.Norm() {
		t.Fatalf("%g, expected %g", approx.Norm(), 1e-5*full.Norm())
	}
}

func TestDecomposeDeterministic(t *testing.T) {
	t.Parallel()
	full := ramp(5, 5, 5)
	a, err := Decompose(full, Uniform(3), NewDecomposeOptions().Random(rand.New(rand.NewPCG(7, 7))))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	b, err := Decompose(full, Uniform(3), NewDecomposeOptions().Random(rand.New(rand.NewPCG(7, 7))))
	if err != nil {
		t.Fatalf("%+v", err)
	}

	for k := range a {
		if !a[k].Equal(b[k]) {
			t.Fatalf("core %d: %s, expected %s", k, a[k], b[k])
		}
	}
}

func TestBoundaryRankAdjusted(t *testing.T) {
	t.Parallel()
	notices := make([]error, 0)
	opt := NewDecomposeOptions().Notify(func(err error) { notices = append(notices, err) })

	chain, err := Decompose(ramp(5, 5, 5), Profile(2, 3, 3, 2), opt)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if len(notices) != 2 {
		t.Fatalf("%d, expected %d", len(notices), 2)
	}
	expected := []struct{ bond, given int }{{0, 2}, {3, 2}}
	for i, notice := range notices {
		var adjusted *BoundaryRankAdjustedError
		if !errors.As(notice, &adjusted) {
			t.Fatalf("%+v", notice)
		}
		if adjusted.Bond != expected[i].bond || adjusted.Given != expected[i].given {
			t.Fatalf("%#v, expected %#v", adjusted, expected[i])
		}
	}

	// The decomposition proceeds with the clamped profile.
	if !slices.Equal(chain[0].Shape(), []int{1, 5, 3}) {
		t.Fatalf("%v", chain[0].Shape())
	}
	if !slices.Equal(chain[2].Shape(), []int{3, 5, 1}) {
		t.Fatalf("%v", chain[2].Shape())
	}
}

func TestInvalidRankSpec(t *testing.T) {
	t.Parallel()
	_, err := Decompose(ramp(5, 5, 5), Profile(1, 3))
	var invalid *InvalidRankSpecError
	if !errors.As(err, &invalid) {
		t.Fatalf("%+v", err)
	}
	if invalid.Got != 2 || invalid.Want != 4 {
		t.Fatalf("%#v", invalid)
	}
}

func TestRankTooLarge(t *testing.T) {
	t.Parallel()
	tests := []struct {
		full *tensor.Dense
		rank Rank
		mode int
		r    int
	}{
		// More pivots than there are multi-indexes to draw from.
		{full: ramp(2, 2, 2), rank: Profile(1, 8, 8, 1), mode: 0, r: 8},
		// The pivot fibers cannot span the requested rank.
		{full: ramp(2, 2, 2), rank: Profile(1, 4, 2, 1), mode: 0, r: 4},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.rank.profile), func(t *testing.T) {
			t.Parallel()
			_, err := Decompose(test.full, test.rank)
			var tooLarge *RankTooLargeError
			if !errors.As(err, &tooLarge) {
				t.Fatalf("%+v", err)
			}
			if tooLarge.Mode != test.mode || tooLarge.Rank != test.r {
				t.Fatalf("%#v, expected mode %d rank %d", tooLarge, test.mode, test.r)
			}
		})
	}
}

func TestConvergenceError(t *testing.T) {
	t.Parallel()
	_, err := Decompose(ramp(5, 5, 5), Profile(1, 3, 3, 1), NewDecomposeOptions().MaxIterations(1))
	var conv *ConvergenceError
	if !errors.As(err, &conv) {
		t.Fatalf("%+v", err)
	}
	if conv.Iterations != 1 {
		t.Fatalf("%d, expected %d", conv.Iterations, 1)
	}
	if conv.Delta < conv.Threshold {
		t.Fatalf("%#v", conv)
	}
}

func TestBonds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rank    Rank
		d       int
		bonds   []int
		notices int
	}{
		{rank: Uniform(3), d: 3, bonds: []int{1, 3, 3, 1}, notices: 0},
		{rank: Uniform(2), d: 1, bonds: []int{1, 1}, notices: 0},
		{rank: Profile(1, 4, 1), d: 2, bonds: []int{1, 4, 1}, notices: 0},
		{rank: Profile(2, 3, 3, 2), d: 3, bonds: []int{1, 3, 3, 1}, notices: 2},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.bonds), func(t *testing.T) {
			t.Parallel()
			notices := 0
			bonds, err := test.rank.bonds(test.d, func(error) { notices++ })
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if !slices.Equal(bonds, test.bonds) {
				t.Fatalf("%v, expected %v", bonds, test.bonds)
			}
			if notices != test.notices {
				t.Fatalf("%d, expected %d", notices, test.notices)
			}
		})
	}
}

func TestFiberCube(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rows indexSet
		mode int
		cols indexSet
		z    *tensor.Dense
	}{
		{
			rows: indexSet{{1}},
			mode: 1,
			cols: indexSet{{2}, {0}},
			z:    tensor.T1([]float64{14, 12, 18, 16, 22, 20}).Reshape(1, 3, 2),
		},
		{
			rows: indexSet{{}},
			mode: 0,
			cols: indexSet{{1, 2}, {0, 0}},
			z:    tensor.T1([]float64{6, 0, 18, 12}).Reshape(1, 2, 2),
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %d %v", test.rows, test.mode, test.cols), func(t *testing.T) {
			t.Parallel()
			f := newFiberIndexer(ramp(2, 3, 4))
			cube := f.cube(test.rows, test.mode, test.cols)
			if !cube.Equal(test.z) {
				t.Fatalf("%s, expected %s", cube, test.z)
			}
		})
	}
}

// ramp returns a tensor whose entries count up from zero in row-major
// order.
func ramp(shape ...int) *tensor.Dense {
	t := tensor.Zeros(shape...)
	v := 0.0
	for ijk := range t.All() {
		t.SetAt(ijk, v)
		v++
	}
	return t
}

func equalWithin(a, b *tensor.Dense, tol float64) bool {
	if !slices.Equal(a.Shape(), b.Shape()) {
		return false
	}
	diff := a.Clone()
	diff.Add(-1, b)
	return diff.Norm() <= tol
}
