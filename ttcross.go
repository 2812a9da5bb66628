// Package ttcross approximates dense tensors by tensor trains, also known
// as matrix product states, using cross approximation.
//
// Cross approximation reads only the fibers crossing a small set of pivot
// entries instead of the whole tensor, and refines the pivots by sweeping
// back and forth along the train until the approximation stabilizes.
//
// References:
//   - TT-cross approximation for multidimensional arrays, Ivan Oseledets, Eugene Tyrtyshnikov
//   - How to find a good submatrix, S. A. Goreinov, I. V. Oseledets, D. V. Savostyanov, E. E. Tyrtyshnikov, N. L. Zamarashkin
package ttcross

import (
	"fmt"
	"log"
	"math/rand/v2"
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/ttcross/tensor"
)

// DecomposeOptions are options for Decompose.
type DecomposeOptions struct {
	tol           float64
	maxIterations int
	src           *rand.Rand
	notify        func(error)
}

// NewDecomposeOptions returns the default decomposition options.
func NewDecomposeOptions() DecomposeOptions {
	opt := DecomposeOptions{}
	opt.tol = 1e-5
	opt.maxIterations = 100
	opt.src = rand.New(rand.NewPCG(1, 1))
	opt.notify = func(err error) { log.Printf("%v", err) }
	return opt
}

// Tol sets the tolerance of the convergence criterion.
func (opt DecomposeOptions) Tol(tol float64) DecomposeOptions {
	opt.tol = tol
	return opt
}

// MaxIterations sets the maximum number of sweep iterations.
func (opt DecomposeOptions) MaxIterations(i int) DecomposeOptions {
	opt.maxIterations = i
	return opt
}

// Random sets the source drawing the initial pivots and cores.
func (opt DecomposeOptions) Random(src *rand.Rand) DecomposeOptions {
	opt.src = src
	return opt
}

// Notify sets the function receiving advisory errors such as
// *BoundaryRankAdjustedError.
func (opt DecomposeOptions) Notify(f func(error)) DecomposeOptions {
	opt.notify = f
	return opt
}

// Decompose approximates t by a tensor train of the given rank, returning
// its cores. Core k is of shape (rank[k], n[k], rank[k+1]), where n[k] is
// the size of t's k-th mode.
func Decompose(t *tensor.Dense, rank Rank, options ...DecomposeOptions) ([]*tensor.Dense, error) {
	opt := NewDecomposeOptions()
	if len(options) > 0 {
		opt = options[0]
	}

	shape := t.Shape()
	d := len(shape)
	if d == 0 {
		panic(fmt.Sprintf("%#v", shape))
	}
	bonds, err := rank.bonds(d, opt.notify)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	colSets, err := initColSets(opt.src, shape, bonds)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Two generations of cores: the previous generation measures how much
	// the latest sweep changed the approximation.
	old := make([]*tensor.Dense, d)
	cores := make([]*tensor.Dense, d)
	for k := range d {
		old[k] = tensor.Zeros(bonds[k], shape[k], bonds[k+1])
		cores[k] = randTensor(opt.src, bonds[k], shape[k], bonds[k+1])
	}

	f := newFiberIndexer(t)
	conv := struct {
		ok        bool
		iteration int
		delta     float64
		threshold float64
	}{}
	conv.delta, conv.threshold = convergence(old, cores, opt.tol)
	for i := range opt.maxIterations {
		if conv.delta < conv.threshold {
			conv.ok = true
			break
		}
		conv.iteration = i + 1
		old, cores = cores, make([]*tensor.Dense, d)

		// Left to right, refining the row pivots.
		rowSets := make([]indexSet, d)
		rowSets[0] = indexSet{multiIndex{}}
		for k := 0; k < d-1; k++ {
			next, err := f.rightStep(k, bonds, rowSets[k], colSets[k])
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%d %d", i, k))
			}
			rowSets[k+1] = next
		}

		// Right to left, refining the column pivots and rebuilding the
		// cores from the skeleton decompositions.
		colSets = make([]indexSet, d)
		colSets[d-1] = indexSet{multiIndex{}}
		for k := d; k >= 2; k-- {
			next, core, err := f.leftStep(k, bonds, rowSets[k-1], colSets[k-1])
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%d %d", i, k-1))
			}
			colSets[k-2] = next
			cores[k-1] = core
		}

		// The first core is read off the tensor directly.
		cores[0] = f.cube(indexSet{multiIndex{}}, 0, colSets[0])

		conv.delta, conv.threshold = convergence(old, cores, opt.tol)
	}
	if !conv.ok && conv.delta >= conv.threshold {
		return nil, errors.WithStack(&ConvergenceError{Iterations: conv.iteration, Delta: conv.delta, Threshold: conv.threshold})
	}
	// Check the final generation once more before accepting it.
	if conv.delta > conv.threshold {
		return nil, errors.WithStack(&ConvergenceError{Iterations: conv.iteration, Delta: conv.delta, Threshold: conv.threshold})
	}
	return cores, nil
}

// Reconstruct contracts a chain of cores back into the tensor they
// approximate.
func Reconstruct(chain []*tensor.Dense) *tensor.Dense {
	if len(chain) == 0 {
		panic(fmt.Sprintf("%#v", chain))
	}
	full := chain[0].Clone()
	for _, core := range chain[1:] {
		full = tensor.Contract(full, core)
	}

	shape := make([]int, 0, len(chain))
	for _, core := range chain {
		shape = append(shape, core.Shape()[1])
	}
	return full.Reshape(shape...)
}

// convergence returns the distance between the reconstructions of two core
// generations, and the acceptance threshold relative to the latest one.
func convergence(old, cores []*tensor.Dense, tol float64) (delta, threshold float64) {
	diff := Reconstruct(old)
	latest := Reconstruct(cores)
	diff.Add(-1, latest)
	return diff.Norm(), tol * latest.Norm()
}

// initColSets draws the initial column pivots of every bond: bond k+1 gets
// rank[k+1] distinct multi-indexes over the modes to its right, resampling
// duplicates.
func initColSets(src *rand.Rand, shape, bonds []int) ([]indexSet, error) {
	d := len(shape)
	colSets := make([]indexSet, d)
	for k := 0; k < d-1; k++ {
		// The pool of distinct multi-indexes must cover the bond dimension,
		// otherwise resampling would never terminate.
		pool := 1
		for _, n := range shape[k+1:] {
			pool *= n
			if pool >= bonds[k+1] {
				break
			}
		}
		if pool < bonds[k+1] {
			return nil, &RankTooLargeError{Mode: k, Rank: bonds[k+1]}
		}

		set := make(indexSet, 0, bonds[k+1])
		for len(set) < bonds[k+1] {
			mi := sampleMultiIndex(src, shape[k+1:])
			if containsIndex(set, mi) {
				continue
			}
			set = append(set, mi)
		}
		colSets[k] = set
	}
	return colSets, nil
}

func sampleMultiIndex(src *rand.Rand, sizes []int) multiIndex {
	mi := make(multiIndex, 0, len(sizes))
	for _, n := range sizes {
		mi = append(mi, src.IntN(n))
	}
	return mi
}

func containsIndex(set indexSet, mi multiIndex) bool {
	for _, v := range set {
		if slices.Equal(v, mi) {
			return true
		}
	}
	return false
}

func randTensor(src *rand.Rand, shape ...int) *tensor.Dense {
	t := tensor.Zeros(shape...)
	for ijk := range t.All() {
		t.SetAt(ijk, src.Float64())
	}
	return t
}
