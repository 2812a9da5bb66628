package ttcross

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/fumin/ttcross/tensor"
)

// A multiIndex fixes the coordinates of a run of contiguous modes.
// The empty multiIndex fixes nothing and addresses a tensor boundary.
type multiIndex []int

// An indexSet is an ordered set of pivot multi-indexes on one side of a
// bond. Its length is the bond dimension.
type indexSet []multiIndex

// An axisSel selects along one mode: either a fixed coordinate, or the
// whole mode when free.
type axisSel struct {
	coord int
	free  bool
}

// A fiberIndexer carves fibers out of a tensor.
// A fiber is the set of entries whose coordinates agree with a row pivot on
// the modes to the left of a free mode, and with a column pivot on the
// modes to its right.
type fiberIndexer struct {
	t     *tensor.Dense
	shape []int
	sel   []axisSel
	ijk   []int
}

func newFiberIndexer(t *tensor.Dense) *fiberIndexer {
	shape := t.Shape()
	return &fiberIndexer{
		t:     t,
		shape: shape,
		sel:   make([]axisSel, len(shape)),
		ijk:   make([]int, len(shape)),
	}
}

// set builds the selection row ++ free(mode) ++ col.
func (f *fiberIndexer) set(row multiIndex, mode int, col multiIndex) {
	if len(row) != mode || len(row)+1+len(col) != len(f.sel) {
		panic(fmt.Sprintf("%#v %d %#v", row, mode, col))
	}
	for i, c := range row {
		f.sel[i] = axisSel{coord: c}
	}
	f.sel[mode] = axisSel{free: true}
	for i, c := range col {
		f.sel[mode+1+i] = axisSel{coord: c}
	}
}

// at returns the x-th entry of the selected fiber.
func (f *fiberIndexer) at(x int) float64 {
	for i, s := range f.sel {
		if s.free {
			f.ijk[i] = x
		} else {
			f.ijk[i] = s.coord
		}
	}
	return f.t.At(f.ijk...)
}

// cube gathers the fibers crossing every pair of row and column pivots into
// a tensor of shape (len(rows), n, len(cols)), where n is the size of the
// free mode.
func (f *fiberIndexer) cube(rows indexSet, mode int, cols indexSet) *tensor.Dense {
	n := f.shape[mode]
	c := tensor.Zeros(len(rows), n, len(cols))
	dst := make([]int, 3)
	for i, row := range rows {
		for j, col := range cols {
			f.set(row, mode, col)
			for x := range n {
				dst[0], dst[1], dst[2] = i, x, j
				c.SetAt(dst, f.at(x))
			}
		}
	}
	return c
}

// rightStep refines the row pivots of the bond to the right of mode k.
// The pivot fibers are stacked into a (bonds[k]*n, bonds[k+1]) matrix whose
// quasi-maximal volume rows, searched within an orthonormal basis of its
// column space, become the new pivots.
func (f *fiberIndexer) rightStep(k int, bonds []int, rows, cols indexSet) (indexSet, error) {
	n := f.shape[k]
	cube := f.cube(rows, k, cols)
	m := cube.Reshape(bonds[k]*n, bonds[k+1])

	q, err := tensor.QR(m)
	if err != nil {
		return nil, errors.Wrap(&RankTooLargeError{Mode: k, Rank: bonds[k+1]}, err.Error())
	}
	selected, _, err := MaxVol(q)
	if err != nil {
		return nil, errors.Wrap(&RankTooLargeError{Mode: k, Rank: bonds[k+1]}, err.Error())
	}

	next := make(indexSet, 0, len(selected))
	for _, p := range selected {
		i, x := p/n, p%n
		mi := make(multiIndex, 0, len(rows[i])+1)
		mi = append(append(mi, rows[i]...), x)
		next = append(next, mi)
	}
	return next, nil
}

// leftStep refines the column pivots of the bond to the left of mode k-1,
// and rebuilds core k-1 from the skeleton decomposition of the pivot
// fibers.
func (f *fiberIndexer) leftStep(k int, bonds []int, rows, cols indexSet) (indexSet, *tensor.Dense, error) {
	n := f.shape[k-1]
	cube := f.cube(rows, k-1, cols)
	m := cube.Reshape(bonds[k-1], n*bonds[k]).Transpose(1, 0)

	q, err := tensor.QR(m)
	if err != nil {
		return nil, nil, errors.Wrap(&RankTooLargeError{Mode: k - 1, Rank: bonds[k-1]}, err.Error())
	}
	selected, inv, err := MaxVol(q)
	if err != nil {
		return nil, nil, errors.Wrap(&RankTooLargeError{Mode: k - 1, Rank: bonds[k-1]}, err.Error())
	}
	skeleton := tensor.Contract(q, inv)

	next := make(indexSet, 0, len(selected))
	for _, p := range selected {
		x, j := p/bonds[k], p%bonds[k]
		mi := make(multiIndex, 0, 1+len(cols[j]))
		mi = append(append(mi, x), cols[j]...)
		next = append(next, mi)
	}
	core := skeleton.Transpose(1, 0).Reshape(bonds[k-1], n, bonds[k])
	return next, core, nil
}
