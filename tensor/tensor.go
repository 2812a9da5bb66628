// Package tensor provides dense multidimensional arrays of real numbers.
package tensor

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Dense is a dense tensor whose entries are laid out in row-major order.
type Dense struct {
	shape []int
	data  []float64
}

// Zeros returns a zero filled tensor of the given shape.
func Zeros(shape ...int) *Dense {
	return &Dense{shape: slices.Clone(shape), data: make([]float64, numElements(shape))}
}

// T1 returns a 1-dimensional tensor holding vals.
func T1(vals []float64) *Dense {
	return &Dense{shape: []int{len(vals)}, data: slices.Clone(vals)}
}

// T2 returns a 2-dimensional tensor holding vals.
func T2(vals [][]float64) *Dense {
	t := Zeros(len(vals), len(vals[0]))
	for i, row := range vals {
		if len(row) != len(vals[0]) {
			panic(fmt.Sprintf("%d %d", len(row), len(vals[0])))
		}
		copy(t.data[i*len(row):], row)
	}
	return t
}

// Shape returns the dimensions of t.
func (t *Dense) Shape() []int {
	return slices.Clone(t.shape)
}

// At returns the value at the given indices.
func (t *Dense) At(ijk ...int) float64 {
	return t.data[t.flat(ijk)]
}

// SetAt sets the value at the given indices.
func (t *Dense) SetAt(ijk []int, v float64) {
	t.data[t.flat(ijk)] = v
}

func (t *Dense) flat(ijk []int) int {
	if len(ijk) != len(t.shape) {
		panic(fmt.Sprintf("%#v %#v", ijk, t.shape))
	}
	flat := 0
	for i, x := range ijk {
		if x < 0 || x >= t.shape[i] {
			panic(fmt.Sprintf("%#v %#v", ijk, t.shape))
		}
		flat = flat*t.shape[i] + x
	}
	return flat
}

// All iterates over all entries of t in row-major order.
// The yielded index slice is reused between iterations.
func (t *Dense) All() iter.Seq2[[]int, float64] {
	return func(yield func([]int, float64) bool) {
		ijk := make([]int, len(t.shape))
		for _, v := range t.data {
			if !yield(ijk, v) {
				return
			}
			for i := len(ijk) - 1; i >= 0; i-- {
				ijk[i]++
				if ijk[i] < t.shape[i] {
					break
				}
				ijk[i] = 0
			}
		}
	}
}

// Reshape returns a tensor of the given shape sharing t's underlying data.
// At most one dimension may be -1, in which case it is inferred.
func (t *Dense) Reshape(shape ...int) *Dense {
	shape = slices.Clone(shape)
	wild, known := -1, 1
	for i, d := range shape {
		switch {
		case d == -1:
			if wild != -1 {
				panic(fmt.Sprintf("%#v", shape))
			}
			wild = i
		case d <= 0:
			panic(fmt.Sprintf("%#v", shape))
		default:
			known *= d
		}
	}
	if wild != -1 {
		if len(t.data)%known != 0 {
			panic(fmt.Sprintf("%#v %#v", shape, t.shape))
		}
		shape[wild] = len(t.data) / known
		known *= shape[wild]
	}
	if known != len(t.data) {
		panic(fmt.Sprintf("%#v %#v", shape, t.shape))
	}
	return &Dense{shape: shape, data: t.data}
}

// Transpose returns a new tensor whose axes are permuted by perm.
func (t *Dense) Transpose(perm ...int) *Dense {
	if len(perm) != len(t.shape) {
		panic(fmt.Sprintf("%#v %#v", perm, t.shape))
	}
	shape := make([]int, len(perm))
	seen := make([]bool, len(perm))
	for i, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			panic(fmt.Sprintf("%#v", perm))
		}
		seen[p] = true
		shape[i] = t.shape[p]
	}

	out := Zeros(shape...)
	dst := make([]int, len(perm))
	for ijk, v := range t.All() {
		for i, p := range perm {
			dst[i] = ijk[p]
		}
		out.SetAt(dst, v)
	}
	return out
}

// Clone returns a deep copy of t.
func (t *Dense) Clone() *Dense {
	return &Dense{shape: slices.Clone(t.shape), data: slices.Clone(t.data)}
}

// Add adds c*b to t elementwise.
func (t *Dense) Add(c float64, b *Dense) {
	if !slices.Equal(t.shape, b.shape) {
		panic(fmt.Sprintf("%#v %#v", t.shape, b.shape))
	}
	floats.AddScaled(t.data, c, b.data)
}

// Norm returns the Frobenius norm of t.
func (t *Dense) Norm() float64 {
	return floats.Norm(t.data, 2)
}

// Equal reports whether t and b have the same shape and entries.
func (t *Dense) Equal(b *Dense) bool {
	return slices.Equal(t.shape, b.shape) && slices.Equal(t.data, b.data)
}

func (t *Dense) String() string {
	shapeStrs := make([]string, 0, len(t.shape))
	for _, d := range t.shape {
		shapeStrs = append(shapeStrs, strconv.Itoa(d))
	}

	ss := make([]string, 0, len(t.data))
	for _, v := range t.data {
		ss = append(ss, fmt.Sprintf("%v", v))
	}

	return fmt.Sprintf("[%s][%s]", strings.Join(shapeStrs, ","), strings.Join(ss, ","))
}

// Contract contracts the last axis of a with the first axis of b.
func Contract(a, b *Dense) *Dense {
	am := a.shape[len(a.shape)-1]
	bm := b.shape[0]
	if am != bm {
		panic(fmt.Sprintf("%#v %#v", a.shape, b.shape))
	}
	ar := len(a.data) / am
	bc := len(b.data) / bm

	shape := append(slices.Clone(a.shape[:len(a.shape)-1]), b.shape[1:]...)
	out := Zeros(shape...)
	om := mat.NewDense(ar, bc, out.data)
	om.Mul(mat.NewDense(ar, am, a.data), mat.NewDense(bm, bc, b.data))
	return out
}

// QR returns the thin orthogonal factor of the matrix a, whose columns form
// an orthonormal basis of a's column space.
func QR(a *Dense) (*Dense, error) {
	if len(a.shape) != 2 {
		panic(fmt.Sprintf("%#v", a.shape))
	}
	m, n := a.shape[0], a.shape[1]
	if m < n {
		return nil, errors.Errorf("%d %d", m, n)
	}

	var qr mat.QR
	qr.Factorize(mat.NewDense(m, n, a.data))
	var full mat.Dense
	qr.QTo(&full)

	q := Zeros(m, n)
	for i := range m {
		for j := range n {
			q.data[i*n+j] = full.At(i, j)
		}
	}
	return q, nil
}

// Inv returns the inverse of the square matrix a.
func Inv(a *Dense) (*Dense, error) {
	if len(a.shape) != 2 || a.shape[0] != a.shape[1] {
		panic(fmt.Sprintf("%#v", a.shape))
	}
	n := a.shape[0]

	out := Zeros(n, n)
	om := mat.NewDense(n, n, out.data)
	if err := om.Inverse(mat.NewDense(n, n, a.data)); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return out, nil
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			panic(fmt.Sprintf("%#v", shape))
		}
		n *= d
	}
	return n
}
