package ttcross

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/fumin/ttcross/tensor"
)

// MaxVol greedily selects the rows of the matrix a that form a square
// submatrix of quasi-maximal volume.
// It returns the selected row indices in selection order, together with the
// inverse of the selected submatrix.
//
// See How to find a good submatrix, S. A. Goreinov, I. V. Oseledets,
// D. V. Savostyanov, E. E. Tyrtyshnikov, N. L. Zamarashkin.
func MaxVol(a *tensor.Dense) ([]int, *tensor.Dense, error) {
	shape := a.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("%#v", shape))
	}
	n, r := shape[0], shape[1]
	if n < r {
		return nil, nil, errors.Errorf("%d %d", n, r)
	}

	// Rows are deflated in place inside work, and active lists the original
	// indices of the rows still in play.
	work := make([]float64, n*r)
	for ijk, v := range a.All() {
		work[ijk[0]*r+ijk[1]] = v
	}
	active := make([]int, 0, n)
	for i := range n {
		active = append(active, i)
	}
	norm2 := make([]float64, n)

	selected := make([]int, 0, r)
	for len(selected) < r {
		// Rows with zero norm carry no volume and are dropped for good.
		kept := active[:0]
		for _, i := range active {
			row := work[i*r : (i+1)*r]
			norm2[i] = floats.Dot(row, row)
			if norm2[i] == 0 {
				continue
			}
			kept = append(kept, i)
		}
		active = kept
		if len(active) == 0 {
			return nil, nil, errors.Errorf("%d %d", len(selected), r)
		}

		pick := active[0]
		for _, i := range active[1:] {
			if norm2[i] > norm2[pick] {
				pick = i
			}
		}
		selected = append(selected, pick)

		// Project the picked row out of the remaining ones.
		pickRow := work[pick*r : (pick+1)*r]
		kept = active[:0]
		for _, i := range active {
			if i == pick {
				continue
			}
			row := work[i*r : (i+1)*r]
			c := floats.Dot(row, pickRow) / norm2[pick]
			floats.AddScaled(row, -c, pickRow)
			kept = append(kept, i)
		}
		active = kept
	}

	sub := tensor.Zeros(r, r)
	for si, i := range selected {
		for j := range r {
			sub.SetAt([]int{si, j}, a.At(i, j))
		}
	}
	inv, err := tensor.Inv(sub)
	if err != nil {
		return nil, nil, errors.Wrap(err, fmt.Sprintf("%v", selected))
	}
	return selected, inv, nil
}
