package ttcross

import "slices"

// A Rank specifies the bond dimensions of a tensor train: either one rank
// shared by all interior bonds, or an explicit profile of every bond.
type Rank struct {
	uniform int
	profile []int
}

// Uniform returns a rank specification whose interior bond dimensions all
// equal r. The boundary bond dimensions are 1.
func Uniform(r int) Rank {
	return Rank{uniform: r}
}

// Profile returns a rank specification listing every bond dimension from
// rank[0] through rank[d], where d is the number of dimensions of the
// decomposed tensor.
func Profile(rs ...int) Rank {
	return Rank{profile: slices.Clone(rs)}
}

// bonds normalizes r into a profile of d+1 bond dimensions whose boundary
// entries are 1. Clamped boundary entries are reported to notify.
func (r Rank) bonds(d int, notify func(error)) ([]int, error) {
	if r.profile == nil {
		bonds := make([]int, d+1)
		for i := range bonds {
			bonds[i] = r.uniform
		}
		bonds[0], bonds[d] = 1, 1
		return bonds, nil
	}

	if len(r.profile) != d+1 {
		return nil, &InvalidRankSpecError{Got: len(r.profile), Want: d + 1}
	}
	bonds := slices.Clone(r.profile)
	for _, i := range []int{0, d} {
		if bonds[i] != 1 {
			notify(&BoundaryRankAdjustedError{Bond: i, Given: bonds[i]})
			bonds[i] = 1
		}
	}
	return bonds, nil
}
