package ttcross

import "fmt"

// An InvalidRankSpecError reports a rank profile whose length does not match
// the number of dimensions of the decomposed tensor plus one.
type InvalidRankSpecError struct {
	Got  int
	Want int
}

func (e *InvalidRankSpecError) Error() string {
	return fmt.Sprintf("rank profile has %d entries, expected %d", e.Got, e.Want)
}

// A BoundaryRankAdjustedError reports a boundary entry of a rank profile
// that was clamped to 1.
// It is advisory: the decomposition proceeds with the corrected profile, and
// the error is delivered through the Notify option.
type BoundaryRankAdjustedError struct {
	Bond  int
	Given int
}

func (e *BoundaryRankAdjustedError) Error() string {
	return fmt.Sprintf("rank[%d] == %d, but boundary conditions dictate rank[0] == rank[d] == 1: setting it to 1", e.Bond, e.Given)
}

// A RankTooLargeError reports a requested rank that the tensor cannot
// support.
type RankTooLargeError struct {
	Mode int
	Rank int
}

func (e *RankTooLargeError) Error() string {
	return fmt.Sprintf("rank %d at mode %d is too large compared to the size of the tensor: try a smaller rank", e.Rank, e.Mode)
}

// A ConvergenceError reports that successive sweeps stopped short of the
// tolerance threshold.
type ConvergenceError struct {
	Iterations int
	Delta      float64
	Threshold  float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("maximum iterations (%d) reached without meeting tolerance: change %g, threshold %g", e.Iterations, e.Delta, e.Threshold)
}
