package ttcross_test

import (
	"fmt"
	"log"

	"github.com/fumin/ttcross"
	"github.com/fumin/ttcross/tensor"
)

func Example() {
	// Decompose a 5x5x5 tensor whose entries count up from 0 to 124.
	vals := make([]float64, 125)
	for i := range vals {
		vals[i] = float64(i)
	}
	full := tensor.T1(vals).Reshape(5, 5, 5)

	chain, err := ttcross.Decompose(full, ttcross.Profile(1, 3, 3, 1))
	if err != nil {
		log.Fatalf("%+v", err)
	}
	for _, core := range chain {
		fmt.Printf("%v\n", core.Shape())
	}

	// The cores reproduce the tensor within the tolerance.
	approx := ttcross.Reconstruct(chain)
	approx.Add(-1, full)
	fmt.Printf("error below tolerance: %t\n", approx.Norm() < 1e-5*full.Norm())

	// Output:
	// [1 5 3]
	// [3 5 3]
	// [3 5 1]
	// error below tolerance: true
}
