package system

import (
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/pulsesim/cmat"
)

// TransverseFieldIsing returns the Hamiltonian -sum_<ij> Z_i Z_j - h sum_i X_i of spins on an n[0] by n[1] lattice with open boundaries.
// Spins are ordered row-major, the first spin being the most significant.
func TransverseFieldIsing(n [2]int, h float64) *mat.CDense {
	numSpins := n[0] * n[1]
	hamiltonian := cmat.Zeros(1<<numSpins, 1<<numSpins)

	for y := 0; y < n[0]; y++ {
		for x := 0; x < n[1]; x++ {
			up := y - 1
			if up >= 0 {
				cmat.AddScaled(hamiltonian, -1, pauliString(n, map[[2]int][][]complex128{{up, x}: cmat.PauliZ, {y, x}: cmat.PauliZ}))
			}

			left := x - 1
			if left >= 0 {
				cmat.AddScaled(hamiltonian, -1, pauliString(n, map[[2]int][][]complex128{{y, left}: cmat.PauliZ, {y, x}: cmat.PauliZ}))
			}

			if h != 0 {
				cmat.AddScaled(hamiltonian, complex(-h, 0), pauliString(n, map[[2]int][][]complex128{{y, x}: cmat.PauliX}))
			}
		}
	}
	return hamiltonian
}

// pauliString returns the tensor product of ops on the lattice sites, with identities elsewhere.
func pauliString(n [2]int, ops map[[2]int][][]complex128) *mat.CDense {
	system := cmat.Identity(1)
	for y := 0; y < n[0]; y++ {
		for x := 0; x < n[1]; x++ {
			op, ok := ops[[2]int{y, x}]
			switch {
			case ok:
				system = cmat.Kron(system, cmat.M(op))
			default:
				system = cmat.Kron(system, cmat.Identity(2))
			}
		}
	}
	return system
}
