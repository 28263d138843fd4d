// Package system builds the operators of driven superconducting circuits,
// and assembles them into the SystemParams of a pulse simulation.
//
// Composite systems are ordered like the Kronecker product: the first subsystem is the most significant.
package system

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fumin/pulsesim/cmat"
)

// A Subsystem is one factor of a composite Hilbert space.
type Subsystem interface {
	Dim() int
	Hnat() *mat.CDense
	Raising() *mat.CDense
	Lowering() *mat.CDense
}

// SNO is a standard non-linear oscillator, see doi:10.1103/PhysRevA.83.012308.
type SNO struct {
	Levels int
	// Omega is the splitting of the lowest two levels.
	Omega float64
	// Delta is the anharmonicity.
	Delta float64
}

func (s SNO) Dim() int { return s.Levels }

// Hnat returns the diagonal natural Hamiltonian, whose level k has energy k*Omega + Delta*k*(k-1)/2.
func (s SNO) Hnat() *mat.CDense {
	h := cmat.Zeros(s.Levels, s.Levels)
	for k := 1; k < s.Levels; k++ {
		e := float64(k)*s.Omega + s.Delta*float64(k*(k-1))/2
		h.Set(k, k, complex(e, 0))
	}
	return h
}

// Raising returns the harmonic oscillator raising operator.
func (s SNO) Raising() *mat.CDense {
	m := cmat.Zeros(s.Levels, s.Levels)
	for k := 1; k < s.Levels; k++ {
		m.Set(k, k-1, complex(math.Sqrt(float64(k)), 0))
	}
	return m
}

// Lowering returns the harmonic oscillator lowering operator.
func (s SNO) Lowering() *mat.CDense {
	m := cmat.Zeros(s.Levels, s.Levels)
	for k := 1; k < s.Levels; k++ {
		m.Set(k-1, k, complex(math.Sqrt(float64(k)), 0))
	}
	return m
}

func (s SNO) Number() *mat.CDense {
	m := cmat.Zeros(s.Levels, s.Levels)
	for k := 0; k < s.Levels; k++ {
		m.Set(k, k, complex(float64(k), 0))
	}
	return m
}

// LevelProjector returns the rank one projector onto level.
func (s SNO) LevelProjector(level int) *mat.CDense {
	if level < 0 || level >= s.Levels {
		panic(fmt.Sprintf("level %d of %d", level, s.Levels))
	}
	m := cmat.Zeros(s.Levels, s.Levels)
	m.Set(level, level, 1)
	return m
}

// SCQubit is a superconducting qubit, whose lowest two levels form the qubit.
type SCQubit struct {
	SNO
	// T1 is the energy relaxation time, zero means no relaxation.
	T1 float64
}

// PauliX returns the X operator on the qubit manifold.
func (q SCQubit) PauliX() *mat.CDense { return q.qubitOp(cmat.PauliX) }

// PauliY returns the Y operator on the qubit manifold.
func (q SCQubit) PauliY() *mat.CDense { return q.qubitOp(cmat.PauliY) }

// PauliZ returns the Z operator on the qubit manifold.
func (q SCQubit) PauliZ() *mat.CDense { return q.qubitOp(cmat.PauliZ) }

func (q SCQubit) qubitOp(p [][]complex128) *mat.CDense {
	if q.Levels < 2 {
		panic(fmt.Sprintf("qubit with %d levels", q.Levels))
	}
	m := cmat.Zeros(q.Levels, q.Levels)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			m.Set(i, j, p[i][j])
		}
	}
	return m
}

// T1Dissipator returns the relaxation operator Lowering/sqrt(T1).
func (q SCQubit) T1Dissipator() *mat.CDense {
	m := q.Lowering()
	if q.T1 <= 0 {
		cmat.Scale(m, 0)
		return m
	}
	cmat.Scale(m, complex(1/math.Sqrt(q.T1), 0))
	return m
}
