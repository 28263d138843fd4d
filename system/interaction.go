package system

import (
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/pulsesim/cmat"
)

// InteractionType is the coupling between two subsystems.
type InteractionType string

const (
	// ZZ is J/4 Z⊗Z between two qubits.
	ZZ InteractionType = "ZZ"
	// FlipFlop is J (a⊗a^† + a^†⊗a).
	FlipFlop InteractionType = "FlipFlop"
)

type pauliZer interface {
	PauliZ() *mat.CDense
}

// Interaction returns the operator coupling s1 and s2 on the space s1⊗s2.
func Interaction(s1, s2 Subsystem, typ InteractionType, strength float64) (*mat.CDense, error) {
	switch typ {
	case ZZ:
		z1, ok1 := s1.(pauliZer)
		z2, ok2 := s2.(pauliZer)
		if !ok1 || !ok2 {
			return nil, errors.Errorf("ZZ between %T and %T", s1, s2)
		}
		m := cmat.Kron(z1.PauliZ(), z2.PauliZ())
		cmat.Scale(m, complex(strength/4, 0))
		return m, nil
	case FlipFlop:
		m := cmat.Kron(s1.Lowering(), s2.Raising())
		cmat.AddScaled(m, 1, cmat.Kron(s1.Raising(), s2.Lowering()))
		cmat.Scale(m, complex(strength, 0))
		return m, nil
	default:
		return nil, errors.Errorf("unknown interaction %q", typ)
	}
}

// ExpandOperator embeds op, which acts on the ordered subsystems, into the full space of all subsystems with dimensions dims.
// The first of subsystems is the most significant factor of op.
func ExpandOperator(op *mat.CDense, subsystems []int, dims []int) (*mat.CDense, error) {
	opDim := 1
	for i, s := range subsystems {
		if s < 0 || s >= len(dims) {
			return nil, errors.Errorf("subsystem %d out of %d", s, len(dims))
		}
		if slices.Contains(subsystems[:i], s) {
			return nil, errors.Errorf("repeated subsystem %d", s)
		}
		opDim *= dims[s]
	}
	if r, c := op.Dims(); r != opDim || c != opDim {
		return nil, errors.Errorf("operator %dx%d, expected %dx%d", r, c, opDim, opDim)
	}
	full := 1
	for _, d := range dims {
		full *= d
	}

	rowDigits, colDigits := make([]int, len(dims)), make([]int, len(dims))
	m := cmat.Zeros(full, full)
	for i := 0; i < full; i++ {
		digits(rowDigits, i, dims)
		for j := 0; j < full; j++ {
			digits(colDigits, j, dims)
			if !spectatorsEqual(rowDigits, colDigits, subsystems) {
				continue
			}
			v := op.At(subIndex(rowDigits, subsystems, dims), subIndex(colDigits, subsystems, dims))
			if v != 0 {
				m.Set(i, j, v)
			}
		}
	}
	return m, nil
}

// digits writes the mixed radix digits of i into dst.
func digits(dst []int, i int, dims []int) {
	for k := len(dims) - 1; k >= 0; k-- {
		dst[k] = i % dims[k]
		i /= dims[k]
	}
}

func subIndex(ds []int, subsystems []int, dims []int) int {
	idx := 0
	for _, s := range subsystems {
		idx = idx*dims[s] + ds[s]
	}
	return idx
}

func spectatorsEqual(a, b []int, subsystems []int) bool {
	for k := range a {
		if a[k] != b[k] && !slices.Contains(subsystems, k) {
			return false
		}
	}
	return true
}

// Gate returns a named goal unitary.
// Known names are I, X, Y, Z, H, X90, Y90 and CNOT.
func Gate(name string) (*mat.CDense, error) {
	const r = 0.7071067811865476
	switch name {
	case "I":
		return cmat.Identity(2), nil
	case "X":
		return cmat.M(cmat.PauliX), nil
	case "Y":
		return cmat.M(cmat.PauliY), nil
	case "Z":
		return cmat.M(cmat.PauliZ), nil
	case "H":
		return cmat.M([][]complex128{{r, r}, {r, -r}}), nil
	case "X90":
		return cmat.M([][]complex128{{r, -1i * r}, {-1i * r, r}}), nil
	case "Y90":
		return cmat.M([][]complex128{{r, -r}, {r, r}}), nil
	case "CNOT":
		return cmat.M([][]complex128{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 0, 1},
			{0, 0, 1, 0},
		}), nil
	default:
		return nil, errors.Errorf("unknown gate %q", name)
	}
}
