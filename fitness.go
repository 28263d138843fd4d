package pulsesim

import (
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/pulsesim/cmat"
)

// overlap returns Tr(goal^† u) over the leading d by d block of u.
func overlap(goal, u *mat.CDense, d int) complex128 {
	return cmat.Inner(goal, cmat.Slice(u, [2]int{0, d}, [2]int{0, d}))
}

// Fidelity returns |Tr(goal^† u)|/dimC2, where u is restricted to its leading dimC2 by dimC2 block.
// It is 1 when the block equals goal up to a global phase.
func Fidelity(goal, u *mat.CDense, dimC2 int) (float64, error) {
	if dimC2 <= 0 {
		return -1, errors.Wrapf(ErrDimension, "subspace dimension %d", dimC2)
	}
	if err := checkSquare(goal, dimC2); err != nil {
		return -1, errors.Wrap(err, "goal unitary")
	}
	if r, c := u.Dims(); r != c || r < dimC2 {
		return -1, errors.Wrapf(ErrDimension, "propagator %dx%d, subspace dimension %d", r, c, dimC2)
	}
	return cmplx.Abs(overlap(goal, u, dimC2)) / float64(dimC2), nil
}

// EvalUnitaryFitness returns the fidelity of the total propagator of a trace completed by OptEvolvePropagator.
func EvalUnitaryFitness(opt *OptimParams, res *PropResults) (float64, error) {
	if !res.complete || res.TotU == nil {
		return -1, errors.Wrap(ErrIncompleteTrace, "")
	}
	fid, err := Fidelity(opt.UGoal, res.TotU, opt.DimC2)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	return fid, nil
}
