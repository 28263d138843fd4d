package pulsesim

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/pulsesim/cmat"
)

// decompose diagonalizes the Hermitian part of h.
func decompose(vals []float64, vecs, h *mat.CDense) error {
	if err := cmat.EigenHermitian(vals, vecs, h); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// stepPropagator computes dst = V exp(-i D dt) V^†.
func stepPropagator(dst *mat.CDense, vals []float64, vecs *mat.CDense, dt float64) {
	cmat.ExpHermitian(dst, vals, vecs, complex(0, -dt))
}

// accumulateForward fills UForward[k+1] = Us[k] * UForward[k], starting from the identity.
func accumulateForward(res *PropResults) {
	cmat.SetIdentity(res.UForward[0])
	for k, u := range res.Us {
		cmat.Mul(res.UForward[k+1], u, res.UForward[k])
	}
	cmat.Copy(res.TotU, res.UForward[len(res.Us)])
}

// accumulateBackward fills UBack[k] = UBack[k+1] * Us[k+1], starting from the identity at the last step.
func accumulateBackward(res *PropResults) {
	n := len(res.Us)
	cmat.SetIdentity(res.UBack[n-1])
	for k := n - 2; k >= 0; k-- {
		cmat.Mul(res.UBack[k], res.UBack[k+1], res.Us[k+1])
	}
}

// numSubSteps returns the number of sub-steps of a step of length dt.
func numSubSteps(dt, maxTimeStep float64) int {
	if maxTimeStep <= 0 || dt <= maxTimeStep {
		return 1
	}
	return int(math.Ceil(dt / maxTimeStep))
}

// simulateStep returns the propagator of step k, splitting it into sub-steps no longer than MaxTimeStep.
func (a *assembler) simulateStep(k int) (*mat.CDense, error) {
	dim := a.sys.Dim
	dt := a.seq.TimeSteps[k]
	n := numSubSteps(dt, a.seq.MaxTimeStep)
	sub := dt / float64(n)

	vals := make([]float64, dim)
	vecs := cmat.Zeros(dim, dim)
	u := cmat.Zeros(dim, dim)
	acc := cmat.Identity(dim)
	buf := cmat.Zeros(dim, dim)
	for i := 0; i < n; i++ {
		h := a.totalAt(k, a.starts[k]+float64(i)*sub)
		if err := decompose(vals, vecs, h); err != nil {
			return nil, errors.Wrapf(err, "step %d substep %d", k, i)
		}
		stepPropagator(u, vals, vecs, sub)
		cmat.Mul(buf, u, acc)
		acc, buf = buf, acc
	}
	return acc, nil
}
