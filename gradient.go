package pulsesim

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/pulsesim/cmat"
)

// kernel fills dst with F_pq = (exp(-i D_p dt) - exp(-i D_q dt)) / (-i (D_p - D_q)),
// evaluated as dt exp(-i (D_p+D_q) dt/2) sinc((D_p-D_q) dt/2).
// Pairs with |(D_p-D_q) dt/2| < tol take the degenerate limit sinc = 1.
func kernel(dst *mat.CDense, vals []float64, dt, tol float64) {
	for p, dp := range vals {
		for q, dq := range vals {
			y := (dp - dq) * dt / 2
			sinc := 1.0
			if math.Abs(y) >= tol {
				sinc = math.Sin(y) / y
			}
			phase := cmplx.Exp(complex(0, -(dp+dq)*dt/2))
			dst.Set(p, q, complex(dt*sinc, 0)*phase)
		}
	}
}

// stepDerivative returns the derivative of V exp(-i D dt) V^† along the Hamiltonian direction gen,
// which is -i V (M ∘ F) V^† with M = V^† gen V.
func stepDerivative(vals []float64, vecs, gen *mat.CDense, dt, tol float64) *mat.CDense {
	m := cmat.ToBasis(vecs, gen)
	f := cmat.Zeros(len(vals), len(vals))
	kernel(f, vals, dt, tol)
	cmat.MulElem(m, m, f)
	cmat.Scale(m, -1i)
	return cmat.FromBasis(vecs, m)
}

// StepPropagatorDerivative returns the derivative of exp(-i H dt) with respect to a,
// where H = V diag(vals) V^† and dH/da = gen.
func StepPropagatorDerivative(vals []float64, vecs, gen *mat.CDense, dt float64, options ...EvolveOptions) *mat.CDense {
	opt := getOptions(options)
	return stepDerivative(vals, vecs, gen, dt, opt.degenerateTol)
}

// prepareTrace validates the arguments of routines that consume a completed trace.
func prepareTrace(opt *OptimParams, sys *SystemParams, frames FrameHamiltonians, res *PropResults) (*assembler, error) {
	if err := opt.validate(sys); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := res.check(opt.NumTimeSteps, sys.Dim); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if !res.complete {
		return nil, errors.Wrap(ErrIncompleteTrace, "")
	}
	a, err := newAssembler(&opt.PulseSequence, sys, frames)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := a.checkFrames(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return a, nil
}

// PropagatorDerivative returns the derivative of the total propagator with respect to the amplitude of channel at step,
// UBack[step] * dUs[step] * UForward[step].
func PropagatorDerivative(opt *OptimParams, sys *SystemParams, frames FrameHamiltonians, res *PropResults, step, channel int, options ...EvolveOptions) (*mat.CDense, error) {
	o := getOptions(options)
	a, err := prepareTrace(opt, sys, frames, res)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if step < 0 || step >= opt.NumTimeSteps || channel < 0 || channel >= opt.NumControlLines {
		return nil, errors.Wrapf(ErrDimension, "step %d channel %d", step, channel)
	}
	gen, err := a.generator(channel, step, a.frameAt(a.starts[step]))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	du := stepDerivative(res.Ds[step], res.Vs[step], gen, opt.TimeSteps[step], o.degenerateTol)
	return cmat.Mul(nil, cmat.Mul(nil, res.UBack[step], du), res.UForward[step]), nil
}

// EvalDerivs writes the derivative of the fidelity with respect to each control amplitude into derivs,
// laid out like ControlAmps.
// res must hold a trace completed by OptEvolvePropagator with the same arguments.
// On failure derivs is left untouched.
func EvalDerivs(opt *OptimParams, sys *SystemParams, frames FrameHamiltonians, res *PropResults, derivs []float64, options ...EvolveOptions) error {
	o := getOptions(options)
	a, err := prepareTrace(opt, sys, frames, res)
	if err != nil {
		return errors.Wrap(err, "")
	}
	n := opt.NumTimeSteps
	if len(derivs) != opt.NumControlLines*n {
		return errors.Wrapf(ErrDimension, "derivatives length %d, expected %d", len(derivs), opt.NumControlLines*n)
	}

	// With z = Tr(G^† U) restricted to the computational subspace, the fidelity is |z|/d
	// and its derivative is Re(conj(z) dz)/(|z| d).
	d := opt.DimC2
	z := overlap(opt.UGoal, res.TotU, d)
	grad := make([]float64, len(derivs))
	if z == 0 {
		copy(derivs, grad)
		return nil
	}
	goal := cmat.Zeros(sys.Dim, sys.Dim)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			goal.Set(i, j, opt.UGoal.At(i, j))
		}
	}

	var g errgroup.Group
	g.SetLimit(o.workers)
	for k := 0; k < n; k++ {
		g.Go(func() error {
			// dz = Tr(G^† UBack dU UForward) = -i sum_pq W_qp M_pq F_pq, where W = V^† UForward G^† UBack V.
			vecs := res.Vs[k]
			fg := cmat.Gemm(nil, blas.NoTrans, res.UForward[k], blas.ConjTrans, goal)
			w := cmat.ToBasis(vecs, cmat.Mul(nil, fg, res.UBack[k]))
			f := cmat.Zeros(sys.Dim, sys.Dim)
			kernel(f, res.Ds[k], opt.TimeSteps[k], o.degenerateTol)
			r := a.frameAt(a.starts[k])
			for c := 0; c < opt.NumControlLines; c++ {
				gen, err := a.generator(c, k, r)
				if err != nil {
					return errors.Wrap(err, "")
				}
				m := cmat.ToBasis(vecs, gen)
				var dz complex128
				for p := 0; p < sys.Dim; p++ {
					for q := 0; q < sys.Dim; q++ {
						dz += w.At(q, p) * m.At(p, q) * f.At(p, q)
					}
				}
				dz *= -1i
				grad[c*n+k] = real(cmplx.Conj(z)*dz) / (cmplx.Abs(z) * float64(d))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%d steps", n))
	}
	copy(derivs, grad)
	return nil
}
