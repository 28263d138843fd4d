package pulsesim

import (
	"slices"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/pulsesim/cmat"
)

// EvolvePropagator returns the propagator of the whole pulse sequence.
func EvolvePropagator(seq *PulseSequence, sys *SystemParams, options ...EvolveOptions) (*mat.CDense, error) {
	if err := seq.validate(sys); err != nil {
		return nil, errors.Wrap(err, "")
	}
	out := make([]complex128, sys.Dim*sys.Dim)
	if err := EvolvePropagatorBuffer(seq, sys, 1, out, options...); err != nil {
		return nil, errors.Wrap(err, "")
	}
	u, err := cmat.View(out, sys.Dim, sys.Dim)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return u, nil
}

// EvolvePropagatorBuffer evolves the pulse sequence without retaining a trace,
// and writes numOutputSamples cumulative propagators back to back into out in row-major order.
// Sample s is the propagator after the first ceil((s+1)*NumTimeSteps/numOutputSamples) steps,
// so the last sample is always the propagator of the whole sequence.
// Steps longer than MaxTimeStep are split into equal sub-steps.
// On failure out is left untouched.
func EvolvePropagatorBuffer(seq *PulseSequence, sys *SystemParams, numOutputSamples int, out []complex128, options ...EvolveOptions) error {
	opt := getOptions(options)
	if err := seq.validate(sys); err != nil {
		return errors.Wrap(err, "")
	}
	n, dim := seq.NumTimeSteps, sys.Dim
	if numOutputSamples < 1 || numOutputSamples > n {
		return errors.Wrapf(ErrDimension, "%d output samples for %d steps", numOutputSamples, n)
	}
	if len(out) != numOutputSamples*dim*dim {
		return errors.Wrapf(ErrDimension, "output length %d, expected %d", len(out), numOutputSamples*dim*dim)
	}
	a, err := newAssembler(seq, sys, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}

	// Products over contiguous segments are computed concurrently, then combined in order.
	sampleEnds := sampleBoundaries(n, numOutputSamples)
	ends := segmentBoundaries(n, opt.workers, sampleEnds)
	segs := make([]*mat.CDense, len(ends))
	var g errgroup.Group
	g.SetLimit(opt.workers)
	for i := range ends {
		lo, hi := 0, ends[i]
		if i > 0 {
			lo = ends[i-1]
		}
		g.Go(func() error {
			p, buf := cmat.Identity(dim), cmat.Zeros(dim, dim)
			for k := lo; k < hi; k++ {
				u, err := a.simulateStep(k)
				if err != nil {
					return errors.Wrap(err, "")
				}
				cmat.Mul(buf, u, p)
				p, buf = buf, p
			}
			segs[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "")
	}

	samples := make([]complex128, len(out))
	total, buf := cmat.Identity(dim), cmat.Zeros(dim, dim)
	s := 0
	for i, end := range ends {
		cmat.Mul(buf, segs[i], total)
		total, buf = buf, total
		if s < len(sampleEnds) && end == sampleEnds[s] {
			if err := cmat.Flatten(samples[s*dim*dim:(s+1)*dim*dim], total); err != nil {
				return errors.Wrap(err, "")
			}
			s++
		}
	}
	copy(out, samples)
	return nil
}

// sampleBoundaries returns the number of steps after which each output sample is taken.
func sampleBoundaries(numSteps, numSamples int) []int {
	ends := make([]int, numSamples)
	for s := range ends {
		ends[s] = ((s+1)*numSteps + numSamples - 1) / numSamples
	}
	return ends
}

// segmentBoundaries cuts numSteps into about workers segments that also end at every sample boundary.
func segmentBoundaries(numSteps, workers int, sampleEnds []int) []int {
	workers = min(max(workers, 1), numSteps)
	ends := slices.Clone(sampleEnds)
	for w := 0; w < workers; w++ {
		ends = append(ends, ((w+1)*numSteps+workers-1)/workers)
	}
	slices.Sort(ends)
	return slices.Compact(ends)
}

// OptEvolvePropagator evolves the pulse sequence and retains the full trace in res,
// which must have been allocated by NewPropResults(opt.NumTimeSteps, sys.Dim).
// frames holds the control generators of each channel and step, and is required when a control line is Rotating.
// Without frames, the generators of Linear lines are assembled from sys.
// Steps are not split by MaxTimeStep, since each step needs a single eigendecomposition for the gradient.
func OptEvolvePropagator(opt *OptimParams, sys *SystemParams, frames FrameHamiltonians, res *PropResults, options ...EvolveOptions) error {
	o := getOptions(options)
	if err := opt.validate(sys); err != nil {
		return errors.Wrap(err, "")
	}
	if err := res.check(opt.NumTimeSteps, sys.Dim); err != nil {
		return errors.Wrap(err, "")
	}
	a, err := newAssembler(&opt.PulseSequence, sys, frames)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := a.checkFrames(); err != nil {
		return errors.Wrap(err, "")
	}
	res.complete = false

	var g errgroup.Group
	g.SetLimit(o.workers)
	for k := 0; k < opt.NumTimeSteps; k++ {
		g.Go(func() error {
			if err := a.total(res.TotHams[k], k); err != nil {
				return errors.Wrap(err, "")
			}
			if err := decompose(res.Ds[k], res.Vs[k], res.TotHams[k]); err != nil {
				return errors.Wrapf(err, "step %d", k)
			}
			stepPropagator(res.Us[k], res.Ds[k], res.Vs[k], opt.TimeSteps[k])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		accumulateForward(res)
	}()
	go func() {
		defer wg.Done()
		accumulateBackward(res)
	}()
	wg.Wait()
	res.complete = true
	return nil
}
