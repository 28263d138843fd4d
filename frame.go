package pulsesim

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// FrameHamiltonians holds the control generator of each channel and time step, usually expressed in an interaction frame.
// At may be called concurrently.
type FrameHamiltonians interface {
	At(channel, step int) (*mat.CDense, error)
}

// FrameWriter receives the control generators computed by PrecomputeFrames.
// *cmat.DiskStore implements both FrameWriter and FrameHamiltonians.
type FrameWriter interface {
	Put(channel, step int, m *mat.CDense) error
}

// Frames is an in-memory channel by step container of control generators.
type Frames struct {
	numChannels int
	numSteps    int
	ms          []*mat.CDense
}

// NewFrames returns an empty container for numChannels channels and numSteps steps.
func NewFrames(numChannels, numSteps int) *Frames {
	return &Frames{numChannels: numChannels, numSteps: numSteps, ms: make([]*mat.CDense, numChannels*numSteps)}
}

func (f *Frames) index(channel, step int) (int, error) {
	if channel < 0 || channel >= f.numChannels || step < 0 || step >= f.numSteps {
		return -1, errors.Wrapf(ErrDimension, "channel %d step %d out of %dx%d", channel, step, f.numChannels, f.numSteps)
	}
	return channel*f.numSteps + step, nil
}

// At returns the generator of channel at step.
// It is safe for concurrent use once every Put has returned.
func (f *Frames) At(channel, step int) (*mat.CDense, error) {
	i, err := f.index(channel, step)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if f.ms[i] == nil {
		return nil, errors.Errorf("no generator at channel %d step %d", channel, step)
	}
	return f.ms[i], nil
}

// Put stores m without copying.
func (f *Frames) Put(channel, step int, m *mat.CDense) error {
	i, err := f.index(channel, step)
	if err != nil {
		return errors.Wrap(err, "")
	}
	f.ms[i] = m
	return nil
}

// PrecomputeFrames writes the control generator of every channel and step into dst.
// The generator of channel c at step k is R(t) (cos θ Inphase + sin θ Quadrature) R(t)^†,
// where t is the start time of step k, θ is the carrier angle of the channel at t,
// and R(t) = exp(i HInt t) when the sequence has an interaction frame Hamiltonian.
func PrecomputeFrames(seq *PulseSequence, sys *SystemParams, dst FrameWriter) error {
	if err := seq.validate(sys); err != nil {
		return errors.Wrap(err, "")
	}
	a, err := newAssembler(seq, sys, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	for k := 0; k < seq.NumTimeSteps; k++ {
		r := a.frameAt(a.starts[k])
		for c := 0; c < seq.NumControlLines; c++ {
			if err := dst.Put(c, k, a.lineGenerator(c, a.starts[k], r)); err != nil {
				return errors.Wrap(err, fmt.Sprintf("channel %d step %d", c, k))
			}
		}
	}
	return nil
}
