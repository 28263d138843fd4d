package pulsesim

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/pulsesim/cmat"
)

// An assembler builds the total Hamiltonian of each time step.
type assembler struct {
	seq    *PulseSequence
	sys    *SystemParams
	frames FrameHamiltonians
	starts []float64

	hInt *cmat.Eigen
}

func newAssembler(seq *PulseSequence, sys *SystemParams, frames FrameHamiltonians) (*assembler, error) {
	a := &assembler{seq: seq, sys: sys, frames: frames, starts: seq.starts()}
	if seq.HInt != nil {
		e, err := cmat.NewEigen(seq.HInt)
		if err != nil {
			return nil, errors.Wrap(err, "interaction frame Hamiltonian")
		}
		a.hInt = &e
	}
	return a, nil
}

// frameAt returns the interaction frame rotation exp(i HInt t), or nil when there is no interaction frame.
func (a *assembler) frameAt(t float64) *mat.CDense {
	if a.hInt == nil {
		return nil
	}
	return a.hInt.Exp(complex(0, t))
}

// drift returns the drift Hamiltonian in the frame r.
func (a *assembler) drift(r *mat.CDense) *mat.CDense {
	if r == nil {
		return cmat.Clone(a.sys.Hnat)
	}
	h := cmat.FromBasis(r, a.sys.Hnat)
	cmat.AddScaled(h, -1, a.seq.HInt)
	return h
}

// carrier returns the modulation angle of channel c at time t.
func (a *assembler) carrier(c int, t float64) float64 {
	line := a.seq.ControlLines[c]
	switch line.Type {
	case Rotating:
		return line.Phase + line.Freq*t
	default:
		return line.Phase
	}
}

// lineGenerator returns the derivative of the Hamiltonian with respect to the amplitude of channel c at time t.
func (a *assembler) lineGenerator(c int, t float64, r *mat.CDense) *mat.CDense {
	ch := a.sys.ControlHams[c]
	theta := a.carrier(c, t)
	g := cmat.Zeros(a.sys.Dim, a.sys.Dim)
	if cos := math.Cos(theta); cos != 0 {
		cmat.AddScaled(g, complex(cos, 0), ch.Inphase)
	}
	if sin := math.Sin(theta); sin != 0 && ch.Quadrature != nil {
		cmat.AddScaled(g, complex(sin, 0), ch.Quadrature)
	}
	if r != nil {
		g = cmat.FromBasis(r, g)
	}
	return g
}

// generator returns the control generator of channel c at step k, reading the precomputed frames if present.
func (a *assembler) generator(c, k int, r *mat.CDense) (*mat.CDense, error) {
	if a.frames == nil {
		return a.lineGenerator(c, a.starts[k], r), nil
	}
	g, err := a.frames.At(c, k)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("channel %d step %d", c, k))
	}
	if err := checkSquare(g, a.sys.Dim); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("frame channel %d step %d", c, k))
	}
	return g, nil
}

// total writes the Hamiltonian of step k into dst.
func (a *assembler) total(dst *mat.CDense, k int) error {
	r := a.frameAt(a.starts[k])
	cmat.Copy(dst, a.drift(r))
	for c := 0; c < a.seq.NumControlLines; c++ {
		amp := a.seq.Amp(c, k)
		if amp == 0 {
			continue
		}
		g, err := a.generator(c, k, r)
		if err != nil {
			return errors.Wrap(err, "")
		}
		cmat.AddScaled(dst, complex(amp, 0), g)
	}
	return nil
}

// totalAt returns the Hamiltonian at time t with the amplitudes of step k, computing every generator in place.
func (a *assembler) totalAt(k int, t float64) *mat.CDense {
	r := a.frameAt(t)
	h := a.drift(r)
	for c := 0; c < a.seq.NumControlLines; c++ {
		amp := a.seq.Amp(c, k)
		if amp == 0 {
			continue
		}
		cmat.AddScaled(h, complex(amp, 0), a.lineGenerator(c, t, r))
	}
	return h
}

// checkFrames verifies that every rotating line can be assembled on the optimization path.
func (a *assembler) checkFrames() error {
	if a.frames != nil {
		return nil
	}
	for c, line := range a.seq.ControlLines {
		if line.Type == Rotating {
			return errors.Wrapf(ErrMissingFrame, "control line %d", c)
		}
	}
	return nil
}
