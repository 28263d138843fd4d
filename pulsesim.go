// Package pulsesim evolves a quantum system under a piecewise-constant multi-channel control Hamiltonian,
// and computes exact gradients of a gate fidelity with respect to the control amplitudes.
//
// A step propagator is exp(-i H dt), computed through the eigendecomposition of H.
// The same eigenbasis yields the derivative of the propagator with respect to each control amplitude,
// see Daleckii-Krein, or Section 4 of "Second order gradient ascent pulse engineering", de Fouquieres et al.
//
// All matrices are row-major *mat.CDense, and control amplitudes are laid out channel-major:
// the amplitude of channel c at step k is ControlAmps[c*NumTimeSteps+k].
package pulsesim

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/pulsesim/cmat"
)

var (
	// ErrDimension reports inconsistent matrix dimensions or buffer lengths.
	ErrDimension = errors.New("dimension mismatch")
	// ErrControlType reports an unknown control line discriminator.
	ErrControlType = errors.New("unsupported control type")
	// ErrMissingFrame reports a rotating-frame control line without precomputed interaction frame Hamiltonians.
	ErrMissingFrame = errors.New("missing interaction frame Hamiltonians")
	// ErrIncompleteTrace reports a PropResults that does not hold a completed evolution.
	ErrIncompleteTrace = errors.New("incomplete evolution trace")
)

// ControlType selects the modulation of a control line.
type ControlType int

const (
	// Linear lines are modulated by a constant phase.
	Linear ControlType = 0
	// Rotating lines oscillate at the line's carrier frequency.
	Rotating ControlType = 1
)

func (ct ControlType) String() string {
	switch ct {
	case Linear:
		return "linear"
	case Rotating:
		return "rotating"
	default:
		return fmt.Sprintf("ControlType(%d)", int(ct))
	}
}

// ControlHam is the in-phase and quadrature generator pair of one control channel.
// A nil Quadrature is treated as zero.
type ControlHam struct {
	Inphase    *mat.CDense
	Quadrature *mat.CDense
}

// ControlLine holds the carrier of one control channel.
// Freq is an angular frequency, in the units of the Hamiltonians.
type ControlLine struct {
	Freq  float64
	Phase float64
	Type  ControlType
}

// PulseSequence is a piecewise-constant control schedule.
type PulseSequence struct {
	NumControlLines int
	NumTimeSteps    int
	TimeSteps       []float64
	// MaxTimeStep bounds the length of a simulation sub-step, zero means unbounded.
	MaxTimeStep float64
	// ControlAmps is indexed [channel*NumTimeSteps + step].
	ControlAmps  []float64
	ControlLines []ControlLine
	// HInt is the optional interaction frame Hamiltonian.
	HInt *mat.CDense
}

// Amp returns the amplitude of channel c at step k.
func (seq *PulseSequence) Amp(c, k int) float64 {
	return seq.ControlAmps[c*seq.NumTimeSteps+k]
}

// Duration returns the total duration of the sequence.
func (seq *PulseSequence) Duration() float64 {
	return floats.Sum(seq.TimeSteps)
}

// starts returns the elapsed time at the start of each step.
func (seq *PulseSequence) starts() []float64 {
	s := make([]float64, len(seq.TimeSteps))
	floats.CumSum(s, seq.TimeSteps)
	for k := len(s) - 1; k >= 1; k-- {
		s[k] = s[k-1]
	}
	if len(s) > 0 {
		s[0] = 0
	}
	return s
}

// SystemParams is the physical system.
type SystemParams struct {
	Dim            int
	NumControlHams int
	ControlHams    []ControlHam
	// Dissipators are carried for open system extensions and are not used in the evolution.
	Dissipators []*mat.CDense
	Hnat        *mat.CDense
}

// OptimParams is a pulse sequence together with its target gate.
type OptimParams struct {
	PulseSequence
	UGoal *mat.CDense
	// DimC2 is the dimension of the computational subspace, the leading block of the full space.
	DimC2 int
}

// PropResults is the trace of an evolution.
type PropResults struct {
	// TotHams are the total Hamiltonians at each step.
	TotHams []*mat.CDense
	// Ds are the eigenvalues of TotHams.
	Ds [][]float64
	// Vs are the eigenvectors of TotHams, in columns.
	Vs []*mat.CDense
	// Us are the propagators of each step.
	Us []*mat.CDense
	// UForward[k] is the propagator from the start to the beginning of step k, UForward[0] is the identity.
	UForward []*mat.CDense
	// UBack[k] is the propagator over the steps after k, UBack[NumTimeSteps-1] is the identity.
	// For every k, TotU = UBack[k] * Us[k] * UForward[k].
	UBack []*mat.CDense
	// TotU is the propagator of the whole sequence.
	TotU *mat.CDense

	complete bool
}

// NewPropResults allocates a zeroed trace for numSteps steps of a dim dimensional system.
func NewPropResults(numSteps, dim int) *PropResults {
	res := &PropResults{
		TotHams:  make([]*mat.CDense, numSteps),
		Ds:       make([][]float64, numSteps),
		Vs:       make([]*mat.CDense, numSteps),
		Us:       make([]*mat.CDense, numSteps),
		UForward: make([]*mat.CDense, numSteps+1),
		UBack:    make([]*mat.CDense, numSteps),
		TotU:     cmat.Zeros(dim, dim),
	}
	for k := 0; k < numSteps; k++ {
		res.TotHams[k] = cmat.Zeros(dim, dim)
		res.Ds[k] = make([]float64, dim)
		res.Vs[k] = cmat.Zeros(dim, dim)
		res.Us[k] = cmat.Zeros(dim, dim)
		res.UForward[k] = cmat.Zeros(dim, dim)
		res.UBack[k] = cmat.Zeros(dim, dim)
	}
	res.UForward[numSteps] = cmat.Zeros(dim, dim)
	return res
}

// Complete reports whether res holds a completed evolution.
func (res *PropResults) Complete() bool { return res.complete }

func (res *PropResults) check(numSteps, dim int) error {
	if len(res.TotHams) != numSteps || len(res.Ds) != numSteps || len(res.Vs) != numSteps || len(res.Us) != numSteps || len(res.UForward) != numSteps+1 || len(res.UBack) != numSteps {
		return errors.Wrapf(ErrDimension, "trace for %d steps, expected %d", len(res.Us), numSteps)
	}
	ms := []*mat.CDense{res.TotU}
	ms = append(ms, res.TotHams...)
	ms = append(ms, res.Vs...)
	ms = append(ms, res.Us...)
	ms = append(ms, res.UForward...)
	ms = append(ms, res.UBack...)
	for i, m := range ms {
		if err := checkSquare(m, dim); err != nil {
			return errors.Wrap(err, fmt.Sprintf("trace matrix %d", i))
		}
	}
	for k, d := range res.Ds {
		if len(d) != dim {
			return errors.Wrapf(ErrDimension, "eigenvalues %d of length %d, expected %d", k, len(d), dim)
		}
	}
	return nil
}

func checkSquare(m *mat.CDense, dim int) error {
	if m == nil {
		return errors.Wrap(ErrDimension, "nil matrix")
	}
	if r, c := m.Dims(); r != dim || c != dim {
		return errors.Wrapf(ErrDimension, "%dx%d, expected %dx%d", r, c, dim, dim)
	}
	return nil
}

func (sys *SystemParams) validate() error {
	if sys.Dim <= 0 {
		return errors.Wrapf(ErrDimension, "dim %d", sys.Dim)
	}
	if err := checkSquare(sys.Hnat, sys.Dim); err != nil {
		return errors.Wrap(err, "natural Hamiltonian")
	}
	if len(sys.ControlHams) != sys.NumControlHams {
		return errors.Wrapf(ErrDimension, "%d control Hamiltonians, expected %d", len(sys.ControlHams), sys.NumControlHams)
	}
	for i, ch := range sys.ControlHams {
		if err := checkSquare(ch.Inphase, sys.Dim); err != nil {
			return errors.Wrap(err, fmt.Sprintf("control %d inphase", i))
		}
		if ch.Quadrature == nil {
			continue
		}
		if err := checkSquare(ch.Quadrature, sys.Dim); err != nil {
			return errors.Wrap(err, fmt.Sprintf("control %d quadrature", i))
		}
	}
	for i, d := range sys.Dissipators {
		if err := checkSquare(d, sys.Dim); err != nil {
			return errors.Wrap(err, fmt.Sprintf("dissipator %d", i))
		}
	}
	return nil
}

func (seq *PulseSequence) validate(sys *SystemParams) error {
	if err := sys.validate(); err != nil {
		return errors.Wrap(err, "")
	}
	if seq.NumTimeSteps <= 0 {
		return errors.Wrapf(ErrDimension, "%d time steps", seq.NumTimeSteps)
	}
	if seq.NumControlLines != sys.NumControlHams {
		return errors.Wrapf(ErrDimension, "%d control lines, %d control Hamiltonians", seq.NumControlLines, sys.NumControlHams)
	}
	if len(seq.ControlLines) != seq.NumControlLines {
		return errors.Wrapf(ErrDimension, "%d control lines, expected %d", len(seq.ControlLines), seq.NumControlLines)
	}
	if len(seq.TimeSteps) != seq.NumTimeSteps {
		return errors.Wrapf(ErrDimension, "%d time steps, expected %d", len(seq.TimeSteps), seq.NumTimeSteps)
	}
	if len(seq.ControlAmps) != seq.NumControlLines*seq.NumTimeSteps {
		return errors.Wrapf(ErrDimension, "%d control amplitudes, expected %d", len(seq.ControlAmps), seq.NumControlLines*seq.NumTimeSteps)
	}
	for k, dt := range seq.TimeSteps {
		if !(dt >= 0) || math.IsInf(dt, 0) {
			return errors.Errorf("time step %d: %f", k, dt)
		}
	}
	if !(seq.MaxTimeStep >= 0) {
		return errors.Errorf("max time step %f", seq.MaxTimeStep)
	}
	for c, line := range seq.ControlLines {
		switch line.Type {
		case Linear, Rotating:
		default:
			return errors.Wrapf(ErrControlType, "control line %d: %v", c, line.Type)
		}
	}
	if seq.HInt != nil {
		if err := checkSquare(seq.HInt, sys.Dim); err != nil {
			return errors.Wrap(err, "interaction frame Hamiltonian")
		}
	}
	return nil
}

func (opt *OptimParams) validate(sys *SystemParams) error {
	if err := opt.PulseSequence.validate(sys); err != nil {
		return errors.Wrap(err, "")
	}
	if opt.DimC2 <= 0 || opt.DimC2 > sys.Dim {
		return errors.Wrapf(ErrDimension, "subspace dimension %d, system dimension %d", opt.DimC2, sys.Dim)
	}
	if err := checkSquare(opt.UGoal, opt.DimC2); err != nil {
		return errors.Wrap(err, "goal unitary")
	}
	return nil
}
