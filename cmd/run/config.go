package main

import (
	"fmt"
	"math"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/fumin/pulsesim"
	"github.com/fumin/pulsesim/cmat"
	"github.com/fumin/pulsesim/system"
)

// Config describes a pulse on a set of coupled qubits.
// Energies are angular frequencies in rad/ns and times are in ns.
type Config struct {
	Qubits       []QubitConfig       `yaml:"qubits"`
	Interactions []InteractionConfig `yaml:"interactions"`
	Controls     []ControlConfig     `yaml:"controls"`
	NumSteps     int                 `yaml:"num_steps"`
	Duration     float64             `yaml:"duration"`
	MaxTimeStep  float64             `yaml:"max_time_step"`
	// InteractionFrame moves into the frame rotating at each qubit frequency.
	InteractionFrame bool   `yaml:"interaction_frame"`
	Goal             string `yaml:"goal"`
	// DimC2 defaults to the dimension of the goal.
	DimC2 int `yaml:"dim_c2"`
}

type QubitConfig struct {
	Name   string  `yaml:"name"`
	Levels int     `yaml:"levels"`
	Omega  float64 `yaml:"omega"`
	Delta  float64 `yaml:"delta"`
	T1     float64 `yaml:"t1"`
}

type InteractionConfig struct {
	A        string  `yaml:"a"`
	B        string  `yaml:"b"`
	Type     string  `yaml:"type"`
	Strength float64 `yaml:"strength"`
}

// ControlConfig is a drive on one qubit, with in-phase (a+a^†)/2 and quadrature i(a^†-a)/2.
type ControlConfig struct {
	Qubit string  `yaml:"qubit"`
	Type  string  `yaml:"type"`
	Freq  float64 `yaml:"freq"`
	Phase float64 `yaml:"phase"`
	// Shape is one of gaussian, drag and square.
	Shape string `yaml:"shape"`
	// Area is the rotation angle of gaussian and square pulses, and the peak amplitude of drag pulses.
	Area float64 `yaml:"area"`
}

func DefaultConfig() *Config {
	return &Config{
		Qubits: []QubitConfig{
			{Name: "Q1", Levels: 3, Omega: 0, Delta: -2 * math.Pi * 0.3},
		},
		Controls: []ControlConfig{
			{Qubit: "Q1", Type: "linear", Shape: "gaussian", Area: math.Pi},
		},
		NumSteps: 40,
		Duration: 20,
		Goal:     "X",
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Build returns the system and the pulse sequence described by c.
func (c *Config) Build() (*pulsesim.SystemParams, *pulsesim.OptimParams, error) {
	if c.NumSteps <= 0 || c.Duration <= 0 {
		return nil, nil, errors.Errorf("%d steps over %f", c.NumSteps, c.Duration)
	}
	b := system.NewBuilder()
	qubits := make(map[string]system.SCQubit)
	for _, qc := range c.Qubits {
		q := system.SCQubit{SNO: system.SNO{Levels: qc.Levels, Omega: qc.Omega, Delta: qc.Delta}, T1: qc.T1}
		if err := b.AddSubSystem(qc.Name, q); err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
		qubits[qc.Name] = q
	}
	for _, ic := range c.Interactions {
		if err := b.AddInteraction(ic.A, ic.B, system.InteractionType(ic.Type), ic.Strength); err != nil {
			return nil, nil, errors.Wrap(err, fmt.Sprintf("%#v", ic))
		}
	}
	for _, qc := range c.Qubits {
		if qc.T1 <= 0 {
			continue
		}
		d, err := b.ExpandOperator(qc.Name, qubits[qc.Name].T1Dissipator())
		if err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
		if err := b.AddDissipator(d); err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
	}

	dt := c.Duration / float64(c.NumSteps)
	opt := &pulsesim.OptimParams{
		PulseSequence: pulsesim.PulseSequence{
			NumControlLines: len(c.Controls),
			NumTimeSteps:    c.NumSteps,
			MaxTimeStep:     c.MaxTimeStep,
		},
	}
	for k := 0; k < c.NumSteps; k++ {
		opt.TimeSteps = append(opt.TimeSteps, dt)
	}
	for _, cc := range c.Controls {
		q, ok := qubits[cc.Qubit]
		if !ok {
			return nil, nil, errors.Errorf("unknown qubit %s", cc.Qubit)
		}
		inphase, quadrature := q.Raising(), q.Raising()
		cmat.AddScaled(inphase, 1, q.Lowering())
		cmat.Scale(inphase, 0.5)
		cmat.AddScaled(quadrature, -1, q.Lowering())
		cmat.Scale(quadrature, 0.5i)
		inFull, err := b.ExpandOperator(cc.Qubit, inphase)
		if err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
		quadFull, err := b.ExpandOperator(cc.Qubit, quadrature)
		if err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
		if err := b.AddControlHam(inFull, quadFull); err != nil {
			return nil, nil, errors.Wrap(err, "")
		}

		line := pulsesim.ControlLine{Freq: cc.Freq, Phase: cc.Phase}
		switch cc.Type {
		case "", "linear":
			line.Type = pulsesim.Linear
		case "rotating":
			line.Type = pulsesim.Rotating
		default:
			return nil, nil, errors.Errorf("unknown control type %s", cc.Type)
		}
		opt.ControlLines = append(opt.ControlLines, line)

		amps, err := pulseShape(cc.Shape, cc.Area, opt.TimeSteps)
		if err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
		opt.ControlAmps = append(opt.ControlAmps, amps...)
	}

	if c.InteractionFrame {
		d := b.Dim()
		opt.HInt = cmat.Zeros(d, d)
		for _, qc := range c.Qubits {
			n := qubits[qc.Name].Number()
			cmat.Scale(n, complex(qc.Omega, 0))
			m, err := b.ExpandOperator(qc.Name, n)
			if err != nil {
				return nil, nil, errors.Wrap(err, "")
			}
			cmat.AddScaled(opt.HInt, 1, m)
		}
	}

	goal, err := system.Gate(c.Goal)
	if err != nil {
		return nil, nil, errors.Wrap(err, "")
	}
	opt.UGoal = goal
	opt.DimC2 = c.DimC2
	if opt.DimC2 == 0 {
		opt.DimC2, _ = goal.Dims()
	}

	sys, err := b.Build()
	if err != nil {
		return nil, nil, errors.Wrap(err, "")
	}
	return sys, opt, nil
}

// pulseShape samples a pulse at the middle of each time step, on the interval [-2, 2].
func pulseShape(shape string, area float64, timeSteps []float64) ([]float64, error) {
	n := len(timeSteps)
	amps := make([]float64, n)
	for k := range amps {
		x := -2 + 4*(float64(k)+0.5)/float64(n)
		switch shape {
		case "gaussian":
			amps[k] = math.Exp(-x * x)
		case "drag":
			amps[k] = -x * math.Exp(-x*x)
		case "square":
			amps[k] = 1
		default:
			return nil, errors.Errorf("unknown shape %s", shape)
		}
	}

	if shape == "drag" {
		floats.Scale(area/floats.Max(amps), amps)
		return amps, nil
	}
	floats.Scale(area/floats.Dot(amps, timeSteps), amps)
	return amps, nil
}
