package pulsesim_test

import (
	"fmt"
	"log"
	"math"

	"github.com/fumin/pulsesim"
	"github.com/fumin/pulsesim/cmat"
)

func Example() {
	// A qubit driven by a constant X pulse of area pi.
	sys := &pulsesim.SystemParams{
		Dim:            2,
		NumControlHams: 1,
		ControlHams:    []pulsesim.ControlHam{{Inphase: cmat.M(cmat.PauliX), Quadrature: cmat.M(cmat.PauliY)}},
		Hnat:           cmat.Zeros(2, 2),
	}
	const numSteps = 8
	opt := &pulsesim.OptimParams{
		PulseSequence: pulsesim.PulseSequence{
			NumControlLines: 1,
			NumTimeSteps:    numSteps,
			ControlLines:    []pulsesim.ControlLine{{Type: pulsesim.Linear}},
		},
		UGoal: cmat.M(cmat.PauliX),
		DimC2: 2,
	}
	for k := 0; k < numSteps; k++ {
		opt.TimeSteps = append(opt.TimeSteps, math.Pi/numSteps)
		opt.ControlAmps = append(opt.ControlAmps, 0.45)
	}

	// Evolve and compute the fidelity gradient.
	res := pulsesim.NewPropResults(opt.NumTimeSteps, sys.Dim)
	if err := pulsesim.OptEvolvePropagator(opt, sys, nil, res); err != nil {
		log.Fatalf("%+v", err)
	}
	fid, err := pulsesim.EvalUnitaryFitness(opt, res)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	derivs := make([]float64, len(opt.ControlAmps))
	if err := pulsesim.EvalDerivs(opt, sys, nil, res, derivs); err != nil {
		log.Fatalf("%+v", err)
	}
	fmt.Printf("Fidelity %.4f\n", fid)
	fmt.Printf("Derivative %.4f\n", derivs[0])

	// Output:
	// Fidelity 0.9877
	// Derivative 0.0614
}
