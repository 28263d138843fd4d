package main

import (
	"flag"
	"fmt"
	"log"
	"math/cmplx"
	"runtime"
	"slices"
	"time"

	"github.com/pkg/errors"

	"github.com/fumin/pulsesim"
	"github.com/fumin/pulsesim/cmat"
	"github.com/fumin/pulsesim/util"
)

var (
	configPath = flag.String("c", "", "experiment config in YAML, empty for the default single qubit X gate")
	framesPath = flag.String("frames", "", "sqlite file for the interaction frame control Hamiltonians, empty to keep them in memory")
	fdStep     = flag.Float64("fd", 0, "check the gradient against centered finite differences of this step, zero to skip")
	numSamples = flag.Int("samples", 0, "print the level populations at this many points in time, zero to skip")
	workers    = flag.Int("workers", runtime.GOMAXPROCS(0), "number of workers")
)

func fitness(opt *pulsesim.OptimParams, sys *pulsesim.SystemParams, frames pulsesim.FrameHamiltonians, options pulsesim.EvolveOptions) (float64, error) {
	res := pulsesim.NewPropResults(opt.NumTimeSteps, sys.Dim)
	if err := pulsesim.OptEvolvePropagator(opt, sys, frames, res, options); err != nil {
		return -1, errors.Wrap(err, "")
	}
	fid, err := pulsesim.EvalUnitaryFitness(opt, res)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	return fid, nil
}

func finiteDifferences(opt *pulsesim.OptimParams, sys *pulsesim.SystemParams, frames pulsesim.FrameHamiltonians, options pulsesim.EvolveOptions, h float64) ([]float64, error) {
	throttler := util.NewSkipThrottler(5 * time.Second)
	fd := make([]float64, len(opt.ControlAmps))
	shifted := *opt
	shifted.ControlAmps = slices.Clone(opt.ControlAmps)
	for i, a := range opt.ControlAmps {
		shifted.ControlAmps[i] = a + h
		plus, err := fitness(&shifted, sys, frames, options)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		shifted.ControlAmps[i] = a - h
		minus, err := fitness(&shifted, sys, frames, options)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		shifted.ControlAmps[i] = a
		fd[i] = (plus - minus) / (2 * h)

		if ok, skipped := throttler.Ok(); ok {
			log.Printf("finite difference %d/%d, %d unlogged", i+1, len(fd), skipped)
		}
	}
	return fd, nil
}

// precomputeFrames returns the control generators of each channel and step, and a function releasing them.
func precomputeFrames(opt *pulsesim.OptimParams, sys *pulsesim.SystemParams) (pulsesim.FrameHamiltonians, func() error, error) {
	if *framesPath == "" {
		frames := pulsesim.NewFrames(opt.NumControlLines, opt.NumTimeSteps)
		if err := pulsesim.PrecomputeFrames(&opt.PulseSequence, sys, frames); err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
		return frames, func() error { return nil }, nil
	}

	disk, err := cmat.NewDiskStore(*framesPath, sys.Dim, sys.Dim)
	if err != nil {
		return nil, nil, errors.Wrap(err, "")
	}
	if err := pulsesim.PrecomputeFrames(&opt.PulseSequence, sys, disk); err != nil {
		disk.Close()
		return nil, nil, errors.Wrap(err, "")
	}
	nnz, err := disk.NumNonZero()
	if err != nil {
		disk.Close()
		return nil, nil, errors.Wrap(err, "")
	}
	log.Printf("%d nonzero frame entries in %s", nnz, disk.Path)
	return disk, disk.Close, nil
}

func printPopulations(opt *pulsesim.OptimParams, sys *pulsesim.SystemParams, options pulsesim.EvolveOptions) error {
	dim := sys.Dim
	out := make([]complex128, *numSamples*dim*dim)
	if err := pulsesim.EvolvePropagatorBuffer(&opt.PulseSequence, sys, *numSamples, out, options); err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Printf("sample")
	for l := 0; l < dim; l++ {
		fmt.Printf(",p%d", l)
	}
	fmt.Printf("\n")
	for s := 0; s < *numSamples; s++ {
		u, err := cmat.View(out[s*dim*dim:(s+1)*dim*dim], dim, dim)
		if err != nil {
			return errors.Wrap(err, "")
		}
		// Populations of the evolved ground state.
		fmt.Printf("%d", s)
		for l := 0; l < dim; l++ {
			fmt.Printf(",%f", cmplx.Abs(u.At(l, 0))*cmplx.Abs(u.At(l, 0)))
		}
		fmt.Printf("\n")
	}
	return nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = Load(*configPath)
		if err != nil {
			return errors.Wrap(err, "")
		}
	}
	sys, opt, err := cfg.Build()
	if err != nil {
		return errors.Wrap(err, "")
	}
	options := pulsesim.NewEvolveOptions().Workers(*workers)
	log.Printf("dim %d, %d control lines, %d steps, duration %f", sys.Dim, opt.NumControlLines, opt.NumTimeSteps, opt.Duration())

	var frames pulsesim.FrameHamiltonians
	needFrames := *framesPath != ""
	for _, line := range opt.ControlLines {
		needFrames = needFrames || line.Type == pulsesim.Rotating
	}
	if needFrames {
		f, release, err := precomputeFrames(opt, sys)
		if err != nil {
			return errors.Wrap(err, "")
		}
		defer release()
		frames = f
	}

	if *numSamples > 0 {
		if err := printPopulations(opt, sys, options); err != nil {
			return errors.Wrap(err, "")
		}
	}

	res := pulsesim.NewPropResults(opt.NumTimeSteps, sys.Dim)
	if err := pulsesim.OptEvolvePropagator(opt, sys, frames, res, options); err != nil {
		return errors.Wrap(err, "")
	}
	fid, err := pulsesim.EvalUnitaryFitness(opt, res)
	if err != nil {
		return errors.Wrap(err, "")
	}
	derivs := make([]float64, len(opt.ControlAmps))
	if err := pulsesim.EvalDerivs(opt, sys, frames, res, derivs, options); err != nil {
		return errors.Wrap(err, "")
	}
	log.Printf("fidelity %f", fid)

	var fd []float64
	if *fdStep > 0 {
		fd, err = finiteDifferences(opt, sys, frames, options, *fdStep)
		if err != nil {
			return errors.Wrap(err, "")
		}
	}

	fmt.Printf("channel,step,amp,deriv")
	if fd != nil {
		fmt.Printf(",fd")
	}
	fmt.Printf("\n")
	for c := 0; c < opt.NumControlLines; c++ {
		for k := 0; k < opt.NumTimeSteps; k++ {
			i := c*opt.NumTimeSteps + k
			fmt.Printf("%d,%d,%f,%g", c, k, opt.ControlAmps[i], derivs[i])
			if fd != nil {
				fmt.Printf(",%g", fd[i])
			}
			fmt.Printf("\n")
		}
	}
	return nil
}
