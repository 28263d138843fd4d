package pulsesim

import (
	"runtime"
)

// EvolveOptions are options for the evolution and gradient routines.
// Fields left at zero, as in EvolveOptions{}, take their defaults.
type EvolveOptions struct {
	workers       int
	degenerateTol float64
}

// NewEvolveOptions returns the default options.
func NewEvolveOptions() EvolveOptions {
	opt := EvolveOptions{}
	opt.workers = runtime.GOMAXPROCS(0)
	opt.degenerateTol = defaultDegenerateTol
	return opt
}

const defaultDegenerateTol = 1e-8

// Workers sets the number of goroutines working on independent time steps.
func (opt EvolveOptions) Workers(n int) EvolveOptions {
	opt.workers = max(n, 1)
	return opt
}

// DegenerateTol sets the threshold on |D_p - D_q|*dt/2 below which two eigenvalues are treated as degenerate in the gradient.
// A tolerance that is not positive selects the default 1e-8.
func (opt EvolveOptions) DegenerateTol(tol float64) EvolveOptions {
	opt.degenerateTol = tol
	return opt
}

func getOptions(options []EvolveOptions) EvolveOptions {
	if len(options) == 0 {
		return NewEvolveOptions()
	}
	opt := options[0]
	if opt.workers <= 0 {
		opt.workers = runtime.GOMAXPROCS(0)
	}
	if !(opt.degenerateTol > 0) {
		opt.degenerateTol = defaultDegenerateTol
	}
	return opt
}
