package pulsesim

import (
	"fmt"
	"math"
	"math/cmplx"
	"slices"
	"testing"

	"github.com/fumin/pulsesim/cmat"
)

func TestKernel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		vals []float64
		dt   float64
	}{
		{vals: []float64{-1.3, 0.2, 2.9}, dt: 0.7},
		{vals: []float64{1, 1, 1}, dt: 0.3},
		{vals: []float64{1, 1 + 1e-12, 1 + 2e-12}, dt: 2},
		{vals: []float64{0, 1e-9, 5}, dt: 1},
		{vals: []float64{-50, 50}, dt: 0.01},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %v", test.vals, test.dt), func(t *testing.T) {
			t.Parallel()
			n := len(test.vals)
			f := cmat.Zeros(n, n)
			kernel(f, test.vals, test.dt, 1e-8)
			for p, dp := range test.vals {
				for q, dq := range test.vals {
					v := f.At(p, q)
					if cmplx.IsNaN(v) || cmplx.IsInf(v) {
						t.Fatalf("%d %d %v", p, q, v)
					}

					var expected complex128
					ep, eq := cmplx.Exp(complex(0, -dp*test.dt)), cmplx.Exp(complex(0, -dq*test.dt))
					if math.Abs(dp-dq)*test.dt < 1e-6 {
						expected = complex(test.dt, 0) * cmplx.Exp(complex(0, -(dp+dq)*test.dt/2))
					} else {
						expected = (ep - eq) / complex(0, -(dp-dq))
					}
					if cmplx.Abs(v-expected) > 1e-12 {
						t.Fatalf("%d %d: %v, expected %v", p, q, v, expected)
					}
				}
			}
		})
	}
}

func TestBoundaries(t *testing.T) {
	t.Parallel()
	tests := []struct {
		numSteps   int
		numSamples int
		workers    int
		samples    []int
		segments   []int
	}{
		{numSteps: 5, numSamples: 1, workers: 1, samples: []int{5}, segments: []int{5}},
		{numSteps: 5, numSamples: 2, workers: 1, samples: []int{3, 5}, segments: []int{3, 5}},
		{numSteps: 10, numSamples: 1, workers: 3, samples: []int{10}, segments: []int{4, 7, 10}},
		{numSteps: 10, numSamples: 4, workers: 2, samples: []int{3, 5, 8, 10}, segments: []int{3, 5, 8, 10}},
		{numSteps: 3, numSamples: 3, workers: 8, samples: []int{1, 2, 3}, segments: []int{1, 2, 3}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%#v", test), func(t *testing.T) {
			t.Parallel()
			samples := sampleBoundaries(test.numSteps, test.numSamples)
			if !slices.Equal(samples, test.samples) {
				t.Fatalf("%v, expected %v", samples, test.samples)
			}
			segments := segmentBoundaries(test.numSteps, test.workers, samples)
			if !slices.Equal(segments, test.segments) {
				t.Fatalf("%v, expected %v", segments, test.segments)
			}
		})
	}
}

func TestNumSubSteps(t *testing.T) {
	t.Parallel()
	tests := []struct {
		dt          float64
		maxTimeStep float64
		n           int
	}{
		{dt: 1, maxTimeStep: 0, n: 1},
		{dt: 1, maxTimeStep: 2, n: 1},
		{dt: 1, maxTimeStep: 1, n: 1},
		{dt: 1, maxTimeStep: 0.3, n: 4},
		{dt: 0, maxTimeStep: 0.3, n: 1},
	}
	for _, test := range tests {
		if n := numSubSteps(test.dt, test.maxTimeStep); n != test.n {
			t.Fatalf("%#v: %d, expected %d", test, n, test.n)
		}
	}
}

func TestGetOptions(t *testing.T) {
	t.Parallel()
	def := NewEvolveOptions()
	tests := []struct {
		options  []EvolveOptions
		expected EvolveOptions
	}{
		{options: nil, expected: def},
		{options: []EvolveOptions{{}}, expected: def},
		{options: []EvolveOptions{{workers: -3, degenerateTol: -1}}, expected: def},
		{options: []EvolveOptions{def.Workers(0)}, expected: def.Workers(1)},
		{options: []EvolveOptions{def.Workers(3).DegenerateTol(1e-5)}, expected: EvolveOptions{workers: 3, degenerateTol: 1e-5}},
	}
	for i, test := range tests {
		if opt := getOptions(test.options); opt != test.expected {
			t.Fatalf("%d: %#v, expected %#v", i, opt, test.expected)
		}
	}
}
