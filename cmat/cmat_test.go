package cmat

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestSlice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		m *mat.CDense
		y [2]int
		x [2]int
		s *mat.CDense
	}{
		{
			m: M([][]complex128{
				{0, 1, 2, 3, 4},
				{5, 6, 7, 8, 9},
				{10, 11, 12, 13, 14},
				{15, 16, 17, 18, 19},
				{20, 21, 22, 23, 24},
				{25, 26, 27, 28, 29},
			}),
			y: [2]int{-5, -2},
			x: [2]int{1, 3},
			s: M([][]complex128{
				{6, 7},
				{11, 12},
				{16, 17},
			}),
		},
		{
			m: M([][]complex128{
				{1, 2i, 0},
				{3, 4, 0},
				{0, 0, 9},
			}),
			y: [2]int{0, 2},
			x: [2]int{0, 2},
			s: M([][]complex128{
				{1, 2i},
				{3, 4},
			}),
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %v", test.y, test.x), func(t *testing.T) {
			t.Parallel()
			s := Slice(test.m, test.y, test.x)
			if !Equal(s, test.s) {
				t.Fatalf("%s, expected %s", String(s), String(test.s))
			}
		})
	}
}

func TestAddScaled(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a *mat.CDense
		c complex128
		b *mat.CDense
		z *mat.CDense
	}{
		{
			a: M([][]complex128{
				{1, 0},
				{0, 2i},
			}),
			c: 1i,
			b: M([][]complex128{
				{1i, 0},
				{2, -5},
			}),
			z: M([][]complex128{
				{0, 0},
				{2i, -3i},
			}),
		},
	}
	for _, test := range tests {
		t.Run(String(test.a), func(t *testing.T) {
			t.Parallel()
			AddScaled(test.a, test.c, test.b)
			if !Equal(test.a, test.z) {
				t.Fatalf("%s, expected %s", String(test.a), String(test.z))
			}
		})
	}
}

func TestMulElem(t *testing.T) {
	t.Parallel()
	a := M([][]complex128{
		{0, 0},
		{-1, 2},
	})
	b := M([][]complex128{
		{0, 1},
		{0, 2i},
	})
	c := M([][]complex128{
		{0, 0},
		{0, 4i},
	})
	MulElem(a, a, b)
	if !Equal(a, c) {
		t.Fatalf("%s, expected %s", String(a), String(c))
	}
}

func TestMul(t *testing.T) {
	t.Parallel()
	x, y, z := M(PauliX), M(PauliY), M(PauliZ)
	// XY = iZ.
	xy := Mul(nil, x, y)
	iz := Clone(z)
	Scale(iz, 1i)
	if !Equal(xy, iz) {
		t.Fatalf("%s, expected %s", String(xy), String(iz))
	}

	a := M([][]complex128{
		{1, 2i},
		{3, 4},
		{0, -1},
	})
	// a^† a is Hermitian.
	aa := ToBasis(Identity(2), Mul(nil, Adjoint(a), a))
	if d := HermiticityError(aa); d > 1e-12 {
		t.Fatalf("%g %s", d, String(aa))
	}
	if tr := Trace(aa); cmplx.Abs(tr-Inner(a, a)) > 1e-12 {
		t.Fatalf("%v, expected %v", tr, Inner(a, a))
	}
}

func TestKron(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a *mat.CDense
		b *mat.CDense
		c *mat.CDense
	}{
		{
			a: M([][]complex128{
				{1, -4, 7},
				{-2, 0, 3},
			}),
			b: M([][]complex128{
				{8, -9, -6, 5},
				{1, -3, 0, 7},
				{2, 8, -8, -3},
				{1, 2, -5, -1},
			}),
			c: M([][]complex128{
				{8, -9, -6, 5, -32, 36, 24, -20, 56, -63, -42, 35},
				{1, -3, 0, 7, -4, 12, 0, -28, 7, -21, 0, 49},
				{2, 8, -8, -3, -8, -32, 32, 12, 14, 56, -56, -21},
				{1, 2, -5, -1, -4, -8, 20, 4, 7, 14, -35, -7},
				{-16, 18, 12, -10, 0, 0, 0, 0, 24, -27, -18, 15},
				{-2, 6, 0, -14, 0, 0, 0, 0, 3, -9, 0, 21},
				{-4, -16, 16, 6, 0, 0, 0, 0, 6, 24, -24, -9},
				{-2, -4, 10, 2, 0, 0, 0, 0, 3, 6, -15, -3},
			}),
		},
		// Scalar kronecker.
		{
			a: M([][]complex128{{1}}),
			b: M([][]complex128{
				{1, 2},
				{3, 4},
			}),
			c: M([][]complex128{
				{1, 2},
				{3, 4},
			}),
		},
	}
	for _, test := range tests {
		t.Run(String(test.a), func(t *testing.T) {
			t.Parallel()
			c := Kron(test.a, test.b)
			if !Equal(c, test.c) {
				t.Fatalf("%s, expected %s", String(c), String(test.c))
			}
		})
	}
}

func TestViewFlatten(t *testing.T) {
	t.Parallel()
	buf := []complex128{1, 2, 3, 4i}
	v, err := View(buf, 2, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	// Views share the caller's buffer.
	v.Set(0, 1, 7)
	if buf[1] != 7 {
		t.Fatalf("%v", buf)
	}
	if _, err := View(buf, 3, 3); err == nil {
		t.Fatalf("expected error")
	}

	out := make([]complex128, 4)
	if err := Flatten(out, v); err != nil {
		t.Fatalf("%+v", err)
	}
	if !slices.Equal(out, buf) {
		t.Fatalf("%v, expected %v", out, buf)
	}
}

func TestEigenHermitian(t *testing.T) {
	t.Parallel()
	z2 := Kron(M(PauliZ), Identity(2))
	tests := []struct {
		name string
		h    *mat.CDense
		vals []float64
	}{
		{name: "pauliX", h: M(PauliX), vals: []float64{-1, 1}},
		{name: "pauliY", h: M(PauliY), vals: []float64{-1, 1}},
		{name: "identity", h: Identity(3), vals: []float64{1, 1, 1}},
		{name: "degenerate", h: z2, vals: []float64{-1, -1, 1, 1}},
		{name: "random", h: randHermitian(rand.New(rand.NewPCG(1, 2)), 6)},
		{name: "random large", h: randHermitian(rand.New(rand.NewPCG(3, 4)), 17)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			e, err := NewEigen(test.h)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if test.vals != nil {
				for i, v := range e.Values {
					if math.Abs(v-test.vals[i]) > 1e-12 {
						t.Fatalf("%v, expected %v", e.Values, test.vals)
					}
				}
			}
			if !slices.IsSorted(e.Values) {
				t.Fatalf("%v", e.Values)
			}
			if d := UnitarityError(e.Vectors); d > 1e-10 {
				t.Fatalf("%g", d)
			}
			n := len(e.Values)
			diag := Zeros(n, n)
			for i, v := range e.Values {
				diag.Set(i, i, complex(v, 0))
			}
			if d := MaxAbsDiff(FromBasis(e.Vectors, diag), test.h); d > 1e-10 {
				t.Fatalf("%g", d)
			}
		})
	}
}

func TestEigenHermitianSymmetrizes(t *testing.T) {
	t.Parallel()
	h := M(PauliX)
	h.Set(0, 1, 1+1e-13)
	e, err := NewEigen(h)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if math.Abs(e.Values[0]+1) > 1e-12 || math.Abs(e.Values[1]-1) > 1e-12 {
		t.Fatalf("%v", e.Values)
	}
}

func TestExpHermitian(t *testing.T) {
	t.Parallel()
	for _, theta := range []float64{0, 0.3, math.Pi / 2, 2} {
		t.Run(fmt.Sprintf("%f", theta), func(t *testing.T) {
			t.Parallel()
			e, err := NewEigen(M(PauliX))
			if err != nil {
				t.Fatalf("%+v", err)
			}
			u := e.Exp(complex(0, -theta))

			// exp(-iθX) = cos(θ)I - i sin(θ)X.
			expected := Identity(2)
			Scale(expected, complex(math.Cos(theta), 0))
			AddScaled(expected, complex(0, -math.Sin(theta)), M(PauliX))
			if d := MaxAbsDiff(u, expected); d > 1e-12 {
				t.Fatalf("%s, expected %s", String(u), String(expected))
			}
			if d := UnitarityError(u); d > 1e-12 {
				t.Fatalf("%g", d)
			}
		})
	}
}

func TestDiskStore(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)

	s, err := NewDiskStore(filepath.Join(dir, "frames.db"), 2, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer s.Close()

	a := M([][]complex128{
		{1, 0},
		{0, 2i},
	})
	b := M([][]complex128{
		{0.1 + 1e-17i, -3},
		{1.5e-9, 0},
	})
	if err := s.Put(0, 3, a); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := s.Put(1, 3, b); err != nil {
		t.Fatalf("%+v", err)
	}
	// Overwrite.
	if err := s.Put(0, 3, b); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := s.Put(2, 0, Zeros(2, 2)); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := s.Put(0, 0, Zeros(3, 3)); err == nil {
		t.Fatalf("expected error")
	}

	for _, key := range [][2]int{{0, 3}, {1, 3}} {
		m, err := s.At(key[0], key[1])
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if !Equal(m, b) {
			t.Fatalf("%v %s, expected %s", key, String(m), String(b))
		}
	}
	zero, err := s.At(2, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !Equal(zero, Zeros(2, 2)) {
		t.Fatalf("%s", String(zero))
	}
	if _, err := s.At(5, 5); err == nil {
		t.Fatalf("expected error")
	}

	n, err := s.Len()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if n != 3 {
		t.Fatalf("%d, expected %d", n, 3)
	}
	nnz, err := s.NumNonZero()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if nnz != 6 {
		t.Fatalf("%d, expected %d", nnz, 6)
	}
}

func TestDiskStoreRollback(t *testing.T) {
	t.Parallel()
	s, err := NewDiskStore(filepath.Join(t.TempDir(), "frames.db"), 2, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer s.Close()
	if err := s.Put(0, 0, Identity(2)); err != nil {
		t.Fatalf("%+v", err)
	}

	// Entries can no longer be inserted, so Put fails after its key is written.
	for _, sqlStr := range []string{
		fmt.Sprintf(`DROP TABLE %s`, tableMatrix),
		fmt.Sprintf(`CREATE TABLE %s (i INTEGER, j INTEGER)`, tableMatrix),
	} {
		if _, err := s.db.Exec(sqlStr); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	if err := s.Put(1, 0, Identity(2)); err == nil {
		t.Fatalf("expected error")
	}

	n, err := s.Len()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if n != 1 {
		t.Fatalf("%d, expected %d", n, 1)
	}
}

func randHermitian(rnd *rand.Rand, n int) *mat.CDense {
	h := Zeros(n, n)
	for i := 0; i < n; i++ {
		h.Set(i, i, complex(rnd.NormFloat64(), 0))
		for j := i + 1; j < n; j++ {
			v := complex(rnd.NormFloat64(), rnd.NormFloat64())
			h.Set(i, j, v)
			h.Set(j, i, cmplx.Conj(v))
		}
	}
	return h
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	os.Exit(m.Run())
}
