// Package cmat implements dense complex matrix routines on top of gonum.
//
// All matrices are *mat.CDense in row-major order.
// Unless stated otherwise, a dst argument must not alias any of the inputs.
package cmat

import (
	"cmp"
	"fmt"
	"math"
	"math/cmplx"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

var (
	PauliX = [][]complex128{
		{0, 1},
		{1, 0},
	}
	PauliY = [][]complex128{
		{0, -1i},
		{1i, 0},
	}
	PauliZ = [][]complex128{
		{1, 0},
		{0, -1},
	}
)

// M creates a matrix from rows of values.
func M(dense [][]complex128) *mat.CDense {
	m := mat.NewCDense(len(dense), len(dense[0]), nil)
	for i, row := range dense {
		if len(row) != len(dense[0]) {
			panic(fmt.Sprintf("ragged row %d: %d %d", i, len(row), len(dense[0])))
		}
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m
}

// Zeros returns a rows by cols zero matrix.
func Zeros(rows, cols int) *mat.CDense {
	return mat.NewCDense(rows, cols, nil)
}

// Identity returns the n by n identity.
func Identity(n int) *mat.CDense {
	m := Zeros(n, n)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// View wraps a flat row-major buffer without copying.
func View(data []complex128, rows, cols int) (*mat.CDense, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Errorf("%d %d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, errors.Errorf("buffer length %d, expected %d", len(data), rows*cols)
	}
	return mat.NewCDense(rows, cols, data), nil
}

// Flatten copies m into dst in row-major order.
func Flatten(dst []complex128, m *mat.CDense) error {
	rows, cols := m.Dims()
	if len(dst) != rows*cols {
		return errors.Errorf("buffer length %d, expected %d", len(dst), rows*cols)
	}
	raw := m.RawCMatrix()
	for i := 0; i < rows; i++ {
		copy(dst[i*cols:(i+1)*cols], raw.Data[i*raw.Stride:i*raw.Stride+cols])
	}
	return nil
}

// Copy copies src into dst, which must have the same shape.
func Copy(dst, src *mat.CDense) {
	mustSameShape(dst, src)
	d, s := dst.RawCMatrix(), src.RawCMatrix()
	for i := 0; i < s.Rows; i++ {
		copy(d.Data[i*d.Stride:i*d.Stride+d.Cols], s.Data[i*s.Stride:i*s.Stride+s.Cols])
	}
}

func Clone(src *mat.CDense) *mat.CDense {
	rows, cols := src.Dims()
	dst := Zeros(rows, cols)
	Copy(dst, src)
	return dst
}

// SetIdentity overwrites the square matrix m with the identity.
func SetIdentity(m *mat.CDense) {
	rows, cols := m.Dims()
	if rows != cols {
		panic(fmt.Sprintf("not square %d %d", rows, cols))
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			var v complex128
			if i == j {
				v = 1
			}
			m.Set(i, j, v)
		}
	}
}

// Gemm computes dst = op(a) * op(b), where op is selected by tA and tB.
// A nil dst is allocated.
func Gemm(dst *mat.CDense, tA blas.Transpose, a *mat.CDense, tB blas.Transpose, b *mat.CDense) *mat.CDense {
	ar, ac := a.Dims()
	if tA != blas.NoTrans {
		ar, ac = ac, ar
	}
	br, bc := b.Dims()
	if tB != blas.NoTrans {
		br, bc = bc, br
	}
	if ac != br {
		panic(fmt.Sprintf("wrong dimensions %dx%d %dx%d", ar, ac, br, bc))
	}
	if dst == nil {
		dst = Zeros(ar, bc)
	}
	if r, c := dst.Dims(); r != ar || c != bc {
		panic(fmt.Sprintf("wrong dimensions dst %dx%d, expected %dx%d", r, c, ar, bc))
	}
	cblas128.Gemm(tA, tB, 1, a.RawCMatrix(), b.RawCMatrix(), 0, dst.RawCMatrix())
	return dst
}

// Mul computes dst = a * b.
func Mul(dst, a, b *mat.CDense) *mat.CDense {
	return Gemm(dst, blas.NoTrans, a, blas.NoTrans, b)
}

// ToBasis returns v^† a v.
func ToBasis(v, a *mat.CDense) *mat.CDense {
	return Mul(nil, Gemm(nil, blas.ConjTrans, v, blas.NoTrans, a), v)
}

// FromBasis returns v a v^†.
func FromBasis(v, a *mat.CDense) *mat.CDense {
	return Gemm(nil, blas.NoTrans, Mul(nil, v, a), blas.ConjTrans, v)
}

// AddScaled computes dst += c * b.
func AddScaled(dst *mat.CDense, c complex128, b *mat.CDense) {
	mustSameShape(dst, b)
	rows, cols := dst.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst.Set(i, j, dst.At(i, j)+c*b.At(i, j))
		}
	}
}

// Scale computes dst *= c.
func Scale(dst *mat.CDense, c complex128) {
	rows, cols := dst.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst.Set(i, j, c*dst.At(i, j))
		}
	}
}

// MulElem computes the Hadamard product dst = a ∘ b.
// dst may alias a or b.
func MulElem(dst, a, b *mat.CDense) {
	mustSameShape(a, b)
	mustSameShape(dst, a)
	rows, cols := a.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst.Set(i, j, a.At(i, j)*b.At(i, j))
		}
	}
}

// Adjoint returns the conjugate transpose of a.
func Adjoint(a *mat.CDense) *mat.CDense {
	rows, cols := a.Dims()
	h := Zeros(cols, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			h.Set(j, i, cmplx.Conj(a.At(i, j)))
		}
	}
	return h
}

// Hermitize overwrites the square matrix a with (a + a^†)/2.
func Hermitize(a *mat.CDense) {
	n := mustSquare(a)
	for i := 0; i < n; i++ {
		a.Set(i, i, complex(real(a.At(i, i)), 0))
		for j := i + 1; j < n; j++ {
			v := (a.At(i, j) + cmplx.Conj(a.At(j, i))) / 2
			a.Set(i, j, v)
			a.Set(j, i, cmplx.Conj(v))
		}
	}
}

// Trace returns the sum of the diagonal of the square matrix a.
func Trace(a *mat.CDense) complex128 {
	n := mustSquare(a)
	var tr complex128
	for i := 0; i < n; i++ {
		tr += a.At(i, i)
	}
	return tr
}

// Inner returns the Frobenius inner product sum(conj(a_ij) * b_ij), which equals Tr(a^† b).
func Inner(a, b *mat.CDense) complex128 {
	mustSameShape(a, b)
	rows, cols := a.Dims()
	var s complex128
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			s += cmplx.Conj(a.At(i, j)) * b.At(i, j)
		}
	}
	return s
}

// Kron returns the Kronecker product of a and b.
func Kron(a, b *mat.CDense) *mat.CDense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	k := Zeros(ar*br, ac*bc)
	for ay := 0; ay < ar; ay++ {
		for ax := 0; ax < ac; ax++ {
			av := a.At(ay, ax)
			if av == 0 {
				continue
			}
			for by := 0; by < br; by++ {
				for bx := 0; bx < bc; bx++ {
					k.Set(ay*br+by, ax*bc+bx, av*b.At(by, bx))
				}
			}
		}
	}
	return k
}

// Slice returns a copy of the block of m in rows [yBound[0], yBound[1]) and columns [xBound[0], xBound[1]).
// Negative bounds count from the end.
func Slice(m *mat.CDense, yBoundN, xBoundN [2]int) *mat.CDense {
	rows, cols := m.Dims()
	yBound, xBound := yBoundN, xBoundN
	for i := 0; i < 2; i++ {
		if yBound[i] < 0 {
			yBound[i] += rows
		}
		if xBound[i] < 0 {
			xBound[i] += cols
		}
	}
	if yBound[0] < 0 || yBound[1] > rows || yBound[0] >= yBound[1] || xBound[0] < 0 || xBound[1] > cols || xBound[0] >= xBound[1] {
		panic(fmt.Sprintf("%v %v out of %dx%d", yBoundN, xBoundN, rows, cols))
	}

	s := Zeros(yBound[1]-yBound[0], xBound[1]-xBound[0])
	for i := yBound[0]; i < yBound[1]; i++ {
		for j := xBound[0]; j < xBound[1]; j++ {
			s.Set(i-yBound[0], j-xBound[0], m.At(i, j))
		}
	}
	return s
}

// Equal reports whether a and b have the same shape and identical entries.
func Equal(a, b *mat.CDense) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return false
	}
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			if a.At(i, j) != b.At(i, j) {
				return false
			}
		}
	}
	return true
}

// MaxAbsDiff returns the largest entrywise modulus of a - b.
func MaxAbsDiff(a, b *mat.CDense) float64 {
	mustSameShape(a, b)
	rows, cols := a.Dims()
	var d float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d = max(d, cmplx.Abs(a.At(i, j)-b.At(i, j)))
		}
	}
	return d
}

// UnitarityError returns the largest entrywise modulus of u^† u - I.
func UnitarityError(u *mat.CDense) float64 {
	n := mustSquare(u)
	uu := Gemm(nil, blas.ConjTrans, u, blas.NoTrans, u)
	return MaxAbsDiff(uu, Identity(n))
}

// HermiticityError returns the largest entrywise modulus of h - h^†.
func HermiticityError(h *mat.CDense) float64 {
	mustSquare(h)
	return MaxAbsDiff(h, Adjoint(h))
}

func String(m *mat.CDense) string {
	rows, cols := m.Dims()
	lines := []string{}
	for i := 0; i < rows; i++ {
		cs := []string{}
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			switch {
			case imag(v) == 0:
				cs = append(cs, format(real(v)))
			case real(v) == 0:
				cs = append(cs, format(imag(v))+"i")
			default:
				cs = append(cs, format(real(v))+"+"+format(imag(v))+"i")
			}
		}
		lines = append(lines, strings.Join(cs, "\t"))
	}
	return strings.Join(lines, "\n")
}

// Eigen is the spectral decomposition H = V diag(Values) V^† of a Hermitian matrix.
type Eigen struct {
	Values  []float64
	Vectors *mat.CDense
}

// EigenHermitian decomposes the Hermitian part (h + h^†)/2 of h into vals and the columns of vecs.
// Eigenvalues are in ascending order and the eigenvectors are orthonormal.
//
// The decomposition goes through the real symmetric embedding [[A, -B], [B, A]] of H = A + iB,
// whose spectrum is that of H with every eigenvalue doubled.
// Each eigenvalue pair spans {v, iv} for a complex eigenvector v = x + iy,
// and n independent complex vectors are extracted by Gram-Schmidt with pivoting,
// which also covers degenerate eigenspaces.
func EigenHermitian(vals []float64, vecs, h *mat.CDense) error {
	n := mustSquare(h)
	if len(vals) != n {
		return errors.Errorf("values length %d, expected %d", len(vals), n)
	}
	if r, c := vecs.Dims(); r != n || c != n {
		return errors.Errorf("vectors %dx%d, expected %dx%d", r, c, n, n)
	}
	hs := Clone(h)
	Hermitize(hs)

	sym := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := hs.At(i, j)
			a, b := real(v), imag(v)
			sym.SetSym(i, j, a)
			sym.SetSym(n+i, n+j, a)
			sym.SetSym(i, n+j, -b)
			sym.SetSym(j, n+i, b)
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return errors.Errorf("eigen factorization failed %s", String(hs))
	}
	var realVecs mat.Dense
	es.VectorsTo(&realVecs)

	candidates := make([][]complex128, 2*n)
	for j := range candidates {
		c := make([]complex128, n)
		for i := range c {
			c[i] = complex(realVecs.At(i, j), realVecs.At(n+i, j))
		}
		candidates[j] = c
	}

	type valVec struct {
		val float64
		vec []complex128
	}
	basis := make([]valVec, 0, n)
	selected := make([]bool, len(candidates))
	// The candidates are an orthonormal basis of R^2n, so after s picks the largest residual
	// is at least sqrt(2(n-s)/(2n-s)) >= sqrt(2/(n+1)).
	minResidual := 0.5 * math.Sqrt(2/float64(n+1))
	for len(basis) < n {
		best, bestNorm := -1, 0.0
		for j, c := range candidates {
			if selected[j] {
				continue
			}
			if nrm := norm(c); nrm > bestNorm {
				best, bestNorm = j, nrm
			}
		}
		if best < 0 || bestNorm < minResidual {
			return errors.Errorf("rank %d of %d, residual %g", len(basis), n, bestNorm)
		}
		selected[best] = true
		q := candidates[best]
		for i := range q {
			q[i] /= complex(bestNorm, 0)
		}
		for j, c := range candidates {
			if selected[j] {
				continue
			}
			p := dot(q, c)
			for i := range c {
				c[i] -= p * q[i]
			}
		}
		basis = append(basis, valVec{val: rayleigh(hs, q), vec: q})
	}
	slices.SortStableFunc(basis, func(a, b valVec) int { return cmp.Compare(a.val, b.val) })

	for j, vv := range basis {
		vals[j] = vv.val
		for i, v := range vv.vec {
			vecs.Set(i, j, v)
		}
	}
	return nil
}

// NewEigen allocates and computes the decomposition of the Hermitian part of h.
func NewEigen(h *mat.CDense) (Eigen, error) {
	n := mustSquare(h)
	e := Eigen{Values: make([]float64, n), Vectors: Zeros(n, n)}
	if err := EigenHermitian(e.Values, e.Vectors, h); err != nil {
		return Eigen{}, errors.Wrap(err, "")
	}
	return e, nil
}

// ExpHermitian computes dst = V diag(exp(c * vals)) V^†.
// With c = -i*dt this is the propagator exp(-i H dt) of H = V diag(vals) V^†.
func ExpHermitian(dst *mat.CDense, vals []float64, vecs *mat.CDense, c complex128) {
	n := mustSquare(vecs)
	if len(vals) != n {
		panic(fmt.Sprintf("%d %d", len(vals), n))
	}
	scaled := Zeros(n, n)
	for j, d := range vals {
		e := cmplx.Exp(c * complex(d, 0))
		for i := 0; i < n; i++ {
			scaled.Set(i, j, vecs.At(i, j)*e)
		}
	}
	Gemm(dst, blas.NoTrans, scaled, blas.ConjTrans, vecs)
}

// Exp returns exp(c * vals) applied through the eigenbasis of e.
func (e Eigen) Exp(c complex128) *mat.CDense {
	n := len(e.Values)
	dst := Zeros(n, n)
	ExpHermitian(dst, e.Values, e.Vectors, c)
	return dst
}

func rayleigh(h *mat.CDense, v []complex128) float64 {
	n := len(v)
	var s complex128
	for i := 0; i < n; i++ {
		var hv complex128
		for j := 0; j < n; j++ {
			hv += h.At(i, j) * v[j]
		}
		s += cmplx.Conj(v[i]) * hv
	}
	return real(s)
}

func dot(a, b []complex128) complex128 {
	var s complex128
	for i, v := range a {
		s += cmplx.Conj(v) * b[i]
	}
	return s
}

func norm(v []complex128) float64 {
	var s float64
	for _, c := range v {
		s += real(c)*real(c) + imag(c)*imag(c)
	}
	return math.Sqrt(s)
}

func mustSquare(m *mat.CDense) int {
	rows, cols := m.Dims()
	if rows != cols {
		panic(fmt.Sprintf("not square %d %d", rows, cols))
	}
	return rows
}

func mustSameShape(a, b *mat.CDense) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		panic(fmt.Sprintf("wrong dimensions %dx%d %dx%d", ar, ac, br, bc))
	}
}

func format(v float64) string {
	// If v is 0 or -0, return "0" immediately to avoid returning "-0".
	if v == 0 {
		return " 0"
	}

	s := fmt.Sprintf("%.4g", v)

	// Add a space before non-negative numbers to align with other negative numbers in the same column.
	if v >= 0 {
		s = " " + s
	}

	return s
}
