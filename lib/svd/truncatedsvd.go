package svd

import (
	"fmt"
	"gonum.org/v1/gonum/mat"
	"math"
)

// Decomposition holds the reduced SVD of a forward operator G,
// G = U diag(S) V^T. It is computed once and then truncated
// to as many ranks as the caller asks for.
type Decomposition struct {
	// U is m x r where m is the number of rows of G and
	// r = min(m, n).
	U *mat.Dense

	// S holds the r singular values in non-increasing order.
	S []float64

	// V is n x r where n is the number of columns of G.
	V *mat.Dense

	rows    int
	columns int
}

// CheckFinite returns an InvalidInputError for the first NaN or Inf in m.
func CheckFinite(what string, m mat.Matrix) error {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return InvalidInputError{What: what, Row: i, Col: j, Value: v}
			}
		}
	}
	return nil
}

// Decompose computes the thin SVD of g. Gonum's lapack-backed
// factorization returns the singular values sorted descending, which is
// the order truncation relies on. Tiny or zero singular values are not
// an error here; they only matter once someone inverts them.
func Decompose(g mat.Matrix) (*Decomposition, error) {
	r, c := g.Dims()
	if r == 0 || c == 0 {
		return nil, InvalidInputError{What: "operator", Reason: "matrix is empty"}
	}
	if err := CheckFinite("operator", g); err != nil {
		return nil, err
	}

	var svd mat.SVD
	ok := svd.Factorize(g, mat.SVDThin)
	if !ok {
		return nil, fmt.Errorf("failed to find SVD of %d x %d operator", r, c)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	return &Decomposition{
		U:       &u,
		S:       svd.Values(nil),
		V:       &v,
		rows:    r,
		columns: c,
	}, nil
}

// Dims returns the shape of the decomposed operator.
func (d *Decomposition) Dims() (int, int) {
	return d.rows, d.columns
}

// Rank returns the number of singular triplets, min(m, n).
func (d *Decomposition) Rank() int {
	return len(d.S)
}

// Floor returns the singular value floor used for inversion. A positive
// absolute value wins; otherwise this is the usual numerical rank tolerance
// S[0] * max(m, n) * eps.
func (d *Decomposition) Floor(absolute float64) float64 {
	if absolute > 0 {
		return absolute
	}
	if len(d.S) == 0 {
		return 0
	}
	return d.S[0] * float64(max(d.rows, d.columns)) * epsilon
}

// NumericalRank counts the singular values strictly above floor.
func (d *Decomposition) NumericalRank(floor float64) int {
	rank := 0
	for _, s := range d.S {
		if s > floor {
			rank++
		}
	}
	return rank
}

// Truncate returns the leading k columns of U and V together with the top
// k singular values. The returned matrices are views into the decomposition
// and must not be modified.
func (d *Decomposition) Truncate(k int) (*mat.Dense, []float64, *mat.Dense, error) {
	if k < 1 || k > len(d.S) {
		return nil, nil, nil, InvalidRankError{K: k, Max: len(d.S)}
	}
	uk := d.U.Slice(0, d.rows, 0, k).(*mat.Dense)
	vk := d.V.Slice(0, d.columns, 0, k).(*mat.Dense)
	return uk, d.S[:k], vk, nil
}

// Reconstruct multiplies the factors back together, U diag(S) V^T.
func (d *Decomposition) Reconstruct() *mat.Dense {
	us := mat.DenseCopyOf(d.U)
	for j, s := range d.S {
		col := mat.Col(nil, j, us)
		for i := range col {
			col[i] *= s
		}
		us.SetCol(j, col)
	}
	var ret mat.Dense
	ret.Mul(us, d.V.T())
	return &ret
}

// epsilon is the float64 machine epsilon, 2^-52.
var epsilon = math.Nextafter(1, 2) - 1
