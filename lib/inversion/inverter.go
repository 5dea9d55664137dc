// Package inversion builds truncated SVD pseudo-inverses of a forward
// operator and applies them to observed data.
package inversion

import (
	"fmt"
	"github.com/kpaschen/crosswell/lib/correlation"
	"github.com/kpaschen/crosswell/lib/datatypes"
	"github.com/kpaschen/crosswell/lib/settings"
	"github.com/kpaschen/crosswell/lib/svd"
	"gonum.org/v1/gonum/mat"
	"log"
	"time"
)

// Grid is the shape the recovered model is reshaped to.
type Grid struct {
	Rows    int
	Columns int
}

func (g Grid) Size() int {
	return g.Rows * g.Columns
}

// TruncatedPseudoInverse returns Gk+ = V_k diag(1/S_k) U_k^T, an n x m matrix.
// Every selected singular value has to be above floor.
func TruncatedPseudoInverse(dec *svd.Decomposition, k int, floor float64) (*mat.Dense, error) {
	uk, sk, vk, err := dec.Truncate(k)
	if err != nil {
		return nil, err
	}
	for i, s := range sk {
		if s <= floor {
			return nil, svd.SingularTruncationError{K: k, Index: i, Value: s, Floor: floor}
		}
	}

	// Scale the columns of V_k by 1/s instead of building diag(1/S_k).
	scaled := mat.DenseCopyOf(vk)
	n, _ := scaled.Dims()
	for j, s := range sk {
		inv := 1.0 / s
		for i := 0; i < n; i++ {
			scaled.Set(i, j, scaled.At(i, j)*inv)
		}
	}

	var pinv mat.Dense
	pinv.Mul(scaled, uk.T())
	return &pinv, nil
}

// RecoverModel computes m = Gk+ d and reshapes it row by row to grid.
func RecoverModel(pinv mat.Matrix, d mat.Vector, grid Grid) (*mat.Dense, error) {
	n, m := pinv.Dims()
	if d.Len() != m {
		return nil, svd.ShapeMismatchError{What: "observation vector length", Got: d.Len(), Want: m}
	}
	if n != grid.Size() {
		return nil, svd.ShapeMismatchError{What: "model length", Got: n, Want: grid.Size()}
	}
	var model mat.VecDense
	model.MulVec(pinv, d)
	return reshape(model.RawVector().Data, grid), nil
}

// ResolutionMatrix computes R = Gk+ G, which is the identity at full rank.
func ResolutionMatrix(pinv mat.Matrix, g mat.Matrix) (*mat.Dense, error) {
	n, m := pinv.Dims()
	rows, columns := g.Dims()
	if rows != m {
		return nil, svd.ShapeMismatchError{What: "operator row count", Got: rows, Want: m}
	}
	if columns != n {
		return nil, svd.ShapeMismatchError{What: "operator column count", Got: columns, Want: n}
	}
	var r mat.Dense
	r.Mul(pinv, g)
	return &r, nil
}

// ResolutionDiagonal reshapes the diagonal of r to grid.
func ResolutionDiagonal(r mat.Matrix, grid Grid) (*mat.Dense, error) {
	n, columns := r.Dims()
	if n != columns {
		return nil, svd.ShapeMismatchError{What: "resolution matrix columns", Got: columns, Want: n}
	}
	if n != grid.Size() {
		return nil, svd.ShapeMismatchError{What: "model length", Got: n, Want: grid.Size()}
	}
	diag := make([]float64, n)
	for i := range diag {
		diag[i] = r.At(i, i)
	}
	return reshape(diag, grid), nil
}

func reshape(values []float64, grid Grid) *mat.Dense {
	data := make([]float64, len(values))
	copy(data, values)
	return mat.NewDense(grid.Rows, grid.Columns, data)
}

// A Problem is the forward operator, the observed data, and the SVD of
// the operator. It is read-only after NewProblem returns and can be shared
// between goroutines.
type Problem struct {
	G             *mat.Dense
	D             *mat.VecDense
	Decomposition *svd.Decomposition
}

// NewProblem validates g and d and decomposes g. This is the expensive
// step and happens once per problem, however many ranks are inverted.
func NewProblem(g *mat.Dense, d *mat.VecDense) (*Problem, error) {
	if g == nil || d == nil {
		return nil, svd.InvalidInputError{What: "problem", Reason: "operator and data are required"}
	}
	rows, columns := g.Dims()
	if d.Len() != rows {
		return nil, svd.ShapeMismatchError{What: "observation vector length", Got: d.Len(), Want: rows}
	}
	if err := svd.CheckFinite("observation vector", d); err != nil {
		return nil, err
	}

	start := time.Now()
	dec, err := svd.Decompose(g)
	elapsed := time.Since(start)
	decompositionDuration.Observe(float64(elapsed.Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to decompose operator: %w", err)
	}
	operatorRows.Set(float64(rows))
	operatorColumns.Set(float64(columns))
	log.Printf("decomposed %d x %d operator in %d milliseconds, largest singular value %g, smallest %g\n",
		rows, columns, elapsed.Milliseconds(), dec.S[0], dec.S[len(dec.S)-1])

	return &Problem{G: g, D: d, Decomposition: dec}, nil
}

// An Inverter turns a Problem into per-rank results.
type Inverter struct {
	problem  *Problem
	settings settings.InversionSettings
	grid     Grid
	floor    float64
}

func NewInverter(problem *Problem, config settings.InversionSettings) *Inverter {
	config = config.ComputeSettingsFields()
	return &Inverter{
		problem:  problem,
		settings: config,
		grid:     Grid{Rows: config.GridRows, Columns: config.GridColumns},
		floor:    problem.Decomposition.Floor(config.SingularFloor),
	}
}

// Floor is the singular value floor in effect.
func (inv *Inverter) Floor() float64 {
	return inv.floor
}

// InvertRank produces the result for a single rank k.
func (inv *Inverter) InvertRank(k int) (*datatypes.RankResult, error) {
	start := time.Now()
	inversionsRequested.Inc()

	result, err := inv.invertRank(k)
	if err != nil {
		inversionFailures.WithLabelValues(svd.ErrorKind(err)).Inc()
		return nil, err
	}
	rankDuration.Observe(float64(time.Since(start).Milliseconds()))
	return result, nil
}

func (inv *Inverter) invertRank(k int) (*datatypes.RankResult, error) {
	p := inv.problem
	pinv, err := TruncatedPseudoInverse(p.Decomposition, k, inv.floor)
	if err != nil {
		return nil, err
	}
	model, err := RecoverModel(pinv, p.D, inv.grid)
	if err != nil {
		return nil, err
	}

	parameters := datatypes.Flatten(model)
	residual, err := correlation.ResidualNorm(p.G, parameters, p.D)
	if err != nil {
		return nil, err
	}

	result := &datatypes.RankResult{
		K:            k,
		Model:        model,
		ResidualNorm: residual,
		SolutionNorm: correlation.Norm(parameters),
	}

	if !inv.settings.Resolution {
		return result, nil
	}
	r, err := ResolutionMatrix(pinv, p.G)
	if err != nil {
		return nil, err
	}
	result.ResolutionDiagonal, err = ResolutionDiagonal(r, inv.grid)
	if err != nil {
		return nil, err
	}
	if inv.settings.KeepResolutionMatrix {
		result.ResolutionMatrix = r
	}
	return result, nil
}
