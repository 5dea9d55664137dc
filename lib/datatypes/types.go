package datatypes

import (
	"encoding/json"
	"fmt"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"math"
)

// RankResult is the inversion output for one truncation rank.
// It is not modified once the inverter hands it out.
type RankResult struct {
	K int

	// Model is the recovered model reshaped to the output grid.
	Model *mat.Dense

	// ResolutionDiagonal is diag(Gk+ G) on the output grid, or nil
	// when resolution diagnostics are off.
	ResolutionDiagonal *mat.Dense

	// ResolutionMatrix is the full n x n Gk+ G. Only kept on request.
	ResolutionMatrix *mat.Dense

	// Norms for an L-curve: ||G m - d|| and ||m||.
	ResidualNorm float64
	SolutionNorm float64
}

// MeanResolution is the average of the resolution diagonal, 1 being
// perfect resolution. It returns NaN when there is no diagonal.
func (r RankResult) MeanResolution() float64 {
	if r.ResolutionDiagonal == nil {
		return math.NaN()
	}
	values := Flatten(r.ResolutionDiagonal)
	return floats.Sum(values) / float64(len(values))
}

// Flatten copies m into a row-major slice.
func Flatten(m mat.Matrix) []float64 {
	rows, columns := m.Dims()
	ret := make([]float64, 0, rows*columns)
	for i := 0; i < rows; i++ {
		for j := 0; j < columns; j++ {
			ret = append(ret, m.At(i, j))
		}
	}
	return ret
}

// Rows turns m into nested slices, the shape json wants.
func Rows(m mat.Matrix) [][]float64 {
	if m == nil {
		return nil
	}
	rows, _ := m.Dims()
	ret := make([][]float64, rows)
	for i := range ret {
		ret[i] = mat.Row(nil, i, m)
	}
	return ret
}

// FromRows is the inverse of Rows.
func FromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	columns := len(rows[0])
	if columns == 0 {
		return nil, fmt.Errorf("matrix rows are empty")
	}
	data := make([]float64, 0, len(rows)*columns)
	for i, r := range rows {
		if len(r) != columns {
			return nil, fmt.Errorf("inconsistent number of values in row %d: expected %d but got %d",
				i, columns, len(r))
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), columns, data), nil
}

type rankResultJSON struct {
	K                  int         `json:"k"`
	Matrix             [][]float64 `json:"matrix"`
	ResolutionDiagonal [][]float64 `json:"resolution_diagonal,omitempty"`
	ResolutionMatrix   [][]float64 `json:"resolution_matrix,omitempty"`
	ResidualNorm       float64     `json:"residual_norm"`
	SolutionNorm       float64     `json:"solution_norm"`
}

func (r RankResult) MarshalJSON() ([]byte, error) {
	var model [][]float64
	if r.Model != nil {
		model = Rows(r.Model)
	}
	out := rankResultJSON{
		K:            r.K,
		Matrix:       model,
		ResidualNorm: r.ResidualNorm,
		SolutionNorm: r.SolutionNorm,
	}
	if r.ResolutionDiagonal != nil {
		out.ResolutionDiagonal = Rows(r.ResolutionDiagonal)
	}
	if r.ResolutionMatrix != nil {
		out.ResolutionMatrix = Rows(r.ResolutionMatrix)
	}
	return json.Marshal(&out)
}

func (r *RankResult) UnmarshalJSON(data []byte) error {
	in := &rankResultJSON{}
	if err := json.Unmarshal(data, in); err != nil {
		return err
	}
	var err error
	r.K = in.K
	r.ResidualNorm = in.ResidualNorm
	r.SolutionNorm = in.SolutionNorm
	if r.Model, err = FromRows(in.Matrix); err != nil {
		return fmt.Errorf("bad model for rank %d: %w", in.K, err)
	}
	if r.ResolutionDiagonal, err = FromRows(in.ResolutionDiagonal); err != nil {
		return fmt.Errorf("bad resolution diagonal for rank %d: %w", in.K, err)
	}
	if r.ResolutionMatrix, err = FromRows(in.ResolutionMatrix); err != nil {
		return fmt.Errorf("bad resolution matrix for rank %d: %w", in.K, err)
	}
	return nil
}

// Report is the document written to data.json.
type Report struct {
	Heatmaps []RankResult `json:"heatmaps"`
}

// Ranks lists the ranks in report order.
func (r Report) Ranks() []int {
	ret := make([]int, len(r.Heatmaps))
	for i, h := range r.Heatmaps {
		ret[i] = h.K
	}
	return ret
}
