package correlation

import (
	"fmt"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func EuclideanDistance(x []float64, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0.0, fmt.Errorf("euclidean distance needs arguments of the same length")
	}
	return floats.Distance(x, y, 2), nil
}

// Norm is the euclidean length of x.
func Norm(x []float64) float64 {
	return floats.Norm(x, 2)
}

// ResidualNorm is ||G m - d||, the data misfit of model m. m is the
// model in parameter order (length = columns of g).
func ResidualNorm(g mat.Matrix, m []float64, d mat.Vector) (float64, error) {
	rows, columns := g.Dims()
	if len(m) != columns {
		return 0.0, fmt.Errorf("model has %d parameters but the operator has %d columns", len(m), columns)
	}
	if d.Len() != rows {
		return 0.0, fmt.Errorf("data has %d values but the operator has %d rows", d.Len(), rows)
	}
	var predicted mat.VecDense
	predicted.MulVec(g, mat.NewVecDense(columns, m))
	observed := make([]float64, rows)
	for i := range observed {
		observed[i] = d.AtVec(i)
	}
	return EuclideanDistance(predicted.RawVector().Data, observed)
}
