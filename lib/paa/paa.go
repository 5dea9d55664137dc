// Package paa reduces vectors and matrices by piecewise aggregate
// approximation, i.e. by averaging equal-ish segments.
package paa

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func mean(slice []float64) float64 {
	return floats.Sum(slice) / float64(len(slice))
}

// segment returns the bounds of the i-th of n segments of a slice of
// length size. Segments are never empty, so n > size repeats values.
func segment(i, n, size int) (int, int) {
	start := i * size / n
	end := (i + 1) * size / n
	if end <= start {
		end = start + 1
	}
	return start, end
}

// Reduce slice to targetColumnCount columns by dividing it into
// segments and using mean values. When len(slice) is not a multiple of
// targetColumnCount the segments differ in length by at most one.
func PAA(slice []float64, targetColumnCount int) []float64 {
	if len(slice) == 0 || targetColumnCount < 1 {
		return nil
	}
	ret := make([]float64, targetColumnCount)
	for i := range ret {
		start, end := segment(i, targetColumnCount, len(slice))
		ret[i] = mean(slice[start:end])
	}
	return ret
}

// Matrix reduces m to rows x columns. Each output cell is the mean of a
// block of m.
func Matrix(m mat.Matrix, rows, columns int) *mat.Dense {
	mr, _ := m.Dims()
	if mr == 0 || rows < 1 || columns < 1 {
		return nil
	}
	// Rows first, then the columns of the row-reduced matrix.
	narrow := mat.NewDense(mr, columns, nil)
	for i := 0; i < mr; i++ {
		narrow.SetRow(i, PAA(mat.Row(nil, i, m), columns))
	}
	ret := mat.NewDense(rows, columns, nil)
	for j := 0; j < columns; j++ {
		ret.SetCol(j, PAA(mat.Col(nil, j, narrow), rows))
	}
	return ret
}
