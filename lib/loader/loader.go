// Package loader reads the forward operator and the observed data.
package loader

import (
	"fmt"
	"github.com/kpaschen/crosswell/lib/settings"
	"github.com/kpaschen/crosswell/lib/svd"
	"gonum.org/v1/gonum/mat"
	"log"
	"path/filepath"
	"strings"
)

// Load reads G and d as configured. A .mat operator file holds both
// variables; otherwise operator and data are separate text files.
// The returned pair has been checked for finite values and matching
// lengths.
func Load(config settings.InversionSettings) (*mat.Dense, *mat.VecDense, error) {
	config = config.ComputeSettingsFields()
	if config.OperatorFile == "" {
		return nil, nil, fmt.Errorf("no operator file given")
	}
	var g *mat.Dense
	var d *mat.VecDense
	var err error
	if strings.EqualFold(filepath.Ext(config.OperatorFile), ".mat") {
		g, d, err = LoadMat(config.OperatorFile, config.OperatorVariable, config.DataVariable)
	} else {
		g, d, err = LoadText(config.OperatorFile, config.DataFile)
	}
	if err != nil {
		return nil, nil, err
	}
	if err = Validate(g, d); err != nil {
		return nil, nil, err
	}
	rows, columns := g.Dims()
	log.Printf("loaded %d x %d operator and %d observations from %s\n",
		rows, columns, d.Len(), config.OperatorFile)
	return g, d, nil
}

// LoadMat reads the operator and data variables from one .mat file.
// The data variable is flattened, whatever its orientation.
func LoadMat(path string, operatorVariable string, dataVariable string) (*mat.Dense, *mat.VecDense, error) {
	vars, err := ReadMatFile(path)
	if err != nil {
		return nil, nil, err
	}
	g, ok := vars[operatorVariable]
	if !ok {
		return nil, nil, svd.InvalidInputError{What: "operator",
			Reason: fmt.Sprintf("no numeric variable %q in %s", operatorVariable, path)}
	}
	dm, ok := vars[dataVariable]
	if !ok {
		return nil, nil, svd.InvalidInputError{What: "observation vector",
			Reason: fmt.Sprintf("no numeric variable %q in %s", dataVariable, path)}
	}
	return g, flatten(dm), nil
}

// LoadText reads the operator and data from two text files.
func LoadText(operatorFile string, dataFile string) (*mat.Dense, *mat.VecDense, error) {
	if dataFile == "" {
		return nil, nil, fmt.Errorf("text operator %s needs a separate data file", operatorFile)
	}
	g, err := ReadTextMatrix(operatorFile)
	if err != nil {
		return nil, nil, err
	}
	d, err := ReadTextVector(dataFile)
	if err != nil {
		return nil, nil, err
	}
	return g, d, nil
}

// Validate checks that g and d are finite and that d has one value per
// row of g.
func Validate(g *mat.Dense, d *mat.VecDense) error {
	if err := svd.CheckFinite("operator", g); err != nil {
		return err
	}
	if err := svd.CheckFinite("observation vector", d); err != nil {
		return err
	}
	rows, _ := g.Dims()
	if d.Len() != rows {
		return svd.ShapeMismatchError{What: "observation vector length", Got: d.Len(), Want: rows}
	}
	return nil
}

// flatten reads m row by row. For a column or row vector that is just
// the vector.
func flatten(m *mat.Dense) *mat.VecDense {
	rows, columns := m.Dims()
	data := make([]float64, 0, rows*columns)
	for i := 0; i < rows; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return mat.NewVecDense(len(data), data)
}
