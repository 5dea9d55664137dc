// Package settings contains all the parameters for a TSVD inversion run.
package settings

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	FORMAT_JSON    = "json"
	FORMAT_CSV     = "csv"
	FORMAT_PARQUET = "parquet"
)

type InversionSettings struct {
	// The truncation ranks, in output order.
	Ranks []int

	// Singular values at or below this floor are not inverted.
	// 0 means: use the numerical rank tolerance of the decomposition.
	SingularFloor float64

	// Shape of the model grid. GridRows * GridColumns must equal the
	// number of columns of the operator.
	GridRows    int
	GridColumns int

	// Whether to compute the resolution matrix and its diagonal.
	Resolution bool
	// Whether to keep the full n x n resolution matrix in the results.
	// It is big (256x256 for the crosswell grid), so off by default.
	KeepResolutionMatrix bool

	// If set, ranks that fail are logged and dropped instead of failing
	// the whole run.
	SkipInvalidRanks bool

	// How many ranks to invert concurrently. 1 means sequential.
	Parallelism int

	// Input files.
	OperatorFile     string
	DataFile         string
	OperatorVariable string
	DataVariable     string

	// Where to write results and what to write.
	ResultsDirectory string
	FigureName       string
	Formats          []string

	// Number of rows per row group in Parquet.
	MaxRowsPerRowGroup int64

	// Pixels per model cell in the rendered figure.
	CellSize int
}

// DefaultRanks returns the rank list used when the caller gives none.
func DefaultRanks() []int {
	return []int{5, 50, 100, 150, 200, 250}
}

func (s InversionSettings) ComputeSettingsFields() InversionSettings {
	if len(s.Ranks) == 0 {
		s.Ranks = DefaultRanks()
	}
	if s.GridRows == 0 {
		s.GridRows = 16
	}
	if s.GridColumns == 0 {
		s.GridColumns = 16
	}
	if s.KeepResolutionMatrix {
		s.Resolution = true
	}
	if s.Parallelism < 1 {
		s.Parallelism = 1
	}
	if s.OperatorVariable == "" {
		s.OperatorVariable = "G"
	}
	if s.DataVariable == "" {
		s.DataVariable = "dn"
	}
	if s.ResultsDirectory == "" {
		s.ResultsDirectory = "."
	}
	if s.FigureName == "" {
		s.FigureName = "all_heatmaps.png"
	}
	if len(s.Formats) == 0 {
		s.Formats = []string{FORMAT_JSON}
	}
	if s.MaxRowsPerRowGroup == 0 {
		s.MaxRowsPerRowGroup = 100000
	}
	if s.CellSize == 0 {
		s.CellSize = 16
	}
	return s
}

// GridSize is the number of model cells, i.e. the required column count
// of the operator.
func (s InversionSettings) GridSize() int {
	return s.GridRows * s.GridColumns
}

// Validate checks the fields that ComputeSettingsFields cannot fix.
func (s InversionSettings) Validate() error {
	if s.GridRows < 1 || s.GridColumns < 1 {
		return fmt.Errorf("grid must have at least one row and column, got %dx%d", s.GridRows, s.GridColumns)
	}
	if s.SingularFloor < 0 {
		return fmt.Errorf("singular floor must not be negative, got %g", s.SingularFloor)
	}
	for _, f := range s.Formats {
		switch f {
		case FORMAT_JSON, FORMAT_CSV, FORMAT_PARQUET:
		default:
			return fmt.Errorf("unsupported output format %q", f)
		}
	}
	return nil
}

// ParseRanks turns command line arguments into a rank list. Any argument
// that is not an integer fails the whole list. Range checks happen later,
// once the number of singular values is known.
func ParseRanks(args []string) ([]int, error) {
	if len(args) == 0 {
		return DefaultRanks(), nil
	}
	ranks := make([]int, 0, len(args))
	for _, a := range args {
		k, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return nil, fmt.Errorf("failed to parse an integer rank out of %q", a)
		}
		ranks = append(ranks, k)
	}
	return ranks, nil
}

// ParseFormats splits a comma separated format list.
func ParseFormats(list string) []string {
	return normalizeFormats(strings.Split(list, ","))
}

// normalizeFormats lowercases and trims format names and drops empty ones.
func normalizeFormats(list []string) []string {
	var formats []string
	for _, f := range list {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}
