package reporter

import (
	"fmt"
	"github.com/kpaschen/crosswell/lib/datatypes"
	"github.com/parquet-go/parquet-go"
	"log"
	"os"
	"path/filepath"
)

const ParquetFilename = "tsvd_results.pq"

// GridCell is one model cell for one rank.
type GridCell struct {
	K   int `parquet:"k"`
	Row int `parquet:"row"`
	Col int `parquet:"col"`

	Model float64 `parquet:"model"`

	// Cannot make this optional without 0 turning into null, so
	// HasResolution says whether Resolution means anything.
	Resolution    float64 `parquet:"resolution"`
	HasResolution bool    `parquet:"hasResolution"`
}

// ParquetReporter writes all results into a single parquet file, one
// row per rank and grid cell, in rank order.
type ParquetReporter struct {
	directory          string
	maxRowsPerRowGroup int64
}

func NewParquetReporter(directory string, maxRows int64) *ParquetReporter {
	if maxRows <= 0 {
		maxRows = 100000
	}
	return &ParquetReporter{
		directory:          directory,
		maxRowsPerRowGroup: maxRows,
	}
}

func (r *ParquetReporter) Path() string {
	return filepath.Join(r.directory, ParquetFilename)
}

func extractRowsFromResult(result datatypes.RankResult) []GridCell {
	rows, columns := result.Model.Dims()
	ret := make([]GridCell, 0, rows*columns)
	for i := 0; i < rows; i++ {
		for j := 0; j < columns; j++ {
			cell := GridCell{
				K:     result.K,
				Row:   i,
				Col:   j,
				Model: result.Model.At(i, j),
			}
			if result.ResolutionDiagonal != nil {
				cell.Resolution = result.ResolutionDiagonal.At(i, j)
				cell.HasResolution = true
			}
			ret = append(ret, cell)
		}
	}
	return ret
}

func (r *ParquetReporter) Report(results []datatypes.RankResult) error {
	file, err := os.OpenFile(r.Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[GridCell](file, parquet.MaxRowsPerRowGroup(r.maxRowsPerRowGroup))
	total := 0
	for _, result := range results {
		n, err := writer.Write(extractRowsFromResult(result))
		if err != nil {
			writer.Close()
			return fmt.Errorf("failed to write rank %d: %w", result.K, err)
		}
		total += n
	}
	if err = writer.Close(); err != nil {
		return err
	}
	log.Printf("wrote %d cells for %d ranks to %s\n", total, len(results), r.Path())
	return nil
}
