package reporter

import (
	"encoding/csv"
	"fmt"
	"github.com/kpaschen/crosswell/lib/datatypes"
	"gonum.org/v1/gonum/mat"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// CsvReporter writes one file per rank with the model grid, and one with
// the resolution diagonal when there is one.
type CsvReporter struct {
	directory string
}

func NewCsvReporter(directory string) *CsvReporter {
	return &CsvReporter{directory: directory}
}

func ModelFilename(k int) string {
	return fmt.Sprintf("model_k%d.csv", k)
}

func ResolutionFilename(k int) string {
	return fmt.Sprintf("resolution_diagonal_k%d.csv", k)
}

func (c *CsvReporter) Report(results []datatypes.RankResult) error {
	for _, result := range results {
		if err := c.writeMatrix(ModelFilename(result.K), result.Model); err != nil {
			return err
		}
		if result.ResolutionDiagonal == nil {
			continue
		}
		if err := c.writeMatrix(ResolutionFilename(result.K), result.ResolutionDiagonal); err != nil {
			return err
		}
	}
	log.Printf("wrote csv files for %d ranks to %s\n", len(results), c.directory)
	return nil
}

func (c *CsvReporter) writeMatrix(filename string, m mat.Matrix) error {
	path := filepath.Join(c.directory, filename)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	for _, row := range datatypes.Rows(m) {
		record := make([]string, len(row))
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err = writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
