// Package explorer reads inversion results back from parquet files.
package explorer

import (
	"errors"
	"fmt"
	"github.com/kpaschen/crosswell/lib/datatypes"
	"github.com/kpaschen/crosswell/lib/reporter"
	"github.com/parquet-go/parquet-go"
	"gonum.org/v1/gonum/mat"
	"io"
	"log"
	"os"
	"path/filepath"
)

type ParquetExplorer struct {
	filenameBase string
	osFile       *os.File
	file         *parquet.File
	kIndex       int
}

func NewParquetExplorer(filenameBase string) *ParquetExplorer {
	return &ParquetExplorer{
		filenameBase: filenameBase,
		kIndex:       -1,
	}
}

func (p *ParquetExplorer) Initialize(filename string) error {
	schema := parquet.SchemaOf(reporter.GridCell{})
	for _, path := range schema.Columns() {
		if len(path) != 1 {
			continue
		}
		leaf, _ := schema.Lookup(path...)
		if path[0] == "k" {
			p.kIndex = leaf.ColumnIndex
		}
	}
	if p.kIndex < 0 {
		return fmt.Errorf("bad schema: missing column for k")
	}

	path := filepath.Join(p.filenameBase, filename)
	pqfile, err := os.Open(path)
	if err != nil {
		log.Printf("failed to open results parquet file: %v\n", err)
		return err
	}
	stat, err := pqfile.Stat()
	if err != nil {
		pqfile.Close()
		return err
	}
	p.file, err = parquet.OpenFile(pqfile, stat.Size())
	if err != nil {
		pqfile.Close()
		log.Printf("Parquet: failed to open results parquet file: %v\n", err)
		return err
	}
	p.osFile = pqfile
	return nil
}

func (p *ParquetExplorer) Close() error {
	if p.osFile == nil {
		return nil
	}
	err := p.osFile.Close()
	p.osFile = nil
	p.file = nil
	return err
}

// readAll calls fn for every row of every row group that may hold a
// cell for rank k. k < 0 means all row groups.
func (p *ParquetExplorer) readAll(k int, fn func(cell reporter.GridCell)) error {
	if p.file == nil {
		return fmt.Errorf("parquet explorer has no parquet file")
	}
	reader := parquet.NewGenericReader[reporter.GridCell](p.file)
	defer reader.Close()

	cells := make([]reporter.GridCell, 256)
	var offset int64
	for _, rg := range p.file.RowGroups() {
		numRows := rg.NumRows()
		start := offset
		offset += numRows
		if k >= 0 && !mayContain(rg.ColumnChunks()[p.kIndex], k) {
			continue
		}
		if err := reader.SeekToRow(start); err != nil {
			return err
		}
		for remaining := numRows; remaining > 0; {
			batch := cells
			if int64(len(batch)) > remaining {
				batch = batch[:remaining]
			}
			numRead, err := reader.Read(batch)
			for _, cell := range batch[:numRead] {
				fn(cell)
			}
			remaining -= int64(numRead)
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return err
			}
		}
	}
	return nil
}

// mayContain uses the page statistics of the k column to skip row groups.
func mayContain(chunk parquet.ColumnChunk, k int) bool {
	index, err := chunk.ColumnIndex()
	if err != nil || index == nil {
		return true
	}
	for i := 0; i < index.NumPages(); i++ {
		if index.NullPage(i) {
			continue
		}
		if index.MinValue(i).Int64() <= int64(k) && int64(k) <= index.MaxValue(i).Int64() {
			return true
		}
	}
	return false
}

// Ranks lists the ranks in the file, in the order they were written.
func (p *ParquetExplorer) Ranks() ([]int, error) {
	ret := make([]int, 0)
	seen := make(map[int]bool)
	err := p.readAll(-1, func(cell reporter.GridCell) {
		if !seen[cell.K] {
			seen[cell.K] = true
			ret = append(ret, cell.K)
		}
	})
	return ret, err
}

// ResultForRank rebuilds the model grid and, if it was written, the
// resolution diagonal for rank k. The norms are not stored in parquet
// and stay zero. A rank requested more than once is written once per
// request; the first grid in file order is the one returned.
func (p *ParquetExplorer) ResultForRank(k int) (*datatypes.RankResult, error) {
	cells := make([]reporter.GridCell, 0)
	seen := make(map[[2]int]bool)
	rows, columns := 0, 0
	err := p.readAll(k, func(cell reporter.GridCell) {
		if cell.K != k || seen[[2]int{cell.Row, cell.Col}] {
			return
		}
		seen[[2]int{cell.Row, cell.Col}] = true
		cells = append(cells, cell)
		rows = max(rows, cell.Row+1)
		columns = max(columns, cell.Col+1)
	})
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("no results for rank %d", k)
	}
	if len(cells) != rows*columns {
		return nil, fmt.Errorf("rank %d has %d cells, expected a full %dx%d grid", k, len(cells), rows, columns)
	}

	result := &datatypes.RankResult{K: k, Model: mat.NewDense(rows, columns, nil)}
	if cells[0].HasResolution {
		result.ResolutionDiagonal = mat.NewDense(rows, columns, nil)
	}
	for _, cell := range cells {
		result.Model.Set(cell.Row, cell.Col, cell.Model)
		if result.ResolutionDiagonal != nil {
			result.ResolutionDiagonal.Set(cell.Row, cell.Col, cell.Resolution)
		}
	}
	return result, nil
}
