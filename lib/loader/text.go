package loader

import (
	"bufio"
	"fmt"
	"gonum.org/v1/gonum/mat"
	"os"
	"strconv"
	"strings"
)

// ReadTextMatrix reads a matrix with one row per line and whitespace
// separated values. Blank lines and lines starting with '#' are skipped.
func ReadTextMatrix(filename string) (*mat.Dense, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	lineCount := 0
	rowCount := 0
	columnCount := 0
	data := make([]float64, 0)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineCount++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if columnCount == 0 {
			columnCount = len(parts)
		} else if columnCount != len(parts) {
			return nil, fmt.Errorf("inconsistent number of values in line %d: expected %d but got %d",
				lineCount, columnCount, len(parts))
		}
		for _, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, fmt.Errorf("on line %d of %s, failed to parse %s into a float: %v",
					lineCount, filename, p, err)
			}
			data = append(data, v)
		}
		rowCount++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if rowCount == 0 {
		return nil, fmt.Errorf("no values in %s", filename)
	}
	return mat.NewDense(rowCount, columnCount, data), nil
}

// ReadTextVector reads all values of a text file in order, whether they
// are laid out as a row, a column, or a matrix.
func ReadTextVector(filename string) (*mat.VecDense, error) {
	m, err := ReadTextMatrix(filename)
	if err != nil {
		return nil, err
	}
	return flatten(m), nil
}
