package reporter

import (
	"encoding/json"
	"github.com/kpaschen/crosswell/lib/datatypes"
	"log"
	"os"
	"path/filepath"
)

const JsonFilename = "data.json"

// JsonReporter writes all results into one data.json document.
type JsonReporter struct {
	directory string
	filename  string
}

func NewJsonReporter(directory string) *JsonReporter {
	return &JsonReporter{directory: directory, filename: JsonFilename}
}

// WithFilename changes the name of the output file.
func (j *JsonReporter) WithFilename(filename string) *JsonReporter {
	j.filename = filename
	return j
}

func (j *JsonReporter) Path() string {
	return filepath.Join(j.directory, j.filename)
}

func (j *JsonReporter) Report(results []datatypes.RankResult) error {
	data, err := json.MarshalIndent(datatypes.Report{Heatmaps: results}, "", "  ")
	if err != nil {
		return err
	}
	if err = os.WriteFile(j.Path(), data, 0644); err != nil {
		return err
	}
	log.Printf("wrote %d heatmaps to %s\n", len(results), j.Path())
	return nil
}

// ReadJsonReport reads a document written by JsonReporter.
func ReadJsonReport(path string) (*datatypes.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	report := &datatypes.Report{}
	if err = json.Unmarshal(data, report); err != nil {
		return nil, err
	}
	return report, nil
}
