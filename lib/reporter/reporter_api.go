package reporter

import (
	"fmt"
	"github.com/kpaschen/crosswell/lib/datatypes"
	"github.com/kpaschen/crosswell/lib/settings"
)

// A Reporter writes the results of a run somewhere. It is only called
// once every requested rank has been inverted.
type Reporter interface {
	Report(results []datatypes.RankResult) error
}

// MultiReporter hands the same results to several reporters and stops at
// the first one that fails.
type MultiReporter []Reporter

func (m MultiReporter) Report(results []datatypes.RankResult) error {
	for _, r := range m {
		if err := r.Report(results); err != nil {
			return err
		}
	}
	return nil
}

// NewReporters builds one reporter per configured output format.
func NewReporters(config settings.InversionSettings) (MultiReporter, error) {
	ret := make(MultiReporter, 0, len(config.Formats))
	for _, format := range config.Formats {
		switch format {
		case settings.FORMAT_JSON:
			ret = append(ret, NewJsonReporter(config.ResultsDirectory))
		case settings.FORMAT_CSV:
			ret = append(ret, NewCsvReporter(config.ResultsDirectory))
		case settings.FORMAT_PARQUET:
			ret = append(ret, NewParquetReporter(config.ResultsDirectory, config.MaxRowsPerRowGroup))
		default:
			return nil, fmt.Errorf("unsupported output format %q", format)
		}
	}
	return ret, nil
}
