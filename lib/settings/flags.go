package settings

import (
	"flag"
)

// Flags are the command line switches shared by the cli and the server.
// Only flags that were given on the command line override the config
// file.
type Flags struct {
	fs *flag.FlagSet

	configFile         string
	operator           string
	data               string
	operatorVariable   string
	dataVariable       string
	resultsDirectory   string
	figure             string
	formats            string
	singularFloor      float64
	gridRows           int
	gridColumns        int
	parallelism        int
	cellSize           int
	maxRowsPerRowGroup int64
	resolution         bool
	keepResolution     bool
	skipInvalidRanks   bool
}

func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.configFile, "config", "", "An ini style config file. Flags override its values.")
	fs.StringVar(&f.operator, "operator", "", "The forward operator: a .mat file holding G and d, or a text matrix file")
	fs.StringVar(&f.data, "data", "", "The observation vector as a text file. Not needed for .mat input.")
	fs.StringVar(&f.operatorVariable, "operatorVar", "", "Name of the operator variable in a .mat file (default G)")
	fs.StringVar(&f.dataVariable, "dataVar", "", "Name of the data variable in a .mat file (default dn)")
	fs.StringVar(&f.resultsDirectory, "resultsDirectory", "", "The directory for result files (default .)")
	fs.StringVar(&f.figure, "figure", "", "File name of the combined figure (default all_heatmaps.png)")
	fs.StringVar(&f.formats, "formats", "", "Comma separated result formats: json, csv, parquet (default json)")
	fs.Float64Var(&f.singularFloor, "singularFloor", 0, "Singular values at or below this are not inverted. 0 means the numerical rank tolerance.")
	fs.IntVar(&f.gridRows, "gridRows", 0, "Rows of the model grid (default 16)")
	fs.IntVar(&f.gridColumns, "gridColumns", 0, "Columns of the model grid (default 16)")
	fs.IntVar(&f.parallelism, "parallelism", 0, "How many ranks to invert at the same time (default 1)")
	fs.IntVar(&f.cellSize, "cellSize", 0, "Pixels per model cell in the figure (default 16)")
	fs.Int64Var(&f.maxRowsPerRowGroup, "parquetMaxRowsPerRowGroup", 0, "Number of rows per row group in Parquet (default 100000)")
	fs.BoolVar(&f.resolution, "resolution", false, "Whether to compute the resolution diagonal")
	fs.BoolVar(&f.keepResolution, "keepResolutionMatrix", false, "Whether to keep and draw the full resolution matrix")
	fs.BoolVar(&f.skipInvalidRanks, "skipInvalidRanks", false, "Log and skip ranks that cannot be inverted instead of failing")
	return f
}

// Settings merges the config file, the flags that were set and the
// positional rank arguments, then fills in defaults. Call it after the
// flag set has been parsed.
func (f *Flags) Settings(rankArgs []string) (InversionSettings, error) {
	s := InversionSettings{}
	var err error
	if f.configFile != "" {
		s, err = ReadConfigFile(f.configFile)
		if err != nil {
			return s, err
		}
	}

	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "operator":
			s.OperatorFile = f.operator
		case "data":
			s.DataFile = f.data
		case "operatorVar":
			s.OperatorVariable = f.operatorVariable
		case "dataVar":
			s.DataVariable = f.dataVariable
		case "resultsDirectory":
			s.ResultsDirectory = f.resultsDirectory
		case "figure":
			s.FigureName = f.figure
		case "formats":
			s.Formats = ParseFormats(f.formats)
		case "singularFloor":
			s.SingularFloor = f.singularFloor
		case "gridRows":
			s.GridRows = f.gridRows
		case "gridColumns":
			s.GridColumns = f.gridColumns
		case "parallelism":
			s.Parallelism = f.parallelism
		case "cellSize":
			s.CellSize = f.cellSize
		case "parquetMaxRowsPerRowGroup":
			s.MaxRowsPerRowGroup = f.maxRowsPerRowGroup
		case "resolution":
			s.Resolution = f.resolution
		case "keepResolutionMatrix":
			s.KeepResolutionMatrix = f.keepResolution
		case "skipInvalidRanks":
			s.SkipInvalidRanks = f.skipInvalidRanks
		}
	})

	if len(rankArgs) > 0 {
		if s.Ranks, err = ParseRanks(rankArgs); err != nil {
			return s, err
		}
	}

	s = s.ComputeSettingsFields()
	return s, s.Validate()
}
