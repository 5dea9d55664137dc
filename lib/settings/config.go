package settings

import (
	"fmt"
	"gopkg.in/gcfg.v1"
)

const ExampleConfigFile = `[Inversion]

# Truncation ranks, one per line, in output order.
Rank = 5
Rank = 50
Rank = 100
Rank = 150
Rank = 200
Rank = 250

# Singular values at or below this floor are treated as zero.
# Leave unset to use the numerical rank tolerance.
# SingularFloor = 1e-10

# GridRows = 16
# GridColumns = 16

# Resolution = true
# KeepResolutionMatrix = false
# SkipInvalidRanks = false
# Parallelism = 1

[Input]

# A MATLAB .mat file with both variables, or a text matrix file.
Operator = crosswell.mat
# OperatorVariable = G
# DataVariable = dn
# Data is only needed for text input.
# Data = dn.txt

[Output]

Directory = .
# Figure = all_heatmaps.png
# Format = json
# Format = csv
# Format = parquet
# MaxRowsPerRowGroup = 100000
# CellSize = 16`

type inversionSection struct {
	Rank                 []int
	SingularFloor        float64
	GridRows             int
	GridColumns          int
	Resolution           bool
	KeepResolutionMatrix bool
	SkipInvalidRanks     bool
	Parallelism          int
}

type inputSection struct {
	Operator         string
	Data             string
	OperatorVariable string
	DataVariable     string
}

type outputSection struct {
	Directory          string
	Figure             string
	Format             []string
	MaxRowsPerRowGroup int64
	CellSize           int
}

type configFile struct {
	Inversion inversionSection
	Input     inputSection
	Output    outputSection
}

// ReadConfigFile reads an ini style settings file. Unset values stay
// zero so ComputeSettingsFields can fill in the defaults afterwards.
func ReadConfigFile(fname string) (InversionSettings, error) {
	cfg := configFile{}
	if err := gcfg.ReadFileInto(&cfg, fname); err != nil {
		return InversionSettings{}, fmt.Errorf("failed to read config file %s: %w", fname, err)
	}
	return cfg.settings(), nil
}

// ReadConfigString is ReadConfigFile for an in-memory config.
func ReadConfigString(str string) (InversionSettings, error) {
	cfg := configFile{}
	if err := gcfg.ReadStringInto(&cfg, str); err != nil {
		return InversionSettings{}, err
	}
	return cfg.settings(), nil
}

func (c configFile) settings() InversionSettings {
	return InversionSettings{
		Ranks:                c.Inversion.Rank,
		SingularFloor:        c.Inversion.SingularFloor,
		GridRows:             c.Inversion.GridRows,
		GridColumns:          c.Inversion.GridColumns,
		Resolution:           c.Inversion.Resolution,
		KeepResolutionMatrix: c.Inversion.KeepResolutionMatrix,
		SkipInvalidRanks:     c.Inversion.SkipInvalidRanks,
		Parallelism:          c.Inversion.Parallelism,
		OperatorFile:         c.Input.Operator,
		DataFile:             c.Input.Data,
		OperatorVariable:     c.Input.OperatorVariable,
		DataVariable:         c.Input.DataVariable,
		ResultsDirectory:     c.Output.Directory,
		FigureName:           c.Output.Figure,
		Formats:              normalizeFormats(c.Output.Format),
		MaxRowsPerRowGroup:   c.Output.MaxRowsPerRowGroup,
		CellSize:             c.Output.CellSize,
	}
}
