package settings

import (
	"flag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestComputeSettingsFields(t *testing.T) {
	s := InversionSettings{}.ComputeSettingsFields()
	assert.Equal(t, []int{5, 50, 100, 150, 200, 250}, s.Ranks)
	assert.Equal(t, 16, s.GridRows)
	assert.Equal(t, 16, s.GridColumns)
	assert.Equal(t, 256, s.GridSize())
	assert.Equal(t, 1, s.Parallelism)
	assert.Equal(t, "G", s.OperatorVariable)
	assert.Equal(t, "dn", s.DataVariable)
	assert.Equal(t, []string{FORMAT_JSON}, s.Formats)
	assert.False(t, s.Resolution)
	assert.NoError(t, s.Validate())

	s = InversionSettings{KeepResolutionMatrix: true, Ranks: []int{3}}.ComputeSettingsFields()
	assert.True(t, s.Resolution, "keeping the resolution matrix implies computing it")
	assert.Equal(t, []int{3}, s.Ranks)
}

func TestDefaultRanksAreFresh(t *testing.T) {
	r := DefaultRanks()
	r[0] = 99
	assert.Equal(t, 5, DefaultRanks()[0])
}

func TestValidate(t *testing.T) {
	s := InversionSettings{Formats: []string{"xml"}}.ComputeSettingsFields()
	assert.Error(t, s.Validate())

	s = InversionSettings{SingularFloor: -1}.ComputeSettingsFields()
	assert.Error(t, s.Validate())
}

func TestParseRanks(t *testing.T) {
	ranks, err := ParseRanks(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultRanks(), ranks)

	ranks, err = ParseRanks([]string{"5", " 250"})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 250}, ranks)

	// Range is checked later, so 0 and negatives parse fine.
	ranks, err = ParseRanks([]string{"0", "-3"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, -3}, ranks)

	_, err = ParseRanks([]string{"5", "five"})
	assert.Error(t, err)
	_, err = ParseRanks([]string{"2.5"})
	assert.Error(t, err)
}

func TestParseFormats(t *testing.T) {
	assert.Equal(t, []string{"json", "csv"}, ParseFormats("JSON, csv,"))
	assert.Nil(t, ParseFormats(""))
}

func TestReadConfigFile(t *testing.T) {
	tempdir, err := os.MkdirTemp("", "crosswellTest")
	require.NoError(t, err)
	defer os.RemoveAll(tempdir)

	fname := filepath.Join(tempdir, "inversion.cfg")
	require.NoError(t, os.WriteFile(fname, []byte(ExampleConfigFile), 0640))

	s, err := ReadConfigFile(fname)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 50, 100, 150, 200, 250}, s.Ranks)
	assert.Equal(t, "crosswell.mat", s.OperatorFile)
	assert.Equal(t, ".", s.ResultsDirectory)

	_, err = ReadConfigFile(filepath.Join(tempdir, "missing.cfg"))
	assert.Error(t, err)
}

func TestReadConfigString(t *testing.T) {
	s, err := ReadConfigString(`[Inversion]
Rank = 10
Rank = 20
SingularFloor = 1e-6
Resolution = true
Parallelism = 4

[Output]
Format = csv
Format = parquet
CellSize = 8`)
	require.NoError(t, err)
	s = s.ComputeSettingsFields()
	assert.Equal(t, []int{10, 20}, s.Ranks)
	assert.InDelta(t, 1e-6, s.SingularFloor, 1e-12)
	assert.True(t, s.Resolution)
	assert.Equal(t, 4, s.Parallelism)
	assert.Equal(t, []string{"csv", "parquet"}, s.Formats)
	assert.Equal(t, 8, s.CellSize)
	assert.NoError(t, s.Validate())

	_, err = ReadConfigString("[Inversion]\nNoSuchVariable = 3\n")
	assert.Error(t, err)
}

func TestReadConfigStringNormalizesFormats(t *testing.T) {
	s, err := ReadConfigString(`[Output]
Format = JSON
Format = " Parquet "`)
	require.NoError(t, err)
	s = s.ComputeSettingsFields()
	assert.Equal(t, []string{FORMAT_JSON, FORMAT_PARQUET}, s.Formats)
	assert.NoError(t, s.Validate())
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "tsvd.ini")
	require.NoError(t, os.WriteFile(fname, []byte(ExampleConfigFile), 0644))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-config", fname, "-resultsDirectory", "/tmp/out",
		"-formats", "json,parquet", "-resolution", "7", "11"}))

	s, err := f.Settings(fs.Args())
	require.NoError(t, err)
	assert.Equal(t, []int{7, 11}, s.Ranks)
	assert.Equal(t, "crosswell.mat", s.OperatorFile)
	assert.Equal(t, "/tmp/out", s.ResultsDirectory)
	assert.Equal(t, []string{FORMAT_JSON, FORMAT_PARQUET}, s.Formats)
	assert.True(t, s.Resolution)
	assert.Equal(t, 16, s.GridRows)
}

func TestFlagsWithoutConfigFile(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-operator", "g.txt", "-data", "d.txt"}))

	s, err := f.Settings(fs.Args())
	require.NoError(t, err)
	assert.Equal(t, DefaultRanks(), s.Ranks)
	assert.Equal(t, "g.txt", s.OperatorFile)
	assert.Equal(t, "d.txt", s.DataFile)
	assert.Equal(t, []string{FORMAT_JSON}, s.Formats)
}

func TestFlagsRejectBadRanks(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"5", "fifty"}))
	_, err := f.Settings(fs.Args())
	assert.Error(t, err)
}
