package lib

import (
	"context"
	"fmt"
	"github.com/kpaschen/crosswell/lib/datatypes"
	"github.com/kpaschen/crosswell/lib/inversion"
	"github.com/kpaschen/crosswell/lib/render"
	"github.com/kpaschen/crosswell/lib/reporter"
	"github.com/kpaschen/crosswell/lib/settings"
	"github.com/kpaschen/crosswell/lib/svd"
	"gonum.org/v1/gonum/mat"
	"log"
	"os"
	"path/filepath"
	"runtime"
)

// A Pipeline owns one decomposed problem and turns rank lists into
// results, report files and a figure.
type Pipeline struct {
	settings  settings.InversionSettings
	problem   *inversion.Problem
	inverter  *inversion.Inverter
	reporters reporter.Reporter
}

func NewPipeline(config settings.InversionSettings, g *mat.Dense, d *mat.VecDense) (*Pipeline, error) {
	config = config.ComputeSettingsFields()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if g != nil {
		if _, columns := g.Dims(); columns != config.GridSize() {
			return nil, svd.ShapeMismatchError{What: "operator column count", Got: columns, Want: config.GridSize()}
		}
	}
	reporters, err := reporter.NewReporters(config)
	if err != nil {
		return nil, err
	}

	reportMemory("start decomposition")
	problem, err := inversion.NewProblem(g, d)
	if err != nil {
		return nil, err
	}
	reportMemory("finished decomposition")

	return &Pipeline{
		settings:  config,
		problem:   problem,
		inverter:  inversion.NewInverter(problem, config),
		reporters: reporters,
	}, nil
}

func (p *Pipeline) Settings() settings.InversionSettings {
	return p.settings
}

func (p *Pipeline) Problem() *inversion.Problem {
	return p.problem
}

func (p *Pipeline) Inverter() *inversion.Inverter {
	return p.inverter
}

// Run inverts ranks. Nothing is written.
func (p *Pipeline) Run(ctx context.Context, ranks []int) ([]datatypes.RankResult, error) {
	return p.inverter.Run(ctx, ranks)
}

// Publish hands results to the reporters and renders them into
// figureName in the results directory. It returns the figure path.
func (p *Pipeline) Publish(results []datatypes.RankResult, figureName string) (string, error) {
	if err := os.MkdirAll(p.settings.ResultsDirectory, 0755); err != nil {
		return "", err
	}
	if err := p.reporters.Report(results); err != nil {
		return "", fmt.Errorf("failed to report results: %w", err)
	}
	img := render.RenderFigure(results, render.Options{
		CellSize:    p.settings.CellSize,
		Diagnostics: p.settings.Resolution,
	})
	path := filepath.Join(p.settings.ResultsDirectory, figureName)
	if err := render.WritePNG(path, img); err != nil {
		return "", fmt.Errorf("failed to write figure: %w", err)
	}
	return path, nil
}

// Process runs ranks and publishes the results under the configured
// figure name. Nothing is written unless every rank succeeded, or was
// skipped under SkipInvalidRanks.
func (p *Pipeline) Process(ctx context.Context, ranks []int) (string, []datatypes.RankResult, error) {
	results, err := p.Run(ctx, ranks)
	if err != nil {
		return "", nil, err
	}
	if len(results) == 0 {
		return "", nil, fmt.Errorf("none of the ranks %v could be inverted", ranks)
	}
	path, err := p.Publish(results, p.settings.FigureName)
	if err != nil {
		return "", nil, err
	}
	return path, results, nil
}

// Summary is the line printed after a successful run.
func Summary(figure string, results []datatypes.RankResult) string {
	return fmt.Sprintf("Generated %s with Ks: %v", figure, datatypes.Report{Heatmaps: results}.Ranks())
}

// printMemUsage outputs the current, total and OS memory being used. As well as the number
// of garbage collection cycles completed.
func printMemUsage() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	log.Printf("Alloc = %v MiB", bToMb(m.Alloc))
	log.Printf("\tTotalAlloc = %v MiB", bToMb(m.TotalAlloc))
	log.Printf("\tSys = %v MiB", bToMb(m.Sys))
	log.Printf("\tNumGC = %v\n", m.NumGC)
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

func reportMemory(message string) {
	log.Println(message)
	printMemUsage()
}
