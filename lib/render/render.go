// Package render draws inversion results as heatmap panels in one PNG.
package render

import (
	"github.com/kpaschen/crosswell/lib/datatypes"
	"github.com/kpaschen/crosswell/lib/paa"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log"
	"os"
)

// MaxColumns is the widest the figure gets without diagnostics.
const MaxColumns = 4

type Options struct {
	// Pixels per model cell. Also the width of the margin around panels.
	CellSize int

	// Draw the resolution matrix and the resolution diagonal next to
	// each model, one rank per row.
	Diagnostics bool
}

func DefaultOptions() Options {
	return Options{CellSize: 16}
}

var (
	low        = colorful.Color{R: 1, G: 1, B: 0}
	high       = colorful.Color{R: 0, G: 0.5, B: 0}
	background = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// ColorFor maps v in [lo, hi] onto the yellow to green colormap.
func ColorFor(v, lo, hi float64) color.RGBA {
	t := 0.0
	if hi > lo {
		t = (v - lo) / (hi - lo)
	}
	t = max(0, min(1, t))
	r, g, b := low.BlendRgb(high, t).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Layout returns the number of panel columns and rows for n ranks.
func Layout(n int, diagnostics bool) (int, int) {
	if n == 0 {
		return 0, 0
	}
	if diagnostics {
		return 3, n
	}
	columns := min(n, MaxColumns)
	return columns, (n + columns - 1) / columns
}

// Downsample shrinks m to rows x columns by averaging blocks. Blocks
// are at least one element, so this also works for growing m.
func Downsample(m mat.Matrix, rows, columns int) *mat.Dense {
	return paa.Matrix(m, rows, columns)
}

// drawPanel paints m at origin with each cell cellSize pixels wide,
// scaled to the panel's own min and max.
func drawPanel(img *image.RGBA, origin image.Point, m mat.Matrix, cellSize int) {
	values := datatypes.Flatten(m)
	if len(values) == 0 {
		return
	}
	lo, hi := floats.Min(values), floats.Max(values)
	rows, columns := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < columns; j++ {
			cell := image.Rect(j*cellSize, i*cellSize, (j+1)*cellSize, (i+1)*cellSize).Add(origin)
			draw.Draw(img, cell, &image.Uniform{C: ColorFor(m.At(i, j), lo, hi)}, image.Point{}, draw.Src)
		}
	}
}

// RenderFigure draws one panel per rank, in the order of results. The
// panels share the grid shape of the first model.
func RenderFigure(results []datatypes.RankResult, opts Options) image.Image {
	if opts.CellSize < 1 {
		opts.CellSize = DefaultOptions().CellSize
	}
	margin := opts.CellSize
	if len(results) == 0 {
		img := image.NewRGBA(image.Rect(0, 0, margin, margin))
		draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)
		return img
	}

	gridRows, gridColumns := results[0].Model.Dims()
	panelWidth := gridColumns * opts.CellSize
	panelHeight := gridRows * opts.CellSize
	columns, rows := Layout(len(results), opts.Diagnostics)
	width := columns*(panelWidth+margin) + margin
	height := rows*(panelHeight+margin) + margin

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	origin := func(column, row int) image.Point {
		return image.Pt(margin+column*(panelWidth+margin), margin+row*(panelHeight+margin))
	}
	for i, result := range results {
		if !opts.Diagnostics {
			drawPanel(img, origin(i%columns, i/columns), result.Model, opts.CellSize)
			continue
		}
		drawPanel(img, origin(0, i), result.Model, opts.CellSize)
		if result.ResolutionMatrix != nil {
			drawPanel(img, origin(1, i), Downsample(result.ResolutionMatrix, panelHeight, panelWidth), 1)
		}
		if result.ResolutionDiagonal != nil {
			drawPanel(img, origin(2, i), result.ResolutionDiagonal, opts.CellSize)
		}
	}
	return img
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err = png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	if err = file.Close(); err != nil {
		return err
	}
	bounds := img.Bounds()
	log.Printf("wrote %dx%d figure to %s\n", bounds.Dx(), bounds.Dy(), path)
	return nil
}
