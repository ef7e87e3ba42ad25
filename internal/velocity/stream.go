// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package velocity

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// arrows draws a velocity field as arrows anchored at grid points.
type arrows struct {
	field *Field
	scale float64
	sty   draw.LineStyle
}

func (a arrows) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	head := vg.Points(2)
	for i := range a.field.X {
		dx, dy := a.field.DX[i]*a.scale, a.field.DY[i]*a.scale
		if dx == 0 && dy == 0 {
			continue
		}
		x0, y0 := trX(a.field.X[i]), trY(a.field.Y[i])
		x1, y1 := trX(a.field.X[i]+dx), trY(a.field.Y[i]+dy)
		c.StrokeLine2(a.sty, x0, y0, x1, y1)

		theta := math.Atan2(float64(y1-y0), float64(x1-x0))
		for _, phi := range []float64{theta + 5*math.Pi/6, theta - 5*math.Pi/6} {
			hx := x1 + head*vg.Length(math.Cos(phi))
			hy := y1 + head*vg.Length(math.Sin(phi))
			c.StrokeLine2(a.sty, x1, y1, hx, hy)
		}
	}
}

func (a arrows) DataRange() (xMin, xMax, yMin, yMax float64) {
	xMin, xMax = math.Inf(1), math.Inf(-1)
	yMin, yMax = math.Inf(1), math.Inf(-1)
	for i := range a.field.X {
		for _, x := range []float64{a.field.X[i], a.field.X[i] + a.field.DX[i]*a.scale} {
			xMin = math.Min(xMin, x)
			xMax = math.Max(xMax, x)
		}
		for _, y := range []float64{a.field.Y[i], a.field.Y[i] + a.field.DY[i]*a.scale} {
			yMin = math.Min(yMin, y)
			yMax = math.Max(yMax, y)
		}
	}
	return xMin, xMax, yMin, yMax
}

// StreamPlot renders the embedding scatter under the grid averaged
// velocity field and saves it to path. Arrows are drawn at scale
// embedding units per unit velocity.
func StreamPlot(path string, proj *Projection, field *Field, scale float64) error {
	p := plot.New()
	p.Title.Text = "RNA velocity"
	p.X.Label.Text = "PC1"
	p.Y.Label.Text = "PC2"

	cells := make(plotter.XYs, len(proj.X))
	for i := range proj.X {
		cells[i] = plotter.XY{X: proj.X[i], Y: proj.Y[i]}
	}
	sc, err := plotter.NewScatter(cells)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	sc.GlyphStyle.Radius = vg.Points(1.5)
	sc.GlyphStyle.Color = color.RGBA{R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff}

	p.Add(sc, arrows{
		field: field,
		scale: scale,
		sty: draw.LineStyle{
			Color: color.RGBA{B: 0x80, A: 0xff},
			Width: vg.Points(1),
		},
	})
	return p.Save(18*vg.Centimeter, 15*vg.Centimeter, path)
}

// PhasePlot renders the spliced/unspliced phase portrait of a single
// gene with its steady-state line and saves it to path.
func PhasePlot(path, gene string, s, u []float64, gamma float64) error {
	if len(s) != len(u) {
		return fmt.Errorf("velocity: phase data length mismatch: %d != %d", len(s), len(u))
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Phase portrait\n%s", gene)
	p.X.Label.Text = "spliced"
	p.Y.Label.Text = "unspliced"

	pts := make(plotter.XYs, len(s))
	var sMax float64
	for i := range s {
		pts[i] = plotter.XY{X: s[i], Y: u[i]}
		if s[i] > sMax {
			sMax = s[i]
		}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	sc.GlyphStyle.Radius = vg.Points(2)

	steady, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: sMax, Y: gamma * sMax}})
	if err != nil {
		return err
	}
	steady.Color = color.RGBA{R: 0xff, A: 0xff}

	p.Add(sc, steady)
	return p.Save(15*vg.Centimeter, 15*vg.Centimeter, path)
}
