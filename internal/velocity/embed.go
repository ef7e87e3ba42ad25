// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package velocity

import (
	"fmt"
	"math"
	"sort"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Projection holds per-cell embedding positions and the velocity
// arrows projected onto the first two embedding dimensions.
type Projection struct {
	X, Y   []float64
	DX, DY []float64
}

// Project maps the gene-space velocities of m onto the embedding pcs
// (cells×d, d >= 2). For each cell the k nearest neighbours by
// Euclidean distance over all d dimensions vote with the Pearson
// correlation between the cell's velocity vector and the gene-space
// displacement towards the neighbour; positive votes weight the unit
// displacement in the first two embedding dimensions.
func Project(pcs *mat.Dense, m *Model, k int) (*Projection, error) {
	nCells, d := pcs.Dims()
	if d < 2 {
		return nil, fmt.Errorf("velocity: embedding has %d dimensions, need at least 2", d)
	}
	if vr, _ := m.V.Dims(); vr != nCells {
		return nil, fmt.Errorf("velocity: model has %d cells but embedding has %d", vr, nCells)
	}
	if k < 1 {
		return nil, fmt.Errorf("velocity: invalid neighbour count %d", k)
	}
	if k > nCells-1 {
		k = nCells - 1
	}
	if k == 0 {
		return nil, fmt.Errorf("velocity: not enough cells for neighbourhoods")
	}

	proj := &Projection{
		X:  make([]float64, nCells),
		Y:  make([]float64, nCells),
		DX: make([]float64, nCells),
		DY: make([]float64, nCells),
	}
	for i := 0; i < nCells; i++ {
		proj.X[i] = pcs.At(i, 0)
		proj.Y[i] = pcs.At(i, 1)
	}

	_, nGenes := m.V.Dims()
	parallel.Range(0, nCells, 0, func(low, high int) {
		dist := make([]int, nCells)
		delta := make([]float64, nGenes)
		for i := low; i < high; i++ {
			nn := nearest(pcs, i, k, dist)
			vi := m.V.RawRowView(i)
			si := m.S.RawRowView(i)

			var dx, dy, wSum float64
			for _, j := range nn {
				sj := m.S.RawRowView(j)
				for g := range delta {
					delta[g] = sj[g] - si[g]
				}
				w := stat.Correlation(vi, delta, nil)
				if math.IsNaN(w) || w <= 0 {
					continue
				}
				ex := proj.X[j] - proj.X[i]
				ey := proj.Y[j] - proj.Y[i]
				norm := math.Hypot(ex, ey)
				if norm == 0 {
					continue
				}
				dx += w * ex / norm
				dy += w * ey / norm
				wSum += w
			}
			if wSum > 0 {
				proj.DX[i] = dx / wSum
				proj.DY[i] = dy / wSum
			}
		}
	})
	return proj, nil
}

// nearest returns the indices of the k nearest neighbours of cell i
// in pcs by Euclidean distance. idx is scratch space of length
// nCells.
func nearest(pcs *mat.Dense, i, k int, idx []int) []int {
	nCells, d := pcs.Dims()
	ri := pcs.RawRowView(i)
	dists := make([]float64, nCells)
	for j := 0; j < nCells; j++ {
		idx[j] = j
		if j == i {
			dists[j] = math.Inf(1)
			continue
		}
		rj := pcs.RawRowView(j)
		var sum float64
		for c := 0; c < d; c++ {
			dv := ri[c] - rj[c]
			sum += dv * dv
		}
		dists[j] = sum
	}
	sort.Slice(idx, func(a, b int) bool { return dists[idx[a]] < dists[idx[b]] })
	return append([]int(nil), idx[:k]...)
}

// Field is a grid averaged velocity field over the embedding bounding
// box. Only grid cells containing data are present.
type Field struct {
	X, Y   []float64
	DX, DY []float64
}

// Grid averages the per-cell arrows of proj on an n×n grid.
func (proj *Projection) Grid(n int) *Field {
	if n < 1 || len(proj.X) == 0 {
		return &Field{}
	}
	xMin, xMax := bounds(proj.X)
	yMin, yMax := bounds(proj.Y)
	if xMax == xMin {
		xMax = xMin + 1
	}
	if yMax == yMin {
		yMax = yMin + 1
	}
	xStep := (xMax - xMin) / float64(n)
	yStep := (yMax - yMin) / float64(n)

	type cell struct {
		dx, dy float64
		n      int
	}
	grid := make([]cell, n*n)
	for i := range proj.X {
		gx := int((proj.X[i] - xMin) / xStep)
		gy := int((proj.Y[i] - yMin) / yStep)
		if gx >= n {
			gx = n - 1
		}
		if gy >= n {
			gy = n - 1
		}
		c := &grid[gy*n+gx]
		c.dx += proj.DX[i]
		c.dy += proj.DY[i]
		c.n++
	}

	field := &Field{}
	for gy := 0; gy < n; gy++ {
		for gx := 0; gx < n; gx++ {
			c := grid[gy*n+gx]
			if c.n == 0 {
				continue
			}
			field.X = append(field.X, xMin+(float64(gx)+0.5)*xStep)
			field.Y = append(field.Y, yMin+(float64(gy)+0.5)*yStep)
			field.DX = append(field.DX, c.dx/float64(c.n))
			field.DY = append(field.DY, c.dy/float64(c.n))
		}
	}
	return field
}

func bounds(s []float64) (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range s {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
