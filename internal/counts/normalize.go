// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package counts

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Normalize scales each cell of both matrices to the median total
// count of its own matrix and applies log1p. It returns the median
// spliced depth used as the spliced scaling target. Cells with zero
// total are left unscaled, as is a whole matrix whose median total is
// zero; log1p is applied regardless.
func (p *Pair) Normalize() float64 {
	medianSpliced := normalizeDense(p.Spliced)
	normalizeDense(p.Unspliced)
	return medianSpliced
}

func normalizeDense(m *mat.Dense) float64 {
	rows, _ := m.Dims()
	totals := make([]float64, rows)
	for i := 0; i < rows; i++ {
		totals[i] = floats.Sum(m.RawRowView(i))
	}
	sorted := append([]float64(nil), totals...)
	sort.Float64s(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		if median > 0 && totals[i] > 0 {
			floats.Scale(median/totals[i], row)
		}
		for j, v := range row {
			row[j] = math.Log1p(v)
		}
	}
	return median
}
