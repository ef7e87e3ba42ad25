// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package counts

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA projects the cells of m onto its first k principal components,
// returning the cells×k score matrix and the variance explained by
// each kept component. k is clipped to the number of informative
// dimensions.
func PCA(m *mat.Dense, k int) (*mat.Dense, []float64, error) {
	rows, cols := m.Dims()
	if d := min(rows, cols); k > d {
		k = d
	}
	if k < 1 {
		return nil, nil, fmt.Errorf("counts: cannot compute %d components from %dx%d matrix", k, rows, cols)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(m, nil); !ok {
		return nil, nil, fmt.Errorf("counts: principal component factorisation failed for %dx%d matrix", rows, cols)
	}
	var vec mat.Dense
	pc.VectorsTo(&vec)
	vars := pc.VarsTo(nil)

	// Scores are the column-centered data projected onto the
	// component vectors.
	centered := mat.DenseCopyOf(m)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		var mean float64
		for _, v := range col {
			mean += v
		}
		mean /= float64(rows)
		for i := 0; i < rows; i++ {
			centered.Set(i, j, col[i]-mean)
		}
	}

	var scores mat.Dense
	scores.Mul(centered, vec.Slice(0, cols, 0, k))
	if len(vars) > k {
		vars = vars[:k]
	}
	return &scores, vars, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
