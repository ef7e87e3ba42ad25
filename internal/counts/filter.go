// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package counts

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/mat"
)

// Filter returns a new Pair keeping only genes whose spliced and
// unspliced counts are jointly detected: at least minCells cells must
// express both forms, and the summed shared counts (the per-cell
// minimum of the two forms) must reach minShared.
func (p *Pair) Filter(minShared float64, minCells int) *Pair {
	nCells := len(p.Cells)

	var keep []int
	for j := range p.Genes {
		s := detected(p.Spliced, j, nCells)
		u := detected(p.Unspliced, j, nCells)
		shared := s.Intersection(u)
		if int(shared.Count()) < minCells {
			continue
		}
		var sum float64
		for i, ok := shared.NextSet(0); ok; i, ok = shared.NextSet(i + 1) {
			sum += math.Min(p.Spliced.At(int(i), j), p.Unspliced.At(int(i), j))
		}
		if sum >= minShared {
			keep = append(keep, j)
		}
	}

	if len(keep) == 0 {
		return &Pair{Cells: p.Cells}
	}
	out := &Pair{
		Cells:     p.Cells,
		Genes:     make([]string, len(keep)),
		Spliced:   mat.NewDense(nCells, len(keep), nil),
		Unspliced: mat.NewDense(nCells, len(keep), nil),
	}
	for jj, j := range keep {
		out.Genes[jj] = p.Genes[j]
		for i := 0; i < nCells; i++ {
			out.Spliced.Set(i, jj, p.Spliced.At(i, j))
			out.Unspliced.Set(i, jj, p.Unspliced.At(i, j))
		}
	}
	return out
}

// detected returns the set of cells with non-zero counts for gene
// column j.
func detected(m *mat.Dense, j, nCells int) *bitset.BitSet {
	b := bitset.New(uint(nCells))
	for i := 0; i < nCells; i++ {
		if m.At(i, j) > 0 {
			b.Set(uint(i))
		}
	}
	return b
}
