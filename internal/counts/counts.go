// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package counts reshapes a quantified feature matrix into paired
// spliced and unspliced gene matrices and prepares them for velocity
// estimation.
package counts

import (
	"fmt"
	"log"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/kevinrue/velo/internal/mtx"
	"github.com/kevinrue/velo/internal/reference"
)

// Pair holds same-shaped spliced and unspliced count matrices over a
// common cell and gene ordering. Matrices are cells×genes.
type Pair struct {
	Cells []string
	Genes []string

	Spliced   *mat.Dense
	Unspliced *mat.Dense
}

// Split partitions the feature columns of m into spliced and
// unspliced gene counts using the identifier mappings of a t2g table.
// Columns of the same gene and status are summed. Feature identifiers
// absent from the table are logged and dropped.
func Split(m *mtx.Matrix, gene, status map[string]string) (*Pair, error) {
	nCells := len(m.Rows)

	geneSet := make(map[string]bool)
	var unmapped int
	for _, id := range m.Cols {
		g, ok := gene[id]
		if !ok {
			unmapped++
			continue
		}
		geneSet[g] = true
	}
	if unmapped != 0 {
		log.Printf("counts: %d of %d features not in t2g table", unmapped, len(m.Cols))
	}
	if len(geneSet) == 0 {
		return nil, fmt.Errorf("counts: no features map to genes")
	}

	genes := make([]string, 0, len(geneSet))
	for g := range geneSet {
		genes = append(genes, g)
	}
	sort.Strings(genes)
	geneIdx := make(map[string]int, len(genes))
	for i, g := range genes {
		geneIdx[g] = i
	}

	p := &Pair{
		Cells:     append([]string(nil), m.Rows...),
		Genes:     genes,
		Spliced:   mat.NewDense(nCells, len(genes), nil),
		Unspliced: mat.NewDense(nCells, len(genes), nil),
	}
	for col, id := range m.Cols {
		g, ok := gene[id]
		if !ok {
			continue
		}
		dst := p.Spliced
		if status[id] == reference.StatusUnspliced {
			dst = p.Unspliced
		}
		j := geneIdx[g]
		for r := 0; r < nCells; r++ {
			if v := m.Data.At(r, col); v != 0 {
				dst.Set(r, j, dst.At(r, j)+v)
			}
		}
	}
	return p, nil
}

// Matrices returns the pair as named matrices sharing cell and gene
// orderings, for interchange via the TSV matrix format.
func (p *Pair) Matrices() (spliced, unspliced *mtx.Matrix) {
	spliced = &mtx.Matrix{Rows: p.Cells, Cols: p.Genes, Data: p.Spliced}
	unspliced = &mtx.Matrix{Rows: p.Cells, Cols: p.Genes, Data: p.Unspliced}
	return spliced, unspliced
}
