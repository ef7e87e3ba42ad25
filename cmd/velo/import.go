// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/kevinrue/velo/internal/counts"
	"github.com/kevinrue/velo/internal/mtx"
	"github.com/kevinrue/velo/internal/reference"
	"github.com/kevinrue/velo/internal/salmon"
)

type importOpts struct {
	quantDir  string
	t2g       string
	indexDir  string
	outDir    string
	minShared float64
	minCells  int
	pcs       int
	progress  bool
}

// importSummary is written next to the reshaped matrices.
type importSummary struct {
	Cells       int     `json:"cells"`
	Features    int     `json:"features"`
	Genes       int     `json:"genes"`
	GenesKept   int     `json:"genes_kept"`
	MedianDepth float64 `json:"median_depth"`
	Components  int     `json:"components"`
	LinkedID    string  `json:"linked_txome,omitempty"`
}

func importCommand(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	var opts importOpts
	fs.StringVar(&opts.quantDir, "quant", "", "alevin output directory containing the matrix triplet (required)")
	fs.StringVar(&opts.t2g, "t2g", "", "transcript-to-gene table (required)")
	fs.StringVar(&opts.indexDir, "index", "", "index directory; its linked transcriptome is checked against the t2g table when present")
	fs.StringVar(&opts.outDir, "out", "counts", "output directory")
	fs.Float64Var(&opts.minShared, "min-shared", 20, "minimum summed shared counts per kept gene")
	fs.IntVar(&opts.minCells, "min-cells", 10, "minimum cells expressing both forms per kept gene")
	fs.IntVar(&opts.pcs, "pcs", 30, "number of principal components for the embedding")
	fs.BoolVar(&opts.progress, "progress", true, "show a progress bar while reading the matrix")
	fs.Parse(args)

	if opts.quantDir == "" || opts.t2g == "" {
		fs.Usage()
		os.Exit(2)
	}
	return runImport(opts)
}

func runImport(opts importOpts) error {
	var linkedID string
	if opts.indexDir != "" {
		linked, err := salmon.LoadLinked(filepath.Join(opts.indexDir, salmon.LinkedFile))
		switch {
		case err == nil:
			if err := linked.CheckT2G(opts.t2g); err != nil {
				return err
			}
			linkedID = linked.ID
			log.Printf("import: counts recognised as linked transcriptome %s", linkedID)
		case os.IsNotExist(err):
			log.Printf("import: no linked transcriptome in %s", opts.indexDir)
		default:
			return err
		}
	}

	log.Println("[loading count data]")
	gene, status, err := reference.ReadT2G(opts.t2g)
	if err != nil {
		return err
	}
	m, err := mtx.ReadDir(opts.quantDir, opts.progress)
	if err != nil {
		return err
	}
	log.Printf("import: %d cells × %d features", len(m.Rows), len(m.Cols))

	log.Println("[splitting spliced and unspliced counts]")
	pair, err := counts.Split(m, gene, status)
	if err != nil {
		return err
	}
	nGenes := len(pair.Genes)

	log.Println("[filtering genes]")
	pair = pair.Filter(opts.minShared, opts.minCells)
	if len(pair.Genes) == 0 {
		return fmt.Errorf("import: no gene passed filtering (min-shared %v, min-cells %d)",
			opts.minShared, opts.minCells)
	}
	log.Printf("import: kept %d of %d genes", len(pair.Genes), nGenes)

	log.Println("[normalizing]")
	median := pair.Normalize()

	log.Println("[computing embedding]")
	scores, _, err := counts.PCA(pair.Spliced, opts.pcs)
	if err != nil {
		return err
	}
	_, nComp := scores.Dims()

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}
	spliced, unspliced := pair.Matrices()
	if err := mtx.WriteTSV(filepath.Join(opts.outDir, "spliced.tsv.gz"), spliced); err != nil {
		return err
	}
	if err := mtx.WriteTSV(filepath.Join(opts.outDir, "unspliced.tsv.gz"), unspliced); err != nil {
		return err
	}
	pcNames := make([]string, nComp)
	for i := range pcNames {
		pcNames[i] = fmt.Sprintf("PC%d", i+1)
	}
	embedding := &mtx.Matrix{Rows: pair.Cells, Cols: pcNames, Data: scores}
	if err := mtx.WriteTSV(filepath.Join(opts.outDir, "embedding.tsv"), embedding); err != nil {
		return err
	}

	summary := importSummary{
		Cells:       len(pair.Cells),
		Features:    len(m.Cols),
		Genes:       nGenes,
		GenesKept:   len(pair.Genes),
		MedianDepth: median,
		Components:  nComp,
		LinkedID:    linkedID,
	}
	b, err := json.MarshalIndent(summary, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(opts.outDir, "import.json"), b, 0o644)
}
