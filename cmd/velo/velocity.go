// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/kevinrue/velo/internal/counts"
	"github.com/kevinrue/velo/internal/mtx"
	"github.com/kevinrue/velo/internal/velocity"
)

type velocityOpts struct {
	inDir      string
	outDir     string
	neighbours int
	grid       int
	qLow       float64
	qHigh      float64
	minExtreme int
	genes      string
}

func velocityCommand(args []string) error {
	fs := flag.NewFlagSet("velocity", flag.ExitOnError)
	var opts velocityOpts
	fs.StringVar(&opts.inDir, "in", "", "directory written by velo import (required)")
	fs.StringVar(&opts.outDir, "out", "velocity", "output directory")
	fs.IntVar(&opts.neighbours, "k", 30, "nearest neighbours for the embedding projection")
	fs.IntVar(&opts.grid, "grid", 25, "velocity field grid resolution")
	fs.Float64Var(&opts.qLow, "qlow", 0.05, "lower steady-state quantile")
	fs.Float64Var(&opts.qHigh, "qhigh", 0.95, "upper steady-state quantile")
	fs.IntVar(&opts.minExtreme, "min-extreme", 10, "minimum extreme cells per gene fit")
	fs.StringVar(&opts.genes, "genes", "", "comma separated genes to render phase portraits for")
	fs.Parse(args)

	if opts.inDir == "" {
		fs.Usage()
		os.Exit(2)
	}
	return runVelocity(opts)
}

func runVelocity(opts velocityOpts) error {
	log.Println("[loading reshaped matrices]")
	spliced, err := mtx.ReadTSV(filepath.Join(opts.inDir, "spliced.tsv.gz"))
	if err != nil {
		return err
	}
	unspliced, err := mtx.ReadTSV(filepath.Join(opts.inDir, "unspliced.tsv.gz"))
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(spliced.Rows, unspliced.Rows) || !reflect.DeepEqual(spliced.Cols, unspliced.Cols) {
		return fmt.Errorf("velocity: spliced and unspliced matrices in %s do not share cell and gene orderings", opts.inDir)
	}
	embedding, err := mtx.ReadTSV(filepath.Join(opts.inDir, "embedding.tsv"))
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(embedding.Rows, spliced.Rows) {
		return fmt.Errorf("velocity: embedding in %s does not share the matrices' cell ordering", opts.inDir)
	}

	pair := &counts.Pair{
		Cells:     spliced.Rows,
		Genes:     spliced.Cols,
		Spliced:   spliced.Data,
		Unspliced: unspliced.Data,
	}

	log.Println("[fitting steady-state model]")
	model, err := velocity.Fit(pair, velocity.FitConfig{
		QuantileLow:  opts.qLow,
		QuantileHigh: opts.qHigh,
		MinExtreme:   opts.minExtreme,
	})
	if err != nil {
		return err
	}
	log.Printf("velocity: fitted %d of %d genes", len(model.Genes), len(pair.Genes))

	log.Println("[projecting velocities]")
	proj, err := velocity.Project(embedding.Data, model, opts.neighbours)
	if err != nil {
		return err
	}
	field := proj.Grid(opts.grid)

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}
	if err := writeVelocityTSV(filepath.Join(opts.outDir, "velocity.tsv"), pair.Cells, proj); err != nil {
		return err
	}
	if err := writeGammaTSV(filepath.Join(opts.outDir, "gamma.tsv"), model); err != nil {
		return err
	}

	log.Println("[rendering]")
	scale := arrowScale(proj, opts.grid)
	if err := velocity.StreamPlot(filepath.Join(opts.outDir, "velocity.png"), proj, field, scale); err != nil {
		return err
	}
	return phasePlots(opts, model)
}

// arrowScale sizes unit arrows to a fraction of a grid step.
func arrowScale(proj *velocity.Projection, grid int) float64 {
	if len(proj.X) == 0 || grid < 1 {
		return 1
	}
	xMin, xMax := proj.X[0], proj.X[0]
	for _, x := range proj.X {
		if x < xMin {
			xMin = x
		}
		if x > xMax {
			xMax = x
		}
	}
	if xMax == xMin {
		return 1
	}
	return 0.8 * (xMax - xMin) / float64(grid)
}

func phasePlots(opts velocityOpts, model *velocity.Model) error {
	if opts.genes == "" {
		return nil
	}
	idx := make(map[string]int, len(model.Genes))
	for i, g := range model.Genes {
		idx[g] = i
	}
	nCells, _ := model.S.Dims()
	s := make([]float64, nCells)
	u := make([]float64, nCells)
	for _, gene := range strings.Split(opts.genes, ",") {
		j, ok := idx[gene]
		if !ok {
			log.Printf("velocity: no fit for gene %s; skipping phase portrait", gene)
			continue
		}
		for i := 0; i < nCells; i++ {
			s[i] = model.S.At(i, j)
			u[i] = model.U.At(i, j)
		}
		path := filepath.Join(opts.outDir, fmt.Sprintf("phase_%s.png", gene))
		if err := velocity.PhasePlot(path, gene, s, u, model.Gamma[j]); err != nil {
			return err
		}
	}
	return nil
}

func writeVelocityTSV(path string, cells []string, proj *velocity.Projection) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := fmt.Fprintln(f, "cell\tx\ty\tdx\tdy"); err != nil {
		return err
	}
	for i, cell := range cells {
		_, err := fmt.Fprintf(f, "%s\t%v\t%v\t%v\t%v\n", cell, proj.X[i], proj.Y[i], proj.DX[i], proj.DY[i])
		if err != nil {
			return err
		}
	}
	return nil
}

func writeGammaTSV(path string, model *velocity.Model) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := fmt.Fprintln(f, "gene\tgamma\tr"); err != nil {
		return err
	}
	for i, gene := range model.Genes {
		if _, err := fmt.Fprintf(f, "%s\t%v\t%v\n", gene, model.Gamma[i], model.R[i]); err != nil {
			return err
		}
	}
	return nil
}
