// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package velocity estimates per-cell RNA velocity from paired
// spliced and unspliced abundances with the steady-state ratio model,
// and renders the velocity field over a low dimensional embedding.
package velocity

import (
	"fmt"
	"sort"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/kevinrue/velo/internal/counts"
)

// FitConfig holds the steady-state fit parameters.
type FitConfig struct {
	// QuantileLow and QuantileHigh bound the presumed steady-state
	// cells: only cells whose total abundance falls outside
	// [QuantileLow, QuantileHigh] enter the gamma fit.
	QuantileLow, QuantileHigh float64

	// MinExtreme is the minimum number of extreme cells required
	// for a valid fit.
	MinExtreme int
}

// DefaultFitConfig returns the default steady-state parameters.
func DefaultFitConfig() FitConfig {
	return FitConfig{QuantileLow: 0.05, QuantileHigh: 0.95, MinExtreme: 10}
}

// Model is a fitted steady-state velocity model. Matrices are
// cells×genes over the genes that admitted a valid fit.
type Model struct {
	Genes []string

	// Gamma is the steady-state ratio per gene, R the Pearson
	// correlation of spliced and unspliced abundance over the
	// extreme cells used in the fit.
	Gamma []float64
	R     []float64

	// S and U are the spliced and unspliced abundances of the
	// kept genes; V holds the residual velocities u − γ·s.
	S, U, V *mat.Dense
}

type geneFit struct {
	gamma, r float64
	ok       bool
}

// Fit estimates gamma for every gene of p and returns the model over
// the genes with valid fits. Genes whose extreme set is too small,
// whose spliced abundance does not vary, or whose fitted gamma is not
// positive are dropped.
func Fit(p *counts.Pair, cfg FitConfig) (*Model, error) {
	if len(p.Genes) == 0 {
		return nil, fmt.Errorf("velocity: no genes to fit")
	}
	if !(0 <= cfg.QuantileLow && cfg.QuantileLow < cfg.QuantileHigh && cfg.QuantileHigh <= 1) {
		return nil, fmt.Errorf("velocity: invalid steady-state quantiles [%v, %v]", cfg.QuantileLow, cfg.QuantileHigh)
	}
	nCells := len(p.Cells)

	fits := make([]geneFit, len(p.Genes))
	parallel.Range(0, len(p.Genes), 0, func(low, high int) {
		s := make([]float64, nCells)
		u := make([]float64, nCells)
		total := make([]float64, nCells)
		for j := low; j < high; j++ {
			mat.Col(s, j, p.Spliced)
			mat.Col(u, j, p.Unspliced)
			for i := range total {
				total[i] = s[i] + u[i]
			}
			fits[j] = fitGene(s, u, total, cfg)
		}
	})

	var kept int
	for _, f := range fits {
		if f.ok {
			kept++
		}
	}
	if kept == 0 {
		return nil, fmt.Errorf("velocity: no gene admitted a steady-state fit")
	}

	m := &Model{
		Genes: make([]string, 0, kept),
		Gamma: make([]float64, 0, kept),
		R:     make([]float64, 0, kept),
		S:     mat.NewDense(nCells, kept, nil),
		U:     mat.NewDense(nCells, kept, nil),
		V:     mat.NewDense(nCells, kept, nil),
	}
	col := make([]float64, nCells)
	for j, f := range fits {
		if !f.ok {
			continue
		}
		jj := len(m.Genes)
		m.Genes = append(m.Genes, p.Genes[j])
		m.Gamma = append(m.Gamma, f.gamma)
		m.R = append(m.R, f.r)
		mat.Col(col, j, p.Spliced)
		m.S.SetCol(jj, col)
		sCol := append([]float64(nil), col...)
		mat.Col(col, j, p.Unspliced)
		m.U.SetCol(jj, col)
		for i := range col {
			col[i] -= f.gamma * sCol[i]
		}
		m.V.SetCol(jj, col)
	}
	return m, nil
}

// fitGene fits gamma for a single gene by through-origin regression
// of unspliced on spliced over the extreme cells.
func fitGene(s, u, total []float64, cfg FitConfig) geneFit {
	sorted := append([]float64(nil), total...)
	sort.Float64s(sorted)
	lo := stat.Quantile(cfg.QuantileLow, stat.Empirical, sorted, nil)
	hi := stat.Quantile(cfg.QuantileHigh, stat.Empirical, sorted, nil)

	var sx, ux []float64
	for i, t := range total {
		if t <= lo || t >= hi {
			sx = append(sx, s[i])
			ux = append(ux, u[i])
		}
	}
	if len(sx) < cfg.MinExtreme {
		return geneFit{}
	}
	var ss, su float64
	for i := range sx {
		ss += sx[i] * sx[i]
		su += sx[i] * ux[i]
	}
	if ss == 0 {
		return geneFit{}
	}
	gamma := su / ss
	if gamma <= 0 {
		return geneFit{}
	}
	return geneFit{gamma: gamma, r: stat.Correlation(sx, ux, nil), ok: true}
}
