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
	"strings"

	"github.com/spf13/viper"

	"github.com/kevinrue/velo/internal/reference"
)

// runCommand executes the whole pipeline from a YAML configuration.
// Stages run in order and the first failure stops the run with the
// stage named in the error.
func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	config := fs.String("config", "", "pipeline configuration in YAML format (required)")
	outDirFlag := fs.String("out", "", "output directory, overriding the configuration")
	salmonFlag := fs.String("salmon", "", "salmon binary to invoke, overriding the configuration")
	fs.Parse(args)

	if *config == "" {
		fs.Usage()
		os.Exit(2)
	}

	v := viper.New()
	v.SetConfigFile(*config)
	v.SetDefault("outdir", "velo-out")
	v.SetDefault("salmon", "")
	v.SetDefault("reference.flank", 90)
	v.SetDefault("index.k", 31)
	v.SetDefault("index.threads", 0)
	v.SetDefault("quant.chemistry", "chromiumV3")
	v.SetDefault("quant.expect_cells", 0)
	v.SetDefault("quant.threads", 0)
	v.SetDefault("import.min_shared", 20.0)
	v.SetDefault("import.min_cells", 10)
	v.SetDefault("import.pcs", 30)
	v.SetDefault("import.progress", true)
	v.SetDefault("velocity.k", 30)
	v.SetDefault("velocity.grid", 25)
	v.SetDefault("velocity.qlow", 0.05)
	v.SetDefault("velocity.qhigh", 0.95)
	v.SetDefault("velocity.min_extreme", 10)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("run: read config: %w", err)
	}
	if *outDirFlag != "" {
		v.Set("outdir", *outDirFlag)
	}
	if *salmonFlag != "" {
		v.Set("salmon", *salmonFlag)
	}
	for _, key := range []string{"genome", "gtf", "quant.mates1", "quant.mates2"} {
		if !v.IsSet(key) {
			return fmt.Errorf("run: config is missing %s", key)
		}
	}

	outDir := v.GetString("outdir")
	refDir := filepath.Join(outDir, "ref")
	indexDir := filepath.Join(refDir, "index")
	quantDir := filepath.Join(outDir, "quant")
	countsDir := filepath.Join(outDir, "counts")
	velDir := filepath.Join(outDir, "velocity")
	t2g := filepath.Join(refDir, "t2g_velocity.tsv")

	log.Printf("run: configuration %s", v.ConfigFileUsed())

	err := runReference(reference.Config{
		GenomePath: v.GetString("genome"),
		GTFPath:    v.GetString("gtf"),
		Flank:      v.GetInt("reference.flank"),
		OutDir:     refDir,
	})
	if err != nil {
		return fmt.Errorf("run: reference stage: %w", err)
	}

	err = runIndex(indexOpts{
		refDir:   refDir,
		gtfPath:  v.GetString("gtf"),
		indexDir: indexDir,
		k:        v.GetInt("index.k"),
		threads:  v.GetInt("index.threads"),
		exec:     v.GetString("salmon"),
	})
	if err != nil {
		return fmt.Errorf("run: index stage: %w", err)
	}

	err = runQuant(quantOpts{
		indexDir:    indexDir,
		mates1:      strings.Join(v.GetStringSlice("quant.mates1"), ","),
		mates2:      strings.Join(v.GetStringSlice("quant.mates2"), ","),
		chemistry:   v.GetString("quant.chemistry"),
		t2g:         t2g,
		outDir:      quantDir,
		expectCells: v.GetInt("quant.expect_cells"),
		threads:     v.GetInt("quant.threads"),
		exec:        v.GetString("salmon"),
	})
	if err != nil {
		return fmt.Errorf("run: quant stage: %w", err)
	}

	err = runImport(importOpts{
		quantDir:  filepath.Join(quantDir, "alevin"),
		t2g:       t2g,
		indexDir:  indexDir,
		outDir:    countsDir,
		minShared: v.GetFloat64("import.min_shared"),
		minCells:  v.GetInt("import.min_cells"),
		pcs:       v.GetInt("import.pcs"),
		progress:  v.GetBool("import.progress"),
	})
	if err != nil {
		return fmt.Errorf("run: import stage: %w", err)
	}

	err = runVelocity(velocityOpts{
		inDir:      countsDir,
		outDir:     velDir,
		neighbours: v.GetInt("velocity.k"),
		grid:       v.GetInt("velocity.grid"),
		qLow:       v.GetFloat64("velocity.qlow"),
		qHigh:      v.GetFloat64("velocity.qhigh"),
		minExtreme: v.GetInt("velocity.min_extreme"),
		genes:      strings.Join(v.GetStringSlice("velocity.genes"), ","),
	})
	if err != nil {
		return fmt.Errorf("run: velocity stage: %w", err)
	}

	log.Printf("run: pipeline complete in %s", outDir)
	return nil
}
