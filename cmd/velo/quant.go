// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/kevinrue/velo/internal/salmon"
)

type quantOpts struct {
	indexDir    string
	mates1      string
	mates2      string
	chemistry   string
	t2g         string
	outDir      string
	expectCells int
	threads     int
	exec        string
}

func quantCommand(args []string) error {
	fs := flag.NewFlagSet("quant", flag.ExitOnError)
	var opts quantOpts
	fs.StringVar(&opts.indexDir, "index", "", "salmon index directory (required)")
	fs.StringVar(&opts.mates1, "1", "", "comma separated barcode+UMI read files (required)")
	fs.StringVar(&opts.mates2, "2", "", "comma separated cDNA read files (required)")
	fs.StringVar(&opts.chemistry, "chemistry", "chromiumV3", "single-cell chemistry: chromium or chromiumV3")
	fs.StringVar(&opts.t2g, "t2g", "", "transcript-to-gene table (required)")
	fs.StringVar(&opts.outDir, "out", "quant", "output directory")
	fs.IntVar(&opts.expectCells, "expect-cells", 0, "expected cell count passed to alevin (0 omits the flag)")
	fs.IntVar(&opts.threads, "threads", 0, "quantification threads (0 leaves the choice to salmon)")
	fs.StringVar(&opts.exec, "salmon", "", "salmon binary to invoke")
	fs.Parse(args)

	if opts.indexDir == "" || opts.mates1 == "" || opts.mates2 == "" || opts.t2g == "" {
		fs.Usage()
		os.Exit(2)
	}
	return runQuant(opts)
}

func runQuant(opts quantOpts) error {
	r := &salmon.Runner{Exec: opts.exec}
	log.Println("[quantifying reads]")
	err := r.Alevin(context.Background(), salmon.AlevinConfig{
		IndexDir:    opts.indexDir,
		Mates1:      strings.Split(opts.mates1, ","),
		Mates2:      strings.Split(opts.mates2, ","),
		Chemistry:   opts.chemistry,
		T2G:         opts.t2g,
		OutDir:      opts.outDir,
		ExpectCells: opts.expectCells,
		Threads:     opts.threads,
	})
	if err != nil {
		return err
	}
	log.Printf("quant: wrote %s", opts.outDir)
	return nil
}
