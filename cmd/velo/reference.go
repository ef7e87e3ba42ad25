// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"log"
	"os"

	"github.com/kevinrue/velo/internal/reference"
)

func referenceCommand(args []string) error {
	fs := flag.NewFlagSet("reference", flag.ExitOnError)
	var cfg reference.Config
	fs.StringVar(&cfg.GenomePath, "genome", "", "genome FASTA (optionally gzip compressed - required)")
	fs.StringVar(&cfg.GTFPath, "gtf", "", "GTF annotation (optionally gzip compressed - required)")
	fs.IntVar(&cfg.Flank, "flank", 90, "intron flank length in bases")
	fs.StringVar(&cfg.OutDir, "out", "ref", "output directory")
	fs.Parse(args)

	if cfg.GenomePath == "" || cfg.GTFPath == "" {
		fs.Usage()
		os.Exit(2)
	}
	return runReference(cfg)
}

func runReference(cfg reference.Config) error {
	log.Println("[extracting reference features]")
	res, err := reference.Build(cfg)
	if err != nil {
		return err
	}
	log.Printf("reference: %d spliced transcripts, %d introns over %d genes (%d transcripts skipped)",
		res.Transcripts, res.Introns, res.Genes, res.Skipped)
	return nil
}
