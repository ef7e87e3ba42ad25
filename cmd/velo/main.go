// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// velo is an RNA velocity quantification pipeline. It prepares an
// expanded transcriptome (spliced transcripts and flanked introns)
// from a genome and a GTF annotation, drives salmon to index the
// transcriptome and quantify single-cell reads against it, reshapes
// the resulting count matrix into spliced and unspliced gene
// matrices, and estimates per-cell velocity with the steady-state
// ratio model, rendering the velocity field over a PCA embedding.
//
// The five stages hand off through files on disk and can be run
// individually or in sequence from a YAML configuration:
//
//	velo reference -genome genome.fa -gtf ann.gtf -out ref
//	velo index -ref ref -index ref/index
//	velo quant -index ref/index -1 r1.fq.gz -2 r2.fq.gz -t2g ref/t2g_velocity.tsv -out quant
//	velo import -quant quant/alevin -t2g ref/t2g_velocity.tsv -out counts
//	velo velocity -in counts -out velocity
//	velo run -config pipeline.yaml
package main

import (
	"fmt"
	"log"
	"os"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: reference, index, quant, import, velocity, run")
	fmt.Fprint(os.Stderr, `
reference  extract spliced transcript and flanked intron sequences
index      build a salmon index over the expanded transcriptome
quant      run salmon alevin per-cell quantification
import     split the count matrix into spliced/unspliced gene matrices
velocity   fit the steady-state model and render the velocity field
run        run all stages from a YAML configuration
`)
}

func main() {
	if len(os.Args) < 2 {
		log.Println("missing command")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "reference":
		err = referenceCommand(os.Args[2:])
	case "index":
		err = indexCommand(os.Args[2:])
	case "quant":
		err = quantCommand(os.Args[2:])
	case "import":
		err = importCommand(os.Args[2:])
	case "velocity":
		err = velocityCommand(os.Args[2:])
	case "run":
		err = runCommand(os.Args[2:])
	case "help", "-help", "--help", "-h":
		printHelp()
	default:
		log.Printf("unknown command %q", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
