// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/kevinrue/velo/internal/salmon"
)

type indexOpts struct {
	refDir   string
	gtfPath  string
	indexDir string
	k        int
	threads  int
	exec     string
}

func indexCommand(args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	var opts indexOpts
	fs.StringVar(&opts.refDir, "ref", "", "reference directory written by velo reference (required)")
	fs.StringVar(&opts.gtfPath, "gtf", "", "annotation the reference was built from, recorded in the linked transcriptome")
	fs.StringVar(&opts.indexDir, "index", "", "output index directory (default <ref>/index)")
	fs.IntVar(&opts.k, "k", 31, "k-mer length")
	fs.IntVar(&opts.threads, "threads", 0, "indexing threads (0 leaves the choice to salmon)")
	fs.StringVar(&opts.exec, "salmon", "", "salmon binary to invoke")
	fs.Parse(args)

	if opts.refDir == "" {
		fs.Usage()
		os.Exit(2)
	}
	return runIndex(opts)
}

func runIndex(opts indexOpts) error {
	if opts.indexDir == "" {
		opts.indexDir = filepath.Join(opts.refDir, "index")
	}
	fasta := filepath.Join(opts.refDir, "transcripts.fa")
	t2g := filepath.Join(opts.refDir, "t2g_velocity.tsv")

	r := &salmon.Runner{Exec: opts.exec}
	ctx := context.Background()
	version, err := r.Version(ctx)
	if err != nil {
		return err
	}
	log.Printf("index: salmon %s", version)

	log.Println("[building index]")
	err = r.Index(ctx, salmon.IndexConfig{
		Fasta:   fasta,
		Dir:     opts.indexDir,
		K:       opts.k,
		Threads: opts.threads,
	})
	if err != nil {
		return err
	}

	log.Println("[linking transcriptome]")
	if opts.gtfPath == "" {
		log.Println("index: no -gtf given; linked transcriptome will not record an annotation source")
	}
	linked, err := salmon.Link(opts.indexDir, fasta, opts.gtfPath, t2g, version)
	if err != nil {
		return err
	}
	if err := linked.Write(filepath.Join(opts.indexDir, salmon.LinkedFile)); err != nil {
		return err
	}
	log.Printf("index: linked transcriptome %s", linked.ID)
	return nil
}
