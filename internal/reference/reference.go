// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reference builds an expanded transcriptome from a genome
// and a GTF annotation: spliced transcript sequences and flanked
// intron sequences, with the transcript-to-gene table binding both
// kinds of entry to common gene identifiers.
package reference

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/exascience/pargo/parallel"

	"github.com/kevinrue/velo/internal/fasta"
	"github.com/kevinrue/velo/internal/feature"
	"github.com/kevinrue/velo/internal/gtf"
)

// Config holds the reference build parameters.
type Config struct {
	// GenomePath is the genome FASTA. If GenomePath+".fai" exists
	// the genome is accessed through the index, otherwise it is
	// streamed one chromosome at a time.
	GenomePath string

	// GTFPath is the annotation, optionally gzip compressed.
	GTFPath string

	// Flank is the number of bases introns are extended by on
	// both sides.
	Flank int

	// OutDir receives transcripts.fa, t2g_velocity.tsv and
	// features.json.
	OutDir string
}

// Entry describes one sequence of the expanded transcriptome.
type Entry struct {
	ID      string `json:"id"`
	Gene    string `json:"gene"`
	Type    string `json:"type"` // "spliced" or "intron"
	Seqname string `json:"seqname"`
	Start   int    `json:"start"` // 0-based half-open
	End     int    `json:"end"`
	Strand  string `json:"strand"`
}

// Spliced and unspliced status codes used in the t2g table.
const (
	StatusSpliced   = "S"
	StatusUnspliced = "U"
)

// Result summarises a reference build.
type Result struct {
	Transcripts int
	Introns     int
	Genes       int
	Skipped     int
}

type entrySeq struct {
	Entry
	seq []byte
}

// Build extracts the expanded transcriptome described by cfg.
func Build(cfg Config) (*Result, error) {
	rc, err := gtf.Open(cfg.GTFPath)
	if err != nil {
		return nil, fmt.Errorf("reference: open annotation: %w", err)
	}
	transcripts, err := gtf.Transcripts(gtf.NewDecoder(rc, "exon"))
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("reference: read annotation: %w", err)
	}
	if len(transcripts) == 0 {
		return nil, fmt.Errorf("reference: no transcripts in %s", cfg.GTFPath)
	}

	bySeqname := make(map[string][]*gtf.Transcript)
	for _, tr := range transcripts {
		bySeqname[tr.Seqname] = append(bySeqname[tr.Seqname], tr)
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, err
	}
	fa, err := os.Create(filepath.Join(cfg.OutDir, "transcripts.fa"))
	if err != nil {
		return nil, err
	}
	defer fa.Close()
	fw := fasta.NewWriter(fa, 60)

	res := &Result{}
	genes := make(map[string]bool)
	var entries []Entry

	emit := func(chrom []byte, name string, trs []*gtf.Transcript) error {
		ext := extract(chrom, trs, cfg.Flank)
		for _, e := range ext {
			if err := fw.Write(&fasta.Record{ID: e.ID, Seq: e.seq}); err != nil {
				return err
			}
			entries = append(entries, e.Entry)
			genes[e.Gene] = true
			if e.Type == "spliced" {
				res.Transcripts++
			} else {
				res.Introns++
			}
		}
		return nil
	}

	if _, err := os.Stat(cfg.GenomePath + ".fai"); err == nil {
		err = buildIndexed(cfg.GenomePath, bySeqname, emit, res)
	} else {
		err = buildStreaming(cfg.GenomePath, bySeqname, emit, res)
	}
	if err != nil {
		return nil, err
	}
	if err := fw.Flush(); err != nil {
		return nil, err
	}

	res.Genes = len(genes)
	if err := writeT2G(filepath.Join(cfg.OutDir, "t2g_velocity.tsv"), entries); err != nil {
		return nil, err
	}
	if err := writeFeatures(filepath.Join(cfg.OutDir, "features.json"), entries); err != nil {
		return nil, err
	}
	return res, nil
}

// buildStreaming reads the genome a chromosome at a time, extracting
// entries for any annotated transcripts on each.
func buildStreaming(path string, bySeqname map[string][]*gtf.Transcript, emit func([]byte, string, []*gtf.Transcript) error, res *Result) error {
	r, c, err := fasta.Open(path)
	if err != nil {
		return fmt.Errorf("reference: open genome: %w", err)
	}
	defer c.Close()

	seen := make(map[string]bool)
	for {
		rec, err := r.Read()
		if err != nil {
			if err != io.EOF {
				return fmt.Errorf("reference: read genome: %w", err)
			}
			break
		}
		seen[rec.ID] = true
		trs, ok := bySeqname[rec.ID]
		if !ok {
			continue
		}
		if err := emit(rec.Seq, rec.ID, trs); err != nil {
			return err
		}
	}
	for name, trs := range bySeqname {
		if !seen[name] {
			log.Printf("reference: %d transcripts on %s absent from genome", len(trs), name)
			res.Skipped += len(trs)
		}
	}
	return nil
}

// buildIndexed fetches chromosomes through the .fai index in the
// annotation's seqname order.
func buildIndexed(path string, bySeqname map[string][]*gtf.Transcript, emit func([]byte, string, []*gtf.Transcript) error, res *Result) error {
	ix, err := fasta.OpenIndexed(path)
	if err != nil {
		return fmt.Errorf("reference: open genome index: %w", err)
	}
	defer ix.Close()

	names := make([]string, 0, len(bySeqname))
	for name := range bySeqname {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		trs := bySeqname[name]
		length, ok := ix.Length(name)
		if !ok {
			log.Printf("reference: %d transcripts on %s absent from genome", len(trs), name)
			res.Skipped += len(trs)
			continue
		}
		chrom, err := ix.Fetch(name, 0, length)
		if err != nil {
			return fmt.Errorf("reference: fetch %s: %w", name, err)
		}
		if err := emit(chrom, name, trs); err != nil {
			return err
		}
	}
	return nil
}

// extract derives the spliced and flanked intron entries for the
// transcripts of a single chromosome. Transcript extraction is data
// parallel; intron deduplication within genes is applied to the
// collected result.
func extract(chrom []byte, trs []*gtf.Transcript, flank int) []entrySeq {
	perTranscript := make([][]entrySeq, len(trs))
	parallel.Range(0, len(trs), 0, func(low, high int) {
		for i := low; i < high; i++ {
			perTranscript[i] = transcriptEntries(chrom, trs[i], flank)
		}
	})

	// Identical flanked introns within a gene collapse to the
	// first occurrence.
	type key struct {
		gene       string
		start, end int
	}
	seenIntron := make(map[key]bool)
	var entries []entrySeq
	for _, ext := range perTranscript {
		for _, e := range ext {
			if e.Type == "intron" {
				k := key{e.Gene, e.Start, e.End}
				if seenIntron[k] {
					continue
				}
				seenIntron[k] = true
			}
			entries = append(entries, e)
		}
	}
	return entries
}

func transcriptEntries(chrom []byte, tr *gtf.Transcript, flank int) []entrySeq {
	exons := feature.Exons(tr)
	if exons[len(exons)-1].End > len(chrom) {
		log.Printf("reference: transcript %s extends beyond %s (%d > %d); skipping",
			tr.ID, tr.Seqname, exons[len(exons)-1].End, len(chrom))
		return nil
	}

	var entries []entrySeq

	spliced := make([]byte, 0, feature.Length(exons))
	for _, e := range exons {
		spliced = append(spliced, chrom[e.Start:e.End]...)
	}
	if tr.Strand == '-' {
		spliced = fasta.RevComp(spliced)
	}
	entries = append(entries, entrySeq{
		Entry: Entry{
			ID: tr.ID, Gene: tr.GeneID, Type: "spliced",
			Seqname: tr.Seqname,
			Start:   exons[0].Start, End: exons[len(exons)-1].End,
			Strand: string(tr.Strand),
		},
		seq: spliced,
	})

	introns := feature.Introns(tr, flank, len(chrom))
	for i, iv := range introns {
		id := tr.ID + "-I"
		if len(introns) > 1 {
			id = fmt.Sprintf("%s-I%d", tr.ID, i+1)
		}
		seq := append([]byte(nil), chrom[iv.Start:iv.End]...)
		if tr.Strand == '-' {
			seq = fasta.RevComp(seq)
		}
		entries = append(entries, entrySeq{
			Entry: Entry{
				ID: id, Gene: tr.GeneID, Type: "intron",
				Seqname: tr.Seqname,
				Start:   iv.Start, End: iv.End,
				Strand: string(tr.Strand),
			},
			seq: seq,
		})
	}
	return entries
}

// writeT2G writes the three column transcript-to-gene table used by
// the quantifier and the import stage.
func writeT2G(path string, entries []Entry) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	for _, e := range entries {
		status := StatusSpliced
		if e.Type == "intron" {
			status = StatusUnspliced
		}
		if _, err := fmt.Fprintf(f, "%s\t%s\t%s\n", e.ID, e.Gene, status); err != nil {
			return err
		}
	}
	return nil
}

func writeFeatures(path string, entries []Entry) error {
	b, err := json.MarshalIndent(entries, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ReadT2G reads a transcript-to-gene table written by writeT2G,
// returning the gene and status for each identifier.
func ReadT2G(path string) (gene map[string]string, status map[string]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return parseT2G(f)
}
