// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package salmon

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// stubSalmon writes an executable script standing in for the salmon
// binary.
func stubSalmon(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "salmon")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	r := &Runner{Exec: stubSalmon(t, "echo 'salmon 1.10.2'\n")}
	got, err := r.Version(context.Background())
	if err != nil {
		t.Fatalf("unexpected error probing version: %v", err)
	}
	if got != "1.10.2" {
		t.Errorf("unexpected version: %q != %q", got, "1.10.2")
	}
}

func TestVersionError(t *testing.T) {
	r := &Runner{Exec: stubSalmon(t, "echo 'Exception : [Invalid option]' >&2\nexit 1\n")}
	_, err := r.Version(context.Background())
	if err == nil {
		t.Fatal("expected error from failing version probe")
	}
	if !strings.Contains(err.Error(), "Invalid option") {
		t.Errorf("version probe error does not carry the tool's stderr: %v", err)
	}
}

func TestIndexArgs(t *testing.T) {
	cfg := IndexConfig{Fasta: "ref/transcripts.fa", Dir: "ref/index", K: 31, Threads: 4}
	want := []string{"index", "-t", "ref/transcripts.fa", "-i", "ref/index", "-k", "31", "--threads", "4"}
	if got := cfg.args(); !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected index args:\ngot:  %v\nwant: %v", got, want)
	}

	cfg = IndexConfig{Fasta: "t.fa", Dir: "idx"}
	want = []string{"index", "-t", "t.fa", "-i", "idx"}
	if got := cfg.args(); !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected default index args:\ngot:  %v\nwant: %v", got, want)
	}
}

func TestAlevinArgs(t *testing.T) {
	cfg := AlevinConfig{
		IndexDir:    "idx",
		Mates1:      []string{"a_R1.fq.gz", "b_R1.fq.gz"},
		Mates2:      []string{"a_R2.fq.gz", "b_R2.fq.gz"},
		Chemistry:   "chromiumV3",
		T2G:         "t2g_velocity.tsv",
		OutDir:      "quant",
		ExpectCells: 100,
		Threads:     8,
	}
	got, err := cfg.args()
	if err != nil {
		t.Fatalf("unexpected error constructing args: %v", err)
	}
	want := []string{
		"alevin", "-l", "ISR", "-i", "idx",
		"-1", "a_R1.fq.gz", "b_R1.fq.gz",
		"-2", "a_R2.fq.gz", "b_R2.fq.gz",
		"--chromiumV3", "-o", "quant", "--tgMap", "t2g_velocity.tsv",
		"--dumpFeatures", "--dumpMtx",
		"--expectCells", "100", "-p", "8",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected alevin args:\ngot:  %v\nwant: %v", got, want)
	}
}

func TestAlevinArgsErrors(t *testing.T) {
	_, err := AlevinConfig{Mates1: []string{"a"}, Mates2: []string{"a", "b"}}.args()
	if err == nil || !strings.Contains(err.Error(), "1 R1 files but 2 R2 files") {
		t.Errorf("expected pairing error, got %v", err)
	}
	_, err = AlevinConfig{Mates1: []string{"a"}, Mates2: []string{"b"}, Chemistry: "dropseq"}.args()
	if err == nil || !strings.Contains(err.Error(), "unknown chemistry") {
		t.Errorf("expected chemistry error, got %v", err)
	}
	_, err = AlevinConfig{}.args()
	if err == nil || !strings.Contains(err.Error(), "no read files") {
		t.Errorf("expected read file error, got %v", err)
	}
}

func TestLinkedTxome(t *testing.T) {
	dir := t.TempDir()
	fa := filepath.Join(dir, "transcripts.fa")
	gtfPath := filepath.Join(dir, "ann.gtf")
	t2g := filepath.Join(dir, "t2g.tsv")
	for _, f := range []struct{ path, data string }{
		{fa, ">t1\nACGT\n"},
		{gtfPath, ""},
		{t2g, "t1\tg1\tS\n"},
	} {
		if err := os.WriteFile(f.path, []byte(f.data), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	l, err := Link(filepath.Join(dir, "idx"), fa, gtfPath, t2g, "1.10.2")
	if err != nil {
		t.Fatalf("unexpected error linking transcriptome: %v", err)
	}
	if l.ID == "" {
		t.Error("expected non-empty linked transcriptome id")
	}
	path := filepath.Join(dir, LinkedFile)
	if err := l.Write(path); err != nil {
		t.Fatalf("unexpected error writing linked transcriptome: %v", err)
	}
	got, err := LoadLinked(path)
	if err != nil {
		t.Fatalf("unexpected error loading linked transcriptome: %v", err)
	}
	if got.ID != l.ID || got.FastaDigest != l.FastaDigest || got.SalmonVersion != "1.10.2" {
		t.Errorf("unexpected loaded record: %+v", got)
	}

	if err := got.CheckT2G(t2g); err != nil {
		t.Errorf("unexpected t2g mismatch: %v", err)
	}
	other := filepath.Join(dir, "other.tsv")
	if err := os.WriteFile(other, []byte("t1\tg2\tS\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := got.CheckT2G(other); err == nil {
		t.Error("expected digest mismatch for altered t2g table")
	}
}
