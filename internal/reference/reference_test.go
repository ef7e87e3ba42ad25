// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reference

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/diff"
	"github.com/pkg/diff/write"
)

// chr1 is 40 bases; t1 and t2 share gene g1 and an identical intron,
// t3 is annotated on a chromosome absent from the genome.
const (
	testGenome = `>chr1
AAAATTTTCC
CCGGGGAAAA
TTTTCCCCGG
GGAAAATTTT
`
	testGTF = `chr1	test	exon	1	8	.	+	.	gene_id "g1"; transcript_id "t1";
chr1	test	exon	17	24	.	+	.	gene_id "g1"; transcript_id "t1";
chr1	test	exon	1	8	.	+	.	gene_id "g1"; transcript_id "t2";
chr1	test	exon	17	24	.	+	.	gene_id "g1"; transcript_id "t2";
chr2	test	exon	1	8	.	+	.	gene_id "g2"; transcript_id "t3";
`
)

const wantFasta = `>t1
AAAATTTTAAAATTTT
>t1-I
TTCCCCGGGGAA
>t2
AAAATTTTAAAATTTT
`

const wantT2G = `t1	g1	S
t1-I	g1	U
t2	g1	S
`

func buildTestReference(t *testing.T, writeFai bool) (string, *Result) {
	t.Helper()
	dir := t.TempDir()
	genome := filepath.Join(dir, "genome.fa")
	gtfPath := filepath.Join(dir, "ann.gtf")
	if err := os.WriteFile(genome, []byte(testGenome), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(gtfPath, []byte(testGTF), 0o644); err != nil {
		t.Fatal(err)
	}
	if writeFai {
		if err := os.WriteFile(genome+".fai", []byte("chr1\t40\t6\t10\t11\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	out := filepath.Join(dir, "ref")
	res, err := Build(Config{GenomePath: genome, GTFPath: gtfPath, Flank: 2, OutDir: out})
	if err != nil {
		t.Fatalf("unexpected error building reference: %v", err)
	}
	return out, res
}

func TestBuild(t *testing.T) {
	for _, indexed := range []bool{false, true} {
		out, res := buildTestReference(t, indexed)

		if res.Transcripts != 2 || res.Introns != 1 || res.Genes != 1 || res.Skipped != 1 {
			t.Errorf("indexed=%t: unexpected result: %+v", indexed, *res)
		}

		fa, err := os.ReadFile(filepath.Join(out, "transcripts.fa"))
		if err != nil {
			t.Fatal(err)
		}
		if string(fa) != wantFasta {
			var buf bytes.Buffer
			err := diff.Text("got", "want", string(fa), wantFasta, &buf, write.TerminalColor())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			t.Errorf("indexed=%t: unexpected transcriptome:\n%s", indexed, &buf)
		}

		t2g, err := os.ReadFile(filepath.Join(out, "t2g_velocity.tsv"))
		if err != nil {
			t.Fatal(err)
		}
		if string(t2g) != wantT2G {
			t.Errorf("indexed=%t: unexpected t2g table:\ngot:\n%swant:\n%s", indexed, t2g, wantT2G)
		}
	}
}

func TestBuildFeaturesJSON(t *testing.T) {
	out, _ := buildTestReference(t, false)
	b, err := os.ReadFile(filepath.Join(out, "features.json"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"id": "t1-I"`, `"type": "intron"`, `"gene": "g1"`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("features.json missing %s", want)
		}
	}
}

func TestParseT2G(t *testing.T) {
	gene, status, err := parseT2G(strings.NewReader(wantT2G))
	if err != nil {
		t.Fatalf("unexpected error parsing t2g: %v", err)
	}
	if gene["t1-I"] != "g1" || status["t1-I"] != StatusUnspliced {
		t.Errorf("unexpected intron mapping: gene=%q status=%q", gene["t1-I"], status["t1-I"])
	}
	if status["t2"] != StatusSpliced {
		t.Errorf("unexpected spliced status: %q", status["t2"])
	}

	// Two column tables fall back to identifier classification.
	gene, status, err = parseT2G(strings.NewReader("tx1\tg1\ntx1-I\tg1\n"))
	if err != nil {
		t.Fatalf("unexpected error parsing two column t2g: %v", err)
	}
	if status["tx1"] != StatusSpliced || status["tx1-I"] != StatusUnspliced {
		t.Errorf("unexpected fallback statuses: %v", status)
	}

	_, _, err = parseT2G(strings.NewReader("tx1\tg1\tX\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Errorf("expected unknown status error, got %v", err)
	}
}
