// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gtf

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/pkg/diff"
	"github.com/pkg/diff/write"
)

const annotation = `#!genome-build GRCh38
chr1	havana	gene	11869	14409	.	+	.	gene_id "ENSG00000223972"; gene_name "DDX11L1";
chr1	havana	transcript	11869	14409	.	+	.	gene_id "ENSG00000223972"; transcript_id "ENST00000456328";
chr1	havana	exon	11869	12227	.	+	.	gene_id "ENSG00000223972"; transcript_id "ENST00000456328"; gene_name "DDX11L1"; exon_number "1";
chr1	havana	exon	12613	12721	.	+	.	gene_id "ENSG00000223972"; transcript_id "ENST00000456328"; gene_name "DDX11L1"; exon_number "2";
chr1	havana	exon	13221	14409	.	+	.	gene_id "ENSG00000223972"; transcript_id "ENST00000456328"; gene_name "DDX11L1"; exon_number "3";
chr1	ensembl	exon	17369	17436	.	-	.	gene_id "ENSG00000278267"; transcript_id "ENST00000619216";
`

func TestTranscripts(t *testing.T) {
	dec := NewDecoder(strings.NewReader(annotation), "exon")
	trs, err := Transcripts(dec)
	if err != nil {
		t.Fatalf("unexpected error grouping transcripts: %v", err)
	}

	var got strings.Builder
	for _, tr := range trs {
		fmt.Fprintf(&got, "%s %s %s %s %c %v\n", tr.ID, tr.GeneID, tr.GeneName, tr.Seqname, tr.Strand, tr.Exons)
	}
	want := `ENST00000456328 ENSG00000223972 DDX11L1 chr1 + [{11869 12227} {12613 12721} {13221 14409}]
ENST00000619216 ENSG00000278267  chr1 - [{17369 17436}]
`
	if got.String() != want {
		var buf bytes.Buffer
		err := diff.Text("got", "want", got.String(), want, &buf, write.TerminalColor())
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		t.Errorf("unexpected transcript models:\n%s", &buf)
	}
}

func TestUnmarshalFilters(t *testing.T) {
	dec := NewDecoder(strings.NewReader(annotation), "gene")
	var n int
	for {
		rec, err := dec.Unmarshal()
		if err != nil {
			if err != io.EOF {
				t.Fatalf("unexpected error during decoding: %v", err)
			}
			break
		}
		if rec.Feature != "gene" {
			t.Errorf("unexpected feature type: %q", rec.Feature)
		}
		if rec.Attr["gene_id"] != "ENSG00000223972" {
			t.Errorf("unexpected gene_id: %q", rec.Attr["gene_id"])
		}
		n++
	}
	if n != 1 {
		t.Errorf("unexpected number of gene records: %d != 1", n)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"chr1\thavana\texon\t100", "gtf: line 1: 4 fields"},
		{"chr1\thavana\texon\tx\t200\t.\t+\t.\tgene_id \"g\";", "bad start"},
		{"chr1\thavana\texon\t300\t200\t.\t+\t.\tgene_id \"g\";", "end 200 before start 300"},
		{"chr1\thavana\texon\t100\t200\t.\t+\t.\tnospace", `bad attribute "nospace"`},
	}
	for _, test := range tests {
		dec := NewDecoder(strings.NewReader(test.line))
		_, err := dec.Unmarshal()
		if err == nil || !strings.Contains(err.Error(), test.want) {
			t.Errorf("expected error containing %q, got %v", test.want, err)
		}
	}
}

func TestTranscriptConflicts(t *testing.T) {
	const conflicting = `chr1	x	exon	1	10	.	+	.	gene_id "g1"; transcript_id "t1";
chr2	x	exon	1	10	.	+	.	gene_id "g1"; transcript_id "t1";
`
	dec := NewDecoder(strings.NewReader(conflicting), "exon")
	_, err := Transcripts(dec)
	if err == nil || !strings.Contains(err.Error(), "spans seqnames") {
		t.Errorf("expected seqname conflict error, got %v", err)
	}
}
