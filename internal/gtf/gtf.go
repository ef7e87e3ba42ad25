// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gtf

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Record is a single GTF feature line. Start and End are 1-based
// inclusive genomic coordinates as they appear in the file.
type Record struct {
	Seqname string
	Source  string
	Feature string
	Start   int
	End     int
	Strand  byte

	// Attr holds the key/value pairs of the attribute column.
	Attr map[string]string

	// Line is the line number the record was decoded from.
	Line int
}

// Decoder is a GTF decoder. Comment lines and records with feature
// types other than those passed to NewDecoder are skipped.
type Decoder struct {
	scan *bufio.Scanner
	keep map[string]bool
	line int
}

// NewDecoder returns a new Decoder that takes input from r, returning
// only records whose feature type is in keep. If keep is empty all
// records are returned.
func NewDecoder(r io.Reader, keep ...string) *Decoder {
	dec := &Decoder{scan: bufio.NewScanner(r)}
	dec.scan.Buffer(nil, 1<<20)
	if len(keep) != 0 {
		dec.keep = make(map[string]bool, len(keep))
		for _, f := range keep {
			dec.keep[f] = true
		}
	}
	return dec
}

// Unmarshal returns the next record from the decoder's input. It
// returns io.EOF when the input is exhausted.
func (dec *Decoder) Unmarshal() (*Record, error) {
	for dec.scan.Scan() {
		dec.line++
		line := dec.scan.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, "\t", 9)
		if len(fields) != 9 {
			return nil, fmt.Errorf("gtf: line %d: %d fields", dec.line, len(fields))
		}
		if dec.keep != nil && !dec.keep[fields[2]] {
			continue
		}
		start, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("gtf: line %d: bad start: %v", dec.line, err)
		}
		end, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("gtf: line %d: bad end: %v", dec.line, err)
		}
		if end < start {
			return nil, fmt.Errorf("gtf: line %d: end %d before start %d", dec.line, end, start)
		}
		strand := byte('.')
		if len(fields[6]) == 1 {
			strand = fields[6][0]
		}
		attr, err := parseAttributes(fields[8])
		if err != nil {
			return nil, fmt.Errorf("gtf: line %d: %v", dec.line, err)
		}
		return &Record{
			Seqname: fields[0],
			Source:  fields[1],
			Feature: fields[2],
			Start:   start,
			End:     end,
			Strand:  strand,
			Attr:    attr,
			Line:    dec.line,
		}, nil
	}
	if err := dec.scan.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// parseAttributes parses the GTF attribute column, a semicolon
// separated list of `key "value"` pairs. Unquoted values are accepted
// since some annotation sources emit bare numbers.
func parseAttributes(s string) (map[string]string, error) {
	attr := make(map[string]string)
	for _, field := range strings.Split(s, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		i := strings.IndexByte(field, ' ')
		if i < 0 {
			return nil, fmt.Errorf("bad attribute %q", field)
		}
		key := field[:i]
		val := strings.TrimSpace(field[i+1:])
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		}
		attr[key] = val
	}
	return attr, nil
}

// Exon is a transcript exon in genomic coordinates, 1-based inclusive.
type Exon struct {
	Start, End int
}

// Transcript is an exon model grouped from GTF exon records.
type Transcript struct {
	ID       string
	GeneID   string
	GeneName string
	Seqname  string
	Strand   byte

	// Exons is ordered by genomic start position regardless
	// of strand.
	Exons []Exon
}

// Transcripts reads all exon records from dec and groups them into
// transcript models keyed by the transcript_id attribute. Transcripts
// are returned sorted by identifier. Exon records missing transcript_id
// or gene_id attributes are an error.
func Transcripts(dec *Decoder) ([]*Transcript, error) {
	byID := make(map[string]*Transcript)
	for {
		rec, err := dec.Unmarshal()
		if err != nil {
			if err != io.EOF {
				return nil, err
			}
			break
		}
		if rec.Feature != "exon" {
			continue
		}
		id, ok := rec.Attr["transcript_id"]
		if !ok {
			return nil, fmt.Errorf("gtf: line %d: exon without transcript_id", rec.Line)
		}
		gene, ok := rec.Attr["gene_id"]
		if !ok {
			return nil, fmt.Errorf("gtf: line %d: exon without gene_id", rec.Line)
		}
		tr, ok := byID[id]
		if !ok {
			tr = &Transcript{
				ID:       id,
				GeneID:   gene,
				GeneName: rec.Attr["gene_name"],
				Seqname:  rec.Seqname,
				Strand:   rec.Strand,
			}
			byID[id] = tr
		} else {
			if tr.Seqname != rec.Seqname {
				return nil, fmt.Errorf("gtf: line %d: transcript %s spans seqnames %s and %s",
					rec.Line, id, tr.Seqname, rec.Seqname)
			}
			if tr.GeneID != gene {
				return nil, fmt.Errorf("gtf: line %d: transcript %s claimed by genes %s and %s",
					rec.Line, id, tr.GeneID, gene)
			}
		}
		tr.Exons = append(tr.Exons, Exon{Start: rec.Start, End: rec.End})
	}

	list := make([]*Transcript, 0, len(byID))
	for _, tr := range byID {
		sort.Slice(tr.Exons, func(i, j int) bool { return tr.Exons[i].Start < tr.Exons[j].Start })
		list = append(list, tr)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// Open opens the GTF file at path, transparently decompressing
// gzip input based on the file extension.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) != ".gz" {
		return f, nil
	}
	r, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipCloser{Reader: r, file: f}, nil
}

type gzipCloser struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipCloser) Close() error {
	if err := g.Reader.Close(); err != nil {
		g.file.Close()
		return err
	}
	return g.file.Close()
}
