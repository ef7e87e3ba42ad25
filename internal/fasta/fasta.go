// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fasta implements reading and writing of FASTA sequence
// files, including random access via samtools .fai indexes.
package fasta

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is a FASTA sequence with the first word of its header line
// as the identifier.
type Record struct {
	ID  string
	Seq []byte
}

// Reader reads FASTA records sequentially.
type Reader struct {
	scan *bufio.Scanner
	next string // pending header.
	done bool
}

// NewReader returns a Reader taking input from r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 1<<22)
	return &Reader{scan: sc}
}

// Read returns the next record, or io.EOF when the input is
// exhausted.
func (r *Reader) Read() (*Record, error) {
	if r.done {
		return nil, io.EOF
	}
	var (
		rec *Record
		seq bytes.Buffer
	)
	if r.next != "" {
		rec = &Record{ID: headerID(r.next)}
		r.next = ""
	}
	for r.scan.Scan() {
		line := r.scan.Bytes()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if rec != nil {
				r.next = string(line)
				rec.Seq = append([]byte(nil), seq.Bytes()...)
				return rec, nil
			}
			rec = &Record{ID: headerID(string(line))}
			continue
		}
		if rec == nil {
			return nil, fmt.Errorf("fasta: sequence data before first header")
		}
		seq.Write(bytes.TrimSpace(line))
	}
	if err := r.scan.Err(); err != nil {
		return nil, err
	}
	r.done = true
	if rec == nil {
		return nil, io.EOF
	}
	rec.Seq = append([]byte(nil), seq.Bytes()...)
	return rec, nil
}

func headerID(h string) string {
	h = strings.TrimPrefix(h, ">")
	if i := strings.IndexAny(h, " \t"); i >= 0 {
		h = h[:i]
	}
	return h
}

// Open opens the FASTA file at path, transparently decompressing
// gzip input. Use "-" for standard input.
func Open(path string) (*Reader, io.Closer, error) {
	if path == "-" {
		return NewReader(os.Stdin), io.NopCloser(nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		z, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return NewReader(z), f, nil
	}
	return NewReader(f), f, nil
}

// Writer writes FASTA records with wrapped sequence lines.
type Writer struct {
	w     *bufio.Writer
	width int
}

// NewWriter returns a Writer writing to w with sequence lines wrapped
// at width columns. A non-positive width disables wrapping.
func NewWriter(w io.Writer, width int) *Writer {
	return &Writer{w: bufio.NewWriter(w), width: width}
}

// Write writes a single record.
func (w *Writer) Write(rec *Record) error {
	if _, err := fmt.Fprintf(w.w, ">%s\n", rec.ID); err != nil {
		return err
	}
	seq := rec.Seq
	if w.width <= 0 {
		if _, err := w.w.Write(seq); err != nil {
			return err
		}
		return w.w.WriteByte('\n')
	}
	for len(seq) > 0 {
		n := w.width
		if n > len(seq) {
			n = len(seq)
		}
		if _, err := w.w.Write(seq[:n]); err != nil {
			return err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
		seq = seq[n:]
	}
	return nil
}

// Flush flushes buffered output.
func (w *Writer) Flush() error { return w.w.Flush() }

var complement = [256]byte{
	'A': 'T', 'a': 't',
	'C': 'G', 'c': 'g',
	'G': 'C', 'g': 'c',
	'T': 'A', 't': 'a',
	'N': 'N', 'n': 'n',
}

// RevComp reverse complements seq in place and returns it. Ambiguity
// codes other than N are mapped to N.
func RevComp(seq []byte) []byte {
	for i, j := 0, len(seq)-1; i <= j; i, j = i+1, j-1 {
		ci, cj := complement[seq[i]], complement[seq[j]]
		if ci == 0 {
			ci = 'N'
		}
		if cj == 0 {
			cj = 'N'
		}
		seq[i], seq[j] = cj, ci
	}
	return seq
}
