// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fasta

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
)

// FaiReference is an entry in a samtools .fai index.
type FaiReference struct {
	Length    int
	Offset    int64
	LineBases int
	LineWidth int
}

// ParseFai parses the FAI file at path.
func ParseFai(path string) (map[string]FaiReference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fai := make(map[string]FaiReference)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		b := bytes.Split(scanner.Bytes(), []byte("\t"))
		if len(b) != 5 {
			return nil, fmt.Errorf("fasta: badly formatted fai file %v - invalid number of entries", path)
		}
		length, err := strconv.Atoi(string(b[1]))
		if err != nil {
			return nil, err
		}
		offset, err := strconv.ParseInt(string(b[2]), 10, 64)
		if err != nil {
			return nil, err
		}
		lineBases, err := strconv.Atoi(string(b[3]))
		if err != nil {
			return nil, err
		}
		lineWidth, err := strconv.Atoi(string(b[4]))
		if err != nil {
			return nil, err
		}
		fai[string(b[0])] = FaiReference{
			Length:    length,
			Offset:    offset,
			LineBases: lineBases,
			LineWidth: lineWidth,
		}
	}
	return fai, scanner.Err()
}

// Indexed provides random access to an uncompressed FASTA file via
// its .fai index.
type Indexed struct {
	f   *os.File
	fai map[string]FaiReference
}

// OpenIndexed opens the FASTA file at path for random access, reading
// the index from path+".fai".
func OpenIndexed(path string) (*Indexed, error) {
	fai, err := ParseFai(path + ".fai")
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Indexed{f: f, fai: fai}, nil
}

// Close closes the underlying file.
func (ix *Indexed) Close() error { return ix.f.Close() }

// Length returns the length of the named sequence and whether it is
// present in the index.
func (ix *Indexed) Length(name string) (int, bool) {
	ref, ok := ix.fai[name]
	return ref.Length, ok
}

// Fetch returns the sequence interval [start, end) in 0-based
// coordinates for the named sequence.
func (ix *Indexed) Fetch(name string, start, end int) ([]byte, error) {
	ref, ok := ix.fai[name]
	if !ok {
		return nil, fmt.Errorf("fasta: sequence %q not in index", name)
	}
	if start < 0 || end > ref.Length || start > end {
		return nil, fmt.Errorf("fasta: interval [%d, %d) outside %q (length %d)", start, end, name, ref.Length)
	}

	if end == start {
		return nil, nil
	}

	// Offset of a base is the record offset plus complete lines
	// before it plus the position within its line.
	off := ref.Offset + int64(start/ref.LineBases)*int64(ref.LineWidth) + int64(start%ref.LineBases)
	nLines := (end-1)/ref.LineBases - start/ref.LineBases
	raw := make([]byte, end-start+nLines*(ref.LineWidth-ref.LineBases))
	if _, err := ix.f.ReadAt(raw, off); err != nil && err != io.EOF {
		return nil, err
	}

	seq := raw[:0]
	for _, c := range raw {
		if c == '\n' || c == '\r' {
			continue
		}
		seq = append(seq, c)
	}
	if len(seq) != end-start {
		return nil, fmt.Errorf("fasta: short fetch for %q [%d, %d): %d bases", name, start, end, len(seq))
	}
	return seq, nil
}
