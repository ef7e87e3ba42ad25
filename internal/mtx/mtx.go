// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mtx reads the MatrixMarket count matrix directory written
// by alevin and provides the TSV matrix interchange format used
// between pipeline stages.
package mtx

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// File names of the alevin quantification triplet.
const (
	MatFile  = "quants_mat.mtx.gz"
	RowsFile = "quants_mat_rows.txt"
	ColsFile = "quants_mat_cols.txt"
)

// Matrix is a dense named matrix with cells as rows and features as
// columns.
type Matrix struct {
	Rows []string
	Cols []string
	Data *mat.Dense
}

// ReadDir reads the quantification triplet from dir. When progress
// is true a progress bar over the matrix entries is written to
// standard error.
func ReadDir(dir string, progress bool) (*Matrix, error) {
	rows, err := readLines(filepath.Join(dir, RowsFile))
	if err != nil {
		return nil, fmt.Errorf("mtx: read cell barcodes: %w", err)
	}
	cols, err := readLines(filepath.Join(dir, ColsFile))
	if err != nil {
		return nil, fmt.Errorf("mtx: read feature names: %w", err)
	}

	f, err := os.Open(filepath.Join(dir, MatFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	z, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("mtx: open %s: %w", MatFile, err)
	}
	defer z.Close()

	data, err := readCoordinate(z, len(rows), len(cols), progress)
	if err != nil {
		return nil, fmt.Errorf("mtx: %s: %w", MatFile, err)
	}
	return &Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

// readCoordinate parses a MatrixMarket coordinate stream with the
// declared dimensions checked against the named row and column
// counts.
func readCoordinate(r io.Reader, nRows, nCols int, progress bool) (*mat.Dense, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 1<<20)

	if !sc.Scan() {
		return nil, fmt.Errorf("missing header: %v", sc.Err())
	}
	header := sc.Text()
	if !strings.HasPrefix(header, "%%MatrixMarket matrix coordinate") {
		return nil, fmt.Errorf("unexpected header %q", header)
	}
	if !strings.Contains(header, "general") {
		return nil, fmt.Errorf("unsupported symmetry in %q", header)
	}

	var (
		declRows, declCols, nnz int
		haveSize                bool
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		if _, err := fmt.Sscan(line, &declRows, &declCols, &nnz); err != nil {
			return nil, fmt.Errorf("bad size line %q: %v", line, err)
		}
		haveSize = true
		break
	}
	if !haveSize {
		return nil, fmt.Errorf("missing size line: %v", sc.Err())
	}
	if declRows != nRows || declCols != nCols {
		return nil, fmt.Errorf("declared dimensions %dx%d do not match %d barcodes and %d features",
			declRows, declCols, nRows, nCols)
	}

	var bar *pb.ProgressBar
	if progress {
		bar = pb.New(nnz)
		bar.Output = os.Stderr
		bar.Start()
	}

	data := mat.NewDense(nRows, nCols, nil)
	var seen int
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("bad entry %q", line)
		}
		i, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("bad row index %q: %v", fields[0], err)
		}
		j, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("bad column index %q: %v", fields[1], err)
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q: %v", fields[2], err)
		}
		if i < 1 || i > nRows || j < 1 || j > nCols {
			return nil, fmt.Errorf("entry (%d, %d) outside %dx%d matrix", i, j, nRows, nCols)
		}
		data.Set(i-1, j-1, v)
		seen++
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if seen != nnz {
		return nil, fmt.Errorf("%d entries but size line declared %d", seen, nnz)
	}
	return data, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

// WriteTSV writes a named matrix as a TSV table with an empty
// top-left header cell. Output is gzip compressed when path ends in
// ".gz".
func WriteTSV(path string, m *Matrix) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	var w io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		zw := gzip.NewWriter(f)
		defer func() {
			if cerr := zw.Close(); err == nil {
				err = cerr
			}
		}()
		w = zw
	}
	bw := bufio.NewWriter(w)

	if _, err = fmt.Fprintf(bw, "\t%s\n", strings.Join(m.Cols, "\t")); err != nil {
		return err
	}
	for r, id := range m.Rows {
		if _, err = bw.WriteString(id); err != nil {
			return err
		}
		for c := range m.Cols {
			if _, err = fmt.Fprintf(bw, "\t%v", m.Data.At(r, c)); err != nil {
				return err
			}
		}
		if err = bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadTSV reads a matrix written by WriteTSV.
func ReadTSV(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		z, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer z.Close()
		r = z
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 1<<22)
	if !sc.Scan() {
		return nil, fmt.Errorf("mtx: %s: missing header: %v", path, sc.Err())
	}
	cols := strings.Split(sc.Text(), "\t")
	if len(cols) < 2 || cols[0] != "" {
		return nil, fmt.Errorf("mtx: %s: malformed header", path)
	}
	cols = cols[1:]

	var (
		rows   []string
		values []float64
	)
	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != len(cols)+1 {
			return nil, fmt.Errorf("mtx: %s: row %d has %d fields, want %d",
				path, len(rows)+1, len(fields), len(cols)+1)
		}
		rows = append(rows, fields[0])
		for _, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("mtx: %s: bad value %q: %v", path, s, err)
			}
			values = append(values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("mtx: %s: no data rows", path)
	}
	return &Matrix{Rows: rows, Cols: cols, Data: mat.NewDense(len(rows), len(cols), values)}, nil
}
