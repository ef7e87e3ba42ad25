// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mtx

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func writeTriplet(t *testing.T, dir, matrix, rows, cols string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, MatFile))
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(matrix)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, RowsFile), []byte(rows), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ColsFile), []byte(cols), 0o644); err != nil {
		t.Fatal(err)
	}
}

const coordinate = `%%MatrixMarket matrix coordinate real general
% generated by alevin
3 2 4
1 1 5
1 2 1.5
2 2 2
3 1 7
`

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	writeTriplet(t, dir, coordinate, "AAAC\nAAAG\nAAAT\n", "g1\ng1-I\n")

	m, err := ReadDir(dir, false)
	if err != nil {
		t.Fatalf("unexpected error reading triplet: %v", err)
	}
	if !reflect.DeepEqual(m.Rows, []string{"AAAC", "AAAG", "AAAT"}) {
		t.Errorf("unexpected barcodes: %v", m.Rows)
	}
	if !reflect.DeepEqual(m.Cols, []string{"g1", "g1-I"}) {
		t.Errorf("unexpected features: %v", m.Cols)
	}
	want := mat.NewDense(3, 2, []float64{5, 1.5, 0, 2, 7, 0})
	if !mat.Equal(m.Data, want) {
		t.Errorf("unexpected matrix:\ngot:\n%v\nwant:\n%v",
			mat.Formatted(m.Data), mat.Formatted(want))
	}
}

func TestReadDirErrors(t *testing.T) {
	tests := []struct {
		name         string
		matrix       string
		rows, cols   string
		wantContains string
	}{
		{
			name:         "dimension mismatch",
			matrix:       "%%MatrixMarket matrix coordinate real general\n2 2 0\n",
			rows:         "AAAC\n",
			cols:         "g1\ng2\n",
			wantContains: "do not match",
		},
		{
			name:         "entry count mismatch",
			matrix:       "%%MatrixMarket matrix coordinate real general\n1 1 2\n1 1 5\n",
			rows:         "AAAC\n",
			cols:         "g1\n",
			wantContains: "declared 2",
		},
		{
			name:         "entry outside matrix",
			matrix:       "%%MatrixMarket matrix coordinate real general\n1 1 1\n2 1 5\n",
			rows:         "AAAC\n",
			cols:         "g1\n",
			wantContains: "outside",
		},
		{
			name:         "not coordinate format",
			matrix:       "%%MatrixMarket matrix array real general\n1 1\n5\n",
			rows:         "AAAC\n",
			cols:         "g1\n",
			wantContains: "unexpected header",
		},
	}
	for _, test := range tests {
		dir := t.TempDir()
		writeTriplet(t, dir, test.matrix, test.rows, test.cols)
		_, err := ReadDir(dir, false)
		if err == nil || !strings.Contains(err.Error(), test.wantContains) {
			t.Errorf("%s: expected error containing %q, got %v", test.name, test.wantContains, err)
		}
	}
}

func TestTSVRoundTrip(t *testing.T) {
	m := &Matrix{
		Rows: []string{"AAAC", "AAAG"},
		Cols: []string{"g1", "g2", "g3"},
		Data: mat.NewDense(2, 3, []float64{0, 1.25, 3, 4, 0, 6}),
	}
	for _, name := range []string{"m.tsv", "m.tsv.gz"} {
		path := filepath.Join(t.TempDir(), name)
		if err := WriteTSV(path, m); err != nil {
			t.Fatalf("unexpected error writing %s: %v", name, err)
		}
		got, err := ReadTSV(path)
		if err != nil {
			t.Fatalf("unexpected error reading %s: %v", name, err)
		}
		if !reflect.DeepEqual(got.Rows, m.Rows) || !reflect.DeepEqual(got.Cols, m.Cols) {
			t.Errorf("%s: unexpected names: %v %v", name, got.Rows, got.Cols)
		}
		if !mat.Equal(got.Data, m.Data) {
			t.Errorf("%s: unexpected data:\n%v", name, mat.Formatted(got.Data))
		}
	}
}

func TestReadTSVErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tsv")
	if err := os.WriteFile(path, []byte("\tg1\tg2\nAAAC\t1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ReadTSV(path)
	if err == nil || !strings.Contains(err.Error(), "fields") {
		t.Errorf("expected ragged row error, got %v", err)
	}
}
