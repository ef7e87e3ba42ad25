// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package velocity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStreamPlot(t *testing.T) {
	pcs, m := lineModel(10)
	proj, err := Project(pcs, m, 2)
	if err != nil {
		t.Fatalf("unexpected error projecting velocities: %v", err)
	}
	field := proj.Grid(3)

	path := filepath.Join(t.TempDir(), "velocity.png")
	if err := StreamPlot(path, proj, field, 1); err != nil {
		t.Fatalf("unexpected error rendering stream plot: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stream plot was not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("stream plot is empty")
	}
}

func TestPhasePlot(t *testing.T) {
	s := []float64{0, 1, 2, 3, 4}
	u := []float64{0, 0.4, 0.5, 0.8, 1.3}

	path := filepath.Join(t.TempDir(), "phase.png")
	if err := PhasePlot(path, "geneA", s, u, 0.3); err != nil {
		t.Fatalf("unexpected error rendering phase plot: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("phase plot was not written: %v", err)
	}

	if err := PhasePlot(path, "geneA", s, u[:3], 0.3); err == nil {
		t.Error("expected error for mismatched phase data")
	}
}
