// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package salmon wraps the salmon index and alevin command line
// tools. The index structure and the per-cell quantification are
// opaque to the pipeline; this package only constructs invocations,
// captures diagnostics and binds outputs to their reference inputs.
package salmon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultExec is the binary name used when Runner.Exec is empty.
const DefaultExec = "salmon"

// Runner invokes a salmon binary.
type Runner struct {
	// Exec is the binary to invoke, found via $PATH unless
	// it contains a path separator.
	Exec string

	// Stderr, when non-nil, receives a copy of the tool's
	// standard error stream.
	Stderr *bytes.Buffer
}

func (r *Runner) binary() string {
	if r.Exec == "" {
		return DefaultExec
	}
	return r.Exec
}

// Version returns the version reported by the salmon binary.
func (r *Runner) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, r.binary(), "--version").Output()
	if err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) && len(exit.Stderr) != 0 {
			return "", fmt.Errorf("salmon: version probe: %w\n%s", err, tail(exit.Stderr, 20))
		}
		return "", fmt.Errorf("salmon: version probe: %w", err)
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return "", fmt.Errorf("salmon: empty version output")
	}
	return fields[len(fields)-1], nil
}

func (r *Runner) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, r.binary(), args...)
	stderr := new(bytes.Buffer)
	cmd.Stderr = stderr
	err := cmd.Run()
	if r.Stderr != nil {
		r.Stderr.Write(stderr.Bytes())
	}
	if err != nil {
		return fmt.Errorf("salmon: %s: %w\n%s", args[0], err, tail(stderr.Bytes(), 20))
	}
	return nil
}

// tail returns the last n lines of b.
func tail(b []byte, n int) []byte {
	lines := bytes.Split(bytes.TrimRight(b, "\n"), []byte("\n"))
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return bytes.Join(lines, []byte("\n"))
}

// IndexConfig holds the parameters of a salmon index invocation.
type IndexConfig struct {
	// Fasta is the expanded transcriptome to index.
	Fasta string

	// Dir is the output index directory.
	Dir string

	// K is the k-mer length; salmon's default 31 is used when
	// zero.
	K int

	// Threads is the number of indexing threads; salmon's own
	// default applies when zero.
	Threads int
}

func (cfg IndexConfig) args() []string {
	args := []string{"index", "-t", cfg.Fasta, "-i", cfg.Dir}
	if cfg.K > 0 {
		args = append(args, "-k", strconv.Itoa(cfg.K))
	}
	if cfg.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(cfg.Threads))
	}
	return args
}

// Index builds a salmon index over cfg.Fasta in cfg.Dir.
func (r *Runner) Index(ctx context.Context, cfg IndexConfig) error {
	if _, err := os.Stat(cfg.Fasta); err != nil {
		return fmt.Errorf("salmon: index input: %w", err)
	}
	return r.run(ctx, cfg.args())
}

// AlevinConfig holds the parameters of a salmon alevin invocation.
type AlevinConfig struct {
	// IndexDir is the salmon index.
	IndexDir string

	// Mates1 and Mates2 are the barcode+UMI and cDNA read files;
	// they must pair up positionally.
	Mates1, Mates2 []string

	// Chemistry selects the single-cell protocol flag, one of
	// "chromium" or "chromiumV3".
	Chemistry string

	// T2G is the transcript-to-gene table passed as --tgMap.
	T2G string

	// OutDir is the quantification output directory.
	OutDir string

	// ExpectCells, when non-zero, is passed as --expectCells.
	ExpectCells int

	// Threads is the number of quantification threads.
	Threads int
}

func (cfg AlevinConfig) args() ([]string, error) {
	if len(cfg.Mates1) == 0 {
		return nil, fmt.Errorf("salmon: no read files")
	}
	if len(cfg.Mates1) != len(cfg.Mates2) {
		return nil, fmt.Errorf("salmon: %d R1 files but %d R2 files", len(cfg.Mates1), len(cfg.Mates2))
	}
	var chem string
	switch cfg.Chemistry {
	case "chromium":
		chem = "--chromium"
	case "chromiumV3", "":
		chem = "--chromiumV3"
	default:
		return nil, fmt.Errorf("salmon: unknown chemistry %q", cfg.Chemistry)
	}

	args := []string{"alevin", "-l", "ISR", "-i", cfg.IndexDir}
	args = append(args, "-1")
	args = append(args, cfg.Mates1...)
	args = append(args, "-2")
	args = append(args, cfg.Mates2...)
	args = append(args, chem,
		"-o", cfg.OutDir,
		"--tgMap", cfg.T2G,
		"--dumpFeatures", "--dumpMtx",
	)
	if cfg.ExpectCells > 0 {
		args = append(args, "--expectCells", strconv.Itoa(cfg.ExpectCells))
	}
	if cfg.Threads > 0 {
		args = append(args, "-p", strconv.Itoa(cfg.Threads))
	}
	return args, nil
}

// Alevin quantifies the reads described by cfg against an existing
// index, producing a MatrixMarket count matrix directory under
// cfg.OutDir/alevin.
func (r *Runner) Alevin(ctx context.Context, cfg AlevinConfig) error {
	args, err := cfg.args()
	if err != nil {
		return err
	}
	return r.run(ctx, args)
}
