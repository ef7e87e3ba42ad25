// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package salmon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// LinkedFile is the name of the linked transcriptome metadata file
// written into an index directory.
const LinkedFile = "linked_txome.json"

// LinkedTxome binds a quantification index to the reference it was
// built from so downstream stages can recognise the provenance of the
// counts automatically.
type LinkedTxome struct {
	ID            string    `json:"id"`
	Index         string    `json:"index"`
	Fasta         string    `json:"fasta"`
	GTF           string    `json:"gtf"`
	T2G           string    `json:"t2g"`
	FastaDigest   string    `json:"fasta_digest"`
	T2GDigest     string    `json:"t2g_digest"`
	SalmonVersion string    `json:"salmon_version"`
	Created       time.Time `json:"created"`
}

// Link digests the reference files and returns the linked
// transcriptome record for an index built from them.
func Link(index, fastaPath, gtfPath, t2gPath, version string) (*LinkedTxome, error) {
	fastaDigest, err := fileDigest(fastaPath)
	if err != nil {
		return nil, fmt.Errorf("salmon: digest transcriptome: %w", err)
	}
	t2gDigest, err := fileDigest(t2gPath)
	if err != nil {
		return nil, fmt.Errorf("salmon: digest t2g: %w", err)
	}
	return &LinkedTxome{
		ID:            uuid.New().String(),
		Index:         index,
		Fasta:         fastaPath,
		GTF:           gtfPath,
		T2G:           t2gPath,
		FastaDigest:   fastaDigest,
		T2GDigest:     t2gDigest,
		SalmonVersion: version,
		Created:       time.Now().UTC(),
	}, nil
}

// Write writes the record as indented JSON to path.
func (l *LinkedTxome) Write(path string) error {
	b, err := json.MarshalIndent(l, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadLinked reads a linked transcriptome record from path.
func LoadLinked(path string) (*LinkedTxome, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l LinkedTxome
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("salmon: parse %s: %w", path, err)
	}
	return &l, nil
}

// CheckT2G verifies that the t2g table at path matches the one the
// index was linked against.
func (l *LinkedTxome) CheckT2G(path string) error {
	digest, err := fileDigest(path)
	if err != nil {
		return err
	}
	if digest != l.T2GDigest {
		return fmt.Errorf("salmon: t2g table %s does not match linked transcriptome %s", path, l.ID)
	}
	return nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
