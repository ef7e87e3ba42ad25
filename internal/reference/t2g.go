// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reference

import (
	"encoding/csv"
	"fmt"
	"io"
)

// parseT2G parses a tab separated transcript-to-gene table. The third
// status column is optional; identifiers with a "-I" infix are taken
// as unspliced when it is absent.
func parseT2G(r io.Reader) (gene map[string]string, status map[string]string, err error) {
	c := csv.NewReader(r)
	c.Comma = '\t'
	c.FieldsPerRecord = -1
	c.ReuseRecord = true

	gene = make(map[string]string)
	status = make(map[string]string)
	for {
		rec, err := c.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, err
		}
		if len(rec) < 2 {
			line, _ := c.FieldPos(0)
			return nil, nil, fmt.Errorf("reference: t2g line %d: %d columns", line, len(rec))
		}
		id := rec[0]
		gene[id] = rec[1]
		switch {
		case len(rec) >= 3:
			if rec[2] != StatusSpliced && rec[2] != StatusUnspliced {
				line, _ := c.FieldPos(0)
				return nil, nil, fmt.Errorf("reference: t2g line %d: unknown status %q", line, rec[2])
			}
			status[id] = rec[2]
		case isIntronID(id):
			status[id] = StatusUnspliced
		default:
			status[id] = StatusSpliced
		}
	}
	return gene, status, nil
}

func isIntronID(id string) bool {
	for i := len(id) - 2; i >= 0; i-- {
		if id[i] == '-' && id[i+1] == 'I' {
			return true
		}
	}
	return false
}
