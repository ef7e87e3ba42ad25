// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package feature derives spliced transcript and flanked intron
// genomic ranges from transcript exon models.
package feature

import (
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/kevinrue/velo/internal/gtf"
)

// Interval is a genomic interval in 0-based half-open coordinates.
type Interval struct {
	Start, End int
}

// Extend makes iv larger if it overlaps with other, by storing
// max(iv.End, other.End) in iv.End; otherwise iv remains unchanged.
// Returns true if the two intervals overlap or abut, false otherwise.
// other.Start >= iv.Start must be true before calling Extend.
func (iv *Interval) Extend(other Interval) bool {
	if other.Start > iv.End {
		return false
	}
	if other.End > iv.End {
		iv.End = other.End
	}
	return true
}

// Flatten merges overlapping intervals into larger intervals.
// intervals must be sorted by Start before calling Flatten. The
// result shares memory with the intervals argument.
func Flatten(intervals []Interval) []Interval {
	for i, n := 0, len(intervals)-1; i < n; i++ {
		if intervals[i].Extend(intervals[i+1]) {
			n++
			for j := i + 1; j < n; j++ {
				if !intervals[i].Extend(intervals[j]) {
					i++
					intervals[i] = intervals[j]
				}
			}
			return intervals[:i+1]
		}
	}
	return intervals
}

// Exons returns the transcript's exons as flattened 0-based half-open
// intervals sorted by start position.
func Exons(tr *gtf.Transcript) []Interval {
	exons := make([]Interval, len(tr.Exons))
	for i, e := range tr.Exons {
		exons[i] = Interval{Start: e.Start - 1, End: e.End}
	}
	sort.Slice(exons, func(i, j int) bool { return exons[i].Start < exons[j].Start })
	return Flatten(exons)
}

// Introns returns the transcript's introns extended by flank bases on
// both sides and clipped to [0, seqLen). Introns are derived from the
// unset positions of an exonic mask over the transcript's genomic
// span, so overlapping exon annotations cannot yield phantom introns.
// The returned intervals are sorted by start position; flanked
// introns may overlap exons or each other.
func Introns(tr *gtf.Transcript, flank, seqLen int) []Interval {
	exons := Exons(tr)
	if len(exons) < 2 {
		return nil
	}
	span := exons[len(exons)-1].End - exons[0].Start
	origin := exons[0].Start
	mask := bitset.New(uint(span))
	for _, e := range exons {
		for i := e.Start; i < e.End; i++ {
			mask.Set(uint(i - origin))
		}
	}

	var introns []Interval
	for i := uint(0); i < uint(span); {
		start, ok := mask.NextClear(i)
		if !ok || start >= uint(span) {
			break
		}
		end, ok := mask.NextSet(start)
		if !ok {
			// The mask span ends with an exon, so an
			// unterminated clear run cannot happen.
			break
		}
		iv := Interval{
			Start: origin + int(start) - flank,
			End:   origin + int(end) + flank,
		}
		if iv.Start < 0 {
			iv.Start = 0
		}
		if iv.End > seqLen {
			iv.End = seqLen
		}
		introns = append(introns, iv)
		i = end
	}
	return introns
}

// Length returns the total length of the intervals.
func Length(intervals []Interval) int {
	var n int
	for _, iv := range intervals {
		n += iv.End - iv.Start
	}
	return n
}
