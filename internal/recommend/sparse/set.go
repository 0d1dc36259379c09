// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

// Package sparse provides the primitives the similarity engine is built on:
// ascending-sorted id sets with a merge-join intersection, and a bounded
// top-N heap keyed by score.
package sparse

import "sort"

// IDSet is an ascending-sorted, deduplicated array of interned ids.
// The zero value is an empty set.
type IDSet []int32

// NewIDSet builds an IDSet from arbitrary ids. The input slice is not
// retained.
func NewIDSet(ids []int32) IDSet {
	if len(ids) == 0 {
		return nil
	}

	s := make(IDSet, len(ids))
	copy(s, ids)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })

	// Deduplicate in place
	out := s[:1]
	for _, id := range s[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the cardinality of the set.
func (s IDSet) Len() int {
	return len(s)
}

// Contains reports whether id is in the set.
func (s IDSet) Contains(id int32) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= id })
	return i < len(s) && s[i] == id
}

// IntersectCount computes |a ∩ b| with a linear merge-join.
//
// minCount is the early-exit threshold: earlyExit is true iff the total
// intersection is strictly less than minCount. When the merge can prove
// mid-scan that the threshold is unreachable it stops immediately, so on
// early exit the returned count is a lower bound, not the exact value.
// When earlyExit is false the count is exact.
func IntersectCount(a, b IDSet, minCount int) (count int, earlyExit bool) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		// Remaining elements bound the best achievable count.
		remaining := len(a) - i
		if r := len(b) - j; r < remaining {
			remaining = r
		}
		if count+remaining < minCount {
			return count, true
		}

		switch {
		case a[i] == b[j]:
			count++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}

	return count, count < minCount
}
