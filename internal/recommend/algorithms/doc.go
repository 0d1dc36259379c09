// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

// Package algorithms implements the offline recommendation computations.
//
// # Families
//
//   - Collaborative: item-item Jaccard similarity over the product→buyer
//     incidence (sequential, worker-parallel, and dense-matrix paths)
//   - Association: support/confidence/lift rule mining over pairwise
//     co-occurrence counts
//   - Hybrid: context-aware weighted blending with score breakdowns
//
// All three are pure batch computations: they consume plain values, return
// plain values, and retain no state between batches. Context cancellation is
// honoured at iteration boundaries only; the inner loops never yield.
package algorithms
