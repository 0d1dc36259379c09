// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

// Package recommend holds the types shared by the offline recommendation
// algorithms: the product-to-buyer incidence derived from orders, scored
// candidates, association rules, and the quality metrics computed before a
// version is promoted.
//
// The package has no dependencies on the storage or orchestration layers;
// algorithms consume plain values and return plain values.
package recommend
