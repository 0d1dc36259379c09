// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

// Package models defines the domain types shared across the recommendation
// pipeline: catalog products, orders, recommendation records with score
// breakdowns, and version metadata.
//
// All types are plain value types. Products and orders are immutable for the
// duration of a batch; recommendation records are owned by the repository
// after write.
package models
