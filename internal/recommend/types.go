// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package recommend

// ScoredProduct is a candidate product with a score in [0, 1].
type ScoredProduct struct {
	// ProductID is the candidate product identifier.
	ProductID string `json:"product_id"`

	// Score is the candidate's score; interpretation depends on the
	// producing algorithm (Jaccard similarity, rule confidence, or blend).
	Score float64 `json:"score"`
}

// Rule is a directed association rule antecedent → consequent.
type Rule struct {
	// Antecedent is the product whose presence triggers the rule.
	Antecedent string `json:"antecedent"`

	// Consequent is the product the rule recommends.
	Consequent string `json:"consequent"`

	// Support is cooccurrence / total orders.
	Support float64 `json:"support"`

	// Confidence is cooccurrence / frequency(antecedent).
	Confidence float64 `json:"confidence"`

	// Lift is confidence / (frequency(consequent) / total orders).
	Lift float64 `json:"lift"`
}
