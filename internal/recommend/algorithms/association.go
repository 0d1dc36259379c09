// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package algorithms

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tomtom215/basketry/internal/recommend"
)

// AssociationConfig contains parameters for the rule miner.
type AssociationConfig struct {
	// MinSupport is the minimum rule support. Default: 0.001.
	MinSupport float64

	// MinConfidence is the minimum rule confidence. Default: 0.05.
	MinConfidence float64

	// TopN is the maximum rule count retained per antecedent.
	// Default: 10.
	TopN int
}

func (c AssociationConfig) withDefaults() AssociationConfig {
	if c.MinSupport <= 0 {
		c.MinSupport = 0.001
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.05
	}
	if c.TopN < 1 {
		c.TopN = 10
	}
	return c
}

// Miner derives pairwise association rules from co-occurrence counts.
type Miner struct {
	cfg    AssociationConfig
	logger zerolog.Logger
}

// NewMiner creates an association rule miner.
func NewMiner(cfg AssociationConfig, logger zerolog.Logger) *Miner {
	return &Miner{
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "association").Logger(),
	}
}

// Mine turns the directed co-occurrence counts co[a][b] into rules a → b,
// keeping at most TopN per antecedent, filtered on MinSupport and
// MinConfidence. freq is the authoritative per-product order frequency and
// orders the total order count; products missing from freq or with zero
// frequency are skipped rather than guessed at.
//
// Per antecedent, rules are ordered by descending confidence, ties by
// descending lift, then ascending consequent id.
func (m *Miner) Mine(ctx context.Context, co map[string]map[string]int, freq map[string]int, orders int) (map[string][]recommend.Rule, error) {
	result := make(map[string][]recommend.Rule, len(co))
	if orders <= 0 {
		return result, nil
	}

	for antecedent, row := range co {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fa := freq[antecedent]
		if fa <= 0 {
			m.logger.Debug().Str("product_id", antecedent).Msg("antecedent missing frequency, skipped")
			continue
		}

		rules := make([]recommend.Rule, 0, len(row))
		for consequent, count := range row {
			if consequent == antecedent || count <= 0 {
				continue
			}
			fb := freq[consequent]
			if fb <= 0 {
				continue
			}

			support := float64(count) / float64(orders)
			confidence := float64(count) / float64(fa)
			if support < m.cfg.MinSupport || confidence < m.cfg.MinConfidence {
				continue
			}

			rules = append(rules, recommend.Rule{
				Antecedent: antecedent,
				Consequent: consequent,
				Support:    support,
				Confidence: confidence,
				Lift:       float64(count) * float64(orders) / (float64(fa) * float64(fb)),
			})
		}
		if len(rules) == 0 {
			continue
		}

		sort.Slice(rules, func(i, j int) bool {
			if rules[i].Confidence != rules[j].Confidence {
				return rules[i].Confidence > rules[j].Confidence
			}
			if rules[i].Lift != rules[j].Lift {
				return rules[i].Lift > rules[j].Lift
			}
			return rules[i].Consequent < rules[j].Consequent
		})
		if len(rules) > m.cfg.TopN {
			rules = rules[:m.cfg.TopN]
		}
		result[antecedent] = rules
	}

	return result, nil
}

// FrequentlyBoughtWith projects an antecedent's rules onto scored products,
// using confidence as the score.
func FrequentlyBoughtWith(rules []recommend.Rule) []recommend.ScoredProduct {
	out := make([]recommend.ScoredProduct, len(rules))
	for i, r := range rules {
		out[i] = recommend.ScoredProduct{ProductID: r.Consequent, Score: r.Confidence}
	}
	return out
}
