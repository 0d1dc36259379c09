// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package features

import (
	"reflect"
	"testing"

	"github.com/tomtom215/basketry/internal/models"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	products := []models.Product{
		{ID: "P1", Attributes: map[string]models.AttributeValue{
			"weight":  models.NumericAttribute(2),
			"fragile": models.BoolAttribute(true),
			"label":   models.TextAttribute("red"), // not coercible, dropped
		}},
		{ID: "P2", Attributes: map[string]models.AttributeValue{
			"weight": models.NumericAttribute(4),
		}},
		{ID: "P3"}, // no attributes at all
	}

	m := Extract(products)

	if !reflect.DeepEqual(m.Attributes, []string{"fragile", "weight"}) {
		t.Fatalf("Attributes = %v, want [fragile weight]", m.Attributes)
	}
	// fragile seen once (true), weight mean is (2+4)/2.
	if !reflect.DeepEqual(m.Means, []float64{1, 3}) {
		t.Errorf("Means = %v, want [1 3]", m.Means)
	}

	if got := m.Vectors["P1"]; !reflect.DeepEqual(got, []float64{1, 2}) {
		t.Errorf("P1 vector = %v, want [1 2]", got)
	}
	// P2 misses fragile: imputed with its mean.
	if got := m.Vectors["P2"]; !reflect.DeepEqual(got, []float64{1, 4}) {
		t.Errorf("P2 vector = %v, want [1 4]", got)
	}
	// P3 is fully imputed.
	if got := m.Vectors["P3"]; !reflect.DeepEqual(got, []float64{1, 3}) {
		t.Errorf("P3 vector = %v, want [1 3]", got)
	}
}

func TestExtractTextOnlyAttribute(t *testing.T) {
	t.Parallel()

	m := Extract([]models.Product{
		{ID: "P1", Attributes: map[string]models.AttributeValue{
			"color": models.TextAttribute("blue"),
		}},
	})

	if len(m.Attributes) != 0 {
		t.Errorf("Attributes = %v, want none", m.Attributes)
	}
	if got := m.Vectors["P1"]; len(got) != 0 {
		t.Errorf("P1 vector = %v, want empty", got)
	}
}

func TestExtractEmptyCatalog(t *testing.T) {
	t.Parallel()

	m := Extract(nil)
	if len(m.Attributes) != 0 || len(m.Vectors) != 0 {
		t.Errorf("empty catalog matrix = %+v", m)
	}
}
