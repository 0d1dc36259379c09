// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package models

// AttributeKind tags the dynamic type of a product attribute value.
type AttributeKind int

const (
	// AttributeNumeric is a float64-valued attribute.
	AttributeNumeric AttributeKind = iota
	// AttributeBool is a boolean attribute.
	AttributeBool
	// AttributeText is a free-text attribute.
	AttributeText
)

// String returns a human-readable name for the attribute kind.
func (k AttributeKind) String() string {
	switch k {
	case AttributeNumeric:
		return "numeric"
	case AttributeBool:
		return "bool"
	case AttributeText:
		return "text"
	default:
		return "unknown"
	}
}

// AttributeValue is a tagged product attribute value. Only the field matching
// Kind is meaningful.
type AttributeValue struct {
	// Kind selects which of the value fields carries the attribute.
	Kind AttributeKind `json:"kind"`

	// Num is the value for AttributeNumeric.
	Num float64 `json:"num,omitempty"`

	// Bool is the value for AttributeBool.
	Bool bool `json:"bool,omitempty"`

	// Text is the value for AttributeText.
	Text string `json:"text,omitempty"`
}

// NumericAttribute wraps a float64 as an attribute value.
func NumericAttribute(v float64) AttributeValue {
	return AttributeValue{Kind: AttributeNumeric, Num: v}
}

// BoolAttribute wraps a bool as an attribute value.
func BoolAttribute(v bool) AttributeValue {
	return AttributeValue{Kind: AttributeBool, Bool: v}
}

// TextAttribute wraps a string as an attribute value.
func TextAttribute(v string) AttributeValue {
	return AttributeValue{Kind: AttributeText, Text: v}
}

// Float64 coerces the attribute to a float64 for feature extraction.
// Numeric values pass through, booleans map to 0/1, and text is not
// coercible (ok is false).
func (v AttributeValue) Float64() (val float64, ok bool) {
	switch v.Kind {
	case AttributeNumeric:
		return v.Num, true
	case AttributeBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Product is a catalog entry. The identifier is opaque; Category and
// Attributes are only consumed by the optional feature extractor.
type Product struct {
	// ID is the opaque product identifier.
	ID string `json:"id"`

	// Category is an optional category label.
	Category string `json:"category,omitempty"`

	// Attributes is an optional dynamic attribute map.
	Attributes map[string]AttributeValue `json:"attributes,omitempty"`
}

// Order is a purchase: a buyer (the contragent) and the set of products
// bought. Quantities and prices are not part of the core model.
type Order struct {
	// ID is the order identifier.
	ID string `json:"id"`

	// ContragentID is the buyer identifier.
	ContragentID string `json:"contragent_id"`

	// ProductIDs is the non-empty set of purchased product identifiers.
	ProductIDs []string `json:"product_ids"`
}
