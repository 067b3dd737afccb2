package models

import "fmt"

// SpanLimits bounds the shape of an ingested span so that a single
// misbehaving producer cannot blow up memory in the rule engine or the
// trace accumulator.
type SpanLimits struct {
	MaxAttributesPerSpan    int
	MaxAttributeKeyLength   int
	MaxAttributeValueLength int
}

// RuleLimits bounds the shape of a submitted rule definition.
type RuleLimits struct {
	MaxExpressionLength  int
	MaxDescriptionLength int
	MaxNameLength        int
}

// Validate checks a span against the given limits, returning the first
// violation found.
func (s Span) Validate(limits SpanLimits) error {
	if limits.MaxAttributesPerSpan > 0 && len(s.Attributes) > limits.MaxAttributesPerSpan {
		return fmt.Errorf("span has %d attributes, exceeds limit of %d", len(s.Attributes), limits.MaxAttributesPerSpan)
	}
	for k, v := range s.Attributes {
		if limits.MaxAttributeKeyLength > 0 && len(k) > limits.MaxAttributeKeyLength {
			return fmt.Errorf("attribute key %q (%d bytes) exceeds limit of %d bytes", k, len(k), limits.MaxAttributeKeyLength)
		}
		if limits.MaxAttributeValueLength > 0 && len(v) > limits.MaxAttributeValueLength {
			return fmt.Errorf("attribute %q value (%d bytes) exceeds limit of %d bytes", k, len(v), limits.MaxAttributeValueLength)
		}
	}
	return nil
}

// Validate checks a rule definition against the given limits, returning the
// first violation found. Participle itself enforces no length limits on the
// grammar it parses, so this is the only backstop against pathological rule
// source.
func (r Rule) Validate(limits RuleLimits) error {
	if limits.MaxNameLength > 0 && len(r.Name) > limits.MaxNameLength {
		return fmt.Errorf("rule name (%d bytes) exceeds limit of %d bytes", len(r.Name), limits.MaxNameLength)
	}
	if limits.MaxDescriptionLength > 0 && len(r.Description) > limits.MaxDescriptionLength {
		return fmt.Errorf("rule description (%d bytes) exceeds limit of %d bytes", len(r.Description), limits.MaxDescriptionLength)
	}
	if limits.MaxExpressionLength > 0 && len(r.Expression) > limits.MaxExpressionLength {
		return fmt.Errorf("rule expression (%d bytes) exceeds limit of %d bytes", len(r.Expression), limits.MaxExpressionLength)
	}
	return nil
}
