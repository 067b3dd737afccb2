package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/betracehq/traceguard/pkg/models"
	"github.com/google/uuid"
)

// signatureFieldSeparator is the unit separator (0x1F) used to join signed
// fields. It cannot appear in any of the fields under normal operation,
// which prevents field-boundary ambiguity attacks on the HMAC input.
const signatureFieldSeparator = "\x1f"

// QueryFilters narrows a violation query.
type QueryFilters struct {
	RuleID   string
	Severity string
	Since    time.Time
	Limit    int
}

// ViolationStoreMemory is an in-memory violation store with HMAC-SHA256
// tamper-evident signing. Signing is disabled when no key is configured.
type ViolationStoreMemory struct {
	mu             sync.RWMutex
	violations     map[string]models.Violation
	order          []string // insertion order, for stable Query results
	signatureKey   []byte
	signingEnabled bool
}

// NewViolationStoreMemory creates a violation store. An empty signatureKey
// disables signing entirely (Signature is left blank on every record).
func NewViolationStoreMemory(signatureKey string) *ViolationStoreMemory {
	return &ViolationStoreMemory{
		violations:     make(map[string]models.Violation),
		signatureKey:   []byte(signatureKey),
		signingEnabled: signatureKey != "",
	}
}

// Record stores a violation, assigning an ID and timestamp if absent and
// signing it if signing is enabled.
func (s *ViolationStoreMemory) Record(ctx context.Context, violation models.Violation, spanRefs []models.SpanRef) (models.Violation, error) {
	if violation.ID == "" {
		violation.ID = uuid.New().String()
	}
	if violation.CreatedAt.IsZero() {
		violation.CreatedAt = time.Now()
	}

	if spanRefs != nil {
		violation.SpanRefs = spanRefs
		traceIDs := make([]string, 0, len(spanRefs))
		seen := make(map[string]bool, len(spanRefs))
		for _, ref := range spanRefs {
			if !seen[ref.TraceID] {
				seen[ref.TraceID] = true
				traceIDs = append(traceIDs, ref.TraceID)
			}
		}
		violation.TraceIDs = traceIDs
	}

	if s.signingEnabled {
		violation.Signature = s.signViolation(violation)
	} else {
		violation.Signature = ""
	}

	s.mu.Lock()
	if _, exists := s.violations[violation.ID]; !exists {
		s.order = append(s.order, violation.ID)
	}
	s.violations[violation.ID] = violation
	s.mu.Unlock()

	return violation, nil
}

// GetByID retrieves a violation by ID, verifying its signature when signing
// is enabled. A failed verification is reported as an error rather than
// silently returning tampered data.
func (s *ViolationStoreMemory) GetByID(ctx context.Context, id string) (*models.Violation, error) {
	s.mu.RLock()
	violation, exists := s.violations[id]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("violation not found: %s", id)
	}

	if s.signingEnabled && !s.verifySignature(violation) {
		return nil, fmt.Errorf("violation %s failed signature verification", id)
	}

	return &violation, nil
}

// Query returns violations matching the given filters, newest first.
func (s *ViolationStoreMemory) Query(ctx context.Context, filters QueryFilters) ([]models.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.Violation, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		v := s.violations[s.order[i]]

		if filters.RuleID != "" && v.RuleID != filters.RuleID {
			continue
		}
		if filters.Severity != "" && v.Severity != filters.Severity {
			continue
		}
		if !filters.Since.IsZero() && v.CreatedAt.Before(filters.Since) {
			continue
		}

		results = append(results, v)
		if filters.Limit > 0 && len(results) >= filters.Limit {
			break
		}
	}

	return results, nil
}

// signViolation computes the HMAC-SHA256 signature over the violation's
// identity fields, hex-encoded.
func (s *ViolationStoreMemory) signViolation(v models.Violation) string {
	mac := hmac.New(sha256.New, s.signatureKey)
	mac.Write([]byte(signaturePayload(v)))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature recomputes the expected signature and compares it to the
// stored one in constant time.
func (s *ViolationStoreMemory) verifySignature(v models.Violation) bool {
	expected := s.signViolation(v)
	return hmac.Equal([]byte(expected), []byte(v.Signature))
}

// signaturePayload builds the canonical, deterministic byte sequence that
// gets signed: the violation's identity fields joined by an ASCII unit
// separator so that e.g. RuleID="a"+RuleName="bc" cannot collide with
// RuleID="ab"+RuleName="c".
func signaturePayload(v models.Violation) string {
	var b strings.Builder
	b.WriteString(v.ID)
	b.WriteString(signatureFieldSeparator)
	b.WriteString(v.RuleID)
	b.WriteString(signatureFieldSeparator)
	b.WriteString(v.RuleName)
	b.WriteString(signatureFieldSeparator)
	b.WriteString(v.Severity)
	b.WriteString(signatureFieldSeparator)
	b.WriteString(v.Message)
	return b.String()
}
