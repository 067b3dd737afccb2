package dsl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/betracehq/traceguard/pkg/models"
)

// MaxEvaluationSpans bounds how many live spans a single rule evaluation
// will walk. A trace that grows past this before it's evaluated signals a
// pathological producer rather than a real invariant check.
var MaxEvaluationSpans = 10000

// Evaluator evaluates a parsed Rule against a trace (a set of spans that
// share a trace ID).
type Evaluator struct{}

// NewEvaluator creates a new evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// EvaluateRule reports whether a rule fires on the given spans, that is,
// whether the trace is a violation of it.
//
// A rule with only a When clause fires when that condition holds. A rule
// with When plus Always/Never is a conditional invariant: it fires when
// the When condition holds and the Always condition fails or the Never
// condition holds. When the When condition does not hold, the rule does
// not fire.
func (e *Evaluator) EvaluateRule(rule *Rule, spans []*models.Span) (bool, error) {
	if rule == nil {
		return false, fmt.Errorf("nil rule AST")
	}

	active := liveSpans(spans)
	if len(active) > MaxEvaluationSpans {
		return false, fmt.Errorf("trace has %d live spans, exceeds %d span evaluation bound: %w", len(active), MaxEvaluationSpans, ErrTraceTooLarge)
	}

	whenHolds, err := e.evalCondition(rule.When, active)
	if err != nil {
		return false, fmt.Errorf("evaluating when clause: %w", err)
	}

	if rule.Always == nil && rule.Never == nil {
		return whenHolds, nil
	}

	if !whenHolds {
		return false, nil
	}

	if rule.Always != nil {
		alwaysHolds, err := e.evalCondition(rule.Always, active)
		if err != nil {
			return false, fmt.Errorf("evaluating always clause: %w", err)
		}
		if !alwaysHolds {
			return true, nil
		}
	}

	if rule.Never != nil {
		neverHolds, err := e.evalCondition(rule.Never, active)
		if err != nil {
			return false, fmt.Errorf("evaluating never clause: %w", err)
		}
		if neverHolds {
			return true, nil
		}
	}

	return false, nil
}

// liveSpans drops spans marked Evicted (rejected by the per-trace span cap,
// or held by a trace that was LRU-evicted); they play no part in rule
// evaluation.
func liveSpans(spans []*models.Span) []*models.Span {
	out := make([]*models.Span, 0, len(spans))
	for _, s := range spans {
		if s != nil && !s.Evicted {
			out = append(out, s)
		}
	}
	return out
}

func (e *Evaluator) evalCondition(cond *Condition, spans []*models.Span) (bool, error) {
	if cond == nil {
		return true, nil
	}
	for _, orTerm := range cond.Or {
		ok, err := e.evalOrTerm(orTerm, spans)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (e *Evaluator) evalOrTerm(term *OrTerm, spans []*models.Span) (bool, error) {
	for _, andTerm := range term.And {
		ok, err := e.evalAndTerm(andTerm, spans)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Evaluator) evalAndTerm(term *AndTerm, spans []*models.Span) (bool, error) {
	ok, err := e.evalTerm(term.Term, spans)
	if err != nil {
		return false, err
	}
	if term.Not {
		ok = !ok
	}
	return ok, nil
}

func (e *Evaluator) evalTerm(term *Term, spans []*models.Span) (bool, error) {
	switch {
	case term.Grouped != nil:
		return e.evalCondition(term.Grouped, spans)
	case term.SpanCheck != nil:
		return e.evalSpanCheck(term.SpanCheck, spans)
	default:
		return false, fmt.Errorf("empty term")
	}
}

func (e *Evaluator) evalSpanCheck(sc *SpanCheck, spans []*models.Span) (bool, error) {
	switch {
	case sc.Count != nil:
		return e.evalCountCheck(sc.Count, spans)
	case sc.Has != nil:
		return e.evalHasCheck(sc.Has, spans)
	default:
		return false, fmt.Errorf("empty span check")
	}
}

// evalHasCheck answers "does some span matching this operation satisfy the
// attached constraint (if any)". With no Where/Comparison it is a plain
// existence check.
func (e *Evaluator) evalHasCheck(hc *HasCheck, spans []*models.Span) (bool, error) {
	operation, attribute := strings.Join(hc.OpName, "."), ""
	if hc.Comparison != nil {
		operation, attribute = splitOperationAttribute(hc.OpName)
	}
	candidates := spansMatching(operation, spans)

	if hc.Where == nil && hc.Comparison == nil {
		return len(candidates) > 0, nil
	}

	for _, span := range candidates {
		if hc.Where != nil {
			ok, err := e.evalWhereChain(hc.Where, span, spans)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
			continue
		}

		// Direct comparison: e.g. trace.has(payment.charge.amount) > 1000
		// desugars to an implicit where clause on "amount" scoped to spans
		// named "payment.charge".
		left, ok := resolveSpanAttribute(span, attribute)
		if !ok {
			continue
		}
		right, err := e.evalExpression(hc.Comparison.Right, span, spans)
		if err != nil {
			return false, err
		}
		match, err := compareValues(hc.Comparison.Operator, left, right)
		if err != nil {
			return false, err
		}
		if match {
			return true, nil
		}
	}

	return false, nil
}

// splitOperationAttribute implements the implicit-where desugaring for a
// dotted HasCheck operation name that carries a trailing Comparison: all
// but the last segment name the span, the last segment names the
// attribute. A single-segment name has no attribute to split off.
func splitOperationAttribute(opName []string) (operation, attribute string) {
	if len(opName) <= 1 {
		return strings.Join(opName, "."), ""
	}
	return strings.Join(opName[:len(opName)-1], "."), opName[len(opName)-1]
}

func spansMatching(operation string, spans []*models.Span) []*models.Span {
	if operation == "" {
		return spans
	}
	matched := make([]*models.Span, 0, len(spans))
	for _, s := range spans {
		if s.OperationName == operation {
			matched = append(matched, s)
		}
	}
	return matched
}

func (e *Evaluator) evalCountCheck(cc *CountCheck, spans []*models.Span) (bool, error) {
	operation := strings.Join(cc.OpName, ".")
	count := float64(len(spansMatching(operation, spans)))

	right, err := e.evalExpression(cc.Right, nil, spans)
	if err != nil {
		return false, err
	}
	return compareValues(cc.Operator, count, right)
}

// evalWhereChain AND-combines a .where() clause with any chained .where()
// calls, all scoped to the same candidate span.
func (e *Evaluator) evalWhereChain(wc *WhereChain, span *models.Span, spans []*models.Span) (bool, error) {
	ok, err := e.evalWhereFilter(wc.First, span, spans)
	if err != nil || !ok {
		return false, err
	}
	for _, filter := range wc.ChainedWhere {
		ok, err := e.evalWhereFilter(filter, span, spans)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Evaluator) evalWhereFilter(wf *WhereFilter, span *models.Span, spans []*models.Span) (bool, error) {
	return e.evalWhereCondition(wf.Condition, span, spans)
}

func (e *Evaluator) evalWhereCondition(wc *WhereCondition, span *models.Span, spans []*models.Span) (bool, error) {
	for _, orTerm := range wc.Or {
		ok, err := e.evalWhereAndTerm(orTerm, span, spans)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (e *Evaluator) evalWhereAndTerm(wat *WhereAndTerm, span *models.Span, spans []*models.Span) (bool, error) {
	for _, atomic := range wat.And {
		ok, err := e.evalWhereAtomicTerm(atomic, span, spans)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Evaluator) evalWhereAtomicTerm(term *WhereAtomicTerm, span *models.Span, spans []*models.Span) (bool, error) {
	var (
		result bool
		err    error
	)

	switch {
	case term.Grouped != nil:
		result, err = e.evalWhereCondition(term.Grouped, span, spans)
	case term.Comparison != nil:
		result, err = e.evalWhereComparison(term.Comparison, span, spans)
	case term.SpanRef != nil:
		operation := strings.Join(term.SpanRef.SpanName, ".")
		result = len(spansMatching(operation, spans)) > 0
	case term.BoolIdent != nil:
		val, ok := resolveSpanAttribute(span, *term.BoolIdent)
		result = ok && toBool(val)
	default:
		return false, fmt.Errorf("empty where term")
	}
	if err != nil {
		return false, err
	}

	if term.Not {
		result = !result
	}
	return result, nil
}

func (e *Evaluator) evalWhereComparison(wc *WhereComparison, span *models.Span, spans []*models.Span) (bool, error) {
	left, ok := resolveSpanAttribute(span, wc.Attribute)
	if !ok {
		return false, nil
	}
	right, err := e.evalExpression(wc.Right, span, spans)
	if err != nil {
		return false, err
	}
	return compareValues(wc.Operator, left, right)
}

func (e *Evaluator) evalExpression(expr *Expression, span *models.Span, spans []*models.Span) (interface{}, error) {
	switch {
	case expr.Value != nil:
		return valueOf(expr.Value), nil
	case expr.Count != nil:
		operation := strings.Join(expr.Count.OpName, ".")
		return float64(len(spansMatching(operation, spans))), nil
	case len(expr.Path) > 0:
		attr := strings.Join(expr.Path, ".")
		if span == nil {
			return nil, fmt.Errorf("attribute path %q has no span in scope", attr)
		}
		val, _ := resolveSpanAttribute(span, attr)
		return val, nil
	default:
		return nil, fmt.Errorf("empty expression")
	}
}

func valueOf(v *Value) interface{} {
	switch {
	case v.String != nil:
		return *v.String
	case v.Number != nil:
		return *v.Number
	case v.Int != nil:
		return float64(*v.Int)
	case v.Bool != nil:
		return *v.Bool
	case v.Ident != nil:
		return *v.Ident
	case v.List != nil:
		return v.List
	default:
		return nil
	}
}

// resolveSpanAttribute resolves an attribute name against a span's
// well-known fields first, falling back to its attribute bag.
func resolveSpanAttribute(span *models.Span, attr string) (interface{}, bool) {
	if span == nil || attr == "" {
		return nil, false
	}
	switch attr {
	case "status":
		return span.Status, true
	case "kind":
		return span.Kind, true
	case "name", "operation_name":
		return span.OperationName, true
	case "service_name":
		return span.ServiceName, true
	case "duration":
		return float64(span.Duration), true
	case "trace_id":
		return span.TraceID, true
	case "span_id":
		return span.SpanID, true
	case "parent_span_id":
		return span.ParentSpanID, true
	}
	val, ok := span.Attributes[attr]
	return val, ok
}

// compareValues implements the comparison/containment operators the
// grammar exposes: ==, !=, <, <=, >, >=, in, matches, contains.
func compareValues(operator string, left, right interface{}) (bool, error) {
	switch operator {
	case "==":
		return valuesEqual(left, right), nil
	case "!=":
		return !valuesEqual(left, right), nil
	case "<", "<=", ">", ">=":
		l, lok := toFloat64(left)
		r, rok := toFloat64(right)
		if !lok || !rok {
			return false, fmt.Errorf("cannot compare %v and %v with %s: %w", left, right, operator, ErrTypeMismatch)
		}
		switch operator {
		case "<":
			return l < r, nil
		case "<=":
			return l <= r, nil
		case ">":
			return l > r, nil
		default:
			return l >= r, nil
		}
	case "in":
		return valueIn(left, right), nil
	case "contains":
		return strings.Contains(toString(left), toString(right)), nil
	case "matches":
		re, err := regexp.Compile(toString(right))
		if err != nil {
			return false, fmt.Errorf("invalid regex %q: %w", toString(right), err)
		}
		return re.MatchString(toString(left)), nil
	default:
		return false, fmt.Errorf("unsupported operator: %s", operator)
	}
}

func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat64(a); aok {
		if bf, bok := toFloat64(b); bok {
			return af == bf
		}
	}
	return toString(a) == toString(b)
}

func valueIn(needle, haystack interface{}) bool {
	switch hs := haystack.(type) {
	case []string:
		n := toString(needle)
		for _, item := range hs {
			if item == n {
				return true
			}
		}
		return false
	default:
		return strings.Contains(toString(haystack), toString(needle))
	}
}

func toBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	default:
		return v != nil
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
