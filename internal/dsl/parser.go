package dsl

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Hard structural limits enforced by Parse. These bound the cost of
// compiling and evaluating a single rule regardless of who authored it.
const (
	MaxSourceBytes         = 64 * 1024
	MaxASTDepth            = 256
	MaxIdentifierLength    = 512
	MaxStringLiteralLength = 1024 * 1024
)

// DSL Grammar using participle

// Rule represents a complete when-always-never rule
type Rule struct {
	When   *Condition `"when" "{" @@ "}"`
	Always *Condition `( "always" "{" @@ "}" )?`
	Never  *Condition `( "never" "{" @@ "}" )?`
}

// Condition is a boolean expression with OR at top level
type Condition struct {
	Or []*OrTerm `@@ ( "or" @@ )*`
}

// OrTerm handles AND (higher precedence than OR)
type OrTerm struct {
	And []*AndTerm `@@ ( "and" @@ )*`
}

// AndTerm handles NOT and parentheses
type AndTerm struct {
	Not  bool  `@"not"?`
	Term *Term `@@`
}

// Term is either grouped or a span check
type Term struct {
	Grouped   *Condition `  "(" @@ ")"`
	SpanCheck *SpanCheck `| @@`
}

// SpanCheck is operation_name.where() or count(operation_name) > N
type SpanCheck struct {
	Count *CountCheck `  ( "count" "(" @@ )`
	Has   *HasCheck   `| @@`
}

// HasCheck represents operation_name with optional attribute comparison or .where()
// Always captures the operation name first, then checks what follows
type HasCheck struct {
	OpName        []string       `( "trace" "." "has" "(" @Ident ( "." @Ident )* ")" | @Ident ( "." @Ident )* )`  // Capture operation name (with dots), bare or as trace.has(name)
	// Then one of these options:
	Where         *WhereChain    `( @@`                     // .where() chain
	Comparison    *Comparison    `| @@ )?`                  // OR direct comparison
}

// WhereChain represents .where() with optional chaining
// Supports: .where(amount > 1000).where(currency == "USD")
type WhereChain struct {
	First         *WhereFilter   `"." "where" "(" @@ ")"`   // First .where()
	ChainedWhere  []*WhereFilter `( "." "where" "(" @@ ")" )*`  // Optional additional .where() calls
}

// Comparison is a direct comparison between left expression and right expression
type Comparison struct {
	Operator string      `@( "==" | "!=" | "<=" | ">=" | "<" | ">" | "in" | "matches" | "contains" )`
	Right    *Expression `@@`
}

// Expression represents a value-producing expression (literal, count, or attribute path)
type Expression struct {
	Value *Value       `  @@`
	Count *CountExpr   `| @@`
	Path  []string     `| @Ident ( "." @Ident )*`  // For future: attribute references
}

// CountExpr represents count(operation_name) as an expression
type CountExpr struct {
	OpName []string `"count" "(" @Ident ( "." @Ident )* ")"`
}

// CountCheck represents count(op) comparison (now uses Expression on right)
type CountCheck struct {
	OpName   []string    `@Ident ( "." @Ident )* ")"`
	Operator string      `@( ">" | ">=" | "<" | "<=" | "==" | "!=" )`
	Right    *Expression `@@`
}

// WhereFilter is attribute comparisons or complex boolean expressions
type WhereFilter struct {
	Condition *WhereCondition `@@`
}

// WhereCondition is a boolean expression for .where() clauses
type WhereCondition struct {
	Or []*WhereAndTerm `@@ ( "or" @@ )*`
}

// WhereAndTerm handles AND in where clauses
type WhereAndTerm struct {
	And []*WhereAtomicTerm `@@ ( "and" @@ )*`
}

// WhereAtomicTerm is a single comparison, span reference, or grouped condition
type WhereAtomicTerm struct {
	Not        bool              `@"not"?`
	Grouped    *WhereCondition   `(  "(" @@ ")"`
	Comparison *WhereComparison  `| @@`
	SpanRef    *WhereSpanRef     `| @@`
	BoolIdent  *string           `| @Ident )`  // Bare boolean identifier (e.g., verified, active)
}

// WhereComparison is a single attribute comparison (scoped to parent span)
type WhereComparison struct {
	Attribute string      `( @Ident | @String )`  // Either single identifier or quoted string (for dotted names)
	Operator  string      `@( "==" | "!=" | "<=" | ">=" | "<" | ">" | "in" | "matches" | "contains" )`
	Right     *Expression `@@`
}

// WhereSpanRef is a reference to another span (global scope)
type WhereSpanRef struct {
	SpanName []string `@Ident ( "." @Ident )+`
}

// Value represents literal values
type Value struct {
	String *string  `  @String`
	Number *float64 `| @Float`
	Int    *int     `| @Int`
	Bool   *bool    `| ( @"true" | @"false" )`
	Ident  *string  `| @Ident`  // For enum-like values (e.g., USD, gold, premium)
	List   []string `| "[" ( @String | @Ident ) ( "," ( @String | @Ident ) )* "]"`
}

var dslLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\n\r]+`},
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Keyword", Pattern: `\b(where|count|and|or|not|in|matches|contains|true|false|when|always|never)\b`},
	{Name: "Float", Pattern: `\d+\.\d+`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Operator", Pattern: `==|!=|<=|>=|<|>`},
	{Name: "Punct", Pattern: `[{}()\[\],.]`},
})

// Parser is the DSL parser
var Parser = participle.MustBuild[Rule](
	participle.Lexer(dslLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2), // Minimal lookahead - use scope boundaries instead
)

// Parse parses a TraceGuard DSL rule, rejecting sources that would blow
// past the compiler's structural limits before participle ever sees them,
// and rejecting ASTs whose nesting or token sizes exceed those limits
// after a successful parse.
func Parse(input string) (*Rule, error) {
	if len(input) > MaxSourceBytes {
		return nil, fmt.Errorf("rule source is %d bytes, exceeds %d byte limit: %w", len(input), MaxSourceBytes, ErrLimitExceeded)
	}

	rule, err := Parser.ParseString("", input)
	if err != nil {
		return nil, err
	}

	if err := checkLimits(rule); err != nil {
		return nil, err
	}

	return rule, nil
}

// checkLimits walks the parsed AST enforcing MaxASTDepth (nesting of
// grouped conditions) and MaxIdentifierLength/MaxStringLiteralLength
// (every identifier, attribute name and string literal in the tree).
func checkLimits(r *Rule) error {
	for _, cond := range []*Condition{r.When, r.Always, r.Never} {
		if cond == nil {
			continue
		}
		if depth := conditionDepth(cond, 1); depth > MaxASTDepth {
			return fmt.Errorf("condition nesting depth %d exceeds %d: %w", depth, MaxASTDepth, ErrLimitExceeded)
		}
		if err := checkConditionTokens(cond); err != nil {
			return err
		}
	}
	return nil
}

func conditionDepth(c *Condition, depth int) int {
	if c == nil || depth > MaxASTDepth {
		return depth
	}
	max := depth
	for _, or := range c.Or {
		for _, and := range or.And {
			if and.Term == nil {
				continue
			}
			if and.Term.Grouped != nil {
				if d := conditionDepth(and.Term.Grouped, depth+1); d > max {
					max = d
				}
			}
			if and.Term.SpanCheck != nil {
				if d := spanCheckDepth(and.Term.SpanCheck, depth); d > max {
					max = d
				}
			}
		}
	}
	return max
}

func spanCheckDepth(sc *SpanCheck, depth int) int {
	if sc == nil || sc.Has == nil || sc.Has.Where == nil {
		return depth
	}
	return whereChainDepth(sc.Has.Where, depth)
}

func whereChainDepth(wc *WhereChain, depth int) int {
	max := depth
	filters := append([]*WhereFilter{wc.First}, wc.ChainedWhere...)
	for _, f := range filters {
		if f == nil || f.Condition == nil {
			continue
		}
		if d := whereConditionDepth(f.Condition, depth+1); d > max {
			max = d
		}
	}
	return max
}

func whereConditionDepth(wc *WhereCondition, depth int) int {
	if wc == nil || depth > MaxASTDepth {
		return depth
	}
	max := depth
	for _, and := range wc.Or {
		for _, term := range and.And {
			if term.Grouped != nil {
				if d := whereConditionDepth(term.Grouped, depth+1); d > max {
					max = d
				}
			}
		}
	}
	return max
}

func checkIdent(parts ...string) error {
	for _, p := range parts {
		if len(p) > MaxIdentifierLength {
			return fmt.Errorf("identifier %q is %d bytes, exceeds %d byte limit: %w", p, len(p), MaxIdentifierLength, ErrLimitExceeded)
		}
	}
	return nil
}

func checkValue(v *Value) error {
	if v == nil {
		return nil
	}
	if v.String != nil && len(*v.String) > MaxStringLiteralLength {
		return fmt.Errorf("string literal is %d bytes, exceeds %d byte limit: %w", len(*v.String), MaxStringLiteralLength, ErrLimitExceeded)
	}
	if v.Ident != nil {
		return checkIdent(*v.Ident)
	}
	return checkIdent(v.List...)
}

func checkExpression(e *Expression) error {
	if e == nil {
		return nil
	}
	if err := checkValue(e.Value); err != nil {
		return err
	}
	if e.Count != nil {
		return checkIdent(e.Count.OpName...)
	}
	return checkIdent(e.Path...)
}

func checkConditionTokens(c *Condition) error {
	if c == nil {
		return nil
	}
	for _, or := range c.Or {
		for _, and := range or.And {
			if err := checkTermTokens(and.Term); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkTermTokens(t *Term) error {
	if t == nil {
		return nil
	}
	if t.Grouped != nil {
		return checkConditionTokens(t.Grouped)
	}
	return checkSpanCheckTokens(t.SpanCheck)
}

func checkSpanCheckTokens(sc *SpanCheck) error {
	if sc == nil {
		return nil
	}
	if sc.Count != nil {
		if err := checkIdent(sc.Count.OpName...); err != nil {
			return err
		}
		return checkExpression(sc.Count.Right)
	}
	if sc.Has == nil {
		return nil
	}
	if err := checkIdent(sc.Has.OpName...); err != nil {
		return err
	}
	if sc.Has.Where != nil {
		return checkWhereChainTokens(sc.Has.Where)
	}
	if sc.Has.Comparison != nil {
		return checkExpression(sc.Has.Comparison.Right)
	}
	return nil
}

func checkWhereChainTokens(wc *WhereChain) error {
	filters := append([]*WhereFilter{wc.First}, wc.ChainedWhere...)
	for _, f := range filters {
		if err := checkWhereFilterTokens(f); err != nil {
			return err
		}
	}
	return nil
}

func checkWhereFilterTokens(f *WhereFilter) error {
	if f == nil {
		return nil
	}
	return checkWhereConditionTokens(f.Condition)
}

func checkWhereConditionTokens(wc *WhereCondition) error {
	if wc == nil {
		return nil
	}
	for _, and := range wc.Or {
		for _, term := range and.And {
			if err := checkWhereAtomicTokens(term); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkWhereAtomicTokens(t *WhereAtomicTerm) error {
	if t == nil {
		return nil
	}
	if t.Grouped != nil {
		return checkWhereConditionTokens(t.Grouped)
	}
	if t.Comparison != nil {
		if err := checkIdent(t.Comparison.Attribute); err != nil {
			return err
		}
		return checkExpression(t.Comparison.Right)
	}
	if t.SpanRef != nil {
		return checkIdent(t.SpanRef.SpanName...)
	}
	if t.BoolIdent != nil {
		return checkIdent(*t.BoolIdent)
	}
	return nil
}
