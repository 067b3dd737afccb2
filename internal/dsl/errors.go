package dsl

import "errors"

// ErrLimitExceeded is returned by Parse when a rule source exceeds one of
// the hard structural limits (source size, AST depth, identifier length,
// string literal length) meant to keep a single malicious or malformed
// rule from degrading the engine.
var ErrLimitExceeded = errors.New("dsl: limit exceeded")

// ErrTypeMismatch is returned by the evaluator when an ordering comparison
// (<, <=, >, >=) is attempted between operands that cannot both be
// coerced to numbers.
var ErrTypeMismatch = errors.New("dsl: type mismatch")

// ErrTraceTooLarge is returned by the evaluator when a trace carries more
// live spans than a single rule evaluation is allowed to walk.
var ErrTraceTooLarge = errors.New("dsl: trace too large")
