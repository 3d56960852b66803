// Package ruleeval is the safe rule evaluator described in §2 and §4.2 of
// the specification: a depth-limited interpreter over a small boolean AST
// (comparison, logical AND/OR with short-circuit, field path lookup,
// literal), with no string evaluation and no reflection-based dynamic
// dispatch beyond a type switch on this tagged union.
//
// It is grounded on the teacher's own hand-rolled evaluator
// (internal/infrastructure/jsonlogic/executor.go in the source tree this
// was adapted from): a recursive-descent interpreter over map[string]any
// keyed by operator name, with "var" path resolution and a literal
// fall-through case. That shape is kept; what's added is everything the
// teacher's version lacked — depth/node/field-count limits at compile
// time, an operation budget at eval time, and a fixed field-path
// allow-list — because the teacher delegated anything more elaborate to
// the jsonlogic library, which has no hook for any of those limits.
package ruleeval

// Kind tags which variant of the AST a Node is.
type Kind int

const (
	KindLiteral Kind = iota
	KindField
	KindComparison
	KindLogical
)

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpEq  CompareOp = "=="
	OpNe  CompareOp = "!="
	OpLt  CompareOp = "<"
	OpLte CompareOp = "<="
	OpGt  CompareOp = ">"
	OpGte CompareOp = ">="
)

// LogicOp is a logical connective. Not takes exactly one child; And/Or
// take two or more and short-circuit.
type LogicOp string

const (
	OpAnd LogicOp = "and"
	OpOr  LogicOp = "or"
	OpNot LogicOp = "not"
)

// Node is one element of the compiled boolean AST. Exactly one group of
// fields is meaningful, selected by Kind — this is the tagged union the
// design notes call for in place of reflection or dynamic dispatch.
type Node struct {
	Kind Kind

	// KindLiteral
	Literal any // bool | string | Number | nil

	// KindField
	FieldPath []string // e.g. []string{"proposal", "region"}

	// KindComparison
	CompareOp CompareOp
	Left      *Node
	Right     *Node

	// KindLogical
	LogicOp  LogicOp
	Children []*Node
}

// Number is a decimal literal kept as its original string so comparisons
// never round-trip through float64.
type Number string
