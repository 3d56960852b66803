package ruleeval

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Victor-armando18/pricing-engine/internal/domain/pricingerr"
)

// Limits are the compile-time safety ceilings from §4.2.
const (
	MaxDepth           = 10
	MaxNodes           = 100
	MaxDistinctFields  = 20
	MaxEvalOperations  = 1000
)

// CompiledRule is a validated AST ready for repeated, safe evaluation.
type CompiledRule struct {
	Root        *Node
	NodeCount   int
	Depth       int
	FieldPaths  []string // distinct, sorted, for diagnostics/caching
}

// Compile validates and builds the AST for a single rule expression. raw
// is the JSON-decoded rule body, using the small grammar:
//
//	{"var": "proposal.region"}            field lookup
//	{"==": [a, b]}, "!=", "<", "<=", ">", ">="   comparison
//	{"and": [a, b, ...]}, {"or": [...]}    logical, >=2 children
//	{"not": [a]}                           logical negation
//	true | false | "literal" | 1.5         literal
//
// The returned error, if any, is always a *pricingerr.Error of kind
// RuleCompileError.
func Compile(raw any) (*CompiledRule, error) {
	counter := &counters{fields: map[string]bool{}}
	root, err := compileNode(raw, 1, counter)
	if err != nil {
		return nil, err
	}
	if root.Kind != KindComparison && root.Kind != KindLogical {
		return nil, pricingerr.New(pricingerr.RuleCompileError,
			"rule root must be a boolean expression (comparison or logical), not a bare literal or field")
	}
	fields := make([]string, 0, len(counter.fields))
	for f := range counter.fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return &CompiledRule{
		Root:       root,
		NodeCount:  counter.nodes,
		Depth:      counter.maxDepth,
		FieldPaths: fields,
	}, nil
}

type counters struct {
	nodes    int
	maxDepth int
	fields   map[string]bool
}

func compileNode(raw any, depth int, c *counters) (*Node, error) {
	if depth > MaxDepth {
		return nil, pricingerr.Newf(pricingerr.RuleCompileError, "rule AST exceeds max depth %d", MaxDepth)
	}
	c.nodes++
	if c.nodes > MaxNodes {
		return nil, pricingerr.Newf(pricingerr.RuleCompileError, "rule AST exceeds max node count %d", MaxNodes)
	}
	if depth > c.maxDepth {
		c.maxDepth = depth
	}

	switch v := raw.(type) {
	case nil:
		return &Node{Kind: KindLiteral, Literal: nil}, nil
	case bool:
		return &Node{Kind: KindLiteral, Literal: v}, nil
	case string:
		return &Node{Kind: KindLiteral, Literal: v}, nil
	case float64:
		return &Node{Kind: KindLiteral, Literal: Number(strconv.FormatFloat(v, 'f', -1, 64))}, nil
	case int:
		return &Node{Kind: KindLiteral, Literal: Number(strconv.Itoa(v))}, nil
	case json.Number:
		return &Node{Kind: KindLiteral, Literal: Number(v.String())}, nil
	case Number:
		return &Node{Kind: KindLiteral, Literal: v}, nil
	case map[string]any:
		return compileOp(v, depth, c)
	default:
		return nil, pricingerr.Newf(pricingerr.RuleCompileError, "unsupported literal type %T in rule", raw)
	}
}

func compileOp(m map[string]any, depth int, c *counters) (*Node, error) {
	if len(m) != 1 {
		return nil, pricingerr.New(pricingerr.RuleCompileError,
			"rule operator object must have exactly one key")
	}
	for op, args := range m {
		switch op {
		case "var":
			path, ok := args.(string)
			if !ok {
				return nil, pricingerr.New(pricingerr.RuleCompileError, "var argument must be a string path")
			}
			segments := strings.Split(path, ".")
			if len(segments) == 0 || !AllowedRoots[segments[0]] {
				return nil, pricingerr.Newf(pricingerr.RuleCompileError,
					"field path %q is not under an allowed root", path)
			}
			c.fields[path] = true
			if len(c.fields) > MaxDistinctFields {
				return nil, pricingerr.Newf(pricingerr.RuleCompileError,
					"rule references more than %d distinct field paths", MaxDistinctFields)
			}
			return &Node{Kind: KindField, FieldPath: segments}, nil

		case string(OpEq), string(OpNe), string(OpLt), string(OpLte), string(OpGt), string(OpGte):
			pair, ok := args.([]any)
			if !ok || len(pair) != 2 {
				return nil, pricingerr.Newf(pricingerr.RuleCompileError, "%q requires exactly two arguments", op)
			}
			left, err := compileNode(pair[0], depth+1, c)
			if err != nil {
				return nil, err
			}
			right, err := compileNode(pair[1], depth+1, c)
			if err != nil {
				return nil, err
			}
			return &Node{Kind: KindComparison, CompareOp: CompareOp(op), Left: left, Right: right}, nil

		case string(OpAnd), string(OpOr):
			items, ok := args.([]any)
			if !ok || len(items) < 2 {
				return nil, pricingerr.Newf(pricingerr.RuleCompileError, "%q requires at least two arguments", op)
			}
			children := make([]*Node, 0, len(items))
			for _, item := range items {
				child, err := compileNode(item, depth+1, c)
				if err != nil {
					return nil, err
				}
				children = append(children, child)
			}
			return &Node{Kind: KindLogical, LogicOp: LogicOp(op), Children: children}, nil

		case string(OpNot):
			inner := args
			if list, ok := args.([]any); ok {
				if len(list) != 1 {
					return nil, pricingerr.New(pricingerr.RuleCompileError, "\"not\" requires exactly one argument")
				}
				inner = list[0]
			}
			child, err := compileNode(inner, depth+1, c)
			if err != nil {
				return nil, err
			}
			return &Node{Kind: KindLogical, LogicOp: OpNot, Children: []*Node{child}}, nil

		default:
			return nil, pricingerr.Newf(pricingerr.RuleCompileError, "unsupported rule operator %q", op)
		}
	}
	return nil, fmt.Errorf("unreachable") // len(m) == 1 guarantees the loop above returns.
}
