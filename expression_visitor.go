package graphstate

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// ExpressionVisitorOption configures ExpressionVisitor.
type ExpressionVisitorOption func(*expressionVisitor)

// WithExpressionArgs exposes args to every evaluation as the args variable.
func WithExpressionArgs(args map[string]any) ExpressionVisitorOption {
	return func(v *expressionVisitor) {
		v.args = args
	}
}

// WithExpressionMetadata exposes metadata to every evaluation.
func WithExpressionMetadata(metadata map[string]any) ExpressionVisitorOption {
	return func(v *expressionVisitor) {
		v.metadata = metadata
	}
}

// WithExpressionClock overrides the time bound to now.
func WithExpressionClock(clock func() time.Time) ExpressionVisitorOption {
	return func(v *expressionVisitor) {
		v.clock = clock
	}
}

type expressionVisitor struct {
	engine     string
	expression string
	rule       CompiledRule
	args       map[string]any
	metadata   map[string]any
	clock      func() time.Time
}

// ExpressionVisitor compiles expression once and returns a Visitor that
// evaluates it for every node. The expression sees the node through the
// variables typeName, path, depth, isRoot, isKeySet, isGenerated, relation,
// inCollection and entity (scalar fields by name). It must produce a state
// name, a State, or an empty string or null to leave the node untracked.
// A nil evaluator selects the expr engine.
func ExpressionVisitor(evaluator Evaluator, expression string, opts ...ExpressionVisitorOption) (Visitor, error) {
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}
	if evaluator == nil {
		return nil, fmt.Errorf("%w: evaluator not available", ErrInvalidIntent)
	}
	engine := evaluatorEngineName(evaluator)
	rule, err := evaluator.Compile(expression)
	if err != nil {
		return nil, wrapEvaluationError(engine, expression, "", err)
	}
	v := &expressionVisitor{
		engine:     engine,
		expression: expression,
		rule:       rule,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

func (v *expressionVisitor) Visit(node Node) (State, error) {
	now := v.clock()
	result, err := v.rule.Evaluate(RuleContext{
		Snapshot: nodeBinding(node),
		Now:      &now,
		Args:     v.args,
		Metadata: v.metadata,
		Scope:    node.Path,
	})
	if err != nil {
		return Detached, wrapEvaluationError(v.engine, v.expression, node.Path, err)
	}
	state, err := stateFromResult(result)
	if err != nil {
		return Detached, wrapEvaluationError(v.engine, v.expression, node.Path, err)
	}
	return state, nil
}

func stateFromResult(result any) (State, error) {
	switch value := result.(type) {
	case nil:
		return Detached, nil
	case State:
		return value, nil
	case string:
		if strings.TrimSpace(value) == "" {
			return Detached, nil
		}
		return ParseState(value)
	default:
		return Detached, fmt.Errorf("expression returned %T, want a state name", result)
	}
}

// nodeBindingTemplate lists every variable bound for a node with its zero
// value so compile-time type checks see the full environment.
func nodeBindingTemplate() map[string]any {
	return map[string]any{
		"typeName":     "",
		"path":         "",
		"relation":     "",
		"depth":        0,
		"isRoot":       false,
		"isKeySet":     false,
		"isGenerated":  false,
		"inCollection": false,
		"entity":       map[string]any{},
		"now":          time.Time{},
		"args":         map[string]any{},
		"metadata":     map[string]any{},
	}
}

func nodeBinding(node Node) map[string]any {
	binding := map[string]any{
		"typeName":     node.TypeName(),
		"path":         node.Path,
		"depth":        node.Depth,
		"isRoot":       node.IsRoot(),
		"isKeySet":     node.IsKeySet,
		"isGenerated":  node.IsGenerated,
		"inCollection": node.InCollection(),
		"relation":     "",
		"entity":       map[string]any{},
	}
	if node.Relation != nil {
		binding["relation"] = node.Relation.Name
	}
	if node.Type != nil {
		rv := reflect.ValueOf(node.Entity)
		if rv.Kind() == reflect.Pointer && !rv.IsNil() {
			binding["entity"] = node.Type.fieldValues(rv.Elem())
		}
	}
	return binding
}

func evaluatorEngineName(e Evaluator) string {
	switch v := e.(type) {
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	case *jsEvaluator:
		return "js"
	case unavailableEvaluator:
		return v.engine
	case nil:
		return "unknown"
	}
	return "custom"
}
