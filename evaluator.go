package graphstate

import (
	"fmt"
	"time"
)

// RuleContext carries inputs needed when evaluating an expression.
type RuleContext struct {
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	// Scope labels the evaluation in errors and logs, usually a node path.
	Scope string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) scopeLabel() string {
	if ctx.Scope != "" {
		return ctx.Scope
	}
	return "unknown"
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// unavailableEvaluator stands in for an engine left out of the build.
type unavailableEvaluator struct {
	engine string
}

func (e unavailableEvaluator) Evaluate(RuleContext, string) (any, error) {
	return nil, fmt.Errorf("%w: %s", ErrEvaluatorUnavailable, e.engine)
}

func (e unavailableEvaluator) Compile(string) (CompiledRule, error) {
	return nil, fmt.Errorf("%w: %s", ErrEvaluatorUnavailable, e.engine)
}
