package graphstate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidOperation is matched by every *InvalidOperationError.
	ErrInvalidOperation = errors.New("graphstate: invalid operation")
	// ErrInvalidIntent reports a malformed Intent.
	ErrInvalidIntent = errors.New("graphstate: invalid intent")
	// ErrNoKeyDescriptor reports an entity type without key fields.
	ErrNoKeyDescriptor = errors.New("graphstate: no key descriptor")
	// ErrInvalidRoot reports a root that is not a non-nil pointer to a struct.
	ErrInvalidRoot = errors.New("graphstate: invalid root")
	// ErrEvaluatorUnavailable reports an expression engine left out of the build.
	ErrEvaluatorUnavailable = errors.New("graphstate: evaluator unavailable")
)

// InvalidOperationError is returned when an intent requires an existing row
// but the root's store-generated key has not been set.
type InvalidOperationError struct {
	Operation Operation
	State     State
	Type      string
	Path      string
	Keys      []string
}

func (e *InvalidOperationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("graphstate: cannot %s %s at %q in state %s: store-generated key %s is not set",
		e.Operation, e.Type, e.Path, e.State, strings.Join(e.Keys, ","))
}

// Is matches ErrInvalidOperation.
func (e *InvalidOperationError) Is(target error) bool {
	return target == ErrInvalidOperation
}

// ConfigurationError carries the type that failed model inspection.
type ConfigurationError struct {
	Type string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Type == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: type=%s", e.Err, e.Type)
}

func (e *ConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Scope  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("graphstate: %s evaluator %s scope=%s: %v", e.Engine, describeExpression(e.Expr), e.Scope, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "graphstate:") {
		return err
	}
	return fmt.Errorf("graphstate: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, scope string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Scope == "" {
			evalErr.Scope = scope
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Scope:  scope,
		Err:    err,
	}
}
