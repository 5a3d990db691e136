package graphstate

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-graphstate/internal/hydrate"
)

// PayloadOption configures ResolvePayload.
type PayloadOption[T any] func(*payloadConfig[T])

type payloadConfig[T any] struct {
	source  string
	options []hydrate.DecoderOption[T]
}

// WithPayloadSource labels the payload in errors, e.g. with the request route.
func WithPayloadSource[T any](source string) PayloadOption[T] {
	return func(cfg *payloadConfig[T]) {
		cfg.source = source
	}
}

// WithStrictPayload rejects payload fields that do not exist on the graph.
func WithStrictPayload[T any]() PayloadOption[T] {
	return func(cfg *payloadConfig[T]) {
		cfg.options = append(cfg.options, hydrate.WithDisallowUnknownFields[T]())
	}
}

// WithPayloadTransform rewrites the raw payload before it is decoded.
func WithPayloadTransform[T any](fn func(map[string]any) (map[string]any, error)) PayloadOption[T] {
	return func(cfg *payloadConfig[T]) {
		if fn == nil {
			return
		}
		cfg.options = append(cfg.options, hydrate.WithPreHook[T](func(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
			return fn(payload)
		}))
	}
}

// WithPayloadValidator checks the decoded graph before it is resolved.
func WithPayloadValidator[T any](fn func(*T) error) PayloadOption[T] {
	return func(cfg *payloadConfig[T]) {
		if fn == nil {
			return
		}
		cfg.options = append(cfg.options, hydrate.WithPostHook[T](func(_ hydrate.Context, graph *T) error {
			return fn(graph)
		}))
	}
}

// ResolvePayload decodes a JSON payload into a new graph rooted at T and
// resolves it with intent. T must be a struct type. This is the usual entry
// point for graphs that arrive from a client without their original
// tracking information.
func ResolvePayload[T any](r *Resolver, data []byte, intent Intent, opts ...PayloadOption[T]) (*T, *ChangeSet, error) {
	if r == nil {
		r = NewResolver()
	}
	if t := reflect.TypeOf((*T)(nil)).Elem(); t.Kind() != reflect.Struct {
		return nil, nil, &ConfigurationError{Type: t.String(), Err: ErrInvalidRoot}
	}
	cfg := payloadConfig[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	decoder := hydrate.NewDecoder[T](cfg.options...)
	graph, err := decoder.DecodeJSON(hydrate.Context{Source: cfg.source, Operation: intent.Operation.String()}, data)
	if err != nil {
		return nil, nil, fmt.Errorf("graphstate: %w", err)
	}
	root := &graph
	changes, err := r.Resolve(root, intent)
	if err != nil {
		return nil, nil, err
	}
	return root, changes, nil
}
