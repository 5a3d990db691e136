package graphstate

// JSEvaluatorOption configures the JS evaluator.
type JSEvaluatorOption func(*jsEvaluator)

// JSWithProgramCache wires a ProgramCache into the JS evaluator.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(e *jsEvaluator) {
		e.cache = cache
	}
}

// JSWithFunctionRegistry wires a FunctionRegistry into the JS evaluator.
// Registered functions are bound as globals and through call("name", args...).
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(e *jsEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// jsEvaluator is declared in every build so options and engine naming work
// whether or not goja is compiled in.
type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

func newJSEvaluator(opts []JSEvaluatorOption) *jsEvaluator {
	e := &jsEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}
