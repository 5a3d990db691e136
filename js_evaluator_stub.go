//go:build !js_eval

package graphstate

// NewJSEvaluator returns an evaluator that fails every call with
// ErrEvaluatorUnavailable. Build with the js_eval tag to get goja.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = newJSEvaluator(opts)
	return unavailableEvaluator{engine: "js"}
}

func jsEvaluatorAvailable() bool {
	return false
}
