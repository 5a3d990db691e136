package graphstate

// Option configures a Resolver.
type Option func(*resolverConfig)

type resolverConfig struct {
	model        *Model
	modelOptions []ModelOption
	logger       ResolutionLogger
}

func applyOptions(opts []Option) resolverConfig {
	cfg := resolverConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithModel shares model between resolvers. Model options passed through
// WithModelOptions are ignored when a model is supplied.
func WithModel(model *Model) Option {
	return func(cfg *resolverConfig) {
		cfg.model = model
	}
}

// WithModelOptions configures the Model the resolver builds for itself.
func WithModelOptions(opts ...ModelOption) Option {
	return func(cfg *resolverConfig) {
		cfg.modelOptions = append(cfg.modelOptions, opts...)
	}
}

// WithLogger attaches a resolution logger.
func WithLogger(logger ResolutionLogger) Option {
	return func(cfg *resolverConfig) {
		if logger == nil {
			cfg.logger = noopResolutionLogger{}
			return
		}
		cfg.logger = logger
	}
}
