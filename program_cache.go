package optix

// ProgramCache stores compiled predicate programs keyed by expression
// strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache registers a program cache shared by expression-backed
// predicate evaluators created through the engine.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *engineConfig) {
		cfg.programCache = cache
	}
}
