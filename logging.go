package optix

import "time"

// ApplyLogEvent describes one optic application for logging.
type ApplyLogEvent struct {
	Op       string
	Path     string
	Arity    string
	PlanID   string
	CacheHit bool
	Foci     int
	Duration time.Duration
	Err      error
}

// ApplyLogger records optic application events.
type ApplyLogger interface {
	LogApply(ApplyLogEvent)
}

// ApplyLoggerFunc adapts a function to ApplyLogger.
type ApplyLoggerFunc func(ApplyLogEvent)

// LogApply implements ApplyLogger.
func (f ApplyLoggerFunc) LogApply(event ApplyLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopApplyLogger struct{}

func (noopApplyLogger) LogApply(ApplyLogEvent) {}

// WithApplyLogger attaches an application logger to the engine.
func WithApplyLogger(logger ApplyLogger) Option {
	return func(cfg *engineConfig) {
		if logger == nil {
			cfg.logger = noopApplyLogger{}
			return
		}
		cfg.logger = logger
	}
}
