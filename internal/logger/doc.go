// Package logger wraps zap with a process-wide sugared logger, a
// runtime-adjustable level and context helpers: ToContext/FromContext plus
// WithName and WithKV for scoped loggers. All logging in the project goes
// through the context variants (Infof, WarnKV, ...) so per-source and
// per-operation fields travel with the context.
package logger
