package apperr

import "time"

type Kind string

type AppError struct {
	Kind       Kind
	PublicMsg  string            // safe to show to the caller
	Fields     map[string]string // per-field validation errors (optional)
	RetryAfter time.Duration     // Unavailable only; 0 means no hint
	Err        error             // internal cause, logged only
}
