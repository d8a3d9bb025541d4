package refract

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by frames rendered after Pipeline.Close.
	ErrClosed = errors.New("refract: pipeline closed")
	// ErrStopped is returned by a Scheduler that will not produce more frames.
	ErrStopped = errors.New("refract: scheduler stopped")
)

// ConfigurationError reports an invalid configuration value, such as a
// viewport with zero width.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}
