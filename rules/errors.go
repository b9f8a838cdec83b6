package rules

import (
	"errors"
	"fmt"
)

var (
	ErrDrop = errors.New("dropped packet due to rule")
)

// ConfigError is returned for every problem found while compiling or
// installing a match. A rule that fails with a ConfigError is never installed.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

func wrapConfigError(err error, format string, args ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsConfigError reports whether err was caused by an invalid match configuration.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
