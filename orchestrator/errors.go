package orchestrator

import "fmt"

// ConfigError marks a configuration no run can start from. The CLI
// maps it to its own exit code so scripts can tell bad config apart
// from a test that went wrong.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}
