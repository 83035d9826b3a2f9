package analysis

import "fmt"

// ConfigError reports a missing executable, script, or input: an
// operator-fixable condition detected before any subprocess is spawned.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

// ProcessError reports a failed analysis run. Diagnostic carries bounded
// captured stderr/stdout text, never a raw stack trace.
type ProcessError struct {
	Reason     string
	Diagnostic string
	Timeout    bool
}

func (e *ProcessError) Error() string {
	if e.Diagnostic == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Diagnostic)
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}
