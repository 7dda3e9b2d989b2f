package config

import "fmt"

// ConfigurationError is a fatal setup problem: a missing credential, an
// unreadable schema, or an invalid setting. Nothing has been fetched or
// written when it is returned.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %v", e.Reason, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
