package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidAgentKinds returns the supported agent kinds.
func ValidAgentKinds() []string {
	return []string{"mock", "fixture", "http", "codex"}
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Throttle.Capacity < 1 {
		errs = append(errs, ValidationError{Field: "throttle.capacity", Value: c.Throttle.Capacity, Message: "must be at least 1"})
	}

	if !slices.Contains(ValidAgentKinds(), c.Agent.Kind) {
		errs = append(errs, ValidationError{
			Field:   "agent.kind",
			Value:   c.Agent.Kind,
			Message: "must be one of " + strings.Join(ValidAgentKinds(), ", "),
		})
	}
	if c.Agent.Kind == "http" && strings.TrimSpace(c.Agent.BaseURL) == "" {
		errs = append(errs, ValidationError{Field: "agent.base_url", Value: c.Agent.BaseURL, Message: "required for the http agent"})
	}
	if c.Agent.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "agent.timeout", Value: c.Agent.Timeout, Message: "must not be negative"})
	}
	if c.Agent.MaxRetries < 0 {
		errs = append(errs, ValidationError{Field: "agent.max_retries", Value: c.Agent.MaxRetries, Message: "must not be negative"})
	}
	for name := range c.Agent.Models {
		switch name {
		case "product", "tech", "marketing", "finance", "advisor":
		default:
			errs = append(errs, ValidationError{Field: "agent.models", Value: name, Message: "unknown stage"})
		}
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: "must be one of " + strings.Join(ValidLogLevels(), ", "),
		})
	}
	if !slices.Contains(ValidLogFormats(), c.Logging.Format) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: "must be one of " + strings.Join(ValidLogFormats(), ", "),
		})
	}

	if c.Daemon.PollInterval <= 0 {
		errs = append(errs, ValidationError{Field: "daemon.poll_interval", Value: c.Daemon.PollInterval, Message: "must be positive"})
	}
	if c.Daemon.LeaseFor <= 0 {
		errs = append(errs, ValidationError{Field: "daemon.lease_for", Value: c.Daemon.LeaseFor, Message: "must be positive"})
	}

	return errs
}
