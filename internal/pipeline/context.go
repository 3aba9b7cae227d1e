package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinGoalLength   = 10
	MaxGoalLength   = 500
	MinDomainLength = 2
	MaxDomainLength = 100
	MinTeamSize     = 1
	MaxTeamSize     = 100
)

// StartupContext is the founder input a pipeline run plans for.
type StartupContext struct {
	Goal     string `json:"goal"`
	Domain   string `json:"domain"`
	TeamSize int    `json:"team_size"`
}

// ValidationError describes one invalid StartupContext field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return "invalid startup context: " + strings.Join(msgs, "; ")
}

// Validate checks field bounds. Lengths count characters of the trimmed value.
func (c StartupContext) Validate() error {
	var errs ValidationErrors
	if n := utf8.RuneCountInString(strings.TrimSpace(c.Goal)); n < MinGoalLength || n > MaxGoalLength {
		errs = append(errs, ValidationError{
			Field:   "goal",
			Message: fmt.Sprintf("must be %d-%d characters, got %d", MinGoalLength, MaxGoalLength, n),
		})
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(c.Domain)); n < MinDomainLength || n > MaxDomainLength {
		errs = append(errs, ValidationError{
			Field:   "domain",
			Message: fmt.Sprintf("must be %d-%d characters, got %d", MinDomainLength, MaxDomainLength, n),
		})
	}
	if c.TeamSize < MinTeamSize || c.TeamSize > MaxTeamSize {
		errs = append(errs, ValidationError{
			Field:   "team_size",
			Message: fmt.Sprintf("must be between %d and %d, got %d", MinTeamSize, MaxTeamSize, c.TeamSize),
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
