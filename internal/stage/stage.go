package stage

import (
	"errors"
	"fmt"
	"math"
)

// Name identifies one of the fixed pipeline stages.
type Name string

const (
	Product   Name = "product"
	Tech      Name = "tech"
	Marketing Name = "marketing"
	Finance   Name = "finance"
	Advisor   Name = "advisor"
)

// All returns every stage in pipeline order.
func All() []Name {
	return []Name{Product, Tech, Marketing, Finance, Advisor}
}

// TaskStages returns the stages that contribute tasks, in id allocation order.
func TaskStages() []Name {
	return []Name{Product, Tech, Marketing, Finance}
}

// ParseName validates a stage name.
func ParseName(s string) (Name, error) {
	for _, n := range All() {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// ReasoningFailure reports that a stage agent failed or returned output the
// pipeline cannot use. It is recovered into an error-shaped Result.
type ReasoningFailure struct {
	Stage Name
	Err   error
}

func (e *ReasoningFailure) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *ReasoningFailure) Unwrap() error { return e.Err }

// IsReasoningFailure reports whether err is a ReasoningFailure.
func IsReasoningFailure(err error) bool {
	var rf *ReasoningFailure
	return errors.As(err, &rf)
}

// Result is the structured object a stage agent returns.
type Result map[string]any

// ErrorResult builds the error-shaped result recorded for a failed stage.
func ErrorResult(name Name, err error) Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{"error": msg, "agent": string(name)}
}

// IsError reports whether r is an error-shaped result.
func (r Result) IsError() bool {
	if r == nil {
		return false
	}
	_, ok := r["error"]
	return ok
}

// Error returns the error message of an error-shaped result.
func (r Result) Error() string {
	if r == nil {
		return ""
	}
	msg, _ := r["error"].(string)
	return msg
}

// Output returns the result as seen by downstream stages: an error-shaped or
// missing result reads as an empty object.
func (r Result) Output() Result {
	if r == nil || r.IsError() {
		return Result{}
	}
	return r
}

// List returns the list stored under key, or nil.
func (r Result) List(key string) []any {
	if r == nil {
		return nil
	}
	v, _ := r[key].([]any)
	return v
}

// Int returns the integer stored under key, or def when absent or not a
// whole number.
func (r Result) Int(key string, def int) int {
	if r == nil {
		return def
	}
	n, ok := asInt(r[key])
	if !ok {
		return def
	}
	return n
}

// Tasks decodes the raw task list of the result.
func (r Result) Tasks() []RawTask {
	items := r.Output().List("tasks")
	tasks := make([]RawTask, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		tasks = append(tasks, DecodeRawTask(m))
	}
	return tasks
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Result:
		return m, true
	default:
		return nil, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
