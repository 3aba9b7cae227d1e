package stage

import (
	"errors"
	"fmt"
)

// Validate checks that an agent result has the structure the pipeline reads.
// Missing keys are fine; keys that are present must have the expected shape.
func Validate(name Name, r Result) error {
	if r == nil {
		return &ReasoningFailure{Stage: name, Err: errors.New("empty result")}
	}
	if err := checkObjectList(r, "tasks"); err != nil {
		return &ReasoningFailure{Stage: name, Err: err}
	}

	switch name {
	case Product:
		if v, ok := r["recommended_launch_timeline_days"]; ok && v != nil {
			if _, ok := asFloat(v); !ok {
				return &ReasoningFailure{Stage: name, Err: fmt.Errorf("recommended_launch_timeline_days must be a number, got %T", v)}
			}
		}
	case Marketing, Finance:
		if err := checkObjectList(r, "kpis"); err != nil {
			return &ReasoningFailure{Stage: name, Err: err}
		}
	case Advisor:
		if err := checkObjectList(r, "alerts"); err != nil {
			return &ReasoningFailure{Stage: name, Err: err}
		}
	}
	return nil
}

func checkObjectList(r Result, key string) error {
	v, ok := r[key]
	if !ok || v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("%s must be a list, got %T", key, v)
	}
	for i, item := range items {
		if _, ok := asMap(item); !ok {
			return fmt.Errorf("%s[%d] must be an object, got %T", key, i, item)
		}
	}
	return nil
}
