package taskgraph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph = errors.New("invalid task graph")
	ErrCycle        = errors.New("cycle detected")
)

// GraphError reports a task graph that violates its structural invariants.
// It always indicates a construction bug.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

// CheckAcyclic verifies ids are unique and the dependency relation has no
// cycle. Dependencies on ids outside tasks are ignored.
func CheckAcyclic(tasks []Task) error {
	_, err := TopoOrder(tasks)
	return err
}

// TopoOrder returns task ids so that every task follows its dependencies.
// Ties keep input order.
func TopoOrder(tasks []Task) ([]string, error) {
	pos := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if _, dup := pos[t.ID]; dup {
			return nil, &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf("duplicate task id %s", t.ID)}
		}
		pos[t.ID] = i
	}

	indegree := make([]int, len(tasks))
	dependents := make([][]int, len(tasks))
	for i, t := range tasks {
		for _, dep := range t.Dependencies {
			j, ok := pos[dep]
			if !ok {
				continue
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var queue []int
	for i := range tasks {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]string, 0, len(tasks))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, tasks[i].ID)
		for _, d := range dependents[i] {
			indegree[d]--
			if indegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	if len(order) != len(tasks) {
		return nil, &GraphError{Kind: ErrCycle, Msg: "cycle: " + strings.Join(findCycle(tasks, pos, indegree), " -> ")}
	}
	return order, nil
}

// findCycle walks dependencies from the first task left with a positive
// indegree until an id repeats.
func findCycle(tasks []Task, pos map[string]int, indegree []int) []string {
	start := -1
	for i := range tasks {
		if indegree[i] > 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	seen := make(map[int]int)
	var path []int
	cur := start
	for {
		if at, ok := seen[cur]; ok {
			ids := make([]string, 0, len(path)-at+1)
			for _, i := range path[at:] {
				ids = append(ids, tasks[i].ID)
			}
			return append(ids, tasks[cur].ID)
		}
		seen[cur] = len(path)
		path = append(path, cur)
		next := -1
		for _, dep := range tasks[cur].Dependencies {
			if j, ok := pos[dep]; ok && indegree[j] > 0 {
				next = j
				break
			}
		}
		if next < 0 {
			return []string{tasks[start].ID}
		}
		cur = next
	}
}
