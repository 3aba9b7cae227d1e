package taskgraph

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"startupops/internal/stage"
)

// Builder turns stage results into a task graph. NewID allocates task ids;
// ids must be unique within one build.
type Builder struct {
	NewID func() string
}

// NewULIDSource returns an id allocator producing lexically increasing ULIDs,
// so allocation order is preserved when ids are sorted.
func NewULIDSource() func() string {
	var mu sync.Mutex
	entropy := ulid.Monotonic(rand.Reader, 0)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
	}
}

// BuildGraph builds a task graph with ULID ids.
func BuildGraph(results map[stage.Name]stage.Result) ([]Task, error) {
	return Builder{NewID: NewULIDSource()}.Build(results)
}

type slot struct {
	stage stage.Name
	local int
}

// synthesized cross-stage edges: the first task of key depends on the first
// task of value.
var crossStage = []struct{ from, to stage.Name }{
	{stage.Tech, stage.Product},
	{stage.Marketing, stage.Tech},
	{stage.Finance, stage.Tech},
}

// Build assigns ids in stage order product, tech, marketing, finance and
// local index order within a stage, resolves in-stage dependencies and adds
// the fixed cross-stage edges. Local references that do not point to an
// earlier task of the same stage are dropped. The result is checked for
// cycles; a cycle is a GraphError.
func (b Builder) Build(results map[stage.Name]stage.Result) ([]Task, error) {
	newID := b.NewID
	if newID == nil {
		newID = NewULIDSource()
	}

	ids := make(map[slot]string)
	var tasks []Task
	for _, name := range stage.TaskStages() {
		for i, raw := range results[name].Tasks() {
			id := newID()
			ids[slot{name, i}] = id
			tasks = append(tasks, Task{
				ID:            id,
				Stage:         name,
				Title:         raw.Title,
				Description:   raw.Description,
				Priority:      raw.Priority,
				EstimatedDays: raw.EstimatedDays,
				Status:        Pending,
			})
		}
	}

	// Second pass: resolve dependencies now that every id exists.
	pos := 0
	for _, name := range stage.TaskStages() {
		for i, raw := range results[name].Tasks() {
			var deps []string
			for _, d := range raw.LocalDependencies {
				if d >= i {
					continue
				}
				if id, ok := ids[slot{name, d}]; ok {
					deps = append(deps, id)
				}
			}
			if i == 0 {
				for _, e := range crossStage {
					if e.from != name {
						continue
					}
					if id, ok := ids[slot{e.to, 0}]; ok {
						deps = append(deps, id)
					}
				}
			}
			tasks[pos].Dependencies = dedupe(deps)
			pos++
		}
	}

	if err := CheckAcyclic(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
