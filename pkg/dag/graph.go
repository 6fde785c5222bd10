// Package dag declares task dependencies and runs them level by level.
package dag

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrCycle is returned when the dependency graph is not acyclic
	ErrCycle = errors.New("dependency cycle")
	// ErrUnknownTask is returned for references to undeclared or unregistered tasks
	ErrUnknownTask = errors.New("unknown task")
	// ErrUpstreamFailed marks a task skipped because a dependency did not succeed
	ErrUpstreamFailed = errors.New("upstream task failed")
)

// TaskSpec declares one task and its direct dependencies.
type TaskSpec struct {
	Name      string   `yaml:"name"`
	DependsOn []string `yaml:"depends_on,omitempty"`
}

// Spec is the on-disk DAG definition:
//
//	tasks:
//	  - name: ingest_country
//	  - name: transform_country
//	    depends_on: [ingest_country]
type Spec struct {
	Tasks []TaskSpec `yaml:"tasks"`
}

// ParseSpec decodes a YAML DAG definition.
func ParseSpec(data []byte) (Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Spec{}, fmt.Errorf("parse dag: %w", err)
	}
	return s, nil
}

// LoadSpec reads and decodes a YAML DAG file.
func LoadSpec(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read dag file: %w", err)
	}
	return ParseSpec(data)
}

// Graph is a validated, acyclic Spec with its topological levels computed.
type Graph struct {
	order  []string
	deps   map[string][]string
	levels [][]string
}

// Build validates spec and groups tasks into levels: every task sits one level
// below its deepest dependency. Within a level, declaration order is kept.
func Build(spec Spec) (*Graph, error) {
	g := &Graph{deps: make(map[string][]string, len(spec.Tasks))}
	for _, t := range spec.Tasks {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("task without a name")
		}
		if _, dup := g.deps[name]; dup {
			return nil, fmt.Errorf("task %q declared twice", name)
		}
		deps := make([]string, 0, len(t.DependsOn))
		for _, d := range t.DependsOn {
			if d = strings.TrimSpace(d); d != "" {
				deps = append(deps, d)
			}
		}
		g.deps[name] = deps
		g.order = append(g.order, name)
	}
	for _, name := range g.order {
		for _, d := range g.deps[name] {
			if _, ok := g.deps[d]; !ok {
				return nil, fmt.Errorf("%w: %q depends on %q", ErrUnknownTask, name, d)
			}
		}
	}

	level := make(map[string]int, len(g.order))
	placed := 0
	for placed < len(g.order) {
		progressed := false
		for _, name := range g.order {
			if _, done := level[name]; done {
				continue
			}
			lv, ready := 0, true
			for _, d := range g.deps[name] {
				dl, ok := level[d]
				if !ok {
					ready = false
					break
				}
				if dl+1 > lv {
					lv = dl + 1
				}
			}
			if !ready {
				continue
			}
			level[name] = lv
			placed++
			progressed = true
		}
		if !progressed {
			var stuck []string
			for _, name := range g.order {
				if _, done := level[name]; !done {
					stuck = append(stuck, name)
				}
			}
			return nil, fmt.Errorf("%w among %s", ErrCycle, strings.Join(stuck, ", "))
		}
	}

	for _, name := range g.order {
		lv := level[name]
		for len(g.levels) <= lv {
			g.levels = append(g.levels, nil)
		}
		g.levels[lv] = append(g.levels[lv], name)
	}
	return g, nil
}

// Levels returns the tasks grouped by topological level.
func (g *Graph) Levels() [][]string {
	out := make([][]string, len(g.levels))
	for i, l := range g.levels {
		out[i] = append([]string(nil), l...)
	}
	return out
}

// Names returns every task in declaration order.
func (g *Graph) Names() []string { return append([]string(nil), g.order...) }

// DependsOn returns the direct dependencies of a task.
func (g *Graph) DependsOn(name string) []string { return append([]string(nil), g.deps[name]...) }

// Has reports whether the graph declares name.
func (g *Graph) Has(name string) bool {
	_, ok := g.deps[name]
	return ok
}
