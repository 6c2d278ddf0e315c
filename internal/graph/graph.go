// Package graph builds the directed acyclic stage graph described by a
// pipeline's stage configs: it resolves named edges between stage outputs
// and inputs, rejects unknown stage types, duplicate names and dangling
// edges, and produces a topologically sorted stage order (producers before
// the stages that consume their outputs), in which the executor initializes
// the stages; it starts their threads in no particular order.
package graph

import (
	"fmt"
	"sort"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/stage"
)

// Edge is one resolved data-plane connection from a producing stage's
// named output to a consuming stage's named input.
type Edge struct {
	Name string // the shared edge identifier, e.g. "eeg_source.raw_data"
	From string // producing stage name
	To   string // consuming stage name
}

// Graph is the resolved, validated stage DAG for one pipeline.
type Graph struct {
	Configs map[string]stage.Config // by stage name
	Order   []string                // topologically sorted stage names
	In      map[string][]Edge       // stage name -> inbound edges
	Out     map[string][]Edge       // stage name -> outbound edges
}

// Build validates configs and resolves them into a Graph. Disabled stages
// (Config.IsEnabled() == false) are dropped before validation; an enabled
// stage whose input is produced only by a disabled stage fails with
// ErrCodeStageNotFound.
func Build(configs []stage.Config) (*Graph, error) {
	enabled := make([]stage.Config, 0, len(configs))
	for _, c := range configs {
		if c.IsEnabled() {
			enabled = append(enabled, c)
		}
	}

	byName := make(map[string]stage.Config, len(enabled))
	for _, c := range enabled {
		if _, dup := byName[c.Name]; dup {
			return nil, &eegpipe.Error{Op: "graph.Build", Code: eegpipe.ErrCodeDuplicateStageName, StageName: c.Name}
		}
		if !stage.IsRegistered(c.Type) {
			return nil, &eegpipe.Error{Op: "graph.Build", Code: eegpipe.ErrCodeUnknownStageType, StageName: c.Name}
		}
		byName[c.Name] = c
	}

	// Map each output edge name to the stage that produces it.
	producer := make(map[string]string, len(enabled))
	for _, c := range enabled {
		for _, out := range c.Outputs {
			if existing, dup := producer[out]; dup {
				return nil, &eegpipe.Error{Op: "graph.Build", Code: eegpipe.ErrCodeBadConfig, StageName: c.Name,
					Inner: badConfigf("output %q already produced by stage %q", out, existing)}
			}
			producer[out] = c.Name
		}
	}

	in := make(map[string][]Edge, len(enabled))
	out := make(map[string][]Edge, len(enabled))
	adj := make(map[string][]string, len(enabled))

	for _, c := range enabled {
		for _, input := range c.Inputs {
			from, ok := producer[input]
			if !ok {
				return nil, &eegpipe.Error{Op: "graph.Build", Code: eegpipe.ErrCodeStageNotFound, StageName: c.Name,
					Inner: badConfigf("no stage produces input %q", input)}
			}
			e := Edge{Name: input, From: from, To: c.Name}
			in[c.Name] = append(in[c.Name], e)
			out[from] = append(out[from], e)
			adj[from] = append(adj[from], c.Name)
		}
	}

	order, err := topoSort(byName, adj)
	if err != nil {
		return nil, err
	}

	return &Graph{Configs: byName, Order: order, In: in, Out: out}, nil
}

// colorState is the white/grey/black marking used by the DFS-based cycle
// detector.
type colorState int

const (
	white colorState = iota
	grey
	black
)

func topoSort(byName map[string]stage.Config, adj map[string][]string) ([]string, error) {
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names) // deterministic iteration order for reproducible results

	color := make(map[string]colorState, len(names))
	var order []string
	var visit func(n string) error

	visit = func(n string) error {
		switch color[n] {
		case black:
			return nil
		case grey:
			return &eegpipe.Error{Op: "graph.Build", Code: eegpipe.ErrCodeCircularDependency, StageName: n}
		}
		color[n] = grey
		next := append([]string(nil), adj[n]...)
		sort.Strings(next)
		for _, m := range next {
			if err := visit(m); err != nil {
				return err
			}
		}
		color[n] = black
		order = append(order, n)
		return nil
	}

	for _, n := range names {
		if color[n] == white {
			if err := visit(n); err != nil {
				return nil, err
			}
		}
	}

	// visit appends in post-order (dependencies last); reverse for a
	// producers-before-consumers order.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

func badConfigf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
