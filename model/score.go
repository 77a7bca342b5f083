package model

import "github.com/celesta-db/celesta"

// Score is the process-wide collection of grains, keyed by unique grain
// name, with one designated system grain whose tables hold upgrade
// state.
type Score struct {
	grains      map[string]*Grain
	grainOrder  []string
	systemGrain string
}

// NewScore constructs an empty score.
func NewScore() *Score {
	return &Score{grains: make(map[string]*Grain)}
}

// AddGrain registers g, rejecting a duplicate grain name.
func (s *Score) AddGrain(g *Grain) error {
	if _, exists := s.grains[g.name]; exists {
		return celesta.New(celesta.KindIllegalState, "grain %q already registered in score", g.name)
	}
	g.score = s
	s.grains[g.name] = g
	s.grainOrder = append(s.grainOrder, g.name)
	return nil
}

// SetSystemGrain designates name as the system grain. name must already
// be registered.
func (s *Score) SetSystemGrain(name string) error {
	if _, ok := s.grains[name]; !ok {
		return celesta.New(celesta.KindIllegalState, "cannot designate unknown grain %q as system grain", name)
	}
	s.systemGrain = name
	return nil
}

// SystemGrain returns the designated system grain, or (nil, false) if
// none has been set.
func (s *Score) SystemGrain() (*Grain, bool) {
	if s.systemGrain == "" {
		return nil, false
	}
	return s.Grain(s.systemGrain)
}

func (s *Score) Grain(name string) (*Grain, bool) {
	g, ok := s.grains[name]
	return g, ok
}

// Grains returns every registered grain in registration order.
func (s *Score) Grains() []*Grain {
	gs := make([]*Grain, len(s.grainOrder))
	for i, name := range s.grainOrder {
		gs[i] = s.grains[name]
	}
	return gs
}

// ResolveReferences resolves every table's foreign keys across all
// grains, then computes each grain's DependencyOrder as the length of
// the longest path starting from it in the inter-grain reference DAG.
// A cycle across grains fails with KindCyclicGrainDependency.
func (s *Score) ResolveReferences() error {
	for _, g := range s.Grains() {
		if err := g.resolveReferences(s); err != nil {
			return err
		}
	}

	edges := make(map[string][]string, len(s.grains))
	for _, g := range s.Grains() {
		edges[g.name] = g.outgoingGrainNames()
	}

	order := make(map[string]int, len(s.grains))
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var longestPath func(name string) (int, error)
	longestPath = func(name string) (int, error) {
		if visited[name] {
			return order[name], nil
		}
		if visiting[name] {
			return 0, celesta.NewParse(celesta.KindCyclicGrainDependency, "cyclic dependency detected involving grain %q", name)
		}
		visiting[name] = true

		best := 0
		for _, dep := range edges[name] {
			if _, exists := s.grains[dep]; !exists {
				continue
			}
			depOrder, err := longestPath(dep)
			if err != nil {
				return 0, err
			}
			if depOrder+1 > best {
				best = depOrder + 1
			}
		}

		visiting[name] = false
		visited[name] = true
		order[name] = best
		return best, nil
	}

	for _, g := range s.Grains() {
		depOrder, err := longestPath(g.name)
		if err != nil {
			return err
		}
		g.dependencyOrder = depOrder
		g.dependencyOrderSet = true
	}
	return nil
}

// Finalize resolves references (see ResolveReferences) and then freezes
// every grain: subsequent structural mutation (AddColumn, AddPKColumn,
// FinalizePK, ...) fails with KindIllegalState.
func (s *Score) Finalize() error {
	if err := s.ResolveReferences(); err != nil {
		return err
	}
	for _, g := range s.Grains() {
		g.finalize()
	}
	return nil
}
