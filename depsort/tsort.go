// Package depsort orders GrainElements (and grains) for the updater:
// TopologicalSort is a generic three-color DFS sort over an explicit
// dependency map, and GrainElementUpdatingComparator derives a stable
// topological order directly from each element's GetReferences(),
// matching spec.md §4.E's "first > second iff first transitively
// references second" definition.
package depsort

// TopologicalSort sorts items so that each item's dependencies precede
// it, using three-color-marked DFS (unvisited/visiting/visited) to
// detect cycles. On a cycle it returns an empty slice — callers that
// need a definite error should reject cycles earlier (as
// model.Score.ResolveReferences does for grains).
func TopologicalSort[T any](items []T, dependencies map[string][]string, getID func(T) string) []T {
	var sorted []T
	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	itemMap := make(map[string]T)

	for _, item := range items {
		itemMap[getID(item)] = item
	}

	var visit func(string) bool
	visit = func(id string) bool {
		if visiting[id] {
			return false
		}
		if visited[id] {
			return true
		}
		visiting[id] = true

		for _, dep := range dependencies[id] {
			if _, exists := itemMap[dep]; exists {
				if !visit(dep) {
					return false
				}
			}
		}

		visiting[id] = false
		visited[id] = true

		if item, exists := itemMap[id]; exists {
			sorted = append(sorted, item)
		}
		return true
	}

	for _, item := range items {
		id := getID(item)
		if !visited[id] {
			if !visit(id) {
				return []T{}
			}
		}
	}

	return sorted
}
