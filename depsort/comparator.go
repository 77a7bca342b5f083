package depsort

import (
	"sort"

	"github.com/celesta-db/celesta/model"
)

// GrainElementUpdatingComparator decides relative update order between
// two GrainElements of a single score: first must be ordered after
// second iff first transitively references second. Elements with no
// reference path between them tie, giving a stable topological order
// with an arbitrary (input-order) tiebreak.
type GrainElementUpdatingComparator struct {
	score *model.Score
}

func NewGrainElementUpdatingComparator(score *model.Score) *GrainElementUpdatingComparator {
	return &GrainElementUpdatingComparator{score: score}
}

// DependsOn reports whether first transitively references second,
// walking first.GetReferences() and recursing into whichever elements
// those references resolve to within the comparator's score.
func (c *GrainElementUpdatingComparator) DependsOn(first, second model.GrainElement) bool {
	return c.dependsOn(first, second, make(map[string]bool))
}

func (c *GrainElementUpdatingComparator) dependsOn(first, second model.GrainElement, visited map[string]bool) bool {
	key := elementKey(first)
	if visited[key] {
		return false
	}
	visited[key] = true

	for _, ref := range first.GetReferences() {
		if ref.GrainName == second.Grain().Name() && ref.ElementName == second.Name() && ref.ElementClass == second.ElementClass() {
			return true
		}
		if next, ok := lookupElement(c.score, ref); ok {
			if c.dependsOn(next, second, visited) {
				return true
			}
		}
	}
	return false
}

// Compare returns 1 if first must sort after second, -1 if second must
// sort after first, or 0 on a tie (neither transitively references the
// other).
func (c *GrainElementUpdatingComparator) Compare(first, second model.GrainElement) int {
	if c.DependsOn(first, second) {
		return 1
	}
	if c.DependsOn(second, first) {
		return -1
	}
	return 0
}

// Sort returns elements in a stable topological order: dependencies
// before dependents, ties broken by original position.
func (c *GrainElementUpdatingComparator) Sort(elements []model.GrainElement) []model.GrainElement {
	sorted := make([]model.GrainElement, len(elements))
	copy(sorted, elements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return c.Compare(sorted[i], sorted[j]) < 0
	})
	return sorted
}

func elementKey(e model.GrainElement) string {
	return e.Grain().Name() + "." + e.ElementClass() + "." + e.Name()
}

func lookupElement(score *model.Score, ref model.GrainElementReference) (model.GrainElement, bool) {
	grain, ok := score.Grain(ref.GrainName)
	if !ok {
		return nil, false
	}
	switch ref.ElementClass {
	case model.ElementClassTable:
		t, ok := grain.Table(ref.ElementName)
		if !ok {
			return nil, false
		}
		return t, true
	case model.ElementClassIndex:
		i, ok := grain.Index(ref.ElementName)
		if !ok {
			return nil, false
		}
		return i, true
	case model.ElementClassSequence:
		s, ok := grain.Sequence(ref.ElementName)
		if !ok {
			return nil, false
		}
		return s, true
	case model.ElementClassView:
		v, ok := grain.View(ref.ElementName)
		if !ok {
			return nil, false
		}
		return v, true
	case model.ElementClassParameterizedView:
		pv, ok := grain.ParameterizedView(ref.ElementName)
		if !ok {
			return nil, false
		}
		return pv, true
	case model.ElementClassMaterializedView:
		mv, ok := grain.MaterializedView(ref.ElementName)
		if !ok {
			return nil, false
		}
		return mv, true
	default:
		return nil, false
	}
}
