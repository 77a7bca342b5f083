package depsort

import (
	"testing"

	"github.com/celesta-db/celesta/ident"
	"github.com/celesta-db/celesta/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologicalSortOrdersDependenciesFirst(t *testing.T) {
	deps := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {},
	}
	sorted := TopologicalSort([]string{"a", "b", "c"}, deps, func(s string) string { return s })
	require.Len(t, sorted, 3)
	indexOf := func(s string) int {
		for i, v := range sorted {
			if v == s {
				return i
			}
		}
		return -1
	}
	assert.Less(t, indexOf("c"), indexOf("b"))
	assert.Less(t, indexOf("b"), indexOf("a"))
}

func TestTopologicalSortDetectsCycle(t *testing.T) {
	deps := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}
	sorted := TopologicalSort([]string{"a", "b"}, deps, func(s string) string { return s })
	assert.Empty(t, sorted)
}

func buildScoreWithFKChain(t *testing.T) (*model.Score, *model.Table, *model.Table) {
	t.Helper()
	score := model.NewScore()
	version, err := ident.Parse("app 1.0")
	require.NoError(t, err)
	grain, err := model.NewGrain("g1", "grain g1;", version, true)
	require.NoError(t, err)
	require.NoError(t, score.AddGrain(grain))

	parent, err := model.NewTable(grain, "parent", true, false)
	require.NoError(t, err)
	require.NoError(t, parent.AddColumn(model.NewIntegerColumn("id", false, nil, true)))
	require.NoError(t, parent.AddPKColumn("id"))
	require.NoError(t, parent.FinalizePK())

	child, err := model.NewTable(grain, "child", true, false)
	require.NoError(t, err)
	require.NoError(t, child.AddColumn(model.NewIntegerColumn("id", false, nil, true)))
	require.NoError(t, child.AddColumn(model.NewIntegerColumn("parent_id", true, nil, false)))
	require.NoError(t, child.AddPKColumn("id"))
	require.NoError(t, child.FinalizePK())

	fk := child.NewForeignKey()
	require.NoError(t, fk.AddColumn("parent_id"))
	fk.SetReferencedTable("g1", "parent", []string{"id"})

	require.NoError(t, score.ResolveReferences())
	return score, parent, child
}

func TestGrainElementUpdatingComparatorDependsOn(t *testing.T) {
	score, parent, child := buildScoreWithFKChain(t)
	cmp := NewGrainElementUpdatingComparator(score)

	assert.True(t, cmp.DependsOn(child, parent))
	assert.False(t, cmp.DependsOn(parent, child))
	assert.Equal(t, 1, cmp.Compare(child, parent))
	assert.Equal(t, -1, cmp.Compare(parent, child))
}

func TestGrainElementUpdatingComparatorSortsDependenciesFirst(t *testing.T) {
	score, parent, child := buildScoreWithFKChain(t)
	cmp := NewGrainElementUpdatingComparator(score)

	sorted := cmp.Sort([]model.GrainElement{child, parent})
	require.Len(t, sorted, 2)
	assert.Equal(t, "parent", sorted[0].Name())
	assert.Equal(t, "child", sorted[1].Name())
}

func TestGrainElementUpdatingComparatorTiesOnUnrelatedElements(t *testing.T) {
	score, parent, child := buildScoreWithFKChain(t)
	_ = child
	grain, _ := score.Grain("g1")
	other, err := model.NewTable(grain, "unrelated", true, false)
	require.NoError(t, err)
	require.NoError(t, other.AddColumn(model.NewIntegerColumn("id", false, nil, true)))
	require.NoError(t, other.AddPKColumn("id"))
	require.NoError(t, other.FinalizePK())

	cmp := NewGrainElementUpdatingComparator(score)
	assert.Equal(t, 0, cmp.Compare(parent, other))
}
