package model

import (
	"testing"

	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/expr"
	"github.com/celesta-db/celesta/ident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustVersion(t *testing.T, s string) *ident.VersionString {
	t.Helper()
	v, err := ident.Parse(s)
	require.NoError(t, err)
	return v
}

func newTestGrain(t *testing.T, score *Score, name, source string) *Grain {
	t.Helper()
	g, err := NewGrain(name, source, mustVersion(t, "app 1.0"), true)
	require.NoError(t, err)
	require.NoError(t, score.AddGrain(g))
	return g
}

func TestTablePKLifecycle(t *testing.T) {
	score := NewScore()
	g := newTestGrain(t, score, "g1", "grain g1;")

	tbl, err := NewTable(g, "t1", true, false)
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn(NewIntegerColumn("ida", false, nil, true)))
	require.NoError(t, tbl.AddColumn(NewIntegerColumn("intcol", true, nil, false)))

	require.NoError(t, tbl.AddPKColumn("ida"))
	require.NoError(t, tbl.FinalizePK())
	assert.Equal(t, []string{"ida"}, tbl.PrimaryKey())

	// FinalizePK is a one-shot transition.
	err = tbl.FinalizePK()
	require.Error(t, err)
	assert.True(t, celesta.IsKind(err, celesta.KindIllegalState))
}

func TestTableFinalizePKRequiresNonEmpty(t *testing.T) {
	score := NewScore()
	g := newTestGrain(t, score, "g1", "grain g1;")
	tbl, err := NewTable(g, "t1", true, false)
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn(NewIntegerColumn("ida", false, nil, false)))

	err = tbl.FinalizePK()
	require.Error(t, err)
	assert.True(t, celesta.IsKind(err, celesta.KindMissingPK))
}

func TestDuplicateColumnRejected(t *testing.T) {
	score := NewScore()
	g := newTestGrain(t, score, "g1", "grain g1;")
	tbl, err := NewTable(g, "t1", true, false)
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn(NewIntegerColumn("ida", false, nil, false)))

	err = tbl.AddColumn(NewIntegerColumn("ida", false, nil, false))
	require.Error(t, err)
	assert.True(t, celesta.IsKind(err, celesta.KindDuplicateColumn))
}

// TestForeignKeyHappyPath covers spec.md §8 end-to-end scenario 2's
// resolution half.
func TestForeignKeyHappyPath(t *testing.T) {
	score := NewScore()
	g := newTestGrain(t, score, "g1", "grain g1;")

	t2, err := NewTable(g, "t2", true, false)
	require.NoError(t, err)
	require.NoError(t, t2.AddColumn(NewIntegerColumn("idb", false, nil, true)))
	require.NoError(t, t2.AddPKColumn("idb"))
	require.NoError(t, t2.FinalizePK())

	t1, err := NewTable(g, "t1", true, false)
	require.NoError(t, err)
	require.NoError(t, t1.AddColumn(NewIntegerColumn("ida", false, nil, true)))
	require.NoError(t, t1.AddColumn(NewIntegerColumn("intcol", true, nil, false)))
	require.NoError(t, t1.AddPKColumn("ida"))
	require.NoError(t, t1.FinalizePK())

	fk := t1.NewForeignKey()
	require.NoError(t, fk.AddColumn("intcol"))
	fk.SetReferencedTable("g1", "t2", []string{"idb"})

	// Boundary: registered but unresolved immediately after SetReferencedTable.
	require.Len(t, t1.ForeignKeys(), 1)
	assert.Nil(t, fk.ReferencedTable())

	require.NoError(t, score.ResolveReferences())
	assert.Same(t, t2, fk.ReferencedTable())
	require.Len(t, t1.ForeignKeys(), 1)

	// Idempotent: resolving again yields the same result.
	require.NoError(t, score.ResolveReferences())
	assert.Same(t, t2, fk.ReferencedTable())
}

func TestForeignKeyReferencedColumnsMustBePK(t *testing.T) {
	score := NewScore()
	g := newTestGrain(t, score, "g1", "grain g1;")

	t2, err := NewTable(g, "t2", true, false)
	require.NoError(t, err)
	require.NoError(t, t2.AddColumn(NewIntegerColumn("idb", false, nil, true)))
	require.NoError(t, t2.AddColumn(NewIntegerColumn("other", true, nil, false)))
	require.NoError(t, t2.AddPKColumn("idb"))
	require.NoError(t, t2.FinalizePK())

	t1, err := NewTable(g, "t1", true, false)
	require.NoError(t, err)
	require.NoError(t, t1.AddColumn(NewIntegerColumn("ida", false, nil, true)))
	require.NoError(t, t1.AddColumn(NewIntegerColumn("intcol", true, nil, false)))
	require.NoError(t, t1.AddPKColumn("ida"))
	require.NoError(t, t1.FinalizePK())

	fk := t1.NewForeignKey()
	require.NoError(t, fk.AddColumn("intcol"))
	// References "other", which is not t2's primary key.
	fk.SetReferencedTable("g1", "t2", []string{"other"})

	err = score.ResolveReferences()
	require.Error(t, err)
	assert.True(t, celesta.IsKind(err, celesta.KindFKReferencedColsNotPK))
}

func TestForeignKeyAddColumnRejectsUnknownOrDuplicate(t *testing.T) {
	score := NewScore()
	g := newTestGrain(t, score, "g1", "grain g1;")
	tbl, err := NewTable(g, "t1", true, false)
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn(NewIntegerColumn("ida", false, nil, false)))

	fk := tbl.NewForeignKey()
	err = fk.AddColumn("missing")
	require.Error(t, err)
	assert.True(t, celesta.IsKind(err, celesta.KindUnknownColumn))

	require.NoError(t, fk.AddColumn("ida"))
	err = fk.AddColumn("ida")
	require.Error(t, err)
	assert.True(t, celesta.IsKind(err, celesta.KindDuplicateColumn))
}

func TestCyclicGrainDependencyRejected(t *testing.T) {
	score := NewScore()
	ga := newTestGrain(t, score, "a", "grain a;")
	gb := newTestGrain(t, score, "b", "grain b;")

	ta, err := NewTable(ga, "ta", true, false)
	require.NoError(t, err)
	require.NoError(t, ta.AddColumn(NewIntegerColumn("id", false, nil, true)))
	require.NoError(t, ta.AddPKColumn("id"))
	require.NoError(t, ta.FinalizePK())
	require.NoError(t, ta.AddColumn(NewIntegerColumn("bref", true, nil, false)))

	tb, err := NewTable(gb, "tb", true, false)
	require.NoError(t, err)
	require.NoError(t, tb.AddColumn(NewIntegerColumn("id", false, nil, true)))
	require.NoError(t, tb.AddPKColumn("id"))
	require.NoError(t, tb.FinalizePK())
	require.NoError(t, tb.AddColumn(NewIntegerColumn("aref", true, nil, false)))

	fkA := ta.NewForeignKey()
	require.NoError(t, fkA.AddColumn("bref"))
	fkA.SetReferencedTable("b", "tb", []string{"id"})

	fkB := tb.NewForeignKey()
	require.NoError(t, fkB.AddColumn("aref"))
	fkB.SetReferencedTable("a", "ta", []string{"id"})

	err = score.ResolveReferences()
	require.Error(t, err)
	assert.True(t, celesta.IsKind(err, celesta.KindCyclicGrainDependency))
}

func TestDependencyOrderAscendingAcrossGrains(t *testing.T) {
	score := NewScore()
	base := newTestGrain(t, score, "base", "grain base;")
	mid := newTestGrain(t, score, "mid", "grain mid;")
	top := newTestGrain(t, score, "top", "grain top;")

	baseTable, err := NewTable(base, "bt", true, false)
	require.NoError(t, err)
	require.NoError(t, baseTable.AddColumn(NewIntegerColumn("id", false, nil, true)))
	require.NoError(t, baseTable.AddPKColumn("id"))
	require.NoError(t, baseTable.FinalizePK())

	midTable, err := NewTable(mid, "mt", true, false)
	require.NoError(t, err)
	require.NoError(t, midTable.AddColumn(NewIntegerColumn("id", false, nil, true)))
	require.NoError(t, midTable.AddPKColumn("id"))
	require.NoError(t, midTable.FinalizePK())
	require.NoError(t, midTable.AddColumn(NewIntegerColumn("baseref", true, nil, false)))
	midFK := midTable.NewForeignKey()
	require.NoError(t, midFK.AddColumn("baseref"))
	midFK.SetReferencedTable("base", "bt", []string{"id"})

	topTable, err := NewTable(top, "tt", true, false)
	require.NoError(t, err)
	require.NoError(t, topTable.AddColumn(NewIntegerColumn("id", false, nil, true)))
	require.NoError(t, topTable.AddPKColumn("id"))
	require.NoError(t, topTable.FinalizePK())
	require.NoError(t, topTable.AddColumn(NewIntegerColumn("midref", true, nil, false)))
	topFK := topTable.NewForeignKey()
	require.NoError(t, topFK.AddColumn("midref"))
	topFK.SetReferencedTable("mid", "mt", []string{"id"})

	require.NoError(t, score.ResolveReferences())
	assert.Equal(t, 0, base.DependencyOrder())
	assert.Equal(t, 1, mid.DependencyOrder())
	assert.Equal(t, 2, top.DependencyOrder())
}

func TestViewResolvesFieldRefsAgainstTable(t *testing.T) {
	score := NewScore()
	g := newTestGrain(t, score, "g1", "grain g1;")
	tbl, err := NewTable(g, "orders", true, false)
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn(NewIntegerColumn("id", false, nil, true)))
	require.NoError(t, tbl.AddColumn(NewFloatingColumn("total", true, nil)))
	require.NoError(t, tbl.AddPKColumn("id"))
	require.NoError(t, tbl.FinalizePK())

	ref := expr.NewFieldRef("", "orders", "total")
	rel, err := expr.NewRelop(expr.GT, ref, expr.NewNumericLiteral("0"))
	require.NoError(t, err)

	require.NoError(t, expr.ResolveFieldRefs(rel, []expr.TableRef{tbl}))
	require.NoError(t, expr.ValidateTypes(rel))

	v, err := NewView(g, "vBigOrders", rel, []string{"id", "total"})
	require.NoError(t, err)
	assert.Equal(t, "vBigOrders", rel.View())

	refs := v.GetReferences()
	require.Len(t, refs, 1)
	assert.Equal(t, "g1", refs[0].GrainName)
	assert.Equal(t, "orders", refs[0].ElementName)
}

func TestMaterializedViewTriggerMarker(t *testing.T) {
	score := NewScore()
	g := newTestGrain(t, score, "g1", "grain g1;")
	tbl, err := NewTable(g, "orders", true, false)
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn(NewIntegerColumn("id", false, nil, true)))
	require.NoError(t, tbl.AddPKColumn("id"))
	require.NoError(t, tbl.FinalizePK())

	query := expr.NewFieldRef("", "orders", "id")
	mv, err := NewMaterializedView(g, "mvOrderIds", tbl, query, []string{"id"})
	require.NoError(t, err)

	marker := mv.TriggerMarker()
	assert.Contains(t, marker, "MATERIALIZED VIEW CHECKSUM ")
	assert.Len(t, marker, len("MATERIALIZED VIEW CHECKSUM ")+8)
}

func TestStructuralMutationFailsAfterFinalize(t *testing.T) {
	score := NewScore()
	g := newTestGrain(t, score, "g1", "grain g1;")
	tbl, err := NewTable(g, "t1", true, false)
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn(NewIntegerColumn("id", false, nil, true)))
	require.NoError(t, tbl.AddPKColumn("id"))
	require.NoError(t, tbl.FinalizePK())

	require.NoError(t, score.Finalize())

	err = tbl.AddColumn(NewIntegerColumn("extra", true, nil, false))
	require.Error(t, err)
	assert.True(t, celesta.IsKind(err, celesta.KindIllegalState))

	_, err = NewTable(g, "t2", true, false)
	require.Error(t, err)
	assert.True(t, celesta.IsKind(err, celesta.KindIllegalState))
}
