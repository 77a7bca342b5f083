package dbinfo

import (
	"testing"

	"github.com/celesta-db/celesta/ident"
	"github.com/celesta-db/celesta/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixtureTable(t *testing.T) (*model.Score, *model.Table) {
	t.Helper()
	score := model.NewScore()
	version, err := ident.Parse("app 1.0")
	require.NoError(t, err)
	grain, err := model.NewGrain("g1", "grain g1;", version, true)
	require.NoError(t, err)
	require.NoError(t, score.AddGrain(grain))

	tbl, err := model.NewTable(grain, "t1", true, false)
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn(model.NewIntegerColumn("id", false, nil, true)))
	def := "0"
	require.NoError(t, tbl.AddColumn(model.NewFloatingColumn("total", true, &def)))
	require.NoError(t, tbl.AddPKColumn("id"))
	require.NoError(t, tbl.FinalizePK())
	return score, tbl
}

func TestDbColumnInfoReflectsMatchingColumn(t *testing.T) {
	_, tbl := newFixtureTable(t)
	col, ok := tbl.Column("total")
	require.True(t, ok)

	info := DbColumnInfo{Name: "total", Type: col.ExprType(), Nullable: true, HasDefault: true, Default: "0"}
	assert.True(t, info.Reflects(col, nil))

	info.Default = "1"
	assert.False(t, info.Reflects(col, nil))
}

func TestDbColumnInfoReflectsUsesNormalizer(t *testing.T) {
	_, tbl := newFixtureTable(t)
	col, ok := tbl.Column("total")
	require.True(t, ok)

	info := DbColumnInfo{Name: "total", Type: col.ExprType(), Nullable: true, HasDefault: true, Default: "(0)"}
	normalize := func(s string) string {
		if s == "(0)" || s == "0" {
			return "0"
		}
		return s
	}
	assert.True(t, info.Reflects(col, normalize))
}

func TestDbPkInfoReflects(t *testing.T) {
	_, tbl := newFixtureTable(t)
	assert.True(t, DbPkInfo{TableName: "t1", Columns: []string{"id"}}.Reflects(tbl))
	assert.False(t, DbPkInfo{TableName: "t1", Columns: []string{"total"}}.Reflects(tbl))
}

func TestDbFkInfoReflectsUnresolvedIsFalse(t *testing.T) {
	_, tbl := newFixtureTable(t)
	fk := tbl.NewForeignKey()
	require.NoError(t, fk.AddColumn("id"))
	fk.SetReferencedTable("g1", "t1", []string{"id"})

	info := DbFkInfo{Name: "fk1", TableName: "t1", Columns: []string{"id"}, ReferencedTable: "t1", ReferencedColumns: []string{"id"}}
	assert.False(t, info.Reflects(fk))
}

func TestDbIndexInfoReflects(t *testing.T) {
	score, tbl := newFixtureTable(t)
	grain, _ := score.Grain("g1")
	idx, err := model.NewIndex(grain, "ix_total", tbl, []string{"total"})
	require.NoError(t, err)

	assert.True(t, DbIndexInfo{Name: "ix_total", TableName: "t1", Columns: []string{"total"}}.Reflects(idx))
	assert.False(t, DbIndexInfo{Name: "ix_total", TableName: "t1", Columns: []string{"id"}}.Reflects(idx))
}

func TestDbSequenceInfoReflects(t *testing.T) {
	score, _ := newFixtureTable(t)
	grain, _ := score.Grain("g1")
	seq, err := model.NewSequence(grain, "seq1", 1, 1, nil, nil, false)
	require.NoError(t, err)

	assert.True(t, DbSequenceInfo{Start: 1, Increment: 1}.Reflects(seq))
	assert.False(t, DbSequenceInfo{Start: 2, Increment: 1}.Reflects(seq))
}
