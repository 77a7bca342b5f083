package updater

import (
	"context"
	"testing"

	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/expr"
	"github.com/celesta-db/celesta/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 2 (happy path): a foreign key from t2.ownerid to t1.ida is
// created once t1 and t2 both exist.
func TestUpdateDbForeignKeyHappyPath(t *testing.T) {
	score, app, u, adaptor := newHarness(t, "app 1.0")
	t1 := addSimpleTable(t, app)

	t2, err := model.NewTable(app, "t2", true, false)
	require.NoError(t, err)
	require.NoError(t, t2.AddColumn(model.NewIntegerColumn("idb", false, nil, true)))
	require.NoError(t, t2.AddColumn(model.NewIntegerColumn("ownerid", true, nil, false)))
	require.NoError(t, t2.AddPKColumn("idb"))
	require.NoError(t, t2.FinalizePK())

	fk := t2.NewForeignKey()
	require.NoError(t, fk.AddColumn("ownerid"))
	fk.SetReferencedTable("app", t1.Name(), []string{"ida"})

	require.NoError(t, score.Finalize())

	ctx := context.Background()
	require.NoError(t, u.UpdateDb(ctx, score))

	fks, err := adaptor.GetFKInfo(ctx, nil, "app")
	require.NoError(t, err)
	found := false
	for _, info := range fks {
		if info.TableName == "t2" && info.ReferencedTable == "t1" {
			found = true
		}
	}
	assert.True(t, found, "expected a foreign key from t2 to t1 to have been created")
}

// Scenario 2 (failure path): a foreign key referencing a non-PK column
// fails model resolution with FK_REFERENCED_COLUMNS_NOT_PK, and never
// reaches the updater at all.
func TestForeignKeyReferencingNonPKColumnRejected(t *testing.T) {
	score, app, _, _ := newHarness(t, "app 1.0")
	t1 := addSimpleTable(t, app)

	t2, err := model.NewTable(app, "t2", true, false)
	require.NoError(t, err)
	require.NoError(t, t2.AddColumn(model.NewIntegerColumn("idb", false, nil, true)))
	require.NoError(t, t2.AddColumn(model.NewIntegerColumn("ownerid", true, nil, false)))
	require.NoError(t, t2.AddPKColumn("idb"))
	require.NoError(t, t2.FinalizePK())

	fk := t2.NewForeignKey()
	require.NoError(t, fk.AddColumn("ownerid"))
	// intcol is a plain column of t1, not its primary key.
	fk.SetReferencedTable("app", t1.Name(), []string{"intcol"})

	err = score.Finalize()
	require.Error(t, err)
	assert.True(t, celesta.IsKind(err, celesta.KindFKReferencedColsNotPK))
}

// Scenario 5: an index over a column dropped from the model becomes
// orphaned and is removed before the table's own column diff runs.
func TestUpdateDbDropsOrphanedIndex(t *testing.T) {
	score, app, u, adaptor := newHarness(t, "app 1.0")
	t1 := addSimpleTable(t, app)
	require.NoError(t, t1.AddColumn(model.NewStringColumn("tag", true, nil, 20, false)))
	_, err := model.NewIndex(app, "idx_tag", t1, []string{"tag"})
	require.NoError(t, err)
	require.NoError(t, score.Finalize())

	ctx := context.Background()
	require.NoError(t, u.UpdateDb(ctx, score))

	live, err := adaptor.GetIndices(ctx, nil, "app")
	require.NoError(t, err)
	_, ok := live["idx_tag"]
	require.True(t, ok, "index should exist after the first upgrade")

	score2 := model.NewScore()
	sys, err := model.NewGrain("celesta", "grain celesta;", mustVersion(t, "sys 1.0"), true)
	require.NoError(t, err)
	require.NoError(t, score2.AddGrain(sys))
	require.NoError(t, score2.SetSystemGrain("celesta"))
	// Same version, but the index (and the column it covers) is dropped
	// from the model -> different checksum -> re-upgrade.
	app2, err := model.NewGrain("app", "grain app; -- index removed", mustVersion(t, "app 1.0"), true)
	require.NoError(t, err)
	require.NoError(t, score2.AddGrain(app2))
	addSimpleTable(t, app2)
	require.NoError(t, score2.Finalize())

	require.NoError(t, u.UpdateDb(ctx, score2))

	live, err = adaptor.GetIndices(ctx, nil, "app")
	require.NoError(t, err)
	_, ok = live["idx_tag"]
	assert.False(t, ok, "orphaned index should have been dropped")
}

// Scenario 6: a materialized view whose trigger marker already matches
// its current checksum, over a source table that was not itself
// touched this run, is left alone rather than dropped and repopulated.
func TestUpdateDbSkipsUnchangedMaterializedView(t *testing.T) {
	score, app, u, adaptor := newHarness(t, "app 1.0")
	t1 := addSimpleTable(t, app)

	query := expr.NewFieldRef("", "t1", "intcol")
	_, err := model.NewMaterializedView(app, "mv_intcol", t1, query, []string{"intcol"})
	require.NoError(t, err)
	require.NoError(t, score.Finalize())

	ctx := context.Background()
	require.NoError(t, u.UpdateDb(ctx, score))
	assert.Equal(t, 1, adaptor.MVInitCalls["app\x00mv_intcol"])

	// Second score: unrelated new table bumps the grain's checksum, so a
	// full re-upgrade runs, but t1 and the MV's query are unchanged.
	score2 := model.NewScore()
	sys, err := model.NewGrain("celesta", "grain celesta;", mustVersion(t, "sys 1.0"), true)
	require.NoError(t, err)
	require.NoError(t, score2.AddGrain(sys))
	require.NoError(t, score2.SetSystemGrain("celesta"))
	app2, err := model.NewGrain("app", "grain app; -- added t3", mustVersion(t, "app 1.0"), true)
	require.NoError(t, err)
	require.NoError(t, score2.AddGrain(app2))
	t1b := addSimpleTable(t, app2)
	query2 := expr.NewFieldRef("", "t1", "intcol")
	_, err = model.NewMaterializedView(app2, "mv_intcol", t1b, query2, []string{"intcol"})
	require.NoError(t, err)
	t3, err := model.NewTable(app2, "t3", true, false)
	require.NoError(t, err)
	require.NoError(t, t3.AddColumn(model.NewIntegerColumn("idc", false, nil, true)))
	require.NoError(t, t3.AddPKColumn("idc"))
	require.NoError(t, t3.FinalizePK())
	require.NoError(t, score2.Finalize())

	require.NoError(t, u.UpdateDb(ctx, score2))

	assert.Equal(t, 1, adaptor.MVInitCalls["app\x00mv_intcol"], "unchanged materialized view should not be repopulated")
}
