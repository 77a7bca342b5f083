package updater

import (
	"context"
	"testing"
	"time"

	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/celestatest"
	"github.com/celesta-db/celesta/dbadaptor"
	"github.com/celesta-db/celesta/ident"
	"github.com/celesta-db/celesta/model"
	"github.com/celesta-db/celesta/syscat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustVersion(t *testing.T, s string) *ident.VersionString {
	t.Helper()
	v, err := ident.Parse(s)
	require.NoError(t, err)
	return v
}

// newHarness builds a score with a system grain plus an empty user
// grain named "app", an Updater wired to a fresh FakeAdaptor and
// in-memory catalog, and returns all three so tests can populate the
// user grain before calling UpdateDb.
func newHarness(t *testing.T, appVersion string) (*model.Score, *model.Grain, *Updater, *celestatest.FakeAdaptor) {
	t.Helper()
	score := model.NewScore()

	sys, err := model.NewGrain("celesta", "grain celesta;", mustVersion(t, "sys 1.0"), true)
	require.NoError(t, err)
	require.NoError(t, score.AddGrain(sys))
	require.NoError(t, score.SetSystemGrain("celesta"))

	app, err := model.NewGrain("app", "grain app;", mustVersion(t, appVersion), true)
	require.NoError(t, err)
	require.NoError(t, score.AddGrain(app))

	adaptor := celestatest.NewFakeAdaptor("celesta")
	mem := syscat.NewMemCursor()
	u := New(adaptor, mem, mem.Tables(), dbadaptor.NullLogger{}, nil, Config{SysGrainName: "celesta"})
	fixed := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	u.Now = func() time.Time { return fixed }
	return score, app, u, adaptor
}

func addSimpleTable(t *testing.T, g *model.Grain) *model.Table {
	t.Helper()
	tbl, err := model.NewTable(g, "t1", true, false)
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn(model.NewIntegerColumn("ida", false, nil, true)))
	require.NoError(t, tbl.AddColumn(model.NewIntegerColumn("intcol", true, nil, false)))
	require.NoError(t, tbl.AddColumn(model.NewDateTimeColumn("datecol", true, nil)))
	require.NoError(t, tbl.AddPKColumn("ida"))
	require.NoError(t, tbl.FinalizePK())
	return tbl
}

// Scenario 1: empty DB, one grain with one table.
func TestUpdateDbEmptyDbCreatesTableAndReadyRow(t *testing.T) {
	score, app, u, adaptor := newHarness(t, "app 1.0")
	addSimpleTable(t, app)
	require.NoError(t, score.Finalize())

	ctx := context.Background()
	require.NoError(t, u.UpdateDb(ctx, score))

	exists, err := adaptor.TableExists(ctx, nil, "app", "t1")
	require.NoError(t, err)
	assert.True(t, exists)

	row, ok, err := u.grains.Get(ctx, nil, "app")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, syscat.StateReady, row.State)
	assert.Equal(t, app.Length(), row.Length)
	assert.Equal(t, app.Checksum(), row.Checksum)
}

// Invariant 4: running UpdateDb twice with unchanged metadata performs
// no further DDL (CreateTable is not called again) and leaves state
// READY.
func TestUpdateDbIdempotentSecondRun(t *testing.T) {
	score, app, u, adaptor := newHarness(t, "app 1.0")
	addSimpleTable(t, app)
	require.NoError(t, score.Finalize())

	ctx := context.Background()
	require.NoError(t, u.UpdateDb(ctx, score))
	require.NoError(t, u.UpdateDb(ctx, score))

	row, ok, err := u.grains.Get(ctx, nil, "app")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, syscat.StateReady, row.State)

	// No autoincrement management should have run on the second pass:
	// the table was never re-marked modified.
	assert.Equal(t, 0, adaptor.AutoIncrementCalls["app\x00t1"])
}

// Scenario 3: version downgrade refused, DB left unchanged.
func TestUpdateDbVersionDowngradeRefused(t *testing.T) {
	score, app, u, _ := newHarness(t, "app 1.1")
	addSimpleTable(t, app)
	require.NoError(t, score.Finalize())

	ctx := context.Background()
	require.NoError(t, u.UpdateDb(ctx, score))

	// Rebuild the score with a lower declared version against the same
	// (already-upgraded) catalog.
	score2 := model.NewScore()
	sys, err := model.NewGrain("celesta", "grain celesta;", mustVersion(t, "sys 1.0"), true)
	require.NoError(t, err)
	require.NoError(t, score2.AddGrain(sys))
	require.NoError(t, score2.SetSystemGrain("celesta"))
	app2, err := model.NewGrain("app", "grain app;", mustVersion(t, "app 1.0"), true)
	require.NoError(t, err)
	require.NoError(t, score2.AddGrain(app2))
	addSimpleTable(t, app2)
	require.NoError(t, score2.Finalize())

	err = u.UpdateDb(ctx, score2)
	require.Error(t, err)

	row, ok, rerr := u.grains.Get(ctx, nil, "app")
	require.NoError(t, rerr)
	require.True(t, ok)
	assert.Equal(t, syscat.StateReady, row.State, "a refused downgrade must not disturb the prior READY row")
}

// Scenario 4: checksum change (same version) triggers an upgrade.
func TestUpdateDbChecksumChangeTriggersUpgrade(t *testing.T) {
	score, app, u, adaptor := newHarness(t, "app 1.0")
	addSimpleTable(t, app)
	require.NoError(t, score.Finalize())

	ctx := context.Background()
	require.NoError(t, u.UpdateDb(ctx, score))

	score2 := model.NewScore()
	sys, err := model.NewGrain("celesta", "grain celesta;", mustVersion(t, "sys 1.0"), true)
	require.NoError(t, err)
	require.NoError(t, score2.AddGrain(sys))
	require.NoError(t, score2.SetSystemGrain("celesta"))
	// Different source text -> different length/checksum at EQUALS version.
	app2, err := model.NewGrain("app", "grain app; -- changed", mustVersion(t, "app 1.0"), true)
	require.NoError(t, err)
	require.NoError(t, score2.AddGrain(app2))
	t2 := addSimpleTable(t, app2)
	require.NoError(t, t2.AddColumn(model.NewStringColumn("extra", true, nil, 10, false)))
	require.NoError(t, score2.Finalize())

	require.NoError(t, u.UpdateDb(ctx, score2))

	cols, err := adaptor.GetColumns(ctx, nil, t2)
	require.NoError(t, err)
	assert.True(t, cols["extra"])

	row, ok, rerr := u.grains.Get(ctx, nil, "app")
	require.NoError(t, rerr)
	require.True(t, ok)
	assert.Equal(t, syscat.StateReady, row.State)
	assert.Equal(t, app2.Checksum(), row.Checksum)
}

func TestNeedToUpgradeLockSkips(t *testing.T) {
	_, app, u, _ := newHarness(t, "app 1.0")
	need, err := u.needToUpgrade(app, syscat.GrainRow{State: syscat.StateLock})
	require.NoError(t, err)
	assert.False(t, need)
}

func TestNeedToUpgradeRecoverAlwaysUpgrades(t *testing.T) {
	_, app, u, _ := newHarness(t, "app 1.0")
	need, err := u.needToUpgrade(app, syscat.GrainRow{State: syscat.StateRecover})
	require.NoError(t, err)
	assert.True(t, need)
}

func TestNeedToUpgradeEqualsChecksumDiffers(t *testing.T) {
	_, app, u, _ := newHarness(t, "app 1.0")
	need, err := u.needToUpgrade(app, syscat.GrainRow{
		State: syscat.StateReady, Version: "app 1.0", Length: app.Length(), Checksum: app.Checksum() + 1,
	})
	require.NoError(t, err)
	assert.True(t, need)
}

func TestNeedToUpgradeEqualsNoDrift(t *testing.T) {
	_, app, u, _ := newHarness(t, "app 1.0")
	need, err := u.needToUpgrade(app, syscat.GrainRow{
		State: syscat.StateReady, Version: "app 1.0", Length: app.Length(), Checksum: app.Checksum(),
	})
	require.NoError(t, err)
	assert.False(t, need)
}

func TestNeedToUpgradeDowngradeRaises(t *testing.T) {
	_, app, u, _ := newHarness(t, "app 1.0")
	_, err := u.needToUpgrade(app, syscat.GrainRow{State: syscat.StateReady, Version: "app 1.1"})
	require.Error(t, err)
	assert.True(t, celesta.IsKind(err, celesta.KindVersionDowngrade))
}
