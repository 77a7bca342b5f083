package updater

import (
	"context"
	"strings"

	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/dbadaptor"
	"github.com/celesta-db/celesta/dbinfo"
	"github.com/celesta-db/celesta/depsort"
	"github.com/celesta-db/celesta/model"
	"github.com/celesta-db/celesta/util"
)

// runGrainUpgrade executes spec.md §4.F's thirteen grain-upgrade phases,
// in order, inside conn's transaction. depsort.GrainElementUpdatingComparator
// is used only as an advisory ordering within a phase (e.g. views among
// themselves); it never replaces the fixed phase sequence itself, per
// §9's note on the updateGrainElement stub.
func (u *Updater) runGrainUpgrade(ctx context.Context, conn dbadaptor.Connection, g *model.Grain) error {
	cmp := depsort.NewGrainElementUpdatingComparator(scoreOf(g))

	if err := u.phaseCreateSchema(ctx, conn, g); err != nil {
		return err
	}
	if err := u.phaseDropViews(ctx, conn, g); err != nil {
		return err
	}
	if err := u.phaseDropParameterizedViews(ctx, conn, g); err != nil {
		return err
	}

	drift, err := u.columnDrift(ctx, conn, g)
	if err != nil {
		return err
	}

	if err := u.phaseDropOrphanedIndices(ctx, conn, g, drift); err != nil {
		return err
	}
	remainingFKs, err := u.phaseDropOrphanedFKs(ctx, conn, g)
	if err != nil {
		return err
	}
	if err := u.phaseUpdateSequences(ctx, conn, g); err != nil {
		return err
	}

	modified := make(map[string]bool)
	if err := u.phaseUpdateTables(ctx, conn, g, drift, &remainingFKs, modified); err != nil {
		return err
	}
	if err := u.phaseUpdateIndices(ctx, conn, g); err != nil {
		return err
	}
	if err := u.phaseUpdateFKs(ctx, conn, g, remainingFKs); err != nil {
		return err
	}
	if err := u.phaseRecreateViews(ctx, conn, g, cmp); err != nil {
		return err
	}
	if err := u.phaseMaterializedViews(ctx, conn, g, modified); err != nil {
		return err
	}
	if err := u.phaseRefreshTriggers(ctx, conn, g); err != nil {
		return err
	}
	if u.ProcessGrainMeta != nil {
		if err := u.ProcessGrainMeta(ctx, g); err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "processGrainMeta hook for grain %q", g.Name())
		}
	}
	return nil
}

// scoreOf recovers the owning score via any resolved reference; grains
// always belong to exactly one score once registered.
func scoreOf(g *model.Grain) *model.Score {
	s, _ := g.OwningScore()
	return s
}

// Phase 1: create schema if not exists.
func (u *Updater) phaseCreateSchema(ctx context.Context, conn dbadaptor.Connection, g *model.Grain) error {
	if err := u.adaptor.CreateSchemaIfNotExists(ctx, conn, g.Name()); err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "creating schema for grain %q", g.Name())
	}
	return nil
}

// Phase 2: drop all views (recreated in phase 10).
func (u *Updater) phaseDropViews(ctx context.Context, conn dbadaptor.Connection, g *model.Grain) error {
	live, err := u.adaptor.GetViewList(ctx, conn, g.Name())
	if err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "listing views for grain %q", g.Name())
	}
	for _, name := range live {
		if err := u.adaptor.DropView(ctx, conn, g.Name(), name); err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "dropping view %q", name)
		}
	}
	return nil
}

// Phase 3: drop all parameterized views (recreated in phase 10).
func (u *Updater) phaseDropParameterizedViews(ctx context.Context, conn dbadaptor.Connection, g *model.Grain) error {
	live, err := u.adaptor.GetParameterizedViewList(ctx, conn, g.Name())
	if err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "listing parameterized views for grain %q", g.Name())
	}
	for _, name := range live {
		if err := u.adaptor.DropParameterizedView(ctx, conn, g.Name(), name); err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "dropping parameterized view %q", name)
		}
	}
	return nil
}

// tableDrift is one table's columnDrift result, carried through
// ConcurrentMapFuncWithError's ordered output so the per-table fan-out
// below can be reassembled into columnDrift's map result.
type tableDrift struct {
	name  string
	drift map[string]bool
}

// columnDrift reports, per table, which live columns exist but don't
// reflect their model counterpart. Computed once ahead of phases 4 and
// 7 so an orphaned-index decision and a PK-drop decision agree on which
// columns are "about to be altered". Every table is introspected
// read-only (TableExists, GetColumnInfo) against the same conn, so the
// per-table work fans out through ConcurrentMapFuncWithError, bounded
// by dumpConcurrency, the same way the teacher bounded its own
// multi-table introspection fan-out.
func (u *Updater) columnDrift(ctx context.Context, conn dbadaptor.Connection, g *model.Grain) (map[string]map[string]bool, error) {
	results, err := dbadaptor.ConcurrentMapFuncWithError(g.Tables(), u.dumpConcurrency, func(t *model.Table) (tableDrift, error) {
		exists, err := u.adaptor.TableExists(ctx, conn, g.Name(), t.Name())
		if err != nil {
			return tableDrift{}, celesta.Wrap(celesta.KindDDLFailed, err, "checking existence of table %q", t.Name())
		}
		if !exists {
			return tableDrift{name: t.Name()}, nil
		}
		drift := make(map[string]bool)
		for _, col := range t.Columns() {
			info, ok, err := u.adaptor.GetColumnInfo(ctx, conn, t, col.Name())
			if err != nil {
				return tableDrift{}, celesta.Wrap(celesta.KindDDLFailed, err, "reading column info for %q.%q", t.Name(), col.Name())
			}
			if ok && !info.Reflects(col, u.normalizer) {
				drift[col.Name()] = true
			}
		}
		return tableDrift{name: t.Name(), drift: drift}, nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]bool, len(results))
	for _, r := range results {
		out[r.name] = r.drift
	}
	return out, nil
}

// Phase 4: drop orphaned indices — not in the model, not reflecting the
// model index of the same name, or touching a column about to change.
func (u *Updater) phaseDropOrphanedIndices(ctx context.Context, conn dbadaptor.Connection, g *model.Grain, drift map[string]map[string]bool) error {
	live, err := u.adaptor.GetIndices(ctx, conn, g.Name())
	if err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "listing indices for grain %q", g.Name())
	}
	for name, info := range util.CanonicalMapIter(live) {
		modelIdx, ok := g.Index(name)
		orphaned := !ok
		if ok && !info.Reflects(modelIdx) {
			orphaned = true
		}
		if !orphaned {
			for _, col := range info.Columns {
				if drift[info.TableName][col] {
					orphaned = true
					break
				}
			}
		}
		if orphaned {
			if err := u.adaptor.DropIndex(ctx, conn, info.TableName, name); err != nil {
				return celesta.Wrap(celesta.KindDDLFailed, err, "dropping orphaned index %q", name)
			}
		}
	}
	return nil
}

// Phase 5: drop orphaned foreign keys, returning those that remain live
// (still reflecting some model FK) for phase 7's PK-drop cascade and
// phase 9's create/replace decision.
func (u *Updater) phaseDropOrphanedFKs(ctx context.Context, conn dbadaptor.Connection, g *model.Grain) ([]dbinfo.DbFkInfo, error) {
	live, err := u.adaptor.GetFKInfo(ctx, conn, g.Name())
	if err != nil {
		return nil, celesta.Wrap(celesta.KindDDLFailed, err, "listing foreign keys for grain %q", g.Name())
	}

	var modelFKs []*model.ForeignKey
	for _, t := range g.Tables() {
		modelFKs = append(modelFKs, t.ForeignKeys()...)
	}

	var remaining []dbinfo.DbFkInfo
	for _, dbfk := range live {
		reflected := false
		for _, mfk := range modelFKs {
			if dbfk.Reflects(mfk) {
				reflected = true
				break
			}
		}
		if !reflected {
			if err := u.adaptor.DropFK(ctx, conn, dbfk.TableName, dbfk.Name); err != nil {
				return nil, celesta.Wrap(celesta.KindDDLFailed, err, "dropping orphaned foreign key %q", dbfk.Name)
			}
			continue
		}
		remaining = append(remaining, dbfk)
	}
	return remaining, nil
}

// Phase 6: create sequences absent from the database; alter those
// present but not reflecting their declared parameters.
func (u *Updater) phaseUpdateSequences(ctx context.Context, conn dbadaptor.Connection, g *model.Grain) error {
	for _, seq := range g.Sequences() {
		exists, err := u.adaptor.SequenceExists(ctx, conn, g.Name(), seq.Name())
		if err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "checking existence of sequence %q", seq.Name())
		}
		if !exists {
			if err := u.adaptor.CreateSequence(ctx, conn, seq); err != nil {
				return celesta.Wrap(celesta.KindDDLFailed, err, "creating sequence %q", seq.Name())
			}
			continue
		}
		info, err := u.adaptor.GetSequenceInfo(ctx, conn, g.Name(), seq.Name())
		if err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "reading sequence info for %q", seq.Name())
		}
		if !info.Reflects(seq) {
			if err := u.adaptor.AlterSequence(ctx, conn, seq); err != nil {
				return celesta.Wrap(celesta.KindDDLFailed, err, "altering sequence %q", seq.Name())
			}
		}
	}
	return nil
}

// Phase 7: create missing tables; diff columns of existing ones,
// recreating the PK if it was dropped or never existed, syncing the
// recversion column of versioned tables, running ManageAutoIncrement on
// modified tables, and refreshing the versioning trigger. modified is
// populated with every table phase 11 needs to know was touched.
func (u *Updater) phaseUpdateTables(ctx context.Context, conn dbadaptor.Connection, g *model.Grain, drift map[string]map[string]bool, remainingFKs *[]dbinfo.DbFkInfo, modified map[string]bool) error {
	for _, t := range g.Tables() {
		exists, err := u.adaptor.TableExists(ctx, conn, g.Name(), t.Name())
		if err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "checking existence of table %q", t.Name())
		}
		if !exists {
			if err := u.adaptor.CreateTable(ctx, conn, t); err != nil {
				return celesta.Wrap(celesta.KindDDLFailed, err, "creating table %q", t.Name())
			}
			modified[t.Name()] = true
			if t.Versioned() {
				if err := u.adaptor.UpdateVersioningTrigger(ctx, conn, t); err != nil {
					return celesta.Wrap(celesta.KindDDLFailed, err, "creating versioning trigger for %q", t.Name())
				}
			}
			continue
		}

		tableModified, err := u.diffTableColumns(ctx, conn, t, drift[t.Name()], remainingFKs)
		if err != nil {
			return err
		}
		if tableModified {
			modified[t.Name()] = true
			if err := u.adaptor.ManageAutoIncrement(ctx, conn, t); err != nil {
				return celesta.Wrap(celesta.KindDDLFailed, err, "managing autoincrement for %q", t.Name())
			}
		}
		if t.Versioned() {
			if err := u.syncRecversionColumn(ctx, conn, t); err != nil {
				return err
			}
			if err := u.adaptor.UpdateVersioningTrigger(ctx, conn, t); err != nil {
				return celesta.Wrap(celesta.KindDDLFailed, err, "refreshing versioning trigger for %q", t.Name())
			}
		}
	}
	return nil
}

// diffTableColumns implements §4.F.7: create columns absent from the
// database, alter columns whose live shape no longer reflects the
// model, dropping inbound FKs and the PK first if a PK column is about
// to change, then recreating the PK if it was dropped or is missing
// (even when no column changed — "PK recreation ... even if no columns
// were modified").
func (u *Updater) diffTableColumns(ctx context.Context, conn dbadaptor.Connection, t *model.Table, tableDrift map[string]bool, remainingFKs *[]dbinfo.DbFkInfo) (bool, error) {
	liveCols, err := u.adaptor.GetColumns(ctx, conn, t)
	if err != nil {
		return false, celesta.Wrap(celesta.KindDDLFailed, err, "listing columns of %q", t.Name())
	}

	modified := false
	pkDropped := false
	pk := t.PrimaryKey()
	isPKColumn := func(name string) bool {
		for _, pkCol := range pk {
			if pkCol == name {
				return true
			}
		}
		return false
	}

	for _, col := range t.Columns() {
		if !liveCols[col.Name()] {
			if err := u.adaptor.CreateColumn(ctx, conn, t, col); err != nil {
				return false, celesta.Wrap(celesta.KindDDLFailed, err, "creating column %q.%q", t.Name(), col.Name())
			}
			modified = true
			continue
		}
		if !tableDrift[col.Name()] {
			continue
		}
		info, ok, err := u.adaptor.GetColumnInfo(ctx, conn, t, col.Name())
		if err != nil {
			return false, celesta.Wrap(celesta.KindDDLFailed, err, "reading column info for %q.%q", t.Name(), col.Name())
		}
		if !ok {
			continue
		}
		if isPKColumn(col.Name()) && !pkDropped {
			if err := u.dropInboundFKs(ctx, conn, t, remainingFKs); err != nil {
				return false, err
			}
			if err := u.adaptor.DropPK(ctx, conn, t); err != nil {
				return false, celesta.Wrap(celesta.KindDDLFailed, err, "dropping primary key of %q", t.Name())
			}
			pkDropped = true
		}
		if err := u.adaptor.UpdateColumn(ctx, conn, t, col, info); err != nil {
			return false, celesta.Wrap(celesta.KindDDLFailed, err, "altering column %q.%q", t.Name(), col.Name())
		}
		modified = true
	}

	needsPK := pkDropped
	if !needsPK {
		pkInfo, pkExists, err := u.adaptor.GetPKInfo(ctx, conn, t)
		if err != nil {
			return false, celesta.Wrap(celesta.KindDDLFailed, err, "reading primary key info for %q", t.Name())
		}
		needsPK = !pkExists || !pkInfo.Reflects(t)
	}
	if needsPK {
		if err := u.adaptor.CreatePK(ctx, conn, t); err != nil {
			return false, celesta.Wrap(celesta.KindDDLFailed, err, "recreating primary key of %q", t.Name())
		}
	}

	return modified, nil
}

// dropInboundFKs drops every currently-live foreign key that references
// t, removing each from remainingFKs as it goes (§4.F.7's "drop all
// inbound FKs to this table from the current DB FK list").
func (u *Updater) dropInboundFKs(ctx context.Context, conn dbadaptor.Connection, t *model.Table, remainingFKs *[]dbinfo.DbFkInfo) error {
	var kept []dbinfo.DbFkInfo
	for _, fk := range *remainingFKs {
		if fk.ReferencedTable == t.Name() {
			if err := u.adaptor.DropFK(ctx, conn, fk.TableName, fk.Name); err != nil {
				return celesta.Wrap(celesta.KindDDLFailed, err, "dropping inbound foreign key %q ahead of PK change on %q", fk.Name, t.Name())
			}
			continue
		}
		kept = append(kept, fk)
	}
	*remainingFKs = kept
	return nil
}

// recversionColumnName is the synthetic integer column the updater
// maintains on every versioned table for optimistic concurrency; it is
// never part of the declared model column list.
const recversionColumnName = "recversion"

func (u *Updater) syncRecversionColumn(ctx context.Context, conn dbadaptor.Connection, t *model.Table) error {
	liveCols, err := u.adaptor.GetColumns(ctx, conn, t)
	if err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "listing columns of %q", t.Name())
	}
	if liveCols[recversionColumnName] {
		return nil
	}
	def := "1"
	col := model.NewIntegerColumn(recversionColumnName, false, &def, false)
	if err := u.adaptor.CreateColumn(ctx, conn, t, col); err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "creating recversion column on %q", t.Name())
	}
	return nil
}

// Phase 8: create/alter indices to match the model. "Alter" is
// implemented as drop-then-create, since not every dialect supports an
// in-place ALTER INDEX.
func (u *Updater) phaseUpdateIndices(ctx context.Context, conn dbadaptor.Connection, g *model.Grain) error {
	live, err := u.adaptor.GetIndices(ctx, conn, g.Name())
	if err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "listing indices for grain %q", g.Name())
	}
	for _, idx := range g.Indices() {
		info, ok := live[idx.Name()]
		switch {
		case !ok:
			if err := u.adaptor.CreateIndex(ctx, conn, idx); err != nil {
				return celesta.Wrap(celesta.KindDDLFailed, err, "creating index %q", idx.Name())
			}
		case !info.Reflects(idx):
			if err := u.adaptor.DropIndex(ctx, conn, idx.Table().Name(), idx.Name()); err != nil {
				return celesta.Wrap(celesta.KindDDLFailed, err, "dropping stale index %q", idx.Name())
			}
			if err := u.adaptor.CreateIndex(ctx, conn, idx); err != nil {
				return celesta.Wrap(celesta.KindDDLFailed, err, "recreating index %q", idx.Name())
			}
		}
	}
	return nil
}

// Phase 9: create/alter foreign keys to match the model, using the
// foreign keys that survived phase 5's orphan drop (and any further
// dropped in phase 7's PK cascade) to decide create vs. leave-alone.
func (u *Updater) phaseUpdateFKs(ctx context.Context, conn dbadaptor.Connection, g *model.Grain, remaining []dbinfo.DbFkInfo) error {
	for _, t := range g.Tables() {
		for _, fk := range t.ForeignKeys() {
			if !fk.IsResolved() {
				continue
			}
			satisfied := false
			for _, dbfk := range remaining {
				if dbfk.TableName == t.Name() && dbfk.Reflects(fk) {
					satisfied = true
					break
				}
			}
			if !satisfied {
				if err := u.adaptor.CreateFK(ctx, conn, fk); err != nil {
					return celesta.Wrap(celesta.KindDDLFailed, err, "creating foreign key on %q", t.Name())
				}
			}
		}
	}
	return nil
}

// Phase 10: recreate views and parameterized views dropped in phases
// 2-3, in the comparator's advisory order.
func (u *Updater) phaseRecreateViews(ctx context.Context, conn dbadaptor.Connection, g *model.Grain, cmp *depsort.GrainElementUpdatingComparator) error {
	views := make([]model.GrainElement, 0, len(g.Views()))
	for _, v := range g.Views() {
		views = append(views, v)
	}
	for _, elem := range cmp.Sort(views) {
		v := elem.(*model.View)
		if err := u.adaptor.CreateView(ctx, conn, v); err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "creating view %q", v.Name())
		}
	}

	pviews := make([]model.GrainElement, 0, len(g.ParameterizedViews()))
	for _, pv := range g.ParameterizedViews() {
		pviews = append(pviews, pv)
	}
	for _, elem := range cmp.Sort(pviews) {
		pv := elem.(*model.ParameterizedView)
		if err := u.adaptor.CreateParameterizedView(ctx, conn, pv); err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "creating parameterized view %q", pv.Name())
		}
	}
	return nil
}

// Phase 11: materialized views (§4.F.8). A MV is left untouched when it
// already exists, its source table was not modified this run, and the
// POST_INSERT trigger on the source table already carries its checksum
// marker; otherwise it is dropped, recreated, and repopulated.
func (u *Updater) phaseMaterializedViews(ctx context.Context, conn dbadaptor.Connection, g *model.Grain, modified map[string]bool) error {
	for _, mv := range g.MaterializedViews() {
		exists, err := u.adaptor.MaterializedViewExists(ctx, conn, mv)
		if err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "checking existence of materialized view %q", mv.Name())
		}
		if exists && !modified[mv.RefTable().Name()] {
			body, ok, err := u.adaptor.GetTriggerBody(ctx, conn, dbadaptor.TriggerQuery{
				GrainName: g.Name(),
				TableName: mv.RefTable().Name(),
				Kind:      dbadaptor.TriggerPostInsert,
			})
			if err != nil {
				return celesta.Wrap(celesta.KindDDLFailed, err, "reading POST_INSERT trigger body for %q", mv.RefTable().Name())
			}
			if ok && strings.Contains(body, mv.TriggerMarker()) {
				continue
			}
		}

		if exists {
			if err := u.adaptor.DropMaterializedView(ctx, conn, mv); err != nil {
				return celesta.Wrap(celesta.KindDDLFailed, err, "dropping stale materialized view %q", mv.Name())
			}
		}
		if err := u.adaptor.CreateMaterializedView(ctx, conn, mv); err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "creating materialized view %q", mv.Name())
		}
		if err := u.adaptor.InitDataForMaterializedView(ctx, conn, mv); err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "populating materialized view %q", mv.Name())
		}
	}
	return nil
}

// Phase 12: for every source table backing at least one materialized
// view, drop and recreate the POST_INSERT/POST_UPDATE/POST_DELETE
// triggers, so every MV's marker (fresh or not) is embedded correctly.
func (u *Updater) phaseRefreshTriggers(ctx context.Context, conn dbadaptor.Connection, g *model.Grain) error {
	bySourceTable := make(map[string][]*model.MaterializedView)
	for _, mv := range g.MaterializedViews() {
		name := mv.RefTable().Name()
		bySourceTable[name] = append(bySourceTable[name], mv)
	}
	for _, t := range g.Tables() {
		mvs, ok := bySourceTable[t.Name()]
		if !ok {
			continue
		}
		if err := u.adaptor.DropTableTriggersForMaterializedViews(ctx, conn, t); err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "dropping materialized-view triggers on %q", t.Name())
		}
		if err := u.adaptor.CreateTableTriggersForMaterializedViews(ctx, conn, t, mvs); err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "creating materialized-view triggers on %q", t.Name())
		}
	}
	return nil
}
