// Package celestatest provides an in-memory dbadaptor.Adaptor double
// (FakeAdaptor) and scenario helpers for exercising updater.Updater
// without a real server, grounded on the teacher's testutil.TestCase/
// testutil.ReadTests YAML-driven scenario pattern and on
// database.DryRunDatabase's role as an in-memory stand-in for a real
// adaptor. No Go toolchain runs in this exercise, so a real database is
// never reachable; FakeAdaptor is the teacher-idiom substitute.
package celestatest

import (
	"context"
	"fmt"
	"sync"

	"github.com/k0kubun/pp/v3"

	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/dbadaptor"
	"github.com/celesta-db/celesta/dbinfo"
	"github.com/celesta-db/celesta/model"
)

type fakeTable struct {
	columns map[string]dbinfo.DbColumnInfo
	pk      []string
}

func (t fakeTable) clone() fakeTable {
	cols := make(map[string]dbinfo.DbColumnInfo, len(t.columns))
	for k, v := range t.columns {
		cols[k] = v
	}
	return fakeTable{columns: cols, pk: append([]string(nil), t.pk...)}
}

type fakeState struct {
	schemas map[string]bool
	tables  map[string]fakeTable
	indices map[string]dbinfo.DbIndexInfo
	fks     map[string][]dbinfo.DbFkInfo
	seqs    map[string]dbinfo.DbSequenceInfo
	views   map[string]map[string]bool
	pviews  map[string]map[string]bool
	mvs     map[string]bool
	trigs   map[string]string
}

func newFakeState() *fakeState {
	return &fakeState{
		schemas: make(map[string]bool),
		tables:  make(map[string]fakeTable),
		indices: make(map[string]dbinfo.DbIndexInfo),
		fks:     make(map[string][]dbinfo.DbFkInfo),
		seqs:    make(map[string]dbinfo.DbSequenceInfo),
		views:   make(map[string]map[string]bool),
		pviews:  make(map[string]map[string]bool),
		mvs:     make(map[string]bool),
		trigs:   make(map[string]string),
	}
}

func (s *fakeState) clone() *fakeState {
	c := newFakeState()
	for k, v := range s.schemas {
		c.schemas[k] = v
	}
	for k, v := range s.tables {
		c.tables[k] = v.clone()
	}
	for k, v := range s.indices {
		c.indices[k] = v
	}
	for k, v := range s.fks {
		c.fks[k] = append([]dbinfo.DbFkInfo(nil), v...)
	}
	for k, v := range s.seqs {
		c.seqs[k] = v
	}
	for grain, names := range s.views {
		m := make(map[string]bool, len(names))
		for n := range names {
			m[n] = true
		}
		c.views[grain] = m
	}
	for grain, names := range s.pviews {
		m := make(map[string]bool, len(names))
		for n := range names {
			m[n] = true
		}
		c.pviews[grain] = m
	}
	for k, v := range s.mvs {
		c.mvs[k] = v
	}
	for k, v := range s.trigs {
		c.trigs[k] = v
	}
	return c
}

// FakeAdaptor implements dbadaptor.Adaptor entirely in memory. Begin
// snapshots the current state; Commit discards the snapshot (keeping
// whatever the caller mutated); Rollback restores it — giving tests the
// same all-or-nothing grain transaction semantics spec.md §5 requires
// of a real adaptor.
type FakeAdaptor struct {
	mu           sync.Mutex
	st           *fakeState
	snapshots    map[int]*fakeState
	nextConnID   int
	sysGrainName string

	// Diagnostic counters, not part of the snapshotted/rolled-back
	// state: tests assert on these to check phases ran the expected
	// number of times.
	AutoIncrementCalls map[string]int
	MVInitCalls        map[string]int
	fkNameSeq          map[string]int
}

// NewFakeAdaptor constructs an empty FakeAdaptor. sysGrainName is used
// by UserTablesExist to distinguish system-grain tables from user ones.
func NewFakeAdaptor(sysGrainName string) *FakeAdaptor {
	return &FakeAdaptor{
		st:                 newFakeState(),
		snapshots:          make(map[int]*fakeState),
		sysGrainName:       sysGrainName,
		AutoIncrementCalls: make(map[string]int),
		MVInitCalls:        make(map[string]int),
		fkNameSeq:          make(map[string]int),
	}
}

type fakeConn struct{ id int }

func tkey(grain, table string) string  { return grain + "\x00" + table }
func ikey(grain, index string) string  { return grain + "\x00" + index }
func skey(grain, seq string) string    { return grain + "\x00" + seq }
func trigkey(grain, table string, kind dbadaptor.TriggerKind) string {
	return fmt.Sprintf("%s\x00%s\x00%s", grain, table, kind)
}

func (a *FakeAdaptor) Begin(_ context.Context) (dbadaptor.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextConnID
	a.nextConnID++
	a.snapshots[id] = a.st.clone()
	return fakeConn{id}, nil
}

func (a *FakeAdaptor) StatusConn(ctx context.Context) (dbadaptor.Connection, error) {
	return a.Begin(ctx)
}

func (a *FakeAdaptor) Commit(_ context.Context, conn dbadaptor.Connection) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.snapshots, conn.(fakeConn).id)
	return nil
}

func (a *FakeAdaptor) Rollback(_ context.Context, conn dbadaptor.Connection) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := conn.(fakeConn).id
	if snap, ok := a.snapshots[id]; ok {
		a.st = snap
		delete(a.snapshots, id)
	}
	return nil
}

func (a *FakeAdaptor) TableExists(_ context.Context, _ dbadaptor.Connection, grainName, tableName string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.st.tables[tkey(grainName, tableName)]
	return ok, nil
}

func (a *FakeAdaptor) UserTablesExist(_ context.Context, _ dbadaptor.Connection) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prefix := a.sysGrainName + "\x00"
	for key := range a.st.tables {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			return true, nil
		}
	}
	return false, nil
}

func (a *FakeAdaptor) CreateSchemaIfNotExists(_ context.Context, _ dbadaptor.Connection, grainName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.st.schemas[grainName] = true
	return nil
}

func columnInfoFrom(col model.Column) dbinfo.DbColumnInfo {
	def, hasDefault := col.Default()
	identity := false
	if intCol, ok := col.(*model.IntegerColumn); ok {
		identity = intCol.Identity
	}
	return dbinfo.DbColumnInfo{
		Name:       col.Name(),
		Type:       col.ExprType(),
		Nullable:   col.Nullable(),
		HasDefault: hasDefault,
		Default:    def,
		Identity:   identity,
	}
}

func (a *FakeAdaptor) CreateTable(_ context.Context, _ dbadaptor.Connection, table *model.Table) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cols := make(map[string]dbinfo.DbColumnInfo, len(table.Columns()))
	for _, col := range table.Columns() {
		cols[col.Name()] = columnInfoFrom(col)
	}
	var pk []string
	if table.PKFinalized() {
		pk = table.PrimaryKey()
	}
	a.st.tables[tkey(table.Grain().Name(), table.Name())] = fakeTable{columns: cols, pk: pk}
	return nil
}

func (a *FakeAdaptor) DropTable(_ context.Context, _ dbadaptor.Connection, grainName, tableName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.st.tables, tkey(grainName, tableName))
	return nil
}

func (a *FakeAdaptor) GetColumns(_ context.Context, _ dbadaptor.Connection, table *model.Table) (map[string]bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.st.tables[tkey(table.Grain().Name(), table.Name())]
	if !ok {
		return map[string]bool{}, nil
	}
	out := make(map[string]bool, len(t.columns))
	for name := range t.columns {
		out[name] = true
	}
	return out, nil
}

func (a *FakeAdaptor) CreateColumn(_ context.Context, _ dbadaptor.Connection, table *model.Table, col model.Column) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := tkey(table.Grain().Name(), table.Name())
	t := a.st.tables[key]
	if t.columns == nil {
		t.columns = make(map[string]dbinfo.DbColumnInfo)
	}
	t.columns[col.Name()] = columnInfoFrom(col)
	a.st.tables[key] = t
	return nil
}

func (a *FakeAdaptor) UpdateColumn(_ context.Context, _ dbadaptor.Connection, table *model.Table, col model.Column, _ dbinfo.DbColumnInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := tkey(table.Grain().Name(), table.Name())
	t := a.st.tables[key]
	t.columns[col.Name()] = columnInfoFrom(col)
	a.st.tables[key] = t
	return nil
}

func (a *FakeAdaptor) GetColumnInfo(_ context.Context, _ dbadaptor.Connection, table *model.Table, columnName string) (dbinfo.DbColumnInfo, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.st.tables[tkey(table.Grain().Name(), table.Name())]
	if !ok {
		return dbinfo.DbColumnInfo{}, false, nil
	}
	info, ok := t.columns[columnName]
	return info, ok, nil
}

func (a *FakeAdaptor) ManageAutoIncrement(_ context.Context, _ dbadaptor.Connection, table *model.Table) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.AutoIncrementCalls[tkey(table.Grain().Name(), table.Name())]++
	return nil
}

func (a *FakeAdaptor) GetPKInfo(_ context.Context, _ dbadaptor.Connection, table *model.Table) (dbinfo.DbPkInfo, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.st.tables[tkey(table.Grain().Name(), table.Name())]
	if !ok || len(t.pk) == 0 {
		return dbinfo.DbPkInfo{}, false, nil
	}
	return dbinfo.DbPkInfo{TableName: table.Name(), Columns: append([]string(nil), t.pk...)}, true, nil
}

func (a *FakeAdaptor) CreatePK(_ context.Context, _ dbadaptor.Connection, table *model.Table) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := tkey(table.Grain().Name(), table.Name())
	t := a.st.tables[key]
	t.pk = table.PrimaryKey()
	a.st.tables[key] = t
	return nil
}

func (a *FakeAdaptor) DropPK(_ context.Context, _ dbadaptor.Connection, table *model.Table) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := tkey(table.Grain().Name(), table.Name())
	t := a.st.tables[key]
	t.pk = nil
	a.st.tables[key] = t
	return nil
}

func (a *FakeAdaptor) GetFKInfo(_ context.Context, _ dbadaptor.Connection, grainName string) ([]dbinfo.DbFkInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]dbinfo.DbFkInfo(nil), a.st.fks[grainName]...), nil
}

func (a *FakeAdaptor) CreateFK(_ context.Context, _ dbadaptor.Connection, fk *model.ForeignKey) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	grainName := fk.Table().Grain().Name()
	tableName := fk.Table().Name()
	a.fkNameSeq[grainName]++
	info := dbinfo.DbFkInfo{
		Name:              fmt.Sprintf("fk_%s_%d", tableName, a.fkNameSeq[grainName]),
		TableName:         tableName,
		Columns:           fk.Columns(),
		ReferencedTable:   fk.ReferencedTable().Name(),
		ReferencedColumns: fk.ReferencedColumns(),
	}
	a.st.fks[grainName] = append(a.st.fks[grainName], info)
	return nil
}

func (a *FakeAdaptor) DropFK(_ context.Context, _ dbadaptor.Connection, tableName, fkName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for grainName, fks := range a.st.fks {
		var kept []dbinfo.DbFkInfo
		for _, fk := range fks {
			if fk.TableName == tableName && fk.Name == fkName {
				continue
			}
			kept = append(kept, fk)
		}
		a.st.fks[grainName] = kept
	}
	return nil
}

func (a *FakeAdaptor) GetIndices(_ context.Context, _ dbadaptor.Connection, grainName string) (map[string]dbinfo.DbIndexInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]dbinfo.DbIndexInfo)
	prefix := grainName + "\x00"
	for key, info := range a.st.indices {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			out[key[len(prefix):]] = info
		}
	}
	return out, nil
}

func (a *FakeAdaptor) CreateIndex(_ context.Context, _ dbadaptor.Connection, idx *model.Index) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.st.indices[ikey(idx.Grain().Name(), idx.Name())] = dbinfo.DbIndexInfo{
		Name:      idx.Name(),
		TableName: idx.Table().Name(),
		Columns:   idx.Columns(),
	}
	return nil
}

func (a *FakeAdaptor) DropIndex(_ context.Context, _ dbadaptor.Connection, tableName string, indexName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, info := range a.st.indices {
		if info.Name == indexName && info.TableName == tableName {
			delete(a.st.indices, key)
		}
	}
	return nil
}

func (a *FakeAdaptor) SequenceExists(_ context.Context, _ dbadaptor.Connection, grainName, seqName string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.st.seqs[skey(grainName, seqName)]
	return ok, nil
}

func (a *FakeAdaptor) GetSequenceInfo(_ context.Context, _ dbadaptor.Connection, grainName, seqName string) (dbinfo.DbSequenceInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.seqs[skey(grainName, seqName)], nil
}

func (a *FakeAdaptor) CreateSequence(_ context.Context, _ dbadaptor.Connection, seq *model.Sequence) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.st.seqs[skey(seq.Grain().Name(), seq.Name())] = dbinfo.DbSequenceInfo{
		Start: seq.Start(), Increment: seq.Increment(), Min: seq.Min(), Max: seq.Max(), Cycle: seq.Cycle(),
	}
	return nil
}

func (a *FakeAdaptor) AlterSequence(ctx context.Context, conn dbadaptor.Connection, seq *model.Sequence) error {
	return a.CreateSequence(ctx, conn, seq)
}

func (a *FakeAdaptor) GetViewList(_ context.Context, _ dbadaptor.Connection, grainName string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for name := range a.st.views[grainName] {
		out = append(out, name)
	}
	return out, nil
}

func (a *FakeAdaptor) CreateView(_ context.Context, _ dbadaptor.Connection, v *model.View) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.st.views[v.Grain().Name()] == nil {
		a.st.views[v.Grain().Name()] = make(map[string]bool)
	}
	a.st.views[v.Grain().Name()][v.Name()] = true
	return nil
}

func (a *FakeAdaptor) DropView(_ context.Context, _ dbadaptor.Connection, grainName, viewName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.st.views[grainName], viewName)
	return nil
}

func (a *FakeAdaptor) GetParameterizedViewList(_ context.Context, _ dbadaptor.Connection, grainName string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for name := range a.st.pviews[grainName] {
		out = append(out, name)
	}
	return out, nil
}

func (a *FakeAdaptor) CreateParameterizedView(_ context.Context, _ dbadaptor.Connection, pv *model.ParameterizedView) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.st.pviews[pv.Grain().Name()] == nil {
		a.st.pviews[pv.Grain().Name()] = make(map[string]bool)
	}
	a.st.pviews[pv.Grain().Name()][pv.Name()] = true
	return nil
}

func (a *FakeAdaptor) DropParameterizedView(_ context.Context, _ dbadaptor.Connection, grainName, viewName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.st.pviews[grainName], viewName)
	return nil
}

func (a *FakeAdaptor) MaterializedViewExists(_ context.Context, _ dbadaptor.Connection, mv *model.MaterializedView) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.mvs[tkey(mv.Grain().Name(), mv.Name())], nil
}

func (a *FakeAdaptor) CreateMaterializedView(_ context.Context, _ dbadaptor.Connection, mv *model.MaterializedView) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.st.mvs[tkey(mv.Grain().Name(), mv.Name())] = true
	return nil
}

func (a *FakeAdaptor) DropMaterializedView(_ context.Context, _ dbadaptor.Connection, mv *model.MaterializedView) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.st.mvs, tkey(mv.Grain().Name(), mv.Name()))
	return nil
}

func (a *FakeAdaptor) InitDataForMaterializedView(_ context.Context, _ dbadaptor.Connection, mv *model.MaterializedView) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.MVInitCalls[tkey(mv.Grain().Name(), mv.Name())]++
	return nil
}

func (a *FakeAdaptor) GetTriggerBody(_ context.Context, _ dbadaptor.Connection, q dbadaptor.TriggerQuery) (string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	body, ok := a.st.trigs[trigkey(q.GrainName, q.TableName, q.Kind)]
	return body, ok, nil
}

func (a *FakeAdaptor) DropTableTriggersForMaterializedViews(_ context.Context, _ dbadaptor.Connection, table *model.Table) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, kind := range []dbadaptor.TriggerKind{dbadaptor.TriggerPostInsert, dbadaptor.TriggerPostUpdate, dbadaptor.TriggerPostDelete} {
		delete(a.st.trigs, trigkey(table.Grain().Name(), table.Name(), kind))
	}
	return nil
}

func (a *FakeAdaptor) CreateTableTriggersForMaterializedViews(_ context.Context, _ dbadaptor.Connection, table *model.Table, mvs []*model.MaterializedView) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	markers := ""
	for _, mv := range mvs {
		markers += mv.TriggerMarker() + "\n"
	}
	for _, kind := range []dbadaptor.TriggerKind{dbadaptor.TriggerPostInsert, dbadaptor.TriggerPostUpdate, dbadaptor.TriggerPostDelete} {
		a.st.trigs[trigkey(table.Grain().Name(), table.Name(), kind)] = markers
	}
	return nil
}

func (a *FakeAdaptor) UpdateVersioningTrigger(_ context.Context, _ dbadaptor.Connection, _ *model.Table) error {
	return nil
}

func (a *FakeAdaptor) CreateSysObjects(_ context.Context, _ dbadaptor.Connection, sysSchemaName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.st.schemas[sysSchemaName] = true
	a.st.tables[tkey(sysSchemaName, "grains")] = fakeTable{columns: map[string]dbinfo.DbColumnInfo{}}
	a.st.tables[tkey(sysSchemaName, "tables")] = fakeTable{columns: map[string]dbinfo.DbColumnInfo{}}
	return nil
}

var _ dbadaptor.Adaptor = (*FakeAdaptor)(nil)

// DumpGrain pretty-prints g's tables, columns and primary keys, for
// pasting into a failing scenario test's t.Log output. Grounded on the
// teacher's use of k0kubun/pp to dump structured values during
// debugging rather than relying on %+v's single-line output.
func DumpGrain(g *model.Grain) string {
	type column struct {
		Name     string
		Nullable bool
	}
	type table struct {
		Name string
		PK   []string
		Cols []column
	}
	dump := struct {
		Grain  string
		Tables []table
	}{Grain: g.Name()}

	for _, t := range g.Tables() {
		tb := table{Name: t.Name(), PK: t.PrimaryKey()}
		for _, c := range t.Columns() {
			tb.Cols = append(tb.Cols, column{Name: c.Name(), Nullable: c.Nullable()})
		}
		dump.Tables = append(dump.Tables, tb)
	}
	return pp.Sprint(dump)
}
