package syscat

import (
	"context"
	"sort"

	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/dbadaptor"
)

// MemCursor is an in-memory GrainsCursor/TablesCursor double for tests
// (celestatest.FakeAdaptor embeds one). It ignores the Connection
// argument entirely: commit/rollback visibility is the concern of the
// adaptor driving it, not of the row store itself.
type MemCursor struct {
	grains map[string]GrainRow
	tables map[string]map[string]TableRow
}

// NewMemCursor constructs an empty in-memory catalog.
func NewMemCursor() *MemCursor {
	return &MemCursor{
		grains: make(map[string]GrainRow),
		tables: make(map[string]map[string]TableRow),
	}
}

func (m *MemCursor) Get(_ context.Context, _ dbadaptor.Connection, id string) (GrainRow, bool, error) {
	row, ok := m.grains[id]
	return row, ok, nil
}

func (m *MemCursor) GetAll(_ context.Context, _ dbadaptor.Connection) ([]GrainRow, error) {
	ids := make([]string, 0, len(m.grains))
	for id := range m.grains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([]GrainRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, m.grains[id])
	}
	return rows, nil
}

func (m *MemCursor) Insert(_ context.Context, _ dbadaptor.Connection, row GrainRow) error {
	if _, exists := m.grains[row.Id]; exists {
		return celesta.New(celesta.KindIllegalState, "celesta.grains row %q already exists", row.Id)
	}
	m.grains[row.Id] = row
	return nil
}

func (m *MemCursor) Update(_ context.Context, _ dbadaptor.Connection, row GrainRow) error {
	if _, exists := m.grains[row.Id]; !exists {
		return celesta.New(celesta.KindIllegalState, "celesta.grains row %q does not exist", row.Id)
	}
	m.grains[row.Id] = row
	return nil
}

func (m *MemCursor) tableKey(grainId, tableName string) string { return grainId + "." + tableName }

func (m *MemCursor) GetTable(_ context.Context, _ dbadaptor.Connection, grainId, tableName string) (TableRow, bool, error) {
	row, ok := m.tables[grainId][tableName]
	return row, ok, nil
}

// Tables returns MemCursor's TablesCursor view. A four-argument Get on
// MemCursor itself would collide with the grains Get above, so the
// tablesView adapter below implements TablesCursor, its Get delegating
// to GetTable.
func (m *MemCursor) Tables() TablesCursor { return tablesView{m} }

type tablesView struct{ m *MemCursor }

func (t tablesView) Get(ctx context.Context, conn dbadaptor.Connection, grainId, tableName string) (TableRow, bool, error) {
	return t.m.GetTable(ctx, conn, grainId, tableName)
}

func (t tablesView) GetAll(_ context.Context, _ dbadaptor.Connection, grainId string) ([]TableRow, error) {
	byName := t.m.tables[grainId]
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([]TableRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, byName[name])
	}
	return rows, nil
}

func (t tablesView) Insert(_ context.Context, _ dbadaptor.Connection, row TableRow) error {
	if t.m.tables[row.GrainId] == nil {
		t.m.tables[row.GrainId] = make(map[string]TableRow)
	}
	t.m.tables[row.GrainId][row.TableName] = row
	return nil
}

func (t tablesView) Update(ctx context.Context, conn dbadaptor.Connection, row TableRow) error {
	return t.Insert(ctx, conn, row)
}

func (t tablesView) Delete(_ context.Context, _ dbadaptor.Connection, grainId, tableName string) error {
	delete(t.m.tables[grainId], tableName)
	return nil
}

var (
	_ GrainsCursor = (*MemCursor)(nil)
	_ TablesCursor = tablesView{}
)
