package sqlbase

import (
	"context"
	"fmt"

	"github.com/celesta-db/celesta/dbadaptor"
	"github.com/celesta-db/celesta/model"
)

func (e *Engine) MaterializedViewExists(ctx context.Context, conn any, mv *model.MaterializedView) (bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return false, err
	}
	if e.Dialect.SupportsNativeMaterializedView() {
		return e.Dialect.MaterializedViewExists(ctx, tx, mv)
	}
	var n int
	row := tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = %s AND table_name = %s",
		e.Dialect.Placeholder(1), e.Dialect.Placeholder(2)), mv.Grain().Name(), mv.Name())
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (e *Engine) CreateMaterializedView(ctx context.Context, conn any, mv *model.MaterializedView) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	if e.Dialect.SupportsNativeMaterializedView() {
		_, err = tx.ExecContext(ctx, e.Dialect.CreateMaterializedViewSQL(mv))
		return err
	}
	// Emulated as a plain table with the same column list; kept current
	// by the POST_INSERT/UPDATE/DELETE triggers phaseRefreshTriggers
	// maintains on the source table.
	cols := make([]string, 0, len(mv.Columns()))
	for _, name := range mv.Columns() {
		srcCol, ok := mv.RefTable().Column(name)
		if !ok {
			continue
		}
		cols = append(cols, e.Dialect.Quote(name)+" "+e.Dialect.ColumnTypeSQL(srcCol))
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", e.qualify(mv.Grain().Name(), mv.Name()), joinNonEmpty(cols, ", "))
	_, err = tx.ExecContext(ctx, stmt)
	return err
}

func (e *Engine) DropMaterializedView(ctx context.Context, conn any, mv *model.MaterializedView) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	var stmt string
	if e.Dialect.SupportsNativeMaterializedView() {
		stmt = e.Dialect.DropMaterializedViewSQL(mv)
	} else {
		stmt = fmt.Sprintf("DROP TABLE %s", e.qualify(mv.Grain().Name(), mv.Name()))
	}
	_, err = tx.ExecContext(ctx, stmt)
	return err
}

func (e *Engine) InitDataForMaterializedView(ctx context.Context, conn any, mv *model.MaterializedView) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, e.Dialect.InitDataForMaterializedViewSQL(mv))
	return err
}

func (e *Engine) GetTriggerBody(ctx context.Context, conn any, q dbadaptor.TriggerQuery) (string, bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return "", false, err
	}
	return e.Dialect.GetTriggerBody(ctx, tx, q.GrainName, q.TableName, q.Kind)
}

func (e *Engine) DropTableTriggersForMaterializedViews(ctx context.Context, conn any, table *model.Table) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	for _, kind := range []dbadaptor.TriggerKind{dbadaptor.TriggerPostInsert, dbadaptor.TriggerPostUpdate, dbadaptor.TriggerPostDelete} {
		name := e.Dialect.TriggerName(table.Grain().Name(), table.Name(), kind)
		if _, err := tx.ExecContext(ctx, e.Dialect.DropTriggerSQL(table.Grain().Name(), table.Name(), name)); err != nil {
			return err
		}
	}
	return nil
}

// CreateTableTriggersForMaterializedViews recreates the three triggers
// on table, each body containing the checksum marker of every mv that
// depends on table (§4.F.8's "embed a freshness marker in the trigger").
func (e *Engine) CreateTableTriggersForMaterializedViews(ctx context.Context, conn any, table *model.Table, mvs []*model.MaterializedView) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	var markers string
	for _, mv := range mvs {
		markers += "-- " + mv.TriggerMarker() + "\n"
	}
	for _, kind := range []dbadaptor.TriggerKind{dbadaptor.TriggerPostInsert, dbadaptor.TriggerPostUpdate, dbadaptor.TriggerPostDelete} {
		name := e.Dialect.TriggerName(table.Grain().Name(), table.Name(), kind)
		body := markers + e.Dialect.TableTriggerRefreshBody(table, mvs, kind)
		stmt := e.Dialect.CreateTriggerSQL(table.Grain().Name(), table.Name(), kind, name, body)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) UpdateVersioningTrigger(ctx context.Context, conn any, table *model.Table) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	name, body := e.Dialect.VersioningTriggerSQL(table)
	// DropTriggerSQL is always rendered IF EXISTS by every dialect, so
	// this is a no-op the first time a table's versioning trigger is set up.
	if _, err := tx.ExecContext(ctx, e.Dialect.DropTriggerSQL(table.Grain().Name(), table.Name(), name)); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, e.Dialect.CreateTriggerSQL(table.Grain().Name(), table.Name(), dbadaptor.TriggerPostUpdate, name, body))
	return err
}

func joinNonEmpty(items []string, sep string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += sep
		}
		out += s
	}
	return out
}
