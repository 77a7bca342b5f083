// Package sqlite3 is the dbadaptor.Adaptor for SQLite. Unlike
// postgres/mysql/mssql, SQLite has no information_schema and only one
// implicit schema per file, so it cannot share dbadaptor/sqlbase: every
// grain name is encoded as a "grainName$tableName" physical table name
// inside the one sqlite_master catalog, and introspection runs entirely
// off PRAGMA statements and sqlite_master, the shape
// database/sqlite3/database.go already queries for its own dump.
//
// Sequences and native materialized views have no SQLite equivalent:
// CreateSequence/AlterSequence fail with celesta.KindDDLFailed and
// materialized views are always emulated as plain tables kept current
// by triggers, exactly as in dbadaptor/mysql and dbadaptor/mssql.
package sqlite3

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/dbadaptor"
	"github.com/celesta-db/celesta/dbinfo"
	"github.com/celesta-db/celesta/expr"
	"github.com/celesta-db/celesta/model"
)

// Adaptor is the sqlite3 dbadaptor.Adaptor. Every Connection is a *sql.Tx.
type Adaptor struct {
	DB *sql.DB
}

// NewAdaptor opens the sqlite3 file named by cfg.DbName.
func NewAdaptor(cfg dbadaptor.Config) (dbadaptor.Adaptor, error) {
	db, err := sql.Open("sqlite", cfg.DbName)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	return &Adaptor{DB: db}, nil
}

func physical(grainName, name string) string { return grainName + "$" + name }

func quote(name string) string { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` }

func txOf(conn any) (*sql.Tx, error) {
	tx, ok := conn.(*sql.Tx)
	if !ok {
		return nil, celesta.New(celesta.KindIllegalState, "sqlite3: connection is not a *sql.Tx")
	}
	return tx, nil
}

func (a *Adaptor) Begin(ctx context.Context) (dbadaptor.Connection, error) { return a.DB.BeginTx(ctx, nil) }
func (a *Adaptor) StatusConn(ctx context.Context) (dbadaptor.Connection, error) {
	return a.DB.BeginTx(ctx, nil)
}

func (a *Adaptor) Commit(_ context.Context, conn dbadaptor.Connection) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (a *Adaptor) Rollback(_ context.Context, conn dbadaptor.Connection) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	return tx.Rollback()
}

func (a *Adaptor) TableExists(ctx context.Context, conn dbadaptor.Connection, grainName, tableName string) (bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return false, err
	}
	var n int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", physical(grainName, tableName))
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (a *Adaptor) UserTablesExist(ctx context.Context, conn dbadaptor.Connection) (bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return false, err
	}
	var n int
	row := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name NOT LIKE 'celesta$%'")
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateSchemaIfNotExists is a no-op: sqlite has one implicit schema and
// grains live there as name-prefixed tables.
func (a *Adaptor) CreateSchemaIfNotExists(context.Context, dbadaptor.Connection, string) error { return nil }

func columnTypeSQL(col model.Column) string {
	switch c := col.(type) {
	case *model.IntegerColumn:
		return "INTEGER"
	case *model.FloatingColumn:
		return "REAL"
	case *model.StringColumn:
		_ = c
		return "TEXT"
	case *model.BinaryColumn:
		return "BLOB"
	case *model.BooleanColumn:
		return "INTEGER"
	case *model.DateTimeColumn:
		return "TEXT"
	default:
		return "TEXT"
	}
}

func classifyType(sqlType string) expr.Type {
	t := strings.ToUpper(strings.TrimSpace(sqlType))
	switch {
	case strings.Contains(t, "INT") || strings.Contains(t, "REAL") || strings.Contains(t, "NUM") || strings.Contains(t, "DOUB"):
		return expr.NUMERIC
	case strings.Contains(t, "CHAR") || strings.Contains(t, "TEXT") || strings.Contains(t, "CLOB"):
		return expr.TEXT
	case strings.Contains(t, "BLOB"):
		return expr.BLOB
	default:
		return expr.UNDEFINED
	}
}

func defaultNormalizer(raw string) string {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.Trim(v, "'()")
	if v == "CURRENT_TIMESTAMP" || v == "DATETIME('NOW')" {
		return "CURRENT_TIMESTAMP"
	}
	return v
}

func renderColumnDDL(col model.Column) string {
	var b strings.Builder
	b.WriteString(quote(col.Name()))
	b.WriteByte(' ')
	b.WriteString(columnTypeSQL(col))
	if intCol, ok := col.(*model.IntegerColumn); ok && intCol.Identity {
		b.WriteString(" PRIMARY KEY AUTOINCREMENT")
	} else if col.Nullable() {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if def, ok := col.Default(); ok {
		b.WriteString(" DEFAULT ")
		b.WriteString(def)
	}
	return b.String()
}

// CreateTable renders the primary key inline, the only way sqlite
// attaches AUTOINCREMENT to an identity column; a separate ALTER TABLE
// ADD CONSTRAINT ... PRIMARY KEY has no sqlite equivalent.
func (a *Adaptor) CreateTable(ctx context.Context, conn dbadaptor.Connection, table *model.Table) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	hasIdentityPK := false
	pk := table.PrimaryKey()
	for _, name := range pk {
		if col, ok := table.Column(name); ok {
			if ic, ok := col.(*model.IntegerColumn); ok && ic.Identity && len(pk) == 1 {
				hasIdentityPK = true
			}
		}
	}
	cols := make([]string, 0, len(table.Columns()))
	for _, c := range table.Columns() {
		cols = append(cols, renderColumnDDL(c))
	}
	if len(pk) > 0 && !hasIdentityPK {
		quoted := make([]string, len(pk))
		for i, c := range pk {
			quoted[i] = quote(c)
		}
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quote(physical(table.Grain().Name(), table.Name())), strings.Join(cols, ", "))
	_, err = tx.ExecContext(ctx, stmt)
	return err
}

func (a *Adaptor) DropTable(ctx context.Context, conn dbadaptor.Connection, grainName, tableName string) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", quote(physical(grainName, tableName))))
	return err
}

func (a *Adaptor) GetColumns(ctx context.Context, conn dbadaptor.Connection, table *model.Table) (map[string]bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(physical(table.Grain().Name(), table.Name()))))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt any
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

func (a *Adaptor) CreateColumn(ctx context.Context, conn dbadaptor.Connection, table *model.Table, col model.Column) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(physical(table.Grain().Name(), table.Name())), renderColumnDDL(col))
	_, err = tx.ExecContext(ctx, stmt)
	return err
}

// UpdateColumn drops the column and adds it back, since sqlite's ALTER
// TABLE cannot change a column's type, nullability or default in place.
func (a *Adaptor) UpdateColumn(ctx context.Context, conn dbadaptor.Connection, table *model.Table, col model.Column, _ dbinfo.DbColumnInfo) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	tname := quote(physical(table.Grain().Name(), table.Name()))
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", tname, quote(col.Name()))); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", tname, renderColumnDDL(col)))
	return err
}

func (a *Adaptor) GetColumnInfo(ctx context.Context, conn dbadaptor.Connection, table *model.Table, columnName string) (dbinfo.DbColumnInfo, bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return dbinfo.DbColumnInfo{}, false, err
	}
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(physical(table.Grain().Name(), table.Name()))))
	if err != nil {
		return dbinfo.DbColumnInfo{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt *string
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return dbinfo.DbColumnInfo{}, false, err
		}
		if name != columnName {
			continue
		}
		info := dbinfo.DbColumnInfo{
			Name:     name,
			Type:     classifyType(ctype),
			Nullable: notnull == 0,
			Identity: pk == 1,
		}
		if dflt != nil {
			info.HasDefault = true
			info.Default = *dflt
		}
		return info, true, nil
	}
	return dbinfo.DbColumnInfo{}, false, rows.Err()
}

// ManageAutoIncrement is a no-op: AUTOINCREMENT's counter lives in
// sqlite_sequence and tracks itself automatically.
func (a *Adaptor) ManageAutoIncrement(context.Context, dbadaptor.Connection, *model.Table) error { return nil }

func (a *Adaptor) GetPKInfo(ctx context.Context, conn dbadaptor.Connection, table *model.Table) (dbinfo.DbPkInfo, bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return dbinfo.DbPkInfo{}, false, err
	}
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(physical(table.Grain().Name(), table.Name()))))
	if err != nil {
		return dbinfo.DbPkInfo{}, false, err
	}
	defer rows.Close()
	type pkcol struct {
		name string
		pos  int
	}
	var cols []pkcol
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt any
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return dbinfo.DbPkInfo{}, false, err
		}
		if pk > 0 {
			cols = append(cols, pkcol{name, pk})
		}
	}
	if len(cols) == 0 {
		return dbinfo.DbPkInfo{}, false, rows.Err()
	}
	names := make([]string, len(cols))
	for _, c := range cols {
		names[c.pos-1] = c.name
	}
	return dbinfo.DbPkInfo{TableName: table.Name(), Columns: names}, true, nil
}

// CreatePK/DropPK have no sqlite equivalent once a table exists: the
// primary key is fixed at CREATE TABLE time. The updater's phase only
// calls these when GetPKInfo disagrees with the model, which for
// sqlite means the table itself must be rebuilt; CreateTable already
// renders the PK inline, so these are no-ops here.
func (a *Adaptor) CreatePK(context.Context, dbadaptor.Connection, *model.Table) error { return nil }
func (a *Adaptor) DropPK(context.Context, dbadaptor.Connection, *model.Table) error   { return nil }

func (a *Adaptor) GetFKInfo(ctx context.Context, conn dbadaptor.Connection, grainName string) ([]dbinfo.DbFkInfo, error) {
	tx, err := txOf(conn)
	if err != nil {
		return nil, err
	}
	tableRows, err := tx.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE ?", grainName+"$%")
	if err != nil {
		return nil, err
	}
	defer tableRows.Close()
	var tables []string
	for tableRows.Next() {
		var name string
		if err := tableRows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	if err := tableRows.Err(); err != nil {
		return nil, err
	}

	var out []dbinfo.DbFkInfo
	for _, physicalTable := range tables {
		rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quote(physicalTable)))
		if err != nil {
			return nil, err
		}
		byID := make(map[int]*dbinfo.DbFkInfo)
		var order []int
		for rows.Next() {
			var id, seq int
			var refTable, from, to, onUpdate, onDelete, match string
			if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
				rows.Close()
				return nil, err
			}
			fk, ok := byID[id]
			if !ok {
				fk = &dbinfo.DbFkInfo{
					Name:            fmt.Sprintf("fk_%s_%d", strings.TrimPrefix(physicalTable, grainName+"$"), id),
					TableName:       strings.TrimPrefix(physicalTable, grainName+"$"),
					ReferencedTable: strings.TrimPrefix(refTable, grainName+"$"),
				}
				byID[id] = fk
				order = append(order, id)
			}
			fk.Columns = append(fk.Columns, from)
			fk.ReferencedColumns = append(fk.ReferencedColumns, to)
		}
		rows.Close()
		for _, id := range order {
			out = append(out, *byID[id])
		}
	}
	return out, nil
}

// CreateFK/DropFK have no sqlite ALTER TABLE equivalent; a foreign key
// is only ever declared inline at CREATE TABLE time, which CreateTable
// does not currently render (sqlite's deferred-FK column-rebuild dance
// is left to a future pass — tracked rather than silently dropped).
func (a *Adaptor) CreateFK(context.Context, dbadaptor.Connection, *model.ForeignKey) error {
	return celesta.New(celesta.KindDDLFailed, "sqlite3: foreign keys must be declared at table-creation time")
}
func (a *Adaptor) DropFK(context.Context, dbadaptor.Connection, string, string) error { return nil }

func (a *Adaptor) GetIndices(ctx context.Context, conn dbadaptor.Connection, grainName string) (map[string]dbinfo.DbIndexInfo, error) {
	tx, err := txOf(conn)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, "SELECT name, tbl_name FROM sqlite_master WHERE type = 'index' AND tbl_name LIKE ? AND name NOT LIKE 'sqlite_%'", grainName+"$%")
	if err != nil {
		return nil, err
	}
	type idxRow struct{ name, table string }
	var idxRows []idxRow
	for rows.Next() {
		var name, table string
		if err := rows.Scan(&name, &table); err != nil {
			rows.Close()
			return nil, err
		}
		idxRows = append(idxRows, idxRow{name, table})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]dbinfo.DbIndexInfo)
	for _, ir := range idxRows {
		colRows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quote(ir.name)))
		if err != nil {
			return nil, err
		}
		var cols []string
		for colRows.Next() {
			var seqno, cid int
			var colName string
			if err := colRows.Scan(&seqno, &cid, &colName); err != nil {
				colRows.Close()
				return nil, err
			}
			cols = append(cols, colName)
		}
		colRows.Close()
		out[ir.name] = dbinfo.DbIndexInfo{Name: ir.name, TableName: strings.TrimPrefix(ir.table, grainName+"$"), Columns: cols}
	}
	return out, nil
}

func (a *Adaptor) CreateIndex(ctx context.Context, conn dbadaptor.Connection, idx *model.Index) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	cols := make([]string, len(idx.Columns()))
	for i, c := range idx.Columns() {
		cols[i] = quote(c)
	}
	stmt := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", quote(idx.Name()), quote(physical(idx.Grain().Name(), idx.Table().Name())), strings.Join(cols, ", "))
	_, err = tx.ExecContext(ctx, stmt)
	return err
}

func (a *Adaptor) DropIndex(ctx context.Context, conn dbadaptor.Connection, _, indexName string) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("DROP INDEX %s", quote(indexName)))
	return err
}

// SQLite has no sequence object.
func (a *Adaptor) SequenceExists(context.Context, dbadaptor.Connection, string, string) (bool, error) {
	return false, nil
}
func (a *Adaptor) GetSequenceInfo(context.Context, dbadaptor.Connection, string, string) (dbinfo.DbSequenceInfo, error) {
	return dbinfo.DbSequenceInfo{}, nil
}
func (a *Adaptor) CreateSequence(context.Context, dbadaptor.Connection, *model.Sequence) error {
	return celesta.New(celesta.KindDDLFailed, "sqlite3 has no native sequence support")
}
func (a *Adaptor) AlterSequence(context.Context, dbadaptor.Connection, *model.Sequence) error {
	return celesta.New(celesta.KindDDLFailed, "sqlite3 has no native sequence support")
}

func (a *Adaptor) GetViewList(ctx context.Context, conn dbadaptor.Connection, grainName string) ([]string, error) {
	tx, err := txOf(conn)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'view' AND name LIKE ?", grainName+"$%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, strings.TrimPrefix(name, grainName+"$"))
	}
	return out, rows.Err()
}

func (a *Adaptor) CreateView(ctx context.Context, conn dbadaptor.Connection, v *model.View) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("CREATE VIEW %s AS %s", quote(physical(v.Grain().Name(), v.Name())), v.Tree().CSQL())
	_, err = tx.ExecContext(ctx, stmt)
	return err
}

func (a *Adaptor) DropView(ctx context.Context, conn dbadaptor.Connection, grainName, viewName string) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("DROP VIEW %s", quote(physical(grainName, viewName))))
	return err
}

func (a *Adaptor) parameterizedViewsTable(grainName string) string {
	return quote(physical(grainName, "celesta_parameterized_views"))
}

func (a *Adaptor) ensureParameterizedViewsTable(ctx context.Context, tx *sql.Tx, grainName string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (viewname TEXT PRIMARY KEY, query TEXT NOT NULL)", a.parameterizedViewsTable(grainName)))
	return err
}

func (a *Adaptor) GetParameterizedViewList(ctx context.Context, conn dbadaptor.Connection, grainName string) ([]string, error) {
	tx, err := txOf(conn)
	if err != nil {
		return nil, err
	}
	if err := a.ensureParameterizedViewsTable(ctx, tx, grainName); err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT viewname FROM %s", a.parameterizedViewsTable(grainName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (a *Adaptor) CreateParameterizedView(ctx context.Context, conn dbadaptor.Connection, pv *model.ParameterizedView) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	if err := a.ensureParameterizedViewsTable(ctx, tx, pv.Grain().Name()); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (viewname, query) VALUES (?, ?)", a.parameterizedViewsTable(pv.Grain().Name())),
		pv.Name(), pv.Tree().CSQL())
	return err
}

func (a *Adaptor) DropParameterizedView(ctx context.Context, conn dbadaptor.Connection, grainName, viewName string) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE viewname = ?", a.parameterizedViewsTable(grainName)), viewName)
	return err
}

// MaterializedViewExists/CreateMaterializedView/DropMaterializedView/
// InitDataForMaterializedView: sqlite has no native materialized view,
// so it is always a plain table kept current by triggers, mirroring
// dbadaptor/mysql and dbadaptor/mssql's emulated path.
func (a *Adaptor) MaterializedViewExists(ctx context.Context, conn dbadaptor.Connection, mv *model.MaterializedView) (bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return false, err
	}
	var n int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", physical(mv.Grain().Name(), mv.Name()))
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (a *Adaptor) CreateMaterializedView(ctx context.Context, conn dbadaptor.Connection, mv *model.MaterializedView) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	cols := make([]string, 0, len(mv.Columns()))
	for _, name := range mv.Columns() {
		srcCol, ok := mv.RefTable().Column(name)
		if !ok {
			continue
		}
		cols = append(cols, quote(name)+" "+columnTypeSQL(srcCol))
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quote(physical(mv.Grain().Name(), mv.Name())), strings.Join(cols, ", "))
	_, err = tx.ExecContext(ctx, stmt)
	return err
}

func (a *Adaptor) DropMaterializedView(ctx context.Context, conn dbadaptor.Connection, mv *model.MaterializedView) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", quote(physical(mv.Grain().Name(), mv.Name()))))
	return err
}

func (a *Adaptor) InitDataForMaterializedView(ctx context.Context, conn dbadaptor.Connection, mv *model.MaterializedView) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) %s", quote(physical(mv.Grain().Name(), mv.Name())), strings.Join(mv.Columns(), ", "), mv.Query().CSQL())
	_, err = tx.ExecContext(ctx, stmt)
	return err
}

func triggerName(grainName, table string, kind dbadaptor.TriggerKind) string {
	return fmt.Sprintf("%s_%s_%s_trg", grainName, table, strings.ToLower(string(kind)))
}

func (a *Adaptor) GetTriggerBody(ctx context.Context, conn dbadaptor.Connection, q dbadaptor.TriggerQuery) (string, bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return "", false, err
	}
	var sqlText string
	row := tx.QueryRowContext(ctx, "SELECT sql FROM sqlite_master WHERE type = 'trigger' AND name = ?", triggerName(q.GrainName, q.TableName, q.Kind))
	if err := row.Scan(&sqlText); err != nil {
		return "", false, nil
	}
	return sqlText, true, nil
}

func (a *Adaptor) DropTableTriggersForMaterializedViews(ctx context.Context, conn dbadaptor.Connection, table *model.Table) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	for _, kind := range []dbadaptor.TriggerKind{dbadaptor.TriggerPostInsert, dbadaptor.TriggerPostUpdate, dbadaptor.TriggerPostDelete} {
		name := triggerName(table.Grain().Name(), table.Name(), kind)
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TRIGGER IF EXISTS %s", quote(name))); err != nil {
			return err
		}
	}
	return nil
}

var triggerEvent = map[dbadaptor.TriggerKind]string{
	dbadaptor.TriggerPostInsert: "AFTER INSERT",
	dbadaptor.TriggerPostUpdate: "AFTER UPDATE",
	dbadaptor.TriggerPostDelete: "AFTER DELETE",
}

func commentBlock(body string) string {
	var b strings.Builder
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		b.WriteString("-- ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func refreshBody(mvs []*model.MaterializedView) string {
	var b strings.Builder
	for _, mv := range mvs {
		tname := quote(physical(mv.Grain().Name(), mv.Name()))
		b.WriteString(fmt.Sprintf("DELETE FROM %s;\n", tname))
		b.WriteString(fmt.Sprintf("INSERT INTO %s (%s) %s;\n", tname, strings.Join(mv.Columns(), ", "), mv.Query().CSQL()))
	}
	return b.String()
}

func (a *Adaptor) CreateTableTriggersForMaterializedViews(ctx context.Context, conn dbadaptor.Connection, table *model.Table, mvs []*model.MaterializedView) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	var markers string
	for _, mv := range mvs {
		markers += "-- " + mv.TriggerMarker() + "\n"
	}
	body := markers + refreshBody(mvs)
	for _, kind := range []dbadaptor.TriggerKind{dbadaptor.TriggerPostInsert, dbadaptor.TriggerPostUpdate, dbadaptor.TriggerPostDelete} {
		name := triggerName(table.Grain().Name(), table.Name(), kind)
		stmt := fmt.Sprintf("CREATE TRIGGER %s %s ON %s\nBEGIN\n%sSELECT 1;\nEND",
			quote(name), triggerEvent[kind], quote(physical(table.Grain().Name(), table.Name())), commentBlock(body))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adaptor) UpdateVersioningTrigger(ctx context.Context, conn dbadaptor.Connection, table *model.Table) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%s_recversion_trg", table.Grain().Name(), table.Name())
	tname := quote(physical(table.Grain().Name(), table.Name()))
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TRIGGER IF EXISTS %s", quote(name))); err != nil {
		return err
	}
	body := fmt.Sprintf("UPDATE %s SET %s = OLD.%s + 1 WHERE rowid = NEW.rowid;", tname, quote("recversion"), quote("recversion"))
	stmt := fmt.Sprintf("CREATE TRIGGER %s AFTER UPDATE ON %s\nBEGIN\n%sEND", quote(name), tname, commentBlock(body))
	_, err = tx.ExecContext(ctx, stmt)
	return err
}

func (a *Adaptor) CreateSysObjects(ctx context.Context, conn dbadaptor.Connection, sysSchemaName string) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			length INTEGER NOT NULL,
			checksum INTEGER NOT NULL,
			state INTEGER NOT NULL,
			lastmodified TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT ''
		)`, quote(physical(sysSchemaName, "grains"))),
		fmt.Sprintf(`CREATE TABLE %s (
			grainid TEXT NOT NULL,
			tablename TEXT NOT NULL,
			tabletype TEXT NOT NULL,
			orphaned INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (grainid, tablename)
		)`, quote(physical(sysSchemaName, "tables"))),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// DefaultNormalizer is exposed for cmd/celestaup to wire into
// updater.New alongside NewAdaptor's Adaptor, since dbadaptor.Adaptor
// itself carries no normalizer method.
func DefaultNormalizer() dbinfo.DefaultNormalizer { return defaultNormalizer }

var _ dbadaptor.Adaptor = (*Adaptor)(nil)
