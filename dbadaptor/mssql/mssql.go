// Package mssql is the dbadaptor.Adaptor for SQL Server: a
// sqlbase.Dialect with native sequences but, like MySQL, no native
// materialized view, so CreateMaterializedView falls back to
// sqlbase.Engine's emulated-table path.
//
// Grounded on database/mssql/database.go for the sys.* catalog views
// information_schema can't reach (indexes, identity columns).
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/celesta-db/celesta/dbadaptor"
	"github.com/celesta-db/celesta/dbadaptor/sqlbase"
	"github.com/celesta-db/celesta/dbinfo"
	"github.com/celesta-db/celesta/expr"
	"github.com/celesta-db/celesta/model"
)

// NewAdaptor opens a SQL Server connection pool and returns a
// dbadaptor.Adaptor backed by it.
func NewAdaptor(cfg dbadaptor.Config) (dbadaptor.Adaptor, error) {
	dsn := buildDSN(cfg)
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, err
	}
	return &sqlbase.Engine{DB: db, Dialect: dialect{}, SysGrainName: "celesta"}, nil
}

func buildDSN(cfg dbadaptor.Config) string {
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DbName)
}

type dialect struct{}

func (dialect) Name() string { return "sqlserver" }

func (dialect) Quote(name string) string { return "[" + strings.ReplaceAll(name, "]", "]]") + "]" }

func (dialect) Placeholder(i int) string { return fmt.Sprintf("@p%d", i) }

func (dialect) ColumnTypeSQL(col model.Column) string {
	switch c := col.(type) {
	case *model.IntegerColumn:
		return "BIGINT"
	case *model.FloatingColumn:
		return "FLOAT"
	case *model.StringColumn:
		if c.Max {
			return "NVARCHAR(MAX)"
		}
		return fmt.Sprintf("NVARCHAR(%d)", c.Length)
	case *model.BinaryColumn:
		return "VARBINARY(MAX)"
	case *model.BooleanColumn:
		return "BIT"
	case *model.DateTimeColumn:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

func (dialect) ClassifyType(sqlType string) expr.Type {
	t := strings.ToLower(sqlType)
	switch {
	case strings.Contains(t, "int") || t == "float" || t == "real" || t == "decimal" || t == "numeric" || t == "money":
		return expr.NUMERIC
	case strings.Contains(t, "char") || strings.Contains(t, "text"):
		return expr.TEXT
	case strings.Contains(t, "binary") || t == "image":
		return expr.BLOB
	case t == "bit":
		return expr.BIT
	case strings.Contains(t, "date") || strings.Contains(t, "time"):
		return expr.DATE
	default:
		return expr.UNDEFINED
	}
}

func (dialect) AutoIncrementClause() string { return "IDENTITY(1,1)" }

func (dialect) DefaultNormalizer() dbinfo.DefaultNormalizer {
	return func(raw string) string {
		v := strings.ToUpper(strings.TrimSpace(raw))
		v = strings.Trim(v, "()")
		switch v {
		case "GETDATE", "SYSDATETIME()", "GETDATE()":
			return "CURRENT_TIMESTAMP"
		}
		return v
	}
}

func (dialect) SupportsNativeSequence() bool { return true }

func sequenceClauses(seq *model.Sequence) string {
	clauses := fmt.Sprintf("START WITH %d INCREMENT BY %d", seq.Start(), seq.Increment())
	if seq.Min() != nil {
		clauses += fmt.Sprintf(" MINVALUE %d", *seq.Min())
	}
	if seq.Max() != nil {
		clauses += fmt.Sprintf(" MAXVALUE %d", *seq.Max())
	}
	if seq.Cycle() {
		clauses += " CYCLE"
	} else {
		clauses += " NO CYCLE"
	}
	return clauses
}

func (d dialect) CreateSequenceSQL(schema string, seq *model.Sequence) string {
	return fmt.Sprintf("CREATE SEQUENCE %s.%s AS BIGINT %s", d.Quote(schema), d.Quote(seq.Name()), sequenceClauses(seq))
}

func (d dialect) AlterSequenceSQL(schema string, seq *model.Sequence) string {
	return fmt.Sprintf("ALTER SEQUENCE %s.%s %s", d.Quote(schema), d.Quote(seq.Name()), sequenceClauses(seq))
}

func (d dialect) ManageAutoIncrementSQL(table *model.Table) []string {
	var stmts []string
	for _, col := range table.Columns() {
		intCol, ok := col.(*model.IntegerColumn)
		if !ok || !intCol.Identity {
			continue
		}
		tname := d.Quote(table.Grain().Name()) + "." + d.Quote(table.Name())
		stmts = append(stmts, fmt.Sprintf(
			"DBCC CHECKIDENT ('%s.%s', RESEED, (SELECT COALESCE(MAX(%s), 0) FROM %s))",
			table.Grain().Name(), table.Name(), d.Quote(col.Name()), tname))
	}
	return stmts
}

// SQL Server has no native materialized view (indexed views are too
// restrictive to host an arbitrary CelestaSQL query); sqlbase.Engine
// emulates one as a plain table kept current by triggers.
func (dialect) SupportsNativeMaterializedView() bool                     { return false }
func (dialect) CreateMaterializedViewSQL(*model.MaterializedView) string { return "" }
func (dialect) DropMaterializedViewSQL(*model.MaterializedView) string   { return "" }

func (d dialect) InitDataForMaterializedViewSQL(mv *model.MaterializedView) string {
	cols := strings.Join(mv.Columns(), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) %s",
		d.Quote(mv.Grain().Name())+"."+d.Quote(mv.Name()), cols, mv.Query().CSQL())
}

func (d dialect) TriggerName(schema, table string, kind dbadaptor.TriggerKind) string {
	return fmt.Sprintf("%s_%s_%s_trg", schema, table, strings.ToLower(string(kind)))
}

func (d dialect) CreateTriggerSQL(schema, table string, kind dbadaptor.TriggerKind, triggerName, body string) string {
	event := map[dbadaptor.TriggerKind]string{
		dbadaptor.TriggerPostInsert: "INSERT",
		dbadaptor.TriggerPostUpdate: "UPDATE",
		dbadaptor.TriggerPostDelete: "DELETE",
	}[kind]
	return fmt.Sprintf("CREATE TRIGGER %s.%s ON %s.%s AFTER %s AS\nBEGIN\n%sSET NOCOUNT ON;\nEND",
		d.Quote(schema), d.Quote(triggerName), d.Quote(schema), d.Quote(table), event, commentBlock(body))
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

func (d dialect) DropTriggerSQL(schema, _, triggerName string) string {
	return fmt.Sprintf("IF OBJECT_ID('%s.%s', 'TR') IS NOT NULL DROP TRIGGER %s.%s", schema, triggerName, d.Quote(schema), d.Quote(triggerName))
}

func (d dialect) VersioningTriggerSQL(table *model.Table) (string, string) {
	name := fmt.Sprintf("%s_%s_recversion_trg", table.Grain().Name(), table.Name())
	tname := d.Quote(table.Grain().Name()) + "." + d.Quote(table.Name())
	body := fmt.Sprintf("UPDATE %s SET %s = %s + 1 FROM %s t JOIN inserted i ON 1 = 1;",
		tname, d.Quote("recversion"), d.Quote("recversion"), tname)
	return name, body
}

func (d dialect) TableTriggerRefreshBody(table *model.Table, mvs []*model.MaterializedView, _ dbadaptor.TriggerKind) string {
	var b strings.Builder
	for _, mv := range mvs {
		tname := d.Quote(mv.Grain().Name()) + "." + d.Quote(mv.Name())
		b.WriteString(fmt.Sprintf("DELETE FROM %s;\n", tname))
		b.WriteString(fmt.Sprintf("INSERT INTO %s (%s) %s;\n", tname, strings.Join(mv.Columns(), ", "), mv.Query().CSQL()))
	}
	_ = table
	return b.String()
}

func (d dialect) SysObjectsDDL(schema string) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE %s.grains ("+
			"id NVARCHAR(250) PRIMARY KEY, version NVARCHAR(250) NOT NULL, length INT NOT NULL, "+
			"checksum BIGINT NOT NULL, state INT NOT NULL, lastmodified DATETIME2 NOT NULL, "+
			"message NVARCHAR(MAX) NOT NULL)", d.Quote(schema)),
		fmt.Sprintf("CREATE TABLE %s.tables ("+
			"grainid NVARCHAR(250) NOT NULL, tablename NVARCHAR(250) NOT NULL, tabletype NVARCHAR(30) NOT NULL, "+
			"orphaned BIT NOT NULL DEFAULT 0, PRIMARY KEY (grainid, tablename))", d.Quote(schema)),
		fmt.Sprintf("CREATE TABLE %s.celesta_parameterized_views ("+
			"grainid NVARCHAR(250) NOT NULL, viewname NVARCHAR(250) NOT NULL, query NVARCHAR(MAX) NOT NULL, "+
			"PRIMARY KEY (grainid, viewname))", d.Quote(schema)),
	}
}

func (dialect) SchemaExistsSQL() string {
	return "SELECT COUNT(*) FROM sys.schemas WHERE name = @p1"
}

func (d dialect) CreateSchemaSQL(name string) string {
	return fmt.Sprintf("CREATE SCHEMA %s", d.Quote(name))
}

func (d dialect) ListIndices(ctx context.Context, tx *sql.Tx, grainName string) (map[string]dbinfo.DbIndexInfo, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT i.name, t.name, c.name FROM sys.indexes i
		 JOIN sys.tables t ON t.object_id = i.object_id
		 JOIN sys.schemas s ON s.schema_id = t.schema_id
		 JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		 JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		 WHERE s.name = @p1 AND i.is_primary_key = 0 AND i.name IS NOT NULL
		 ORDER BY i.name, ic.key_ordinal`, grainName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]dbinfo.DbIndexInfo)
	for rows.Next() {
		var idx, table, col string
		if err := rows.Scan(&idx, &table, &col); err != nil {
			return nil, err
		}
		info := out[idx]
		info.Name = idx
		info.TableName = table
		info.Columns = append(info.Columns, col)
		out[idx] = info
	}
	return out, rows.Err()
}

func (d dialect) SequenceExists(ctx context.Context, tx *sql.Tx, schema, name string) (bool, error) {
	var n int
	row := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sys.sequences s JOIN sys.schemas sc ON sc.schema_id = s.schema_id
		 WHERE sc.name = @p1 AND s.name = @p2`, schema, name)
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d dialect) GetSequenceInfo(ctx context.Context, tx *sql.Tx, schema, name string) (dbinfo.DbSequenceInfo, error) {
	var start, increment, min, max int64
	row := tx.QueryRowContext(ctx,
		`SELECT CAST(start_value AS BIGINT), CAST(increment AS BIGINT), CAST(minimum_value AS BIGINT), CAST(maximum_value AS BIGINT)
		 FROM sys.sequences s JOIN sys.schemas sc ON sc.schema_id = s.schema_id
		 WHERE sc.name = @p1 AND s.name = @p2`, schema, name)
	if err := row.Scan(&start, &increment, &min, &max); err != nil {
		return dbinfo.DbSequenceInfo{}, err
	}
	return dbinfo.DbSequenceInfo{Name: name, Start: start, Increment: increment, Min: &min, Max: &max}, nil
}

func (d dialect) ListViews(ctx context.Context, tx *sql.Tx, grainName string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT v.name FROM sys.views v JOIN sys.schemas s ON s.schema_id = v.schema_id WHERE s.name = @p1`, grainName)
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

func (d dialect) CreateViewSQL(v *model.View) string {
	return fmt.Sprintf("CREATE VIEW %s.%s AS %s", d.Quote(v.Grain().Name()), d.Quote(v.Name()), v.Tree().CSQL())
}

func (d dialect) DropViewSQL(schema, name string) string {
	return fmt.Sprintf("DROP VIEW %s.%s", d.Quote(schema), d.Quote(name))
}

func (d dialect) ListParameterizedViews(ctx context.Context, tx *sql.Tx, grainName string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT viewname FROM %s.celesta_parameterized_views WHERE grainid = @p1", d.Quote(grainName)), grainName)
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

func (d dialect) CreateParameterizedViewSQL(pv *model.ParameterizedView) (string, []any) {
	stmt := fmt.Sprintf("INSERT INTO %s.celesta_parameterized_views (grainid, viewname, query) VALUES (@p1, @p2, @p3)", d.Quote(pv.Grain().Name()))
	return stmt, []any{pv.Grain().Name(), pv.Name(), pv.Tree().CSQL()}
}

func (d dialect) DropParameterizedViewSQL(schema, name string) (string, []any) {
	stmt := fmt.Sprintf("DELETE FROM %s.celesta_parameterized_views WHERE grainid = @p1 AND viewname = @p2", d.Quote(schema))
	return stmt, []any{schema, name}
}

func (dialect) MaterializedViewExists(context.Context, *sql.Tx, *model.MaterializedView) (bool, error) {
	return false, nil
}

func (d dialect) GetTriggerBody(ctx context.Context, tx *sql.Tx, schema, table string, kind dbadaptor.TriggerKind) (string, bool, error) {
	name := d.TriggerName(schema, table, kind)
	var src string
	row := tx.QueryRowContext(ctx,
		`SELECT m.definition FROM sys.triggers tr
		 JOIN sys.sql_modules m ON m.object_id = tr.object_id
		 JOIN sys.schemas s ON s.schema_id = (SELECT schema_id FROM sys.tables WHERE object_id = tr.parent_id)
		 WHERE s.name = @p1 AND tr.name = @p2`, schema, name)
	if err := row.Scan(&src); err != nil {
		return "", false, nil
	}
	return src, true, nil
}

// DefaultNormalizer is exposed for cmd/celestaup to wire into
// updater.New alongside NewAdaptor's Adaptor, since dbadaptor.Adaptor
// itself carries no normalizer method.
func DefaultNormalizer() dbinfo.DefaultNormalizer { return dialect{}.DefaultNormalizer() }

var _ sqlbase.Dialect = dialect{}
