// Package mysql is the dbadaptor.Adaptor for MySQL/MariaDB: a
// sqlbase.Dialect built on MySQL's lack of both native sequences and
// native materialized views, so sequences fail over to
// celesta.KindDDLFailed and materialized views are always emulated as
// plain tables kept current by triggers.
//
// Grounded on database/mysql/database.go for the information_schema
// queries MySQL needs beyond the ANSI-portable ones sqlbase.Engine
// already runs (indexes live in information_schema.statistics here,
// unlike postgres).
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/xwb1989/sqlparser"

	"github.com/celesta-db/celesta/dbadaptor"
	"github.com/celesta-db/celesta/dbadaptor/sqlbase"
	"github.com/celesta-db/celesta/dbinfo"
	"github.com/celesta-db/celesta/expr"
	"github.com/celesta-db/celesta/model"
)

// NewAdaptor opens a MySQL connection pool and returns a
// dbadaptor.Adaptor backed by it.
func NewAdaptor(cfg dbadaptor.Config) (dbadaptor.Adaptor, error) {
	dsn := buildDSN(cfg)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return &sqlbase.Engine{DB: db, Dialect: dialect{}, SysGrainName: "celesta"}, nil
}

func buildDSN(cfg dbadaptor.Config) string {
	addr := fmt.Sprintf("tcp(%s:%d)", cfg.Host, cfg.Port)
	if cfg.Socket != "" {
		addr = fmt.Sprintf("unix(%s)", cfg.Socket)
	}
	return fmt.Sprintf("%s:%s@%s/%s?parseTime=true&multiStatements=true", cfg.User, cfg.Password, addr, cfg.DbName)
}

type dialect struct{}

func (dialect) Name() string { return "mysql" }

func (dialect) Quote(name string) string { return "`" + strings.ReplaceAll(name, "`", "``") + "`" }

func (dialect) Placeholder(int) string { return "?" }

func (dialect) ColumnTypeSQL(col model.Column) string {
	switch c := col.(type) {
	case *model.IntegerColumn:
		return "BIGINT"
	case *model.FloatingColumn:
		return "DOUBLE"
	case *model.StringColumn:
		if c.Max {
			return "LONGTEXT"
		}
		return fmt.Sprintf("VARCHAR(%d)", c.Length)
	case *model.BinaryColumn:
		return "LONGBLOB"
	case *model.BooleanColumn:
		return "TINYINT(1)"
	case *model.DateTimeColumn:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

func (dialect) ClassifyType(sqlType string) expr.Type {
	t := strings.ToLower(sqlType)
	switch {
	case strings.Contains(t, "int") || t == "double" || t == "float" || t == "decimal":
		return expr.NUMERIC
	case strings.Contains(t, "char") || strings.Contains(t, "text"):
		return expr.TEXT
	case strings.Contains(t, "blob") || t == "binary" || t == "varbinary":
		return expr.BLOB
	case t == "tinyint":
		return expr.BIT
	case strings.Contains(t, "date") || strings.Contains(t, "time"):
		return expr.DATE
	default:
		return expr.UNDEFINED
	}
}

func (dialect) AutoIncrementClause() string { return "AUTO_INCREMENT" }

// DefaultNormalizer canonicalizes a live default expression read back
// from information_schema.columns by round-tripping it through
// xwb1989/sqlparser as a throwaway SELECT statement, so whitespace, case
// and redundant parentheses do not count as differences; input sqlparser
// rejects falls back to trimmed, upper-cased text with surrounding
// quotes removed and NOW()/CURRENT_TIMESTAMP() mapped to
// CURRENT_TIMESTAMP.
func (dialect) DefaultNormalizer() dbinfo.DefaultNormalizer {
	return func(raw string) string {
		if canon, ok := canonicalizeExpr(raw); ok {
			return canon
		}
		v := strings.ToUpper(strings.TrimSpace(raw))
		switch v {
		case "CURRENT_TIMESTAMP()", "NOW()":
			return "CURRENT_TIMESTAMP"
		}
		return strings.Trim(v, "'")
	}
}

func canonicalizeExpr(raw string) (string, bool) {
	stmt, err := sqlparser.Parse("SELECT " + raw)
	if err != nil {
		return "", false
	}
	out := strings.ToUpper(strings.TrimPrefix(sqlparser.String(stmt), "select "))
	return out, true
}

func (dialect) SupportsNativeSequence() bool { return false }

func (dialect) CreateSequenceSQL(string, *model.Sequence) string { return "" }
func (dialect) AlterSequenceSQL(string, *model.Sequence) string  { return "" }

func (d dialect) ManageAutoIncrementSQL(table *model.Table) []string {
	var stmts []string
	for _, col := range table.Columns() {
		intCol, ok := col.(*model.IntegerColumn)
		if !ok || !intCol.Identity {
			continue
		}
		tname := d.Quote(table.Grain().Name()) + "." + d.Quote(table.Name())
		stmts = append(stmts, fmt.Sprintf(
			"ALTER TABLE %s AUTO_INCREMENT = (SELECT COALESCE(MAX(%s), 0) + 1 FROM %s)",
			tname, d.Quote(col.Name()), tname))
	}
	return stmts
}

// MySQL has no native materialized view; sqlbase.Engine emulates one as
// a plain table kept current by triggers.
func (dialect) SupportsNativeMaterializedView() bool                       { return false }
func (dialect) CreateMaterializedViewSQL(*model.MaterializedView) string   { return "" }
func (dialect) DropMaterializedViewSQL(*model.MaterializedView) string     { return "" }

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
		dbadaptor.TriggerPostInsert: "AFTER INSERT",
		dbadaptor.TriggerPostUpdate: "AFTER UPDATE",
		dbadaptor.TriggerPostDelete: "AFTER DELETE",
	}[kind]
	return fmt.Sprintf("CREATE TRIGGER %s.%s %s ON %s.%s FOR EACH ROW\nBEGIN\n%s\nEND",
		d.Quote(schema), d.Quote(triggerName), event, d.Quote(schema), d.Quote(table), commentBlock(body))
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
	return fmt.Sprintf("DROP TRIGGER IF EXISTS %s.%s", d.Quote(schema), d.Quote(triggerName))
}

func (d dialect) VersioningTriggerSQL(table *model.Table) (string, string) {
	name := fmt.Sprintf("%s_%s_recversion_trg", table.Grain().Name(), table.Name())
	body := fmt.Sprintf("SET NEW.%s = OLD.%s + 1;", d.Quote("recversion"), d.Quote("recversion"))
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
			"id VARCHAR(250) PRIMARY KEY, version VARCHAR(250) NOT NULL, length INT NOT NULL, "+
			"checksum BIGINT NOT NULL, state INT NOT NULL, lastmodified DATETIME NOT NULL, "+
			"message TEXT NOT NULL)", d.Quote(schema)),
		fmt.Sprintf("CREATE TABLE %s.tables ("+
			"grainid VARCHAR(250) NOT NULL, tablename VARCHAR(250) NOT NULL, tabletype VARCHAR(30) NOT NULL, "+
			"orphaned BOOLEAN NOT NULL DEFAULT FALSE, PRIMARY KEY (grainid, tablename))", d.Quote(schema)),
		fmt.Sprintf("CREATE TABLE %s.celesta_parameterized_views ("+
			"grainid VARCHAR(250) NOT NULL, viewname VARCHAR(250) NOT NULL, query LONGTEXT NOT NULL, "+
			"PRIMARY KEY (grainid, viewname))", d.Quote(schema)),
	}
}

func (dialect) SchemaExistsSQL() string {
	return "SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?"
}

func (d dialect) CreateSchemaSQL(name string) string {
	return fmt.Sprintf("CREATE DATABASE %s", d.Quote(name))
}

func (d dialect) ListIndices(ctx context.Context, tx *sql.Tx, grainName string) (map[string]dbinfo.DbIndexInfo, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT index_name, table_name, column_name FROM information_schema.statistics
		 WHERE table_schema = ? AND index_name <> 'PRIMARY' ORDER BY index_name, seq_in_index`, grainName)
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

func (dialect) SequenceExists(context.Context, *sql.Tx, string, string) (bool, error) { return false, nil }
func (dialect) GetSequenceInfo(context.Context, *sql.Tx, string, string) (dbinfo.DbSequenceInfo, error) {
	return dbinfo.DbSequenceInfo{}, nil
}

func (d dialect) ListViews(ctx context.Context, tx *sql.Tx, grainName string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT table_name FROM information_schema.views WHERE table_schema = ?", grainName)
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
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT viewname FROM %s.celesta_parameterized_views WHERE grainid = ?", d.Quote(grainName)), grainName)
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
	stmt := fmt.Sprintf("INSERT INTO %s.celesta_parameterized_views (grainid, viewname, query) VALUES (?, ?, ?)", d.Quote(pv.Grain().Name()))
	return stmt, []any{pv.Grain().Name(), pv.Name(), pv.Tree().CSQL()}
}

func (d dialect) DropParameterizedViewSQL(schema, name string) (string, []any) {
	stmt := fmt.Sprintf("DELETE FROM %s.celesta_parameterized_views WHERE grainid = ? AND viewname = ?", d.Quote(schema))
	return stmt, []any{schema, name}
}

func (dialect) MaterializedViewExists(context.Context, *sql.Tx, *model.MaterializedView) (bool, error) {
	return false, nil
}

func (d dialect) GetTriggerBody(ctx context.Context, tx *sql.Tx, schema, table string, kind dbadaptor.TriggerKind) (string, bool, error) {
	name := d.TriggerName(schema, table, kind)
	var src string
	row := tx.QueryRowContext(ctx,
		"SELECT action_statement FROM information_schema.triggers WHERE trigger_schema = ? AND trigger_name = ?", schema, name)
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
