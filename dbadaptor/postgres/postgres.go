// Package postgres is the dbadaptor.Adaptor for PostgreSQL: a
// sqlbase.Dialect supplying postgres's native sequence, materialized
// view and trigger support on top of sqlbase.Engine's shared
// information_schema-based table/column/key plumbing.
//
// Grounded on adapter/postgres/postgres.go for DSN construction and
// database/postgres/database.go for the pg_catalog introspection
// queries information_schema can't cover (indexes, sequences).
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	pgquery "github.com/wasilibs/go-pgquery"

	"github.com/celesta-db/celesta/dbadaptor"
	"github.com/celesta-db/celesta/dbadaptor/sqlbase"
	"github.com/celesta-db/celesta/dbinfo"
	"github.com/celesta-db/celesta/expr"
	"github.com/celesta-db/celesta/model"
	"github.com/celesta-db/celesta/util"
)

// NewAdaptor opens a postgres connection pool and returns a
// dbadaptor.Adaptor backed by it.
func NewAdaptor(cfg dbadaptor.Config) (dbadaptor.Adaptor, error) {
	dsn := buildDSN(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &sqlbase.Engine{DB: db, Dialect: dialect{}, SysGrainName: "celesta"}, nil
}

func buildDSN(cfg dbadaptor.Config) string {
	parts := []string{fmt.Sprintf("host=%s", cfg.Host), fmt.Sprintf("port=%d", cfg.Port), fmt.Sprintf("dbname=%s", cfg.DbName)}
	if cfg.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.User))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	parts = append(parts, "sslmode=disable")
	return strings.Join(parts, " ")
}

type dialect struct{}

func (dialect) Name() string { return "postgres" }

func (dialect) Quote(name string) string { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` }

func (dialect) Placeholder(i int) string { return fmt.Sprintf("$%d", i) }

func (dialect) ColumnTypeSQL(col model.Column) string {
	switch c := col.(type) {
	case *model.IntegerColumn:
		return "NUMERIC"
	case *model.FloatingColumn:
		return "DOUBLE PRECISION"
	case *model.StringColumn:
		if c.Max {
			return "TEXT"
		}
		return fmt.Sprintf("VARCHAR(%d)", c.Length)
	case *model.BinaryColumn:
		return "BYTEA"
	case *model.BooleanColumn:
		return "BOOLEAN"
	case *model.DateTimeColumn:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (dialect) ClassifyType(sqlType string) expr.Type {
	switch strings.ToLower(sqlType) {
	case "integer", "bigint", "smallint", "numeric", "double precision", "real":
		return expr.NUMERIC
	case "text", "character varying", "varchar", "char", "character":
		return expr.TEXT
	case "bytea":
		return expr.BLOB
	case "boolean", "bit":
		return expr.BIT
	case "timestamp", "timestamp without time zone", "date":
		return expr.DATE
	default:
		return expr.UNDEFINED
	}
}

func (dialect) AutoIncrementClause() string { return "GENERATED BY DEFAULT AS IDENTITY" }

// DefaultNormalizer canonicalizes a live default expression by parsing
// it with go-pgquery and deparsing the result, so differences in
// whitespace, letter case or redundant parentheses collapse structurally
// rather than by string heuristics; input go-pgquery cannot parse as a
// SELECT expression falls back to the trimmed, upper-cased raw text with
// a trailing ::TEXT cast removed.
func (dialect) DefaultNormalizer() dbinfo.DefaultNormalizer {
	return func(raw string) string {
		if canon, ok := canonicalizeExpr(raw); ok {
			return canon
		}
		v := strings.ToUpper(strings.TrimSpace(raw))
		return strings.TrimSuffix(v, "::TEXT")
	}
}

// canonicalizeExpr parses raw as a standalone expression (wrapped in a
// throwaway SELECT) and deparses it back, yielding a canonical spelling
// for comparison. Returns ok=false for anything go-pgquery can't parse
// as an expression, which the caller falls back on normalizing
// textually.
func canonicalizeExpr(raw string) (string, bool) {
	result, err := pgquery.Parse("SELECT " + raw)
	if err != nil {
		return "", false
	}
	out, err := pgquery.Deparse(result)
	if err != nil {
		return "", false
	}
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(out), "SELECT ")), true
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
	return fmt.Sprintf("CREATE SEQUENCE %s.%s %s", d.Quote(schema), d.Quote(seq.Name()), sequenceClauses(seq))
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
		seqExpr := fmt.Sprintf("pg_get_serial_sequence('%s.%s', '%s')", table.Grain().Name(), table.Name(), col.Name())
		stmts = append(stmts, fmt.Sprintf(
			"SELECT setval(%s, COALESCE((SELECT MAX(%s) FROM %s.%s), 0) + 1, false)",
			seqExpr, d.Quote(col.Name()), d.Quote(table.Grain().Name()), d.Quote(table.Name())))
	}
	return stmts
}

func (dialect) SupportsNativeMaterializedView() bool { return true }

func (d dialect) CreateMaterializedViewSQL(mv *model.MaterializedView) string {
	return fmt.Sprintf("CREATE MATERIALIZED VIEW %s.%s AS %s",
		d.Quote(mv.Grain().Name()), d.Quote(mv.Name()), mv.Query().CSQL())
}

func (d dialect) DropMaterializedViewSQL(mv *model.MaterializedView) string {
	return fmt.Sprintf("DROP MATERIALIZED VIEW %s.%s", d.Quote(mv.Grain().Name()), d.Quote(mv.Name()))
}

func (d dialect) InitDataForMaterializedViewSQL(mv *model.MaterializedView) string {
	return fmt.Sprintf("REFRESH MATERIALIZED VIEW %s.%s", d.Quote(mv.Grain().Name()), d.Quote(mv.Name()))
}

// TriggerName renders <schema>_<table>_<kind>_trg through
// util.BuildPostgresConstraintName, which truncates the schema and table
// parts so the name fits NAMEDATALEN's 63 bytes; a 30-char grain name
// plus a 30-char table name already leave no room for the
// "_post_insert_trg" suffix.
func (d dialect) TriggerName(schema, table string, kind dbadaptor.TriggerKind) string {
	return util.BuildPostgresConstraintName(schema, table, strings.ToLower(string(kind))+"_trg")
}

func (d dialect) CreateTriggerSQL(schema, table string, kind dbadaptor.TriggerKind, triggerName, body string) string {
	event := map[dbadaptor.TriggerKind]string{
		dbadaptor.TriggerPostInsert: "AFTER INSERT",
		dbadaptor.TriggerPostUpdate: "AFTER UPDATE",
		dbadaptor.TriggerPostDelete: "AFTER DELETE",
	}[kind]
	funcName := triggerName + "_fn"
	return fmt.Sprintf(
		"CREATE OR REPLACE FUNCTION %s.%s() RETURNS TRIGGER AS $$\n%s\nBEGIN RETURN NEW; END;\n$$ LANGUAGE plpgsql;\n"+
			"CREATE TRIGGER %s %s ON %s.%s FOR EACH ROW EXECUTE FUNCTION %s.%s()",
		d.Quote(schema), d.Quote(funcName), commentBlock(body),
		d.Quote(triggerName), event, d.Quote(schema), d.Quote(table), d.Quote(schema), d.Quote(funcName))
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

func (d dialect) DropTriggerSQL(schema, table, triggerName string) string {
	return fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s.%s", d.Quote(triggerName), d.Quote(schema), d.Quote(table))
}

func (d dialect) VersioningTriggerSQL(table *model.Table) (string, string) {
	name := fmt.Sprintf("%s_%s_recversion_trg", table.Grain().Name(), table.Name())
	body := fmt.Sprintf("NEW.%s = OLD.%s + 1;", d.Quote("recversion"), d.Quote("recversion"))
	return name, body
}

func (dialect) TableTriggerRefreshBody(table *model.Table, mvs []*model.MaterializedView, _ dbadaptor.TriggerKind) string {
	var b strings.Builder
	for _, mv := range mvs {
		b.WriteString(fmt.Sprintf("REFRESH MATERIALIZED VIEW %q.%q;\n", mv.Grain().Name(), mv.Name()))
	}
	_ = table
	return b.String()
}

func (d dialect) SysObjectsDDL(schema string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE %s.grains (
			id TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			length INTEGER NOT NULL,
			checksum INTEGER NOT NULL,
			state INTEGER NOT NULL,
			lastmodified TIMESTAMP NOT NULL,
			message TEXT NOT NULL DEFAULT ''
		)`, d.Quote(schema)),
		fmt.Sprintf(`CREATE TABLE %s.tables (
			grainid TEXT NOT NULL,
			tablename TEXT NOT NULL,
			tabletype TEXT NOT NULL,
			orphaned BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (grainid, tablename)
		)`, d.Quote(schema)),
		fmt.Sprintf(`CREATE TABLE %s.celesta_parameterized_views (
			grainid TEXT NOT NULL,
			viewname TEXT NOT NULL,
			query TEXT NOT NULL,
			PRIMARY KEY (grainid, viewname)
		)`, d.Quote(schema)),
	}
}

func (d dialect) SchemaExistsSQL() string {
	return "SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = $1"
}

func (d dialect) CreateSchemaSQL(name string) string {
	return fmt.Sprintf("CREATE SCHEMA %s", d.Quote(name))
}

func (d dialect) ListIndices(ctx context.Context, tx *sql.Tx, grainName string) (map[string]dbinfo.DbIndexInfo, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT i.relname AS index_name, t.relname AS table_name, a.attname AS column_name
		 FROM pg_index ix
		 JOIN pg_class i ON i.oid = ix.indexrelid
		 JOIN pg_class t ON t.oid = ix.indrelid
		 JOIN pg_namespace n ON n.oid = t.relnamespace
		 JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		 WHERE n.nspname = $1 AND NOT ix.indisprimary
		 ORDER BY i.relname`, grainName)
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
	row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM information_schema.sequences WHERE sequence_schema = $1 AND sequence_name = $2", schema, name)
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d dialect) GetSequenceInfo(ctx context.Context, tx *sql.Tx, schema, name string) (dbinfo.DbSequenceInfo, error) {
	var start, increment, min, max int64
	row := tx.QueryRowContext(ctx,
		`SELECT start_value, increment_by, min_value, max_value FROM information_schema.sequences
		 WHERE sequence_schema = $1 AND sequence_name = $2`, schema, name)
	if err := row.Scan(&start, &increment, &min, &max); err != nil {
		return dbinfo.DbSequenceInfo{}, err
	}
	return dbinfo.DbSequenceInfo{Name: name, Start: start, Increment: increment, Min: &min, Max: &max}, nil
}

func (d dialect) ListViews(ctx context.Context, tx *sql.Tx, grainName string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT table_name FROM information_schema.views WHERE table_schema = $1", grainName)
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
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT viewname FROM %s.celesta_parameterized_views WHERE grainid = $1", d.Quote(grainName)), grainName)
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
	stmt := fmt.Sprintf("INSERT INTO %s.celesta_parameterized_views (grainid, viewname, query) VALUES ($1, $2, $3)", d.Quote(pv.Grain().Name()))
	return stmt, []any{pv.Grain().Name(), pv.Name(), pv.Tree().CSQL()}
}

func (d dialect) DropParameterizedViewSQL(schema, name string) (string, []any) {
	stmt := fmt.Sprintf("DELETE FROM %s.celesta_parameterized_views WHERE grainid = $1 AND viewname = $2", d.Quote(schema))
	return stmt, []any{schema, name}
}

func (d dialect) MaterializedViewExists(ctx context.Context, tx *sql.Tx, mv *model.MaterializedView) (bool, error) {
	var n int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM pg_matviews WHERE schemaname = $1 AND matviewname = $2", mv.Grain().Name(), mv.Name())
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d dialect) GetTriggerBody(ctx context.Context, tx *sql.Tx, schema, table string, kind dbadaptor.TriggerKind) (string, bool, error) {
	funcName := d.TriggerName(schema, table, kind) + "_fn"
	var src string
	row := tx.QueryRowContext(ctx,
		`SELECT prosrc FROM pg_proc p JOIN pg_namespace n ON n.oid = p.pronamespace
		 WHERE n.nspname = $1 AND p.proname = $2`, schema, funcName)
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
