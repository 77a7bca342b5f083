package sqlbase

import (
	"context"
	"fmt"
	"strings"

	"github.com/celesta-db/celesta/dbinfo"
	"github.com/celesta-db/celesta/model"
)

// qualify renders schema.table, both quoted.
func (e *Engine) qualify(schema, name string) string {
	return e.Dialect.Quote(schema) + "." + e.Dialect.Quote(name)
}

func (e *Engine) renderColumnDDL(col model.Column) string {
	var b strings.Builder
	b.WriteString(e.Dialect.Quote(col.Name()))
	b.WriteByte(' ')
	b.WriteString(e.Dialect.ColumnTypeSQL(col))
	if intCol, ok := col.(*model.IntegerColumn); ok && intCol.Identity {
		if clause := e.Dialect.AutoIncrementClause(); clause != "" {
			b.WriteByte(' ')
			b.WriteString(clause)
		}
	}
	if col.Nullable() {
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

func (e *Engine) CreateTable(ctx context.Context, conn any, table *model.Table) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	cols := make([]string, 0, len(table.Columns()))
	for _, c := range table.Columns() {
		cols = append(cols, e.renderColumnDDL(c))
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", e.qualify(table.Grain().Name(), table.Name()), strings.Join(cols, ", "))
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return err
	}
	if len(table.PrimaryKey()) > 0 {
		return e.createPKLocked(ctx, tx, table)
	}
	return nil
}

func (e *Engine) DropTable(ctx context.Context, conn any, grainName, tableName string) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", e.qualify(grainName, tableName)))
	return err
}

func (e *Engine) GetColumns(ctx context.Context, conn any, table *model.Table) (map[string]bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT column_name FROM information_schema.columns WHERE table_schema = %s AND table_name = %s",
		e.Dialect.Placeholder(1), e.Dialect.Placeholder(2)), table.Grain().Name(), table.Name())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

func (e *Engine) CreateColumn(ctx context.Context, conn any, table *model.Table, col model.Column) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", e.qualify(table.Grain().Name(), table.Name()), e.renderColumnDDL(col))
	_, err = tx.ExecContext(ctx, stmt)
	return err
}

func (e *Engine) UpdateColumn(ctx context.Context, conn any, table *model.Table, col model.Column, _ dbinfo.DbColumnInfo) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	// Drop and recreate, since not every dialect supports a single
	// ALTER COLUMN statement that can change type, nullability and
	// default all at once.
	tname := e.qualify(table.Grain().Name(), table.Name())
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", tname, e.Dialect.Quote(col.Name()))); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", tname, e.renderColumnDDL(col)))
	return err
}

func (e *Engine) GetColumnInfo(ctx context.Context, conn any, table *model.Table, columnName string) (dbinfo.DbColumnInfo, bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return dbinfo.DbColumnInfo{}, false, err
	}
	row := tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT data_type, is_nullable, column_default FROM information_schema.columns "+
			"WHERE table_schema = %s AND table_name = %s AND column_name = %s",
		e.Dialect.Placeholder(1), e.Dialect.Placeholder(2), e.Dialect.Placeholder(3)),
		table.Grain().Name(), table.Name(), columnName)

	var dataType, isNullable string
	var def *string
	if err := row.Scan(&dataType, &isNullable, &def); err != nil {
		return dbinfo.DbColumnInfo{}, false, nil
	}
	info := dbinfo.DbColumnInfo{
		Name:     columnName,
		Type:     e.Dialect.ClassifyType(dataType),
		Nullable: strings.EqualFold(isNullable, "YES"),
	}
	if def != nil {
		info.HasDefault = true
		info.Default = *def
	}
	return info, true, nil
}

// ManageAutoIncrement re-synchronizes the dialect's autoincrement
// counter with the live max value of the table's identity column.
func (e *Engine) ManageAutoIncrement(ctx context.Context, conn any, table *model.Table) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	for _, stmt := range e.Dialect.ManageAutoIncrementSQL(table) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
