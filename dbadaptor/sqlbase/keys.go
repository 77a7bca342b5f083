package sqlbase

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/celesta-db/celesta/dbinfo"
	"github.com/celesta-db/celesta/model"
)

func pkConstraintName(table *model.Table) string {
	return "pk_" + table.Name()
}

func fkConstraintName(fk *model.ForeignKey) string {
	return fmt.Sprintf("fk_%s_%s", fk.Table().Name(), strings.Join(fk.Columns(), "_"))
}

// createPKLocked adds table's primary key constraint; shared by
// CreateTable (new table) and CreatePK (column drift recreation).
func (e *Engine) createPKLocked(ctx context.Context, tx *sql.Tx, table *model.Table) error {
	cols := make([]string, len(table.PrimaryKey()))
	for i, c := range table.PrimaryKey() {
		cols[i] = e.Dialect.Quote(c)
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
		e.qualify(table.Grain().Name(), table.Name()), e.Dialect.Quote(pkConstraintName(table)), strings.Join(cols, ", "))
	_, err := tx.ExecContext(ctx, stmt)
	return err
}

func (e *Engine) GetPKInfo(ctx context.Context, conn any, table *model.Table) (dbinfo.DbPkInfo, bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return dbinfo.DbPkInfo{}, false, err
	}
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT k.column_name FROM information_schema.table_constraints t "+
			"JOIN information_schema.key_column_usage k "+
			"ON t.constraint_name = k.constraint_name AND t.table_schema = k.table_schema "+
			"WHERE t.constraint_type = 'PRIMARY KEY' AND t.table_schema = %s AND t.table_name = %s "+
			"ORDER BY k.ordinal_position",
		e.Dialect.Placeholder(1), e.Dialect.Placeholder(2)), table.Grain().Name(), table.Name())
	if err != nil {
		return dbinfo.DbPkInfo{}, false, err
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return dbinfo.DbPkInfo{}, false, err
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return dbinfo.DbPkInfo{}, false, err
	}
	if len(cols) == 0 {
		return dbinfo.DbPkInfo{}, false, nil
	}
	return dbinfo.DbPkInfo{TableName: table.Name(), Columns: cols}, true, nil
}

func (e *Engine) CreatePK(ctx context.Context, conn any, table *model.Table) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	return e.createPKLocked(ctx, tx, table)
}

func (e *Engine) DropPK(ctx context.Context, conn any, table *model.Table) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s",
		e.qualify(table.Grain().Name(), table.Name()), e.Dialect.Quote(pkConstraintName(table)))
	_, err = tx.ExecContext(ctx, stmt)
	return err
}

func (e *Engine) GetFKInfo(ctx context.Context, conn any, grainName string) ([]dbinfo.DbFkInfo, error) {
	tx, err := txOf(conn)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT rc.constraint_name, kcu.table_name, kcu.column_name, kcu.referenced_table_name, kcu.referenced_column_name "+
			"FROM information_schema.referential_constraints rc "+
			"JOIN information_schema.key_column_usage kcu ON rc.constraint_name = kcu.constraint_name "+
			"WHERE rc.constraint_schema = %s ORDER BY rc.constraint_name, kcu.ordinal_position",
		e.Dialect.Placeholder(1)), grainName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := make(map[string]*dbinfo.DbFkInfo)
	var order []string
	for rows.Next() {
		var name, tableName, column, refTable, refColumn string
		if err := rows.Scan(&name, &tableName, &column, &refTable, &refColumn); err != nil {
			return nil, err
		}
		fk, ok := byName[name]
		if !ok {
			fk = &dbinfo.DbFkInfo{Name: name, TableName: tableName, ReferencedTable: refTable}
			byName[name] = fk
			order = append(order, name)
		}
		fk.Columns = append(fk.Columns, column)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refColumn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]dbinfo.DbFkInfo, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

func (e *Engine) CreateFK(ctx context.Context, conn any, fk *model.ForeignKey) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	cols := make([]string, len(fk.Columns()))
	for i, c := range fk.Columns() {
		cols[i] = e.Dialect.Quote(c)
	}
	refCols := make([]string, len(fk.ReferencedColumns()))
	for i, c := range fk.ReferencedColumns() {
		refCols[i] = e.Dialect.Quote(c)
	}
	ref := fk.ReferencedTable()
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		e.qualify(fk.Table().Grain().Name(), fk.Table().Name()),
		e.Dialect.Quote(fkConstraintName(fk)),
		strings.Join(cols, ", "),
		e.qualify(ref.Grain().Name(), ref.Name()),
		strings.Join(refCols, ", "))
	_, err = tx.ExecContext(ctx, stmt)
	return err
}

func (e *Engine) DropFK(ctx context.Context, conn any, tableName, fkName string) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", e.Dialect.Quote(tableName), e.Dialect.Quote(fkName)))
	return err
}
