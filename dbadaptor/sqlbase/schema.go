package sqlbase

import (
	"context"
	"fmt"
)

func (e *Engine) TableExists(ctx context.Context, conn any, grainName, tableName string) (bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return false, err
	}
	var n int
	row := tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = %s AND table_name = %s",
		e.Dialect.Placeholder(1), e.Dialect.Placeholder(2)), grainName, tableName)
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// UserTablesExist reports whether any table exists outside the system
// grain's schema.
func (e *Engine) UserTablesExist(ctx context.Context, conn any) (bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return false, err
	}
	var n int
	row := tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema <> %s",
		e.Dialect.Placeholder(1)), e.SysGrainName)
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (e *Engine) CreateSchemaIfNotExists(ctx context.Context, conn any, grainName string) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	var n int
	row := tx.QueryRowContext(ctx, e.Dialect.SchemaExistsSQL(), grainName)
	if err := row.Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx, e.Dialect.CreateSchemaSQL(grainName))
	return err
}
