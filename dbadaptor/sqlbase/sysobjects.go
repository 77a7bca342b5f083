package sqlbase

import "context"

// CreateSysObjects creates celesta.grains and celesta.tables in
// sysSchemaName, the two tables syscat.MemCursor's real counterpart
// would read and write.
func (e *Engine) CreateSysObjects(ctx context.Context, conn any, sysSchemaName string) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	for _, stmt := range e.Dialect.SysObjectsDDL(sysSchemaName) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
