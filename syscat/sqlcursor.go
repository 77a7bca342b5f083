package syscat

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/celesta-db/celesta/dbadaptor"
)

// SQLCursor is the real GrainsCursor (SQLTablesCursor below is the real
// TablesCursor): it reads and writes the celesta.grains rows
// CreateSysObjects creates,
// through the same *sql.Tx dbadaptor.Adaptor.Begin/StatusConn hand
// back. Unlike MemCursor (celestatest's in-memory stand-in), it has no
// teacher analogue — the teacher keeps no upgrade bookkeeping table of
// its own — so it is grounded on the same DryRunDatabase-vs-Database
// small-interface preference MemCursor is.
//
// Quote and Placeholder let one SQLCursor serve every dialect without
// depending on dbadaptor/sqlbase: Quote renders a bare identifier the
// dialect's way, Placeholder the i'th (1-based) bind parameter.
type SQLCursor struct {
	SchemaName  string
	Quote       func(name string) string
	Placeholder func(i int) string

	// GrainsTable overrides the default schema.table rendering, for
	// dialects (sqlite3) that have no schema qualifier and instead
	// encode the grain in the physical table name itself.
	GrainsTable func() string
}

func (c *SQLCursor) grainsTable() string {
	if c.GrainsTable != nil {
		return c.GrainsTable()
	}
	return c.Quote(c.SchemaName) + "." + c.Quote("grains")
}

func (c *SQLCursor) tablesTable() string {
	return c.Quote(c.SchemaName) + "." + c.Quote("tables")
}

func txOf(conn dbadaptor.Connection) (*sql.Tx, error) {
	tx, ok := conn.(*sql.Tx)
	if !ok {
		return nil, fmt.Errorf("syscat: connection is not a *sql.Tx")
	}
	return tx, nil
}

func (c *SQLCursor) Get(ctx context.Context, conn dbadaptor.Connection, id string) (GrainRow, bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return GrainRow{}, false, err
	}
	row := tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, version, length, checksum, state, lastmodified, message FROM %s WHERE id = %s",
		c.grainsTable(), c.Placeholder(1)), id)
	var g GrainRow
	var state int
	if err := row.Scan(&g.Id, &g.Version, &g.Length, &g.Checksum, &state, &g.Lastmodified, &g.Message); err != nil {
		if err == sql.ErrNoRows {
			return GrainRow{}, false, nil
		}
		return GrainRow{}, false, err
	}
	g.State = State(state)
	return g, true, nil
}

func (c *SQLCursor) GetAll(ctx context.Context, conn dbadaptor.Connection) ([]GrainRow, error) {
	tx, err := txOf(conn)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, version, length, checksum, state, lastmodified, message FROM %s", c.grainsTable()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GrainRow
	for rows.Next() {
		var g GrainRow
		var state int
		if err := rows.Scan(&g.Id, &g.Version, &g.Length, &g.Checksum, &state, &g.Lastmodified, &g.Message); err != nil {
			return nil, err
		}
		g.State = State(state)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (c *SQLCursor) Insert(ctx context.Context, conn dbadaptor.Connection, row GrainRow) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("INSERT INTO %s (id, version, length, checksum, state, lastmodified, message) VALUES (%s, %s, %s, %s, %s, %s, %s)",
		c.grainsTable(), c.Placeholder(1), c.Placeholder(2), c.Placeholder(3), c.Placeholder(4), c.Placeholder(5), c.Placeholder(6), c.Placeholder(7))
	_, err = tx.ExecContext(ctx, stmt, row.Id, row.Version, row.Length, row.Checksum, int(row.State), row.Lastmodified, row.Message)
	return err
}

func (c *SQLCursor) Update(ctx context.Context, conn dbadaptor.Connection, row GrainRow) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("UPDATE %s SET version = %s, length = %s, checksum = %s, state = %s, lastmodified = %s, message = %s WHERE id = %s",
		c.grainsTable(), c.Placeholder(1), c.Placeholder(2), c.Placeholder(3), c.Placeholder(4), c.Placeholder(5), c.Placeholder(6), c.Placeholder(7))
	_, err = tx.ExecContext(ctx, stmt, row.Version, row.Length, row.Checksum, int(row.State), row.Lastmodified, row.Message, row.Id)
	return err
}

var _ GrainsCursor = (*SQLCursor)(nil)

// SQLTablesCursor is SQLCursor's celesta.tables counterpart, kept as a
// separate type since Go methods can't overload Get/GetAll/Insert by
// signature alone within one receiver.
type SQLTablesCursor struct {
	SchemaName  string
	Quote       func(name string) string
	Placeholder func(i int) string

	// TablesTable overrides the default schema.table rendering; see
	// SQLCursor.GrainsTable.
	TablesTable func() string
}

func (c *SQLTablesCursor) tablesTable() string {
	if c.TablesTable != nil {
		return c.TablesTable()
	}
	return c.Quote(c.SchemaName) + "." + c.Quote("tables")
}

func (c *SQLTablesCursor) Get(ctx context.Context, conn dbadaptor.Connection, grainId, tableName string) (TableRow, bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return TableRow{}, false, err
	}
	row := tx.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT grainid, tablename, tabletype, orphaned FROM %s WHERE grainid = %s AND tablename = %s",
		c.tablesTable(), c.Placeholder(1), c.Placeholder(2)), grainId, tableName)
	var t TableRow
	if err := row.Scan(&t.GrainId, &t.TableName, &t.TableType, &t.Orphaned); err != nil {
		if err == sql.ErrNoRows {
			return TableRow{}, false, nil
		}
		return TableRow{}, false, err
	}
	return t, true, nil
}

func (c *SQLTablesCursor) GetAll(ctx context.Context, conn dbadaptor.Connection, grainId string) ([]TableRow, error) {
	tx, err := txOf(conn)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT grainid, tablename, tabletype, orphaned FROM %s WHERE grainid = %s",
		c.tablesTable(), c.Placeholder(1)), grainId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TableRow
	for rows.Next() {
		var t TableRow
		if err := rows.Scan(&t.GrainId, &t.TableName, &t.TableType, &t.Orphaned); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *SQLTablesCursor) Insert(ctx context.Context, conn dbadaptor.Connection, row TableRow) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("INSERT INTO %s (grainid, tablename, tabletype, orphaned) VALUES (%s, %s, %s, %s)",
		c.tablesTable(), c.Placeholder(1), c.Placeholder(2), c.Placeholder(3), c.Placeholder(4))
	_, err = tx.ExecContext(ctx, stmt, row.GrainId, row.TableName, row.TableType, row.Orphaned)
	return err
}

func (c *SQLTablesCursor) Update(ctx context.Context, conn dbadaptor.Connection, row TableRow) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("UPDATE %s SET tabletype = %s, orphaned = %s WHERE grainid = %s AND tablename = %s",
		c.tablesTable(), c.Placeholder(1), c.Placeholder(2), c.Placeholder(3), c.Placeholder(4))
	_, err = tx.ExecContext(ctx, stmt, row.TableType, row.Orphaned, row.GrainId, row.TableName)
	return err
}

func (c *SQLTablesCursor) Delete(ctx context.Context, conn dbadaptor.Connection, grainId, tableName string) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE grainid = %s AND tablename = %s",
		c.tablesTable(), c.Placeholder(1), c.Placeholder(2)), grainId, tableName)
	return err
}

var _ TablesCursor = (*SQLTablesCursor)(nil)
