package sqlbase

import (
	"context"
	"fmt"
	"strings"

	"github.com/celesta-db/celesta/dbinfo"
	"github.com/celesta-db/celesta/model"
)

func (e *Engine) GetIndices(ctx context.Context, conn any, grainName string) (map[string]dbinfo.DbIndexInfo, error) {
	tx, err := txOf(conn)
	if err != nil {
		return nil, err
	}
	return e.Dialect.ListIndices(ctx, tx, grainName)
}

func (e *Engine) CreateIndex(ctx context.Context, conn any, idx *model.Index) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	cols := make([]string, len(idx.Columns()))
	for i, c := range idx.Columns() {
		cols[i] = e.Dialect.Quote(c)
	}
	stmt := fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		e.Dialect.Quote(idx.Name()), e.qualify(idx.Grain().Name(), idx.Table().Name()), strings.Join(cols, ", "))
	_, err = tx.ExecContext(ctx, stmt)
	return err
}

func (e *Engine) DropIndex(ctx context.Context, conn any, tableName, indexName string) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("DROP INDEX %s ON %s", e.Dialect.Quote(indexName), e.Dialect.Quote(tableName)))
	return err
}
