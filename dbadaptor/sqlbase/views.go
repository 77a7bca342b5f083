package sqlbase

import (
	"context"

	"github.com/celesta-db/celesta/model"
)

func (e *Engine) GetViewList(ctx context.Context, conn any, grainName string) ([]string, error) {
	tx, err := txOf(conn)
	if err != nil {
		return nil, err
	}
	return e.Dialect.ListViews(ctx, tx, grainName)
}

func (e *Engine) CreateView(ctx context.Context, conn any, v *model.View) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, e.Dialect.CreateViewSQL(v))
	return err
}

func (e *Engine) DropView(ctx context.Context, conn any, grainName, viewName string) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, e.Dialect.DropViewSQL(grainName, viewName))
	return err
}

func (e *Engine) GetParameterizedViewList(ctx context.Context, conn any, grainName string) ([]string, error) {
	tx, err := txOf(conn)
	if err != nil {
		return nil, err
	}
	return e.Dialect.ListParameterizedViews(ctx, tx, grainName)
}

func (e *Engine) CreateParameterizedView(ctx context.Context, conn any, pv *model.ParameterizedView) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	stmt, args := e.Dialect.CreateParameterizedViewSQL(pv)
	_, err = tx.ExecContext(ctx, stmt, args...)
	return err
}

func (e *Engine) DropParameterizedView(ctx context.Context, conn any, grainName, viewName string) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	stmt, args := e.Dialect.DropParameterizedViewSQL(grainName, viewName)
	_, err = tx.ExecContext(ctx, stmt, args...)
	return err
}
