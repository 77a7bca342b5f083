package sqlbase

import (
	"context"

	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/dbinfo"
	"github.com/celesta-db/celesta/model"
)

func (e *Engine) SequenceExists(ctx context.Context, conn any, grainName, seqName string) (bool, error) {
	tx, err := txOf(conn)
	if err != nil {
		return false, err
	}
	return e.Dialect.SequenceExists(ctx, tx, grainName, seqName)
}

func (e *Engine) GetSequenceInfo(ctx context.Context, conn any, grainName, seqName string) (dbinfo.DbSequenceInfo, error) {
	tx, err := txOf(conn)
	if err != nil {
		return dbinfo.DbSequenceInfo{}, err
	}
	return e.Dialect.GetSequenceInfo(ctx, tx, grainName, seqName)
}

func (e *Engine) CreateSequence(ctx context.Context, conn any, seq *model.Sequence) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	if !e.Dialect.SupportsNativeSequence() {
		return celesta.New(celesta.KindDDLFailed, "dialect %s has no native sequence support", e.Dialect.Name())
	}
	_, err = tx.ExecContext(ctx, e.Dialect.CreateSequenceSQL(seq.Grain().Name(), seq))
	return err
}

func (e *Engine) AlterSequence(ctx context.Context, conn any, seq *model.Sequence) error {
	tx, err := txOf(conn)
	if err != nil {
		return err
	}
	if !e.Dialect.SupportsNativeSequence() {
		return celesta.New(celesta.KindDDLFailed, "dialect %s has no native sequence support", e.Dialect.Name())
	}
	_, err = tx.ExecContext(ctx, e.Dialect.AlterSequenceSQL(seq.Grain().Name(), seq))
	return err
}
