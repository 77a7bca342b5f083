// Package dbadaptor declares the §6 external interface the updater state
// machine depends on: a dialect-specific Adaptor capable of introspecting
// a live database and issuing the DDL operations the updater decides are
// necessary, plus the small ambient pieces (Config, Logger) every
// concrete adaptor shares. Per spec.md §1 the per-dialect DDL string
// generation itself is a collaborator, not part of the core — this
// package only fixes the contract; dbadaptor/postgres, dbadaptor/mysql,
// dbadaptor/mssql and dbadaptor/sqlite3 hold the dialect bodies.
package dbadaptor

import (
	"context"

	"github.com/celesta-db/celesta/dbinfo"
	"github.com/celesta-db/celesta/model"
)

// Config carries the connection parameters common to every dialect,
// mirroring the teacher's database.Config. Its yaml tags make it
// decodable from YAML; cmd/celestaup fills it from command-line flags.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DbName   string `yaml:"dbname"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Socket   string `yaml:"socket"`

	// ForceDdInitialize allows bootstrapping the system schema into an
	// already-populated database that has no celesta.grains table yet
	// (spec.md §4.F step 1's NON_EMPTY_DB guard).
	ForceDdInitialize bool `yaml:"forceDdInitialize"`

	// DumpConcurrency bounds ConcurrentMapFuncWithError fan-out during
	// introspection; 0 disables concurrency, negative means unlimited.
	// Adaptor construction itself never reads this — it sits here
	// alongside the rest of the connection config so a caller (e.g.
	// cmd/celestaup, from its --dump-concurrency flag) has one place to
	// set it, then threads it into updater.Config.DumpConcurrency, the field
	// ConcurrentMapFuncWithError's actual call site in
	// updater.columnDrift reads.
	DumpConcurrency int `yaml:"dumpConcurrency"`
}

// Connection is an opaque per-grain DDL transaction handle returned by
// Begin and threaded through every mutating Adaptor call. Its concrete
// type (e.g. *sql.Tx) is adaptor-defined; the core only ever passes it
// back to the adaptor that produced it.
type Connection any

// TriggerKind distinguishes the three trigger hooks the updater
// maintains on a materialized view's source table.
type TriggerKind string

const (
	TriggerPostInsert TriggerKind = "POST_INSERT"
	TriggerPostUpdate TriggerKind = "POST_UPDATE"
	TriggerPostDelete TriggerKind = "POST_DELETE"
)

// TriggerQuery identifies one trigger on one table, used to fetch or
// recreate POST_INSERT/UPDATE/DELETE triggers associated with
// materialized views (§4.F.8, §6).
type TriggerQuery struct {
	GrainName string
	TableName string
	Kind      TriggerKind
}

// Adaptor is the full §6 capability set. Every method that mutates or
// reads schema state takes the Connection returned by Begin for the
// grain currently being upgraded; StatusConn is a separate, independently
// committed connection reserved for celesta.grains/celesta.tables writes
// (spec.md §5's "status writes survive a rollback of the grain's DDL").
type Adaptor interface {
	// Connections.
	Begin(ctx context.Context) (Connection, error)
	Commit(ctx context.Context, conn Connection) error
	Rollback(ctx context.Context, conn Connection) error
	StatusConn(ctx context.Context) (Connection, error)

	// Schema.
	TableExists(ctx context.Context, conn Connection, grainName, tableName string) (bool, error)
	UserTablesExist(ctx context.Context, conn Connection) (bool, error)
	CreateSchemaIfNotExists(ctx context.Context, conn Connection, grainName string) error

	// Tables.
	CreateTable(ctx context.Context, conn Connection, table *model.Table) error
	DropTable(ctx context.Context, conn Connection, grainName, tableName string) error
	GetColumns(ctx context.Context, conn Connection, table *model.Table) (map[string]bool, error)
	CreateColumn(ctx context.Context, conn Connection, table *model.Table, col model.Column) error
	UpdateColumn(ctx context.Context, conn Connection, table *model.Table, col model.Column, dbInfo dbinfo.DbColumnInfo) error
	GetColumnInfo(ctx context.Context, conn Connection, table *model.Table, columnName string) (dbinfo.DbColumnInfo, bool, error)
	ManageAutoIncrement(ctx context.Context, conn Connection, table *model.Table) error

	// Keys.
	GetPKInfo(ctx context.Context, conn Connection, table *model.Table) (dbinfo.DbPkInfo, bool, error)
	CreatePK(ctx context.Context, conn Connection, table *model.Table) error
	DropPK(ctx context.Context, conn Connection, table *model.Table) error
	GetFKInfo(ctx context.Context, conn Connection, grainName string) ([]dbinfo.DbFkInfo, error)
	CreateFK(ctx context.Context, conn Connection, fk *model.ForeignKey) error
	DropFK(ctx context.Context, conn Connection, tableName, fkName string) error

	// Indices.
	GetIndices(ctx context.Context, conn Connection, grainName string) (map[string]dbinfo.DbIndexInfo, error)
	CreateIndex(ctx context.Context, conn Connection, idx *model.Index) error
	DropIndex(ctx context.Context, conn Connection, tableName, indexName string) error

	// Sequences.
	SequenceExists(ctx context.Context, conn Connection, grainName, seqName string) (bool, error)
	GetSequenceInfo(ctx context.Context, conn Connection, grainName, seqName string) (dbinfo.DbSequenceInfo, error)
	CreateSequence(ctx context.Context, conn Connection, seq *model.Sequence) error
	AlterSequence(ctx context.Context, conn Connection, seq *model.Sequence) error

	// Views.
	GetViewList(ctx context.Context, conn Connection, grainName string) ([]string, error)
	CreateView(ctx context.Context, conn Connection, v *model.View) error
	DropView(ctx context.Context, conn Connection, grainName, viewName string) error
	GetParameterizedViewList(ctx context.Context, conn Connection, grainName string) ([]string, error)
	CreateParameterizedView(ctx context.Context, conn Connection, pv *model.ParameterizedView) error
	DropParameterizedView(ctx context.Context, conn Connection, grainName, viewName string) error

	// Materialized views and triggers.
	MaterializedViewExists(ctx context.Context, conn Connection, mv *model.MaterializedView) (bool, error)
	CreateMaterializedView(ctx context.Context, conn Connection, mv *model.MaterializedView) error
	DropMaterializedView(ctx context.Context, conn Connection, mv *model.MaterializedView) error
	InitDataForMaterializedView(ctx context.Context, conn Connection, mv *model.MaterializedView) error
	GetTriggerBody(ctx context.Context, conn Connection, q TriggerQuery) (string, bool, error)
	DropTableTriggersForMaterializedViews(ctx context.Context, conn Connection, table *model.Table) error
	CreateTableTriggersForMaterializedViews(ctx context.Context, conn Connection, table *model.Table, mvs []*model.MaterializedView) error
	UpdateVersioningTrigger(ctx context.Context, conn Connection, table *model.Table) error

	// System init.
	CreateSysObjects(ctx context.Context, conn Connection, sysSchemaName string) error
}
