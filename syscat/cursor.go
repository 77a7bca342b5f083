// Package syscat declares the typed cursor contract §4.G gives the
// updater over the two system catalog tables (`celesta.grains`,
// `celesta.tables`) that live inside the system grain and record
// per-grain upgrade state. The contract is new relative to the teacher
// (a stateless one-shot differ keeps no bookkeeping table of its own),
// modeled after the teacher's preference for small interfaces with a
// real and a fake implementation (database.Database vs.
// database.DryRunDatabase) — see MemCursor.
package syscat

import (
	"context"
	"time"

	"github.com/celesta-db/celesta/dbadaptor"
)

// State is one of the five celesta.grains.state codes of spec.md §3.
type State int

const (
	StateReady     State = 0
	StateUpgrading State = 1
	StateError     State = 2
	StateRecover   State = 3
	StateLock      State = 4
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateUpgrading:
		return "UPGRADING"
	case StateError:
		return "ERROR"
	case StateRecover:
		return "RECOVER"
	case StateLock:
		return "LOCK"
	default:
		return "UNKNOWN"
	}
}

// GrainRow is one row of celesta.grains.
type GrainRow struct {
	Id           string
	Version      string
	Length       int
	Checksum     uint32
	State        State
	Lastmodified time.Time
	Message      string
}

// GrainsCursor is typed read/write access to celesta.grains. All writes
// must be visible after the adaptor commits the Connection they were
// made on (spec.md §4.G).
type GrainsCursor interface {
	Get(ctx context.Context, conn dbadaptor.Connection, id string) (GrainRow, bool, error)
	GetAll(ctx context.Context, conn dbadaptor.Connection) ([]GrainRow, error)
	Insert(ctx context.Context, conn dbadaptor.Connection, row GrainRow) error
	Update(ctx context.Context, conn dbadaptor.Connection, row GrainRow) error
}

// TableRow is one row of celesta.tables.
type TableRow struct {
	GrainId   string
	TableName string
	TableType string
	Orphaned  bool
}

// TablesCursor is typed read/write access to celesta.tables. The
// authoritative shape is (grainid, tablename, tabletype, orphaned); see
// SPEC_FULL.md §9's note on the two divergent TablesCursor shapes.
type TablesCursor interface {
	Get(ctx context.Context, conn dbadaptor.Connection, grainId, tableName string) (TableRow, bool, error)
	GetAll(ctx context.Context, conn dbadaptor.Connection, grainId string) ([]TableRow, error)
	Insert(ctx context.Context, conn dbadaptor.Connection, row TableRow) error
	Update(ctx context.Context, conn dbadaptor.Connection, row TableRow) error
	Delete(ctx context.Context, conn dbadaptor.Connection, grainId, tableName string) error
}
