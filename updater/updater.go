// Package updater implements the §4.F dependency-ordered updater: the
// state machine that compares declared model.Score metadata against a
// live database (through a dbadaptor.Adaptor) and issues the safe
// sequence of DDL operations spec.md §4.F names, recording per-grain
// status in the celesta.grains/celesta.tables system catalog (syscat).
//
// Grounded on schema/generator.go's Generator.generateDDLs, which
// already factors "create vs alter vs index vs fkey vs view vs trigger"
// into one function per concern; phases.go keeps that split, reordered
// into the fixed thirteen-step sequence and wrapped in the
// RECOVER/UPGRADING/READY/ERROR state machine the teacher (a stateless
// one-shot differ) never needed.
package updater

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/dbadaptor"
	"github.com/celesta-db/celesta/dbinfo"
	"github.com/celesta-db/celesta/ident"
	"github.com/celesta-db/celesta/model"
	"github.com/celesta-db/celesta/syscat"
)

// Config carries updater-level policy, YAML-decodable like the
// teacher's database.GeneratorConfig.
type Config struct {
	// SysGrainName is the name of the designated system grain. Defaults
	// to "celesta" when empty.
	SysGrainName string `yaml:"sysGrainName"`

	// ForceDdInitialize allows bootstrapping celesta.grains into an
	// already-populated database with user tables but no system schema
	// (spec.md §4.F step 1's NON_EMPTY_DB guard).
	ForceDdInitialize bool `yaml:"forceDdInitialize"`

	// DumpConcurrency bounds how many tables' columnDrift is computed
	// for concurrently (0 disables concurrency, negative means
	// unlimited), mirroring dbadaptor.Config.DumpConcurrency.
	DumpConcurrency int `yaml:"dumpConcurrency"`
}

// Updater is the §4.F state machine. One Updater instance drives one
// database through dbadaptor.Adaptor.
type Updater struct {
	adaptor         dbadaptor.Adaptor
	grains          syscat.GrainsCursor
	tables          syscat.TablesCursor
	logger          dbadaptor.Logger
	normalizer      dbinfo.DefaultNormalizer
	sysGrainName    string
	forceInit       bool
	dumpConcurrency int

	// ProcessGrainMeta is phase 13's opaque hook for the row-cursor
	// generator (out of core scope, §4.F step 13). Nil is a no-op.
	ProcessGrainMeta func(ctx context.Context, grain *model.Grain) error

	// Now is the clock used to stamp celesta.grains.lastmodified;
	// overridable in tests so scenario assertions are deterministic.
	Now func() time.Time
}

// New constructs an Updater. logger may be dbadaptor.NullLogger{} to
// silence phase narration.
func New(adaptor dbadaptor.Adaptor, grains syscat.GrainsCursor, tables syscat.TablesCursor, logger dbadaptor.Logger, normalizer dbinfo.DefaultNormalizer, cfg Config) *Updater {
	sysName := cfg.SysGrainName
	if sysName == "" {
		sysName = "celesta"
	}
	return &Updater{
		adaptor:         adaptor,
		grains:          grains,
		tables:          tables,
		logger:          logger,
		normalizer:      normalizer,
		sysGrainName:    sysName,
		forceInit:       cfg.ForceDdInitialize,
		dumpConcurrency: cfg.DumpConcurrency,
		Now:             time.Now,
	}
}

// UpdateSystemSchema ensures the system grain's schema, table and other
// system objects exist, bootstrapping them (and this grain's own
// RECOVER→upgrade cycle) on first run. It is a no-op once the system
// grain's table already exists. score must contain the designated
// system grain (model.Score.SystemGrain).
func (u *Updater) UpdateSystemSchema(ctx context.Context, score *model.Score) error {
	sysGrain, ok := score.SystemGrain()
	if !ok {
		return celesta.New(celesta.KindIllegalState, "score has no designated system grain")
	}

	statusConn, err := u.adaptor.StatusConn(ctx)
	if err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "acquiring status connection")
	}

	exists, err := u.adaptor.TableExists(ctx, statusConn, sysGrain.Name(), "grains")
	if err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "checking for celesta.grains")
	}
	if exists {
		return nil
	}

	userTables, err := u.adaptor.UserTablesExist(ctx, statusConn)
	if err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "checking for existing user tables")
	}
	if userTables && !u.forceInit {
		return celesta.New(celesta.KindNonEmptyDB, "database has user tables but no %s.grains; refusing to bootstrap without forceDdInitialize", sysGrain.Name())
	}

	u.logger.Printf("bootstrapping system grain %q\n", sysGrain.Name())

	if err := u.adaptor.CreateSchemaIfNotExists(ctx, statusConn, sysGrain.Name()); err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "creating system schema")
	}
	if err := u.adaptor.CreateSysObjects(ctx, statusConn, sysGrain.Name()); err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "creating system objects")
	}

	if err := u.writeStatus(ctx, syscat.GrainRow{
		Id:           sysGrain.Name(),
		Version:      sysGrain.Version().String(),
		Length:       0,
		Checksum:     0,
		State:        syscat.StateRecover,
		Lastmodified: u.Now(),
	}); err != nil {
		return err
	}

	return u.upgradeOneGrain(ctx, sysGrain, syscat.GrainRow{Id: sysGrain.Name(), State: syscat.StateRecover})
}

// UpdateDb runs a full upgrade: ensures the system schema exists, then
// brings every grain of score to match its declared metadata, per
// spec.md §4.F's six-step algorithm.
func (u *Updater) UpdateDb(ctx context.Context, score *model.Score) error {
	if err := u.UpdateSystemSchema(ctx, score); err != nil {
		return err
	}

	statusConn, err := u.adaptor.StatusConn(ctx)
	if err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "acquiring status connection")
	}
	rows, err := u.grains.GetAll(ctx, statusConn)
	if err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "reading celesta.grains")
	}
	snapshot := make(map[string]syscat.GrainRow, len(rows))
	for _, row := range rows {
		switch row.State {
		case syscat.StateReady, syscat.StateRecover, syscat.StateLock:
			// acceptable at startup
		case syscat.StateUpgrading:
			// §5: a crashed run leaves a grain UPGRADING; treat it
			// identically to RECOVER (unconditional re-upgrade).
			row.State = syscat.StateRecover
		default:
			return celesta.New(celesta.KindUnexpectedState, "grain %q is in unexpected state %s", row.Id, row.State)
		}
		snapshot[row.Id] = row
	}

	grains := append([]*model.Grain(nil), score.Grains()...)
	sort.SliceStable(grains, func(i, j int) bool { return grains[i].DependencyOrder() < grains[j].DependencyOrder() })

	type pending struct {
		grain *model.Grain
		row   syscat.GrainRow
	}
	var toUpgrade []pending

	for _, g := range grains {
		row, ok := snapshot[g.Name()]
		if !ok {
			row = syscat.GrainRow{Id: g.Name(), State: syscat.StateRecover}
			if err := u.grains.Insert(ctx, statusConn, row); err != nil {
				return celesta.Wrap(celesta.KindDDLFailed, err, "inserting celesta.grains row for %q", g.Name())
			}
			toUpgrade = append(toUpgrade, pending{g, row})
			continue
		}
		if row.State == syscat.StateLock {
			continue
		}
		need, err := u.needToUpgrade(g, row)
		if err != nil {
			return err
		}
		if need {
			toUpgrade = append(toUpgrade, pending{g, row})
		}
	}

	var failures []string
	for _, p := range toUpgrade {
		if err := u.upgradeOneGrain(ctx, p.grain, p.row); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %s", p.grain.Name(), err))
		}
	}

	if len(failures) > 0 {
		return celesta.New(celesta.KindDDLFailed, "upgrade failed for %d grain(s): %v", len(failures), failures)
	}
	return nil
}

// needToUpgrade implements spec.md §4.F's table:
//
//	LOCK      -> false
//	RECOVER   -> true
//	otherwise -> version comparison, EQUALS upgrading iff length/checksum
//	differ, LOWER/INCONSISTENT raising.
func (u *Updater) needToUpgrade(g *model.Grain, db syscat.GrainRow) (bool, error) {
	if db.State == syscat.StateLock {
		return false, nil
	}
	if db.State == syscat.StateRecover {
		return true, nil
	}

	dbVersion, err := ident.Parse(db.Version)
	if err != nil {
		return false, celesta.NewParse(celesta.KindVersionInconsistent, "grain %q has unparseable stored version %q: %s", g.Name(), db.Version, err)
	}

	switch g.Version().Compare(dbVersion) {
	case ident.Lower:
		return false, celesta.New(celesta.KindVersionDowngrade, "grain %q: model version %q is lower than stored version %q", g.Name(), g.Version().String(), db.Version)
	case ident.Inconsistent:
		return false, celesta.New(celesta.KindVersionInconsistent, "grain %q: model version %q is inconsistent with stored version %q", g.Name(), g.Version().String(), db.Version)
	case ident.Greater:
		return true, nil
	default: // Equals
		return g.Length() != db.Length || g.Checksum() != db.Checksum, nil
	}
}

// upgradeOneGrain drives one grain through UPGRADING, the fixed phase
// sequence, and READY/ERROR, committing status writes on a connection
// independent of the grain's DDL transaction (§5).
func (u *Updater) upgradeOneGrain(ctx context.Context, g *model.Grain, priorRow syscat.GrainRow) error {
	u.logger.Printf("upgrading grain %q\n", g.Name())

	upgradingRow := priorRow
	upgradingRow.Id = g.Name()
	upgradingRow.State = syscat.StateUpgrading
	if err := u.writeStatus(ctx, upgradingRow); err != nil {
		return err
	}

	conn, err := u.adaptor.Begin(ctx)
	if err != nil {
		return u.failGrain(ctx, g, priorRow, celesta.Wrap(celesta.KindDDLFailed, err, "beginning grain transaction"))
	}

	if err := u.runGrainUpgrade(ctx, conn, g); err != nil {
		_ = u.adaptor.Rollback(ctx, conn)
		return u.failGrain(ctx, g, priorRow, err)
	}

	if err := u.adaptor.Commit(ctx, conn); err != nil {
		return u.failGrain(ctx, g, priorRow, celesta.Wrap(celesta.KindDDLFailed, err, "committing grain transaction"))
	}

	readyRow := syscat.GrainRow{
		Id:           g.Name(),
		Version:      g.Version().String(),
		Length:       g.Length(),
		Checksum:     g.Checksum(),
		State:        syscat.StateReady,
		Lastmodified: u.Now(),
		Message:      "",
	}
	return u.writeStatus(ctx, readyRow)
}

// failGrain records the ERROR row (always committed, independent of the
// rolled-back DDL transaction) and returns the original cause so the
// caller can fold it into UpdateDb's summary error.
func (u *Updater) failGrain(ctx context.Context, g *model.Grain, priorRow syscat.GrainRow, cause error) error {
	msg := fmt.Sprintf("%s/%d/%08X: %s", g.Version().String(), g.Length(), g.Checksum(), cause)
	errRow := syscat.GrainRow{
		Id:           g.Name(),
		Version:      priorRow.Version,
		Length:       priorRow.Length,
		Checksum:     priorRow.Checksum,
		State:        syscat.StateError,
		Lastmodified: u.Now(),
		Message:      msg,
	}
	if werr := u.writeStatus(ctx, errRow); werr != nil {
		return celesta.Wrap(celesta.KindDDLFailed, werr, "grain %q failed (%s) and writing the ERROR row also failed", g.Name(), cause)
	}
	return cause
}

// writeStatus inserts or updates row on its own connection and commits
// it immediately, independent of any in-flight grain DDL transaction.
func (u *Updater) writeStatus(ctx context.Context, row syscat.GrainRow) error {
	conn, err := u.adaptor.StatusConn(ctx)
	if err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "acquiring status connection")
	}
	if _, ok, err := u.grains.Get(ctx, conn, row.Id); err != nil {
		return celesta.Wrap(celesta.KindDDLFailed, err, "reading celesta.grains row for %q", row.Id)
	} else if ok {
		if err := u.grains.Update(ctx, conn, row); err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "updating celesta.grains row for %q", row.Id)
		}
	} else {
		if err := u.grains.Insert(ctx, conn, row); err != nil {
			return celesta.Wrap(celesta.KindDDLFailed, err, "inserting celesta.grains row for %q", row.Id)
		}
	}
	return u.adaptor.Commit(ctx, conn)
}
