// Command celestaup bootstraps or upgrades a Celesta-managed database's
// schema against a directory of grain manifests, driving
// updater.Updater end to end: it is the CLI collaborator spec.md §1
// leaves unscoped, grounded on cmd/psqldef/psqldef.go's flag layout and
// sqldef.Run's top-level dispatch.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/celesta-db/celesta/dbadaptor"
	"github.com/celesta-db/celesta/dbadaptor/mssql"
	"github.com/celesta-db/celesta/dbadaptor/mysql"
	"github.com/celesta-db/celesta/dbadaptor/postgres"
	"github.com/celesta-db/celesta/dbadaptor/sqlite3"
	"github.com/celesta-db/celesta/dbinfo"
	"github.com/celesta-db/celesta/syscat"
	"github.com/celesta-db/celesta/updater"
	"github.com/celesta-db/celesta/util"
)

type options struct {
	Dialect  string `short:"d" long:"dialect" description:"Target dialect" choice:"postgres" choice:"mysql" choice:"mssql" choice:"sqlite3" required:"true"`
	Host     string `short:"h" long:"host" description:"Host or socket directory to connect to the server" value-name:"hostname" default:"127.0.0.1"`
	Port     int    `short:"p" long:"port" description:"Port used for the connection" value-name:"port"`
	DbName   string `long:"dbname" description:"Database name (or sqlite3 file path)" required:"true"`
	User     string `short:"U" long:"user" description:"User name" value-name:"username"`
	Password string `short:"W" long:"password" description:"Password, overridden by $CELESTA_PASS" value-name:"password"`
	Prompt   bool   `long:"password-prompt" description:"Force a password prompt"`
	Socket   string `long:"socket" description:"Unix socket path (mysql only)"`

	ScoreDir string `long:"score-dir" description:"Directory of *.yaml grain manifests" required:"true"`
	SysGrain string `long:"sys-grain-name" description:"Name of the designated system grain" default:"celesta"`

	ForceDdInitialize bool `long:"force-dd-initialize" description:"Allow bootstrapping the system schema into a non-empty database"`

	DumpConcurrency int `long:"dump-concurrency" description:"Bound on concurrent per-table introspection during diffing (0 disables concurrency, negative means unlimited)" default:"0"`

	Help bool `long:"help" description:"Show this help"`
}

func parseOptions(args []string) *options {
	var opts options
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...]"
	if _, err := parser.ParseArgs(args); err != nil {
		log.Fatal(err)
	}
	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}

	if pass, ok := os.LookupEnv("CELESTA_PASS"); ok {
		opts.Password = pass
	}
	if opts.Prompt {
		fmt.Print("Enter Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			log.Fatal(err)
		}
		opts.Password = string(pass)
	}
	return &opts
}

// dialectSupport bundles the three dialect-specific pieces main needs:
// an Adaptor, the DefaultNormalizer it pairs with, and the SQLCursor
// Quote/Placeholder/table-naming scheme matching it.
type dialectSupport struct {
	adaptor     dbadaptor.Adaptor
	normalizer  dbinfo.DefaultNormalizer
	quote       func(string) string
	placeholder func(int) string
	grainsTable func(schema string) string
	tablesTable func(schema string) string
}

func buildDialect(name string, cfg dbadaptor.Config) (*dialectSupport, error) {
	switch name {
	case "postgres":
		a, err := postgres.NewAdaptor(cfg)
		if err != nil {
			return nil, err
		}
		return &dialectSupport{
			adaptor:     a,
			normalizer:  postgres.DefaultNormalizer(),
			quote:       func(n string) string { return `"` + n + `"` },
			placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
		}, nil
	case "mysql":
		a, err := mysql.NewAdaptor(cfg)
		if err != nil {
			return nil, err
		}
		return &dialectSupport{
			adaptor:     a,
			normalizer:  mysql.DefaultNormalizer(),
			quote:       func(n string) string { return "`" + n + "`" },
			placeholder: func(int) string { return "?" },
		}, nil
	case "mssql":
		a, err := mssql.NewAdaptor(cfg)
		if err != nil {
			return nil, err
		}
		return &dialectSupport{
			adaptor:     a,
			normalizer:  mssql.DefaultNormalizer(),
			quote:       func(n string) string { return "[" + n + "]" },
			placeholder: func(i int) string { return fmt.Sprintf("@p%d", i) },
		}, nil
	case "sqlite3":
		a, err := sqlite3.NewAdaptor(cfg)
		if err != nil {
			return nil, err
		}
		quote := func(n string) string { return `"` + n + `"` }
		return &dialectSupport{
			adaptor:     a,
			normalizer:  sqlite3.DefaultNormalizer(),
			quote:       quote,
			placeholder: func(int) string { return "?" },
			grainsTable: func(schema string) string { return quote(schema + "$grains") },
			tablesTable: func(schema string) string { return quote(schema + "$tables") },
		}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}

func run(ctx context.Context, opts *options) error {
	cfg := dbadaptor.Config{
		Host:              opts.Host,
		Port:              opts.Port,
		DbName:            opts.DbName,
		User:              opts.User,
		Password:          opts.Password,
		Socket:            opts.Socket,
		ForceDdInitialize: opts.ForceDdInitialize,
		DumpConcurrency:   opts.DumpConcurrency,
	}

	support, err := buildDialect(opts.Dialect, cfg)
	if err != nil {
		return err
	}

	grainsCursor := &syscat.SQLCursor{
		SchemaName:  opts.SysGrain,
		Quote:       support.quote,
		Placeholder: support.placeholder,
	}
	tablesCursor := &syscat.SQLTablesCursor{
		SchemaName:  opts.SysGrain,
		Quote:       support.quote,
		Placeholder: support.placeholder,
	}
	if support.grainsTable != nil {
		sysGrain := opts.SysGrain
		grainsCursor.GrainsTable = func() string { return support.grainsTable(sysGrain) }
	}
	if support.tablesTable != nil {
		sysGrain := opts.SysGrain
		tablesCursor.TablesTable = func() string { return support.tablesTable(sysGrain) }
	}

	score, err := loadScore(opts.ScoreDir, opts.SysGrain)
	if err != nil {
		return fmt.Errorf("loading score: %w", err)
	}

	u := updater.New(support.adaptor, grainsCursor, tablesCursor, dbadaptor.StdoutLogger{}, support.normalizer, updater.Config{
		SysGrainName:      opts.SysGrain,
		ForceDdInitialize: opts.ForceDdInitialize,
		DumpConcurrency:   cfg.DumpConcurrency,
	})

	return u.UpdateDb(ctx, score)
}

func main() {
	util.InitSlog()
	opts := parseOptions(os.Args[1:])

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		log.Fatal(err)
	}
}
