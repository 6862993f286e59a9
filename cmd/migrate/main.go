package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/db"
	"github.com/angelmondragon/stockroom-backend/pkg/instance"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/migrate"
)

const usage = `usage: migrate -cmd <command> [flags]

commands:
  up         apply all pending migrations
  down       roll back the latest migration
  to         migrate up or down to -version
  status     list migrations and whether they are applied
  version    print the current schema version
  create     write a new empty migration named -name into -dir
  validate   check file names and goose sections

flags:
`

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command")
	dir := flag.String("dir", "", "migrations directory (default: embedded set; create uses "+migrate.DefaultDir+")")
	name := flag.String("name", "", "migration name for create")
	target := flag.String("version", "", "target version YYYYMMDDHHMMSS for to")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	// create and validate work on files only.
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		out := *dir
		if out == "" {
			out = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(out, *name)
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail("%v", err)
		}
		fmt.Println("migrations ok")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail("load config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Instance:    instance.GetID(),
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "migrate.db_unavailable", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	runner, err := newRunner(dbClient, *dir)
	if err != nil {
		logg.Error(ctx, "migrate.runner_init_failed", err)
		os.Exit(1)
	}

	if err := run(ctx, runner, *cmd, *target); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate.done")
}

func newRunner(client *db.Client, dir string) (*migrate.Runner, error) {
	sqlDB, err := client.DB().DB()
	if err != nil {
		return nil, fmt.Errorf("extracting sql.DB: %w", err)
	}
	fsys, err := migrate.Source(dir)
	if err != nil {
		return nil, err
	}
	return migrate.NewRunner(sqlDB, fsys)
}

func run(ctx context.Context, runner *migrate.Runner, cmd, target string) error {
	switch cmd {
	case "up":
		applied, err := runner.Up(ctx)
		printApplied(applied)
		return err
	case "down":
		applied, err := runner.Down(ctx)
		printApplied(applied)
		return err
	case "to":
		version, err := migrate.ParseVersion(target)
		if err != nil {
			return err
		}
		applied, err := runner.To(ctx, version)
		printApplied(applied)
		return err
	case "version":
		version, err := runner.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Println(version)
		return nil
	case "status":
		lines, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
		for _, l := range lines {
			state, at := "pending", "-"
			if l.Applied {
				state, at = "applied", l.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", l.Version, state, at, l.Name)
		}
		return w.Flush()
	}
	return fmt.Errorf("unknown -cmd %q", cmd)
}

func printApplied(applied []migrate.Applied) {
	if len(applied) == 0 {
		fmt.Println("nothing to do")
		return
	}
	for _, a := range applied {
		fmt.Printf("%-5s %d %s (%s)\n", a.Direction, a.Version, a.Name, a.Duration.Round(1e6))
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "migrate: "+format+"\n", args...)
	os.Exit(1)
}
