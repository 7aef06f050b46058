package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/angelmondragon/vendorledger/pkg/bootstrap"
	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/migrate"
)

const serviceName = "migrate"

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory")
	useEmbedded := flag.Bool("embedded", false, "read the migrations compiled into the binary instead of -dir")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target YYYYMMDDHHMMSS for -cmd=version")
	flag.Parse()

	cfg, logg, err := bootstrap.Load(serviceName)
	bootstrap.Exit(context.Background(), logg, "config load failed", err)

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"cmd":      *cmd,
		"dir":      *dir,
		"embedded": *useEmbedded,
	})

	source := migrate.DirSource(*dir)
	if *useEmbedded {
		source = migrate.EmbeddedSource()
	}

	if err := run(ctx, cfg, logg, source, *cmd, *dir, *name, *version); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, source fs.FS, cmd, dir, name, version string) error {
	// create and validate work on files only
	switch cmd {
	case "create":
		if name == "" {
			return fmt.Errorf("-name is required for create")
		}
		path, err := migrate.CreateSQLMigration(dir, name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateFS(source, "."); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	case "version":
		if version == "" {
			return fmt.Errorf("-version is required for version")
		}
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}

	runner, err := migrate.NewRunner(sqlDB, source, logg)
	if err != nil {
		return err
	}
	return runner.Exec(ctx, cmd, version)
}
