package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/office-scheduler/internal/repository"
	"github.com/noah-isme/office-scheduler/internal/service"
	"github.com/noah-isme/office-scheduler/pkg/cache"
	"github.com/noah-isme/office-scheduler/pkg/config"
	"github.com/noah-isme/office-scheduler/pkg/database"
	"github.com/noah-isme/office-scheduler/pkg/export"
	"github.com/noah-isme/office-scheduler/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "eventctl",
		Usage: "Operate the office scheduler database and conflict ledger.",
		Commands: []*cli.Command{
			migrateCommand(),
			conflictsCommand(),
			feedCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "eventctl:", err)
		os.Exit(1)
	}
}

type session struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *sqlx.DB
	cache      *service.CacheService
	closeCache func()
}

func open(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	cacheSvc, closeCache := conflictCache(ctx, cfg, logr)
	return &session{cfg: cfg, logger: logr, db: db, cache: cacheSvc, closeCache: closeCache}, nil
}

// conflictCache connects the ledger report cache the API serves from, so ledger writes
// made here invalidate it. An unreachable Redis leaves the cache disabled.
func conflictCache(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*service.CacheService, func()) {
	disabled := service.NewCacheService(nil, nil, cfg.ConflictCache.TTL, logr, false)
	if !cfg.ConflictCache.Enabled {
		return disabled, func() {}
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, cached conflict reports will expire by ttl", zap.Error(err))
		return disabled, func() {}
	}
	repo := repository.NewCacheRepository(client, cache.KeyPrefix, logr)
	return service.NewCacheService(repo, nil, cfg.ConflictCache.TTL, logr, true), func() { _ = client.Close() }
}

func (r *session) close() {
	if r.closeCache != nil {
		r.closeCache()
	}
	_ = r.db.Close()
	_ = r.logger.Sync()
}

func (r *session) ledger() *service.LedgerService {
	events := repository.NewEventRepository(r.db)
	users := repository.NewUserRepository(r.db)
	ledger := repository.NewConflictRepository(r.db)
	detector := service.NewConflictDetector(events, users, nil, r.logger)
	return service.NewLedgerService(events, ledger, detector, r.db, r.cache, r.logger, export.NewCSVExporter(), export.NewPDFExporter())
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the embedded SQL migrations.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "list", Usage: "Print migration names without applying them."},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("list") {
				names, err := database.MigrationNames()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(c.App.Writer, name)
				}
				return nil
			}
			rt, err := open(c.Context)
			if err != nil {
				return err
			}
			defer rt.close()
			if err := database.Migrate(c.Context, rt.db); err != nil {
				return err
			}
			rt.logger.Info("migrations applied")
			return nil
		},
	}
}

func conflictsCommand() *cli.Command {
	return &cli.Command{
		Name:  "conflicts",
		Usage: "Inspect and maintain the conflict ledger.",
		Subcommands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Write the conflict report to a file.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: "csv", Usage: "csv or pdf"},
					&cli.StringFlag{Name: "out", Usage: "Output directory or file path. Defaults to the generated name in the working directory."},
				},
				Action: func(c *cli.Context) error {
					rt, err := open(c.Context)
					if err != nil {
						return err
					}
					defer rt.close()

					file, err := rt.ledger().Export(c.Context, c.String("format"))
					if err != nil {
						return err
					}
					target := outputPath(c.String("out"), file.FileName)
					if err := os.WriteFile(target, file.Data, 0o644); err != nil {
						return fmt.Errorf("write %s: %w", target, err)
					}
					rt.logger.Info("conflict report exported", zap.String("path", target), zap.Int("bytes", len(file.Data)))
					return nil
				},
			},
			{
				Name:  "refresh",
				Usage: "Recompute the ledger rows of one event.",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "event", Required: true, Usage: "Event ID"},
				},
				Action: func(c *cli.Context) error {
					rt, err := open(c.Context)
					if err != nil {
						return err
					}
					defer rt.close()

					records, err := rt.ledger().Refresh(c.Context, c.Int64("event"))
					if err != nil {
						return err
					}
					for _, rec := range records {
						fmt.Fprintf(c.App.Writer, "%d -> %d\n", rec.EventID, rec.ConflictingEventID)
					}
					return nil
				},
			},
			{
				Name:  "count",
				Usage: "Print the number of recorded conflicts.",
				Action: func(c *cli.Context) error {
					rt, err := open(c.Context)
					if err != nil {
						return err
					}
					defer rt.close()

					count, _, err := rt.ledger().Count(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, count)
					return nil
				},
			},
		},
	}
}

func feedCommand() *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "Write the iCalendar feed of active events.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start", Usage: "Window start (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "end", Usage: "Window end (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "out", Value: "events.ics", Usage: "Output file"},
		},
		Action: func(c *cli.Context) error {
			rt, err := open(c.Context)
			if err != nil {
				return err
			}
			defer rt.close()

			feed := service.NewFeedService(repository.NewEventRepository(rt.db), rt.logger, rt.cfg.Calendar.Location())
			body, err := feed.Render(c.Context, c.String("start"), c.String("end"))
			if err != nil {
				return err
			}
			return os.WriteFile(c.String("out"), body, 0o644)
		},
	}
}

func outputPath(out, generated string) string {
	if out == "" {
		return generated
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, generated)
	}
	return out
}
