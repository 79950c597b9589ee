package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"court-notifier/checker"
	"court-notifier/config"
	"court-notifier/logger"
	"court-notifier/parser"
	"court-notifier/storage"
	"court-notifier/types"
)

// app holds the connections shared by the subcommands.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	pg      *storage.Postgres
	redis   *storage.Redis
	catalog *storage.Catalog
	kluby   *parser.Client
}

func openApp(ctx context.Context, migrate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel)
	log := logger.With("app")

	pg, err := storage.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrate {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
	}

	rdb := storage.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := rdb.Ping(ctx); err != nil {
		pg.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	timeslots := monitored(cfg.Timeslots)
	kluby, err := parser.New(parser.Options{
		Cookie:    cfg.KlubyCookie,
		Autolog:   cfg.KlubyAutolog,
		RPS:       cfg.ScrapeRPS,
		Timeslots: timeslots,
	}, logger.With("parser"))
	if err != nil {
		pg.Close()
		_ = rdb.Close()
		return nil, err
	}

	log.Info().Strs("clubs", cfg.Clubs).Int("pages", cfg.Pages).Strs("timeslots", timeslots).Msg("✅ Connected to Postgres and Redis")
	return &app{
		cfg:     cfg,
		log:     log,
		pg:      pg,
		redis:   rdb,
		catalog: storage.NewCatalog(pg, rdb, logger.With("catalog")),
		kluby:   kluby,
	}, nil
}

func (a *app) Close() {
	a.pg.Close()
	_ = a.redis.Close()
}

func (a *app) checker(sender checker.Sender) *checker.Checker {
	return checker.New(checker.Deps{
		Fetcher:  a.kluby,
		Requests: a.pg,
		Courts:   a.catalog,
		Clubs:    a.pg,
		State:    a.redis,
		Sender:   sender,
	}, checker.Options{
		Clubs:         a.cfg.Clubs,
		Timeslots:     a.cfg.Timeslots,
		Pages:         a.cfg.Pages,
		DayInterval:   a.cfg.DayInterval,
		NightInterval: a.cfg.NightInterval,
		Location:      a.cfg.Location(),
	}, logger.With("checker"))
}

// monitored renders the configured timeslots as HH:MM.
func monitored(ts []types.Clock) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}
