package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"guesthouse/internal/adapters/observability"
	redisad "guesthouse/internal/adapters/redis"
	"guesthouse/internal/app"
	"guesthouse/internal/shared"
	mysqlrepo "guesthouse/internal/storage/mysql"
)

type deps struct {
	cfg          shared.Config
	repo         *mysqlrepo.Repo
	prices       *app.PriceService
	reservations *app.ReservationService
	locker       *redisad.Locker
}

func setup() (*deps, func(), error) {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, "importer")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	// shares the API's cache so imported prices bump the catalog version
	cache := redisad.New(rdb)

	d := &deps{
		cfg:          cfg,
		repo:         repo,
		prices:       app.NewPriceService(repo, cache, cfg.CacheTTL),
		reservations: app.NewReservationService(repo),
		locker:       redisad.NewLocker(rdb),
	}
	closeFn := func() {
		_ = rdb.Close()
		_ = db.Close()
	}
	return d, closeFn, nil
}

func main() {
	root := &cobra.Command{
		Use:           "importer",
		Short:         "Sync prices and reservations from the channel manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(importCmd(), auditCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("importer failed")
		stop()
		os.Exit(1)
	}
}
