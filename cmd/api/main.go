package main

import (
	"database/sql"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "guesthouse/internal/adapters/http_server"
	"guesthouse/internal/adapters/observability"
	redisad "guesthouse/internal/adapters/redis"
	"guesthouse/internal/app"
	"guesthouse/internal/pricing"
	"guesthouse/internal/shared"
	mysqlrepo "guesthouse/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api")

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	cache := redisad.New(rdb)
	drafts := redisad.NewDraftStore(rdb, cfg.DraftTTL)
	calc := pricing.Calculator{Apartment: cfg.ApartmentPricing}

	invoices := app.NewInvoiceService(repo, repo, cache, cfg.CacheTTL, calc)
	h := &server.Handlers{
		Invoices:     invoices,
		Drafts:       app.NewDraftService(invoices, drafts, repo),
		Prices:       app.NewPriceService(repo, cache, cfg.CacheTTL),
		Reservations: app.NewReservationService(repo),
		Renderers: map[string]app.Renderer{
			"invoice":     app.NewInvoiceRenderer(repo, calc),
			"reservation": app.NewReservationRenderer(repo, invoices),
		},
	}

	// http
	srv := server.New(15 * time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(h)

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
