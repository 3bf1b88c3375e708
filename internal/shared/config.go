package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"guesthouse/internal/pricing"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	CacheTTL    time.Duration
	DraftTTL    time.Duration

	// non-flat apartment positions: per run (default) or per night
	ApartmentPricing pricing.ApartmentPricing

	ChannelBase string
	ChannelKey  string
	ChannelRPS  int
	Workers     int

	// importer runs hold a redis lock for at most this long
	ImportLockTTL time.Duration
}

func Load() Config {
	// a missing .env is fine; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg(".env loaded")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/guesthouse?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		DraftTTL:    time.Duration(atoi("DRAFT_TTL_SECONDS", 86400)) * time.Second,
		ChannelBase: env("CHANNEL_BASE_URL", "http://localhost:9000/api/v1"),
		ChannelKey:  env("CHANNEL_API_KEY", ""),
		ChannelRPS:  atoi("CHANNEL_RPS", 5),
		Workers:     atoi("IMPORT_WORKERS", 4),

		ImportLockTTL: time.Duration(atoi("IMPORT_LOCK_SECONDS", 1800)) * time.Second,
	}
	mode, err := pricing.ParseApartmentPricing(env("APARTMENT_PRICING", "run"))
	if err != nil {
		log.Warn().Err(err).Msg("APARTMENT_PRICING invalid, using per run")
	}
	c.ApartmentPricing = mode
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
