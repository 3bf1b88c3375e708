//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	server "guesthouse/internal/adapters/http_server"
	redisad "guesthouse/internal/adapters/redis"
	"guesthouse/internal/app"
	"guesthouse/internal/domain"
	"guesthouse/internal/pricing"
	mysqlrepo "guesthouse/internal/storage/mysql"
)

// ---------- helpers ----------
func pint64(i int64) *int64 { return &i }

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func call(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

// ---------- the test ----------
func TestHTTP_EndToEnd_PricesAndPreview(t *testing.T) {
	// Start isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=guesthouse",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "guesthouse")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)

	repo := mysqlrepo.New(db)
	ctx := context.Background()

	// redis cache backed by miniredis
	mr := miniredis.RunT(t)
	rdb := redisad.NewClient(mr.Addr(), "", 0)
	cache := redisad.New(rdb)

	calc := pricing.Calculator{}
	invoices := app.NewInvoiceService(repo, repo, cache, time.Minute, calc)
	srv := server.New(10 * time.Second)
	srv.MountHandlers(&server.Handlers{
		Invoices:     invoices,
		Drafts:       app.NewDraftService(invoices, redisad.NewDraftStore(rdb, time.Hour), repo),
		Prices:       app.NewPriceService(repo, cache, time.Minute),
		Reservations: app.NewReservationService(repo),
		Renderers: map[string]app.Renderer{
			"invoice":     app.NewInvoiceRenderer(repo, calc),
			"reservation": app.NewReservationRenderer(repo, invoices),
		},
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// Seed
	aptID, err := repo.SaveApartment(ctx, domain.Apartment{Number: "12", Description: "Seeblick", BedsMax: 2, CategoryID: pint64(3)})
	if err != nil {
		t.Fatalf("SaveApartment: %v", err)
	}
	resID, err := repo.SaveReservation(ctx, domain.Reservation{
		Apartment: domain.Apartment{ID: aptID},
		Start:     day("2024-01-05"),
		End:       day("2024-01-08"),
		Persons:   2,
		OriginID:  pint64(1),
	})
	if err != nil {
		t.Fatalf("SaveReservation: %v", err)
	}

	standard := map[string]any{
		"description": "Standard", "amount": "100", "vat": "7", "kind": 2,
		"all_days": true, "origins": []int64{1}, "active": true,
	}
	status, body := call(t, http.MethodPost, ts.URL+"/v1/prices", standard)
	if status != http.StatusCreated {
		t.Fatalf("create price: %d %v", status, body)
	}
	priceID := int64(body["id"].(float64))

	preview := map[string]any{"reservation_ids": []int64{resID}}
	status, body = call(t, http.MethodPost, ts.URL+"/v1/previews", preview)
	if status != http.StatusOK {
		t.Fatalf("preview: %d %v", status, body)
	}
	if sums := body["sums"].(map[string]any); sums["gross"] != "107" || sums["vat_total"] != "7" {
		t.Fatalf("unexpected sums: %v", sums)
	}

	// a second unrestricted apartment price clashes with the first
	clash := map[string]any{
		"description": "Promo", "amount": "90", "vat": "7", "kind": 2,
		"all_days": true, "origins": []int64{1}, "active": true,
	}
	status, body = call(t, http.MethodPost, ts.URL+"/v1/prices", clash)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d %v", status, body)
	}

	// updating the stored price invalidates the cached catalog
	standard["amount"] = "120"
	status, body = call(t, http.MethodPut, fmt.Sprintf("%s/v1/prices/%d", ts.URL, priceID), standard)
	if status != http.StatusOK {
		t.Fatalf("update price: %d %v", status, body)
	}
	status, body = call(t, http.MethodPost, ts.URL+"/v1/previews", preview)
	if status != http.StatusOK {
		t.Fatalf("preview: %d %v", status, body)
	}
	if sums := body["sums"].(map[string]any); sums["gross"] != "128.4" {
		t.Fatalf("stale catalog after update: %v", sums)
	}
}
