// Package servertest runs the backend in-process on a memory store for tests.
package servertest

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/vaccine-orders/internal/config"
	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/repository/memory"
	"github.com/mamadbah2/vaccine-orders/internal/server"
	"github.com/mamadbah2/vaccine-orders/internal/storage"
)

// Env is a running backend.
type Env struct {
	Server *httptest.Server
	App    *server.App
	Store  *memory.Store
}

// Config returns the configuration used by New.
func Config(mediaDir string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0"},
		Auth:   config.AuthConfig{CSRFSecret: "test-secret", CSRFTTL: time.Hour},
		Storage: config.StorageConfig{
			MediaDir:      mediaDir,
			PublicBaseURL: "/media",
		},
		Reporting: config.ReportingConfig{
			CronSchedule:        "0 7 * * *",
			ExpirySweepSchedule: "5 0 * * *",
			Timezone:            "UTC",
			LowStockThreshold:   10,
			ExpiryWindowDays:    30,
		},
	}
}

// New starts a backend that is shut down when the test ends.
func New(t testing.TB) *Env {
	t.Helper()

	cfg := Config(t.TempDir())
	images, err := storage.NewLocalStore(cfg.Storage.MediaDir, cfg.Storage.PublicBaseURL, nil)
	require.NoError(t, err)

	store := memory.New()
	app := server.NewApp(server.Options{Config: cfg, Store: store, Images: images})
	srv := httptest.NewServer(app.Engine)
	t.Cleanup(srv.Close)

	return &Env{Server: srv, App: app, Store: store}
}

// URL is the base URL of the backend.
func (e *Env) URL() string { return e.Server.URL }

// CreateUser stores an account directly.
func (e *Env) CreateUser(t testing.TB, username, password string, staff bool) *models.User {
	t.Helper()
	ctx := context.Background()
	if staff {
		u, err := e.App.Auth.EnsureStaff(ctx, username, username+"@example.com", password)
		require.NoError(t, err)
		return u
	}
	u, err := e.App.Auth.Register(ctx, models.RegisterRequest{
		Username:    username,
		Email:       username + "@example.com",
		CompanyName: username + " Farms",
		Password1:   password,
		Password2:   password,
	})
	require.NoError(t, err)
	return u
}

// Token logs username in and returns the API token.
func (e *Env) Token(t testing.TB, username, password string) string {
	t.Helper()
	tok, _, err := e.App.Auth.Login(context.Background(), models.LoginRequest{Username: username, Password: password})
	require.NoError(t, err)
	return tok.Key
}

// SeedProduct creates p with the given dose packs and batches through the catalog service.
func (e *Env) SeedProduct(t testing.TB, p models.Product, packs []models.DosePack, batches []models.Batch) *models.Product {
	t.Helper()
	ctx := context.Background()
	created, err := e.App.Catalog.CreateProduct(ctx, p, nil)
	require.NoError(t, err)
	for _, d := range packs {
		d.ProductID = created.ID
		_, err := e.App.Catalog.CreateDosePack(ctx, d)
		require.NoError(t, err)
	}
	for _, b := range batches {
		b.ProductID = created.ID
		_, err := e.App.Catalog.CreateBatch(ctx, nil, b, nil)
		require.NoError(t, err)
	}
	full, err := e.App.Catalog.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	return full
}
