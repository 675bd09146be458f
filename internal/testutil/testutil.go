package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dom/wartracker/internal/api"
	"github.com/dom/wartracker/internal/config"
	"github.com/dom/wartracker/internal/metrics"
	"github.com/dom/wartracker/internal/repository"
	repoPostgres "github.com/dom/wartracker/internal/repository/postgres"
	"github.com/dom/wartracker/internal/service"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer with the match_records
// table fully migrated
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_wartracker"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	testDB := &TestDB{Container: container}
	t.Cleanup(func() {
		testDB.Cleanup()
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	testDB.DSN = dsn

	db, err := repoPostgres.NewConnection(dsn, "silent")
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	testDB.DB = db

	if err := repoPostgres.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return testDB
}

// Cleanup closes the connection and terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.DB != nil {
		repoPostgres.Close(tdb.DB)
	}
	if tdb.Container != nil {
		tdb.Container.Terminate(context.Background())
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	if err := tdb.DB.Exec("TRUNCATE TABLE match_records").Error; err != nil {
		t.Logf("warning: failed to truncate match_records: %v", err)
	}
}

// DropColumns simulates a database whose migrations lag behind the code
func (tdb *TestDB) DropColumns(t *testing.T, columns ...string) {
	t.Helper()

	for _, column := range columns {
		stmt := fmt.Sprintf("ALTER TABLE match_records DROP COLUMN IF EXISTS %s", column)
		if err := tdb.DB.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to drop column %s: %v", column, err)
		}
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:                "0", // Random port
		Environment:         "test",
		LogLevel:            "error",
		LogFormat:           "console",
		DBLogLevel:          "silent",
		DefaultGameKind:     "40k",
		AllowedLinkPrefixes: []string{"https://drive.google.com/", "https://docs.google.com/"},
		EmbedPhaseNotes:     true,
		CORSAllowedOrigins:  []string{"*"},
		MaxUploadMB:         1,
		Blob: config.BlobConfig{
			Bucket:        "test-bucket",
			PublicBaseURL: MemoryBlobBaseURL,
		},
	}
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server   *httptest.Server
	DB       *TestDB
	Repos    *repository.Repositories
	Services *service.Services
	Blob     *MemoryBlobStore
	Metrics  *metrics.Metrics
	Config   *config.Config
}

// NewTestServer creates a complete test server with all dependencies
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	cfg := TestConfig()
	logger := zap.NewNop()
	m := metrics.New()

	repos := repoPostgres.NewRepositories(testDB.DB, repoPostgres.Options{
		EmbedPhaseNotes: cfg.EmbedPhaseNotes,
		Logger:          logger,
		Metrics:         m,
	})

	services, err := service.NewServices(repos, cfg, logger)
	if err != nil {
		t.Fatalf("failed to build services: %v", err)
	}

	store := NewMemoryBlobStore()
	router := api.NewRouter(services, store, m, logger, cfg)

	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:   server,
		DB:       testDB,
		Repos:    repos,
		Services: services,
		Blob:     store,
		Metrics:  m,
		Config:   cfg,
	}

	t.Cleanup(func() {
		server.Close()
	})

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/v1%s", ts.Server.URL, path)
}
