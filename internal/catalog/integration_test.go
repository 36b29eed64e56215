package catalog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a PostgreSQL container and applies the migrations.
// Skipped unless TEST_INTEGRATION is set.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("csvshare_test"),
		postgres.WithUsername("csvshare"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := Migrate(dsn, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func TestPostgresStore_Integration(t *testing.T) {
	pool := setupTestDB(t)

	runStoreContract(t, func(t *testing.T) (Store, seedFunc) {
		ctx := context.Background()
		if _, err := pool.Exec(ctx, `TRUNCATE csv_uploads, users RESTART IDENTITY CASCADE`); err != nil {
			t.Fatalf("reset tables: %v", err)
		}

		seed := func(t *testing.T, name, email string, admin bool) int64 {
			var id int64
			err := pool.QueryRow(ctx,
				`INSERT INTO users (name, email, is_admin) VALUES ($1, $2, $3) RETURNING id`,
				name, email, admin).Scan(&id)
			if err != nil {
				t.Fatalf("seed principal: %v", err)
			}
			return id
		}
		return NewPostgresStore(pool), seed
	})
}

func TestPostgresStore_IntegrationOwnerDeletionOrphans(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewPostgresStore(pool)

	var owner int64
	if err := pool.QueryRow(ctx,
		`INSERT INTO users (name, email) VALUES ('Gone', 'gone@example.com') RETURNING id`).Scan(&owner); err != nil {
		t.Fatal(err)
	}
	rec, err := store.Create(ctx, NewRecord{StorageName: "orphan.csv", OriginalName: "o.csv", OwnerUserID: owner, AccessLevel: "editor", At: time.Now().UTC()})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, owner); err != nil {
		t.Fatal(err)
	}

	got, err := store.FindByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("record removed with owner: %v", err)
	}
	if got.OwnerUserID != nil {
		t.Errorf("OwnerUserID = %d, want nil", *got.OwnerUserID)
	}
}
