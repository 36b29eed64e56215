package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/JonMunkholm/csvshare/internal/access"
)

var recordCols = []string{"id", "storage_name", "original_name", "size_bytes", "owner_user_id", "access_level", "uploaded_at", "updated_at"}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool() error = %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewPostgresStore(mock)
}

func checkExpectations(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func ownerPtr(v int64) *int64 { return &v }

func TestPostgresStore_Create(t *testing.T) {
	mock, store := newMock(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO csv_uploads").
		WithArgs("upload_1.csv", "ads.csv", int64(12), int64(3), "viewer", at).
		WillReturnRows(pgxmock.NewRows(recordCols).
			AddRow(int64(10), "upload_1.csv", "ads.csv", int64(12), ownerPtr(3), "viewer", at, at))

	rec, err := store.Create(context.Background(), NewRecord{
		StorageName: "upload_1.csv", OriginalName: "ads.csv", SizeBytes: 12,
		OwnerUserID: 3, AccessLevel: access.LevelViewer, At: at,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.ID != 10 || rec.AccessLevel != access.LevelViewer || *rec.OwnerUserID != 3 {
		t.Errorf("Create() = %+v", rec)
	}
	checkExpectations(t, mock)
}

func TestPostgresStore_CreateUniqueViolation(t *testing.T) {
	mock, store := newMock(t)

	mock.ExpectQuery("INSERT INTO csv_uploads").
		WithArgs("dup.csv", "d.csv", int64(0), int64(1), "restricted", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	_, err := store.Create(context.Background(), NewRecord{
		StorageName: "dup.csv", OriginalName: "d.csv", OwnerUserID: 1,
		AccessLevel: access.LevelRestricted, At: time.Now(),
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Create() error = %v, want ErrConflict", err)
	}
	checkExpectations(t, mock)
}

func TestPostgresStore_FindByID(t *testing.T) {
	mock, store := newMock(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM csv_uploads WHERE id").
		WithArgs(int64(4)).
		WillReturnRows(pgxmock.NewRows(recordCols).
			AddRow(int64(4), "o.csv", "o.csv", int64(1), (*int64)(nil), "editor", at, at))

	rec, err := store.FindByID(context.Background(), 4)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if rec.OwnerUserID != nil {
		t.Errorf("OwnerUserID = %v, want nil for orphaned record", *rec.OwnerUserID)
	}
	checkExpectations(t, mock)
}

func TestPostgresStore_FindByIDNotFound(t *testing.T) {
	mock, store := newMock(t)

	mock.ExpectQuery("FROM csv_uploads WHERE id").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.FindByID(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID() error = %v, want ErrNotFound", err)
	}
	checkExpectations(t, mock)
}

func TestPostgresStore_ListByOwner(t *testing.T) {
	mock, store := newMock(t)
	newer := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-24 * time.Hour)

	mock.ExpectQuery("WHERE owner_user_id = \\$1 ORDER BY uploaded_at DESC").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(recordCols).
			AddRow(int64(2), "b.csv", "b.csv", int64(5), ownerPtr(3), "restricted", newer, newer).
			AddRow(int64(1), "a.csv", "a.csv", int64(5), ownerPtr(3), "viewer", older, older))

	list, err := store.ListByOwner(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != 2 || list[1].ID != 1 {
		t.Errorf("ListByOwner() = %+v", list)
	}
	checkExpectations(t, mock)
}

func TestPostgresStore_Mutations(t *testing.T) {
	tests := []struct {
		name   string
		expect func(mock pgxmock.PgxPoolIface)
		call   func(s *PostgresStore) error
		want   error
	}{
		{
			name: "update access level",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("UPDATE csv_uploads SET access_level").
					WithArgs(int64(1), "editor").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			call: func(s *PostgresStore) error {
				return s.UpdateAccessLevel(context.Background(), 1, access.LevelEditor)
			},
		},
		{
			name: "update access level missing",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("UPDATE csv_uploads SET access_level").
					WithArgs(int64(2), "viewer").
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			call: func(s *PostgresStore) error {
				return s.UpdateAccessLevel(context.Background(), 2, access.LevelViewer)
			},
			want: ErrNotFound,
		},
		{
			name: "touch",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("UPDATE csv_uploads SET size_bytes").
					WithArgs(int64(1), int64(77), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			call: func(s *PostgresStore) error {
				return s.TouchUpdatedAt(context.Background(), 1, 77, time.Now())
			},
		},
		{
			name: "delete",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("DELETE FROM csv_uploads WHERE id").
					WithArgs(int64(9)).
					WillReturnResult(pgxmock.NewResult("DELETE", 1))
			},
			call: func(s *PostgresStore) error {
				return s.Delete(context.Background(), 9)
			},
		},
		{
			name: "delete missing",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec("DELETE FROM csv_uploads WHERE id").
					WithArgs(int64(9)).
					WillReturnResult(pgxmock.NewResult("DELETE", 0))
			},
			call: func(s *PostgresStore) error {
				return s.Delete(context.Background(), 9)
			},
			want: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, store := newMock(t)
			tt.expect(mock)

			err := tt.call(store)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			checkExpectations(t, mock)
		})
	}
}

func TestPostgresStore_PurgeOwnerCommits(t *testing.T) {
	mock, store := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM csv_uploads WHERE owner_user_id").
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec("DELETE FROM users WHERE id").
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	n, err := store.PurgeOwner(context.Background(), 5)
	if err != nil {
		t.Fatalf("PurgeOwner() error = %v", err)
	}
	if n != 3 {
		t.Errorf("PurgeOwner() = %d, want 3", n)
	}
	checkExpectations(t, mock)
}

func TestPostgresStore_PurgeOwnerRollsBack(t *testing.T) {
	mock, store := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM csv_uploads WHERE owner_user_id").
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM users WHERE id").
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	if _, err := store.PurgeOwner(context.Background(), 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("PurgeOwner() error = %v, want ErrNotFound", err)
	}
	checkExpectations(t, mock)
}

func TestPostgresStore_PurgeOwnerRecordDeleteFails(t *testing.T) {
	mock, store := newMock(t)
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM csv_uploads WHERE owner_user_id").
		WithArgs(int64(5)).
		WillReturnError(boom)
	mock.ExpectRollback()

	if _, err := store.PurgeOwner(context.Background(), 5); !errors.Is(err, boom) {
		t.Errorf("PurgeOwner() error = %v, want %v", err, boom)
	}
	checkExpectations(t, mock)
}

func TestPostgresStore_Principals(t *testing.T) {
	mock, store := newMock(t)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cols := []string{"id", "name", "email", "is_admin", "created_at"}

	mock.ExpectQuery("FROM users WHERE id").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(int64(1), "Root", "root@example.com", true, at))
	mock.ExpectQuery("FROM users ORDER BY created_at DESC").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(2), "New", "new@example.com", false, at.Add(time.Hour)).
			AddRow(int64(1), "Root", "root@example.com", true, at))

	p, err := store.FindPrincipal(context.Background(), 1)
	if err != nil {
		t.Fatalf("FindPrincipal() error = %v", err)
	}
	if !p.IsAdmin || p.Email != "root@example.com" {
		t.Errorf("FindPrincipal() = %+v", p)
	}

	list, err := store.ListPrincipals(context.Background())
	if err != nil {
		t.Fatalf("ListPrincipals() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != 2 {
		t.Errorf("ListPrincipals() = %+v", list)
	}
	checkExpectations(t, mock)
}

func TestMigrateURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"postgres://u:p@h:5432/db?sslmode=disable", "pgx5://u:p@h:5432/db?sslmode=disable"},
		{"postgresql://u@h/db", "pgx5://u@h/db"},
		{"pgx5://u@h/db", "pgx5://u@h/db"},
	}
	for _, tt := range tests {
		if got := migrateURL(tt.in); got != tt.want {
			t.Errorf("migrateURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
