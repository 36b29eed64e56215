package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/csvshare/internal/access"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// DB is the subset of pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore returns a store backed by db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `id, storage_name, original_name, size_bytes, owner_user_id, access_level, uploaded_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		r     Record
		level string
	)
	err := row.Scan(&r.ID, &r.StorageName, &r.OriginalName, &r.SizeBytes,
		&r.OwnerUserID, &level, &r.UploadedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.AccessLevel = access.Level(level)
	return &r, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *PostgresStore) Create(ctx context.Context, rec NewRecord) (*Record, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO csv_uploads (storage_name, original_name, size_bytes, owner_user_id, access_level, uploaded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING `+recordColumns,
		rec.StorageName, rec.OriginalName, rec.SizeBytes, rec.OwnerUserID, string(rec.AccessLevel), rec.At)

	r, err := scanRecord(row)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("create record %s: %w", rec.StorageName, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("create record %s: %w", rec.StorageName, err)
	}
	return r, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*Record, error) {
	r, err := scanRecord(s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM csv_uploads WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("find record %d: %w", id, notFound(err))
	}
	return r, nil
}

func (s *PostgresStore) FindByStorageName(ctx context.Context, name string) (*Record, error) {
	r, err := scanRecord(s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM csv_uploads WHERE storage_name = $1`, name))
	if err != nil {
		return nil, fmt.Errorf("find record %s: %w", name, notFound(err))
	}
	return r, nil
}

func (s *PostgresStore) FindByStorageNameAndOwner(ctx context.Context, name string, ownerID int64) (*Record, error) {
	r, err := scanRecord(s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM csv_uploads WHERE storage_name = $1 AND owner_user_id = $2`,
		name, ownerID))
	if err != nil {
		return nil, fmt.Errorf("find record %s for owner %d: %w", name, ownerID, notFound(err))
	}
	return r, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID int64) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+recordColumns+` FROM csv_uploads WHERE owner_user_id = $1 ORDER BY uploaded_at DESC, id DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list records for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records for owner %d: %w", ownerID, err)
	}
	return records, nil
}

func (s *PostgresStore) UpdateAccessLevel(ctx context.Context, id int64, level access.Level) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE csv_uploads SET access_level = $2 WHERE id = $1`, id, string(level))
	if err != nil {
		return fmt.Errorf("update access level of %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update access level of %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ApplyReupload(ctx context.Context, id int64, ru Reupload) (*Record, error) {
	r, err := scanRecord(s.db.QueryRow(ctx, `
		UPDATE csv_uploads
		SET original_name = $2, size_bytes = $3, access_level = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+recordColumns,
		id, ru.OriginalName, ru.SizeBytes, string(ru.AccessLevel), ru.At))
	if err != nil {
		return nil, fmt.Errorf("reupload record %d: %w", id, notFound(err))
	}
	return r, nil
}

func (s *PostgresStore) TouchUpdatedAt(ctx context.Context, id int64, sizeBytes int64, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE csv_uploads SET size_bytes = $2, updated_at = $3 WHERE id = $1`, id, sizeBytes, at)
	if err != nil {
		return fmt.Errorf("touch record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("touch record %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM csv_uploads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete record %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) PurgeOwner(ctx context.Context, ownerID int64) (int64, error) {
	var removed int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM csv_uploads WHERE owner_user_id = $1`, ownerID)
		if err != nil {
			return fmt.Errorf("delete records: %w", err)
		}
		removed = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, ownerID)
		if err != nil {
			return fmt.Errorf("delete principal: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge owner %d: %w", ownerID, err)
	}
	return removed, nil
}

// withTx runs fn in a transaction, rolling back on any error.
func (s *PostgresStore) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const principalColumns = `id, name, email, is_admin, created_at`

func scanPrincipal(row pgx.Row) (*Principal, error) {
	var p Principal
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.IsAdmin, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) FindPrincipal(ctx context.Context, id int64) (*Principal, error) {
	p, err := scanPrincipal(s.db.QueryRow(ctx,
		`SELECT `+principalColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("find principal %d: %w", id, notFound(err))
	}
	return p, nil
}

func (s *PostgresStore) ListPrincipals(ctx context.Context) ([]Principal, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+principalColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	defer rows.Close()

	principals := []Principal{}
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		principals = append(principals, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	return principals, nil
}
