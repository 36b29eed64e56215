// Package catalog is the metadata store for uploaded files.
//
// A Record maps a generated id to the blob's storage name, its display name,
// size, owner and access level. The catalog never touches blob bytes; callers
// pair catalog mutations with content store writes and deletes.
//
// Two implementations are provided: PostgresStore for production and
// MemoryStore for tests and local runs without a database.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/csvshare/internal/access"
)

var (
	// ErrNotFound is returned when a record or principal does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness rule,
	// such as a storage name that is already taken.
	ErrConflict = errors.New("conflict")
)

// Record is one stored file.
type Record struct {
	ID           int64        `json:"id"`
	StorageName  string       `json:"storageName"`
	OriginalName string       `json:"originalName"`
	SizeBytes    int64        `json:"sizeBytes"`
	OwnerUserID  *int64       `json:"ownerUserId"`
	AccessLevel  access.Level `json:"accessLevel"`
	UploadedAt   time.Time    `json:"uploadedAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// NewRecord holds the fields for Create. UploadedAt and UpdatedAt both take At.
type NewRecord struct {
	StorageName  string
	OriginalName string
	SizeBytes    int64
	OwnerUserID  int64
	AccessLevel  access.Level
	At           time.Time
}

// Reupload holds the fields rewritten when an owner uploads again under a
// storage name they already hold.
type Reupload struct {
	OriginalName string
	SizeBytes    int64
	AccessLevel  access.Level
	At           time.Time
}

// Principal is an authenticated identity.
type Principal struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the catalog contract. Every mutation is atomic for its row;
// PurgeOwner is atomic across all rows it touches.
type Store interface {
	Create(ctx context.Context, rec NewRecord) (*Record, error)
	FindByID(ctx context.Context, id int64) (*Record, error)
	FindByStorageName(ctx context.Context, name string) (*Record, error)
	FindByStorageNameAndOwner(ctx context.Context, name string, ownerID int64) (*Record, error)

	// ListByOwner returns the owner's records, newest upload first.
	ListByOwner(ctx context.Context, ownerID int64) ([]Record, error)

	UpdateAccessLevel(ctx context.Context, id int64, level access.Level) error
	ApplyReupload(ctx context.Context, id int64, r Reupload) (*Record, error)

	// TouchUpdatedAt records a content write: new size and update time.
	TouchUpdatedAt(ctx context.Context, id int64, sizeBytes int64, at time.Time) error

	Delete(ctx context.Context, id int64) error

	// PurgeOwner deletes every record of ownerID and the principal itself in
	// one transaction. It returns the number of records removed.
	PurgeOwner(ctx context.Context, ownerID int64) (int64, error)

	FindPrincipal(ctx context.Context, id int64) (*Principal, error)
	ListPrincipals(ctx context.Context) ([]Principal, error)
}
