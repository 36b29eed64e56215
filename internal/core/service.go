package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/csvshare/internal/catalog"
	"github.com/JonMunkholm/csvshare/internal/contentstore"
	"github.com/JonMunkholm/csvshare/internal/logging"
	"github.com/JonMunkholm/csvshare/internal/mail"
	"github.com/JonMunkholm/csvshare/internal/tabular"
)

// DefaultMaxFileSize is the upload ceiling when Options leaves it unset.
const DefaultMaxFileSize int64 = 5 << 20

// ContentStore holds blob bytes by storage name. Read and Delete return an
// error wrapping contentstore.ErrNotFound for a missing blob.
type ContentStore interface {
	Write(ctx context.Context, name string, data []byte) (int64, error)
	Read(name string) ([]byte, error)
	Delete(name string) error
	Exists(name string) bool
}

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	MaxFileSize int64

	// FrontendURL and SharePath form share links:
	// FrontendURL + SharePath + "/" + id.
	FrontendURL string
	SharePath   string

	MaxConcurrentWrites int
	MaxWriteWait        time.Duration

	// KeyTransforms is the ordered fallback used to match update payload
	// keys to stored headers.
	KeyTransforms []tabular.KeyTransform

	// Now is the clock. Tests replace it.
	Now func() time.Time
}

// Service implements the record store: ingestion, update, read, delete,
// access changes, sharing and administrative purge.
type Service struct {
	catalog catalog.Store
	content ContentStore
	mailer  mail.Sender
	limiter *WriteLimiter

	maxFileSize int64
	shareBase   string
	transforms  []tabular.KeyTransform
	now         func() time.Time
	newName     func(time.Time) string
}

// NewService wires a Service over its collaborators.
func NewService(store catalog.Store, content ContentStore, mailer mail.Sender, opts Options) (*Service, error) {
	if store == nil || content == nil || mailer == nil {
		return nil, errors.New("core: catalog, content store and mailer are required")
	}

	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.FrontendURL == "" {
		opts.FrontendURL = "http://localhost:3000"
	}
	if opts.SharePath == "" {
		opts.SharePath = "/EditAds"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	base, err := shareBase(opts.FrontendURL, opts.SharePath)
	if err != nil {
		return nil, err
	}

	return &Service{
		catalog:     store,
		content:     content,
		mailer:      mailer,
		limiter:     NewWriteLimiter(opts.MaxConcurrentWrites, opts.MaxWriteWait),
		maxFileSize: opts.MaxFileSize,
		shareBase:   base,
		transforms:  opts.KeyTransforms,
		now:         opts.Now,
		newName:     contentstore.NewStorageName,
	}, nil
}

func shareBase(frontend, path string) (string, error) {
	u, err := url.Parse(frontend)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("core: invalid frontend url %q", frontend)
	}
	return strings.TrimRight(frontend, "/") + "/" + strings.Trim(path, "/"), nil
}

// Limiter exposes the write limiter for shutdown draining and status.
func (s *Service) Limiter() *WriteLimiter {
	return s.limiter
}

// MaxFileSize returns the configured upload ceiling.
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

// loadRecord resolves id, translating the catalog miss.
func (s *Service) loadRecord(ctx context.Context, id int64) (*catalog.Record, error) {
	rec, err := s.catalog.FindByID(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find record %d: %w", id, err)
	}
	return rec, nil
}

// writeBlob writes data under a limiter slot.
func (s *Service) writeBlob(ctx context.Context, name string, data []byte) (int64, error) {
	var n int64
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		activeWrites.Inc()
		defer activeWrites.Dec()

		var err error
		n, err = s.content.Write(ctx, name, data)
		if err != nil {
			return fmt.Errorf("write content %s: %w: %w", name, ErrStorageIO, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	contentBytesWritten.Add(float64(n))
	return n, nil
}

// readBlob reads a record's content. A missing blob is ErrContentMissing
// and is logged, since the catalog says it should exist.
func (s *Service) readBlob(ctx context.Context, rec *catalog.Record) ([]byte, error) {
	data, err := s.content.Read(rec.StorageName)
	if errors.Is(err, contentstore.ErrNotFound) {
		logging.WithFields(ctx, "record_id", rec.ID, "storage_name", rec.StorageName).
			Error("catalog record has no content")
		return nil, fmt.Errorf("record %d: %w", rec.ID, ErrContentMissing)
	}
	if err != nil {
		logging.WithFields(ctx, "record_id", rec.ID, "storage_name", rec.StorageName).
			Error("read content failed", "error", err)
		return nil, fmt.Errorf("read content %s: %w: %w", rec.StorageName, ErrStorageIO, err)
	}
	return data, nil
}

// deleteBlob removes a blob, tolerating one that is already gone.
func (s *Service) deleteBlob(ctx context.Context, rec *catalog.Record) error {
	err := s.content.Delete(rec.StorageName)
	if errors.Is(err, contentstore.ErrNotFound) {
		logging.WithFields(ctx, "record_id", rec.ID, "storage_name", rec.StorageName).
			Warn("content already missing, removing catalog record anyway")
		return nil
	}
	if err != nil {
		logging.WithFields(ctx, "record_id", rec.ID, "storage_name", rec.StorageName).
			Error("delete content failed", "error", err)
		return fmt.Errorf("delete content %s: %w: %w", rec.StorageName, ErrStorageIO, err)
	}
	return nil
}

// List returns the caller's own records, newest upload first.
func (s *Service) List(ctx context.Context, callerID int64) (recs []catalog.Record, err error) {
	defer func() { observe("list", err) }()

	recs, err = s.catalog.ListByOwner(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list records for %d: %w", callerID, err)
	}
	return recs, nil
}

// Principal looks up an identity. It returns ErrNotFound for an unknown id.
func (s *Service) Principal(ctx context.Context, id int64) (*catalog.Principal, error) {
	p, err := s.catalog.FindPrincipal(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("principal %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find principal %d: %w", id, err)
	}
	return p, nil
}
