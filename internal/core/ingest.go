package core

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"time"

	"github.com/JonMunkholm/csvshare/internal/access"
	"github.com/JonMunkholm/csvshare/internal/catalog"
	"github.com/JonMunkholm/csvshare/internal/contentstore"
	"github.com/JonMunkholm/csvshare/internal/logging"
	"github.com/JonMunkholm/csvshare/internal/tabular"
)

// UploadedFile is one file handed to Ingest.
type UploadedFile struct {
	Name        string // display name chosen by the uploader
	ContentType string
	Data        []byte

	// StorageName reuses an existing blob on a retried upload. Empty
	// generates a fresh name.
	StorageName string
}

// UploadResult is what Ingest returns: the record plus the parsed content,
// so the caller can render it without another round trip.
type UploadResult struct {
	Record       *catalog.Record
	Created      bool
	TotalRecords int
	Headers      []string
	Rows         []tabular.Row
}

// Ingest validates f, writes it to the content store, parses it and upserts
// its catalog record. The requested level may be empty for the default.
//
// Validation happens before any write, so an invalid level, type or size
// leaves no trace. A parse failure after the write is reported as
// ErrMalformedInput and leaves the blob in place; a later upload under the
// same storage name overwrites it.
func (s *Service) Ingest(ctx context.Context, ownerID int64, f UploadedFile, requestedLevel string) (res *UploadResult, err error) {
	defer func() { observe("ingest", err) }()

	level, err := access.ParseLevel(requestedLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccessLevel, requestedLevel)
	}
	if f.Name == "" && len(f.Data) == 0 {
		return nil, ErrNoFile
	}
	if err := checkMediaType(f.ContentType); err != nil {
		return nil, err
	}
	if int64(len(f.Data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(f.Data), s.maxFileSize)
	}

	now := s.now().UTC()
	name, existing, err := s.resolveStorageName(ctx, ownerID, f.StorageName, now)
	if err != nil {
		return nil, err
	}

	log := logging.WithFields(ctx, append(clientFields(ctx), "storage_name", name, "owner_id", ownerID)...)

	size, err := s.writeBlob(ctx, name, f.Data)
	if err != nil {
		log.Error("ingest write failed", "error", err)
		return nil, err
	}

	table, err := tabular.Parse(f.Data)
	if err != nil {
		orphanedBlobsTotal.WithLabelValues("parse_failed").Inc()
		log.Warn("uploaded content is not valid csv, blob left in place", "error", err)
		return nil, fmt.Errorf("parse %s: %w: %w", f.Name, ErrMalformedInput, err)
	}

	rec, created, err := s.upsert(ctx, ownerID, existing, name, f.Name, size, level, now)
	if err != nil {
		orphanedBlobsTotal.WithLabelValues("catalog_failed").Inc()
		log.Error("catalog upsert failed after content write, blob needs cleanup", "error", err)
		return nil, err
	}

	log.Info("file ingested",
		"record_id", rec.ID,
		"created", created,
		"rows", table.Len(),
		"bytes", size,
		"access_level", level,
	)

	return &UploadResult{
		Record:       rec,
		Created:      created,
		TotalRecords: table.Len(),
		Headers:      table.Headers,
		Rows:         table.Rows,
	}, nil
}

func checkMediaType(contentType string) error {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt != "text/csv" {
		return fmt.Errorf("%w: %q", ErrUnsupportedMediaType, contentType)
	}
	return nil
}

// resolveStorageName returns the name to write under and, when the owner
// already holds a record for it, that record. A name held by anyone else,
// including an orphaned record, is ErrForbidden.
func (s *Service) resolveStorageName(ctx context.Context, ownerID int64, requested string, now time.Time) (string, *catalog.Record, error) {
	name := requested
	if name == "" {
		name = s.freshStorageName(now)
	} else if err := contentstore.ValidateName(name); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	rec, err := s.catalog.FindByStorageNameAndOwner(ctx, name, ownerID)
	if err == nil {
		return name, rec, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return "", nil, fmt.Errorf("find storage name %s: %w", name, err)
	}

	_, err = s.catalog.FindByStorageName(ctx, name)
	switch {
	case err == nil:
		return "", nil, fmt.Errorf("storage name %s belongs to another owner: %w", name, ErrForbidden)
	case errors.Is(err, catalog.ErrNotFound):
		return name, nil, nil
	default:
		return "", nil, fmt.Errorf("find storage name %s: %w", name, err)
	}
}

// upsert creates the record, or rewrites the owner's existing one for the
// same storage name so no second row appears.
func (s *Service) upsert(ctx context.Context, ownerID int64, existing *catalog.Record, name, displayName string, size int64, level access.Level, now time.Time) (*catalog.Record, bool, error) {
	if existing != nil {
		rec, err := s.catalog.ApplyReupload(ctx, existing.ID, catalog.Reupload{
			OriginalName: displayName,
			SizeBytes:    size,
			AccessLevel:  level,
			At:           now,
		})
		if err != nil {
			return nil, false, fmt.Errorf("update record %d: %w", existing.ID, err)
		}
		return rec, false, nil
	}

	rec, err := s.catalog.Create(ctx, catalog.NewRecord{
		StorageName:  name,
		OriginalName: displayName,
		SizeBytes:    size,
		OwnerUserID:  ownerID,
		AccessLevel:  level,
		At:           now,
	})
	if errors.Is(err, catalog.ErrConflict) {
		return nil, false, fmt.Errorf("create record %s: %w", name, ErrStorageNameConflict)
	}
	if err != nil {
		return nil, false, fmt.Errorf("create record %s: %w", name, err)
	}
	return rec, true, nil
}

// maxNameAttempts bounds how often a generated name is redrawn.
const maxNameAttempts = 3

// freshStorageName generates a storage name that no blob uses yet, so a new
// upload never lands on an orphaned blob left behind by a failed ingest.
func (s *Service) freshStorageName(now time.Time) string {
	name := s.newName(now)
	for i := 1; i < maxNameAttempts && s.content.Exists(name); i++ {
		name = s.newName(now)
	}
	return name
}
