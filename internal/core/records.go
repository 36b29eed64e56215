package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvshare/internal/access"
	"github.com/JonMunkholm/csvshare/internal/catalog"
	"github.com/JonMunkholm/csvshare/internal/logging"
	"github.com/JonMunkholm/csvshare/internal/tabular"
)

// RecordView is a readable record with its parsed content.
type RecordView struct {
	Record  *catalog.Record
	Headers []string
	Rows    []tabular.Row
	IsOwner bool
	CanEdit bool
}

// Get returns the record and its content if callerID may read it.
func (s *Service) Get(ctx context.Context, recordID, callerID int64) (view *RecordView, err error) {
	defer func() { observe("get", err) }()

	rec, err := s.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !access.CanAccess(rec.AccessLevel, callerID, rec.OwnerUserID, access.OpRead).Allowed() {
		return nil, fmt.Errorf("read record %d: %w", recordID, ErrForbidden)
	}

	data, err := s.readBlob(ctx, rec)
	if err != nil {
		return nil, err
	}
	table, err := tabular.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse record %d: %w: %w", recordID, ErrMalformedInput, err)
	}

	return &RecordView{
		Record:  rec,
		Headers: table.Headers,
		Rows:    table.Rows,
		IsOwner: access.IsOwner(callerID, rec.OwnerUserID),
		CanEdit: access.CanAccess(rec.AccessLevel, callerID, rec.OwnerUserID, access.OpEdit).Allowed(),
	}, nil
}

// Delete removes a record's content and then its catalog row. Only the owner
// may delete. Content that is already gone is logged and skipped; any other
// content failure aborts before the catalog is touched.
func (s *Service) Delete(ctx context.Context, recordID, callerID int64) (err error) {
	defer func() { observe("delete", err) }()

	rec, err := s.loadRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if !access.CanAccess(rec.AccessLevel, callerID, rec.OwnerUserID, access.OpDelete).Allowed() {
		return fmt.Errorf("delete record %d: %w", recordID, ErrForbidden)
	}

	if err := s.deleteBlob(ctx, rec); err != nil {
		return err
	}

	if err := s.catalog.Delete(ctx, rec.ID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("record %d: %w", recordID, ErrNotFound)
		}
		logging.WithFields(ctx, "record_id", rec.ID, "storage_name", rec.StorageName).
			Error("catalog delete failed after content removal", "error", err)
		return fmt.Errorf("delete record %d: %w", recordID, err)
	}

	logging.WithFields(ctx, append(clientFields(ctx), "record_id", rec.ID)...).Info("record deleted")
	return nil
}

// ChangeAccess sets a record's access level. Only the owner may change it,
// and unlike upload there is no default: level must name a valid level.
func (s *Service) ChangeAccess(ctx context.Context, recordID, callerID int64, level string) (got access.Level, err error) {
	defer func() { observe("change_access", err) }()

	if strings.TrimSpace(level) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAccessLevel)
	}
	lvl, err := access.ParseLevel(level)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccessLevel, level)
	}

	rec, err := s.loadRecord(ctx, recordID)
	if err != nil {
		return "", err
	}
	if !access.CanAccess(rec.AccessLevel, callerID, rec.OwnerUserID, access.OpChangeAccess).Allowed() {
		return "", fmt.Errorf("change access of record %d: %w", recordID, ErrForbidden)
	}

	if err := s.catalog.UpdateAccessLevel(ctx, rec.ID, lvl); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return "", fmt.Errorf("record %d: %w", recordID, ErrNotFound)
		}
		return "", fmt.Errorf("update access of record %d: %w", recordID, err)
	}

	logging.WithFields(ctx, "record_id", rec.ID).Info("access level changed", "from", rec.AccessLevel, "to", lvl)
	return lvl, nil
}
