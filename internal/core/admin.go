package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/csvshare/internal/catalog"
	"github.com/JonMunkholm/csvshare/internal/logging"
)

// requireAdmin returns ErrForbidden unless callerID is an existing admin.
func (s *Service) requireAdmin(ctx context.Context, callerID int64) error {
	p, err := s.catalog.FindPrincipal(ctx, callerID)
	if errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("principal %d: %w", callerID, ErrForbidden)
	}
	if err != nil {
		return fmt.Errorf("find principal %d: %w", callerID, err)
	}
	if !p.IsAdmin {
		return fmt.Errorf("principal %d is not an admin: %w", callerID, ErrForbidden)
	}
	return nil
}

// ListPrincipals returns every principal, newest first. Admin only.
func (s *Service) ListPrincipals(ctx context.Context, callerID int64) ([]catalog.Principal, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	ps, err := s.catalog.ListPrincipals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	return ps, nil
}

// ListRecordsFor returns another principal's records. Admin only.
func (s *Service) ListRecordsFor(ctx context.Context, callerID, principalID int64) ([]catalog.Record, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	if _, err := s.Principal(ctx, principalID); err != nil {
		return nil, err
	}
	recs, err := s.catalog.ListByOwner(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("list records for %d: %w", principalID, err)
	}
	return recs, nil
}

// PurgePrincipal deletes a principal and everything they own. Admin only,
// and an admin cannot purge themselves.
//
// Blobs go first. A blob that is already missing is skipped; any other
// content failure aborts before the catalog transaction starts, so either
// every row goes or none does. It returns the number of records removed.
func (s *Service) PurgePrincipal(ctx context.Context, callerID, principalID int64) (n int64, err error) {
	defer func() { observe("purge", err) }()

	if err := s.requireAdmin(ctx, callerID); err != nil {
		return 0, err
	}
	if callerID == principalID {
		return 0, fmt.Errorf("purge own account: %w", ErrForbidden)
	}
	if _, err := s.Principal(ctx, principalID); err != nil {
		return 0, err
	}

	recs, err := s.catalog.ListByOwner(ctx, principalID)
	if err != nil {
		return 0, fmt.Errorf("list records for %d: %w", principalID, err)
	}

	log := logging.WithFields(ctx, "principal_id", principalID)

	for i := range recs {
		if err := s.deleteBlob(ctx, &recs[i]); err != nil {
			log.Error("purge aborted before catalog changes", "record_id", recs[i].ID, "error", err)
			return 0, err
		}
	}

	n, err = s.catalog.PurgeOwner(ctx, principalID)
	if errors.Is(err, catalog.ErrNotFound) {
		return 0, fmt.Errorf("principal %d: %w", principalID, ErrNotFound)
	}
	if err != nil {
		log.Error("purge transaction failed after content removal", "error", err)
		return 0, fmt.Errorf("purge principal %d: %w", principalID, err)
	}

	log.Info("principal purged", "records", n)
	return n, nil
}
