package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/csvshare/internal/access"
	"github.com/JonMunkholm/csvshare/internal/logging"
	"github.com/JonMunkholm/csvshare/internal/tabular"
)

// UpdateDateColumn is the column stamped on every update. The first update
// appends it to the header line; a header line that already carries it keeps
// it where it is.
const UpdateDateColumn = "update_date"

// updateDateLayout matches a JavaScript Date's JSON form, which is what
// clients of this API already parse.
const updateDateLayout = "2006-01-02T15:04:05.000Z"

// FieldValues is an update payload: either a CSV document whose first data
// row is the new record, or a field map. CSV wins when both are set.
type FieldValues struct {
	CSV    []byte
	Fields map[string]string
}

// Update replaces the record's content with a single row built from v
// against the record's stored header sequence.
//
// Checks run in this order: the record must exist (ErrNotFound), the caller
// must be allowed to edit (ErrForbidden), v must carry at least one
// non-blank value (ErrNoData), and the stored content must exist
// (ErrContentMissing). Once the schema is known, v must still fill at least
// one of its columns, or the update fails with ErrNoData before anything is
// written. The header line never changes except for the trailing update_date
// column added by the first update. Concurrent updates to one record are not
// serialized: the last write wins.
func (s *Service) Update(ctx context.Context, recordID, callerID int64, v FieldValues) (err error) {
	defer func() { observe("update", err) }()

	rec, err := s.loadRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if !access.CanAccess(rec.AccessLevel, callerID, rec.OwnerUserID, access.OpEdit).Allowed() {
		return fmt.Errorf("edit record %d: %w", recordID, ErrForbidden)
	}

	values, err := normalizeValues(v)
	if err != nil {
		return err
	}

	stored, err := s.readBlob(ctx, rec)
	if err != nil {
		return err
	}
	table, err := tabular.Parse(stored)
	if err != nil {
		return fmt.Errorf("parse stored content of record %d: %w: %w", recordID, ErrMalformedInput, err)
	}

	schema, headers := schemaOf(table.Headers)
	row := tabular.Reconcile(schema, values, s.transforms)
	if !tabular.HasValues(row) {
		return fmt.Errorf("update record %d: no value matches a column: %w", recordID, ErrNoData)
	}

	now := s.now().UTC()
	row[UpdateDateColumn] = now.Format(updateDateLayout)

	out, err := tabular.Serialize(headers, []tabular.Row{row})
	if err != nil {
		return fmt.Errorf("serialize record %d: %w: %w", recordID, ErrSchemaMismatch, err)
	}

	log := logging.WithFields(ctx, append(clientFields(ctx), "record_id", rec.ID, "storage_name", rec.StorageName)...)

	size, err := s.writeBlob(ctx, rec.StorageName, out)
	if err != nil {
		log.Error("update write failed", "error", err)
		return err
	}

	if err := s.catalog.TouchUpdatedAt(ctx, rec.ID, size, now); err != nil {
		orphanedBlobsTotal.WithLabelValues("catalog_failed").Inc()
		log.Error("catalog touch failed after content write, metadata is stale", "error", err)
		return fmt.Errorf("touch record %d: %w", rec.ID, err)
	}

	log.Info("record updated", "bytes", size, "columns", len(schema))
	return nil
}

// normalizeValues turns a payload into one field map.
func normalizeValues(v FieldValues) (map[string]string, error) {
	values := v.Fields
	if len(v.CSV) > 0 {
		t, err := tabular.Parse(v.CSV)
		if err != nil {
			return nil, fmt.Errorf("parse update payload: %w: %w", ErrMalformedInput, err)
		}
		if t.Len() == 0 {
			return nil, ErrNoData
		}
		values = t.Rows[0]
	}
	if !tabular.HasValues(values) {
		return nil, ErrNoData
	}
	return values, nil
}

// schemaOf splits stored headers into the editable columns and the header
// line to write back. The line is the stored one, with update_date appended
// only when it is absent.
func schemaOf(stored []string) (schema, headers []string) {
	schema = make([]string, 0, len(stored))
	for _, h := range stored {
		if h != UpdateDateColumn {
			schema = append(schema, h)
		}
	}
	if len(schema) == len(stored) {
		headers = append(append(make([]string, 0, len(stored)+1), stored...), UpdateDateColumn)
	} else {
		headers = append([]string(nil), stored...)
	}
	return schema, headers
}
