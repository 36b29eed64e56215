package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/csvshare/internal/access"
)

// MemoryStore is an in-process Store. It enforces the same uniqueness rules
// as the SQL schema.
type MemoryStore struct {
	mu         sync.RWMutex
	nextID     int64
	records    map[int64]*Record
	principals map[int64]*Principal
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:    make(map[int64]*Record),
		principals: make(map[int64]*Principal),
	}
}

// AddPrincipal registers a principal. A zero CreatedAt is set to now.
func (m *MemoryStore) AddPrincipal(p Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.principals[p.ID] = &p
}

// RemovePrincipal deletes a principal and clears it from the records it
// owned, leaving them in place with no owner.
func (m *MemoryStore) RemovePrincipal(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.principals, id)
	for _, r := range m.records {
		if r.OwnerUserID != nil && *r.OwnerUserID == id {
			r.OwnerUserID = nil
		}
	}
}

func copyRecord(r *Record) *Record {
	c := *r
	if r.OwnerUserID != nil {
		owner := *r.OwnerUserID
		c.OwnerUserID = &owner
	}
	return &c
}

func (m *MemoryStore) Create(_ context.Context, rec NewRecord) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.StorageName == rec.StorageName {
			return nil, fmt.Errorf("create record %s: %w", rec.StorageName, ErrConflict)
		}
	}

	m.nextID++
	owner := rec.OwnerUserID
	r := &Record{
		ID:           m.nextID,
		StorageName:  rec.StorageName,
		OriginalName: rec.OriginalName,
		SizeBytes:    rec.SizeBytes,
		OwnerUserID:  &owner,
		AccessLevel:  rec.AccessLevel,
		UploadedAt:   rec.At,
		UpdatedAt:    rec.At,
	}
	m.records[r.ID] = r
	return copyRecord(r), nil
}

func (m *MemoryStore) FindByID(_ context.Context, id int64) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("find record %d: %w", id, ErrNotFound)
	}
	return copyRecord(r), nil
}

func (m *MemoryStore) FindByStorageName(_ context.Context, name string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.StorageName == name {
			return copyRecord(r), nil
		}
	}
	return nil, fmt.Errorf("find record %s: %w", name, ErrNotFound)
}

func (m *MemoryStore) FindByStorageNameAndOwner(_ context.Context, name string, ownerID int64) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.StorageName == name && r.OwnerUserID != nil && *r.OwnerUserID == ownerID {
			return copyRecord(r), nil
		}
	}
	return nil, fmt.Errorf("find record %s for owner %d: %w", name, ownerID, ErrNotFound)
}

func (m *MemoryStore) ListByOwner(_ context.Context, ownerID int64) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := []Record{}
	for _, r := range m.records {
		if r.OwnerUserID != nil && *r.OwnerUserID == ownerID {
			records = append(records, *copyRecord(r))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].UploadedAt.Equal(records[j].UploadedAt) {
			return records[i].UploadedAt.After(records[j].UploadedAt)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

func (m *MemoryStore) UpdateAccessLevel(_ context.Context, id int64, level access.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return fmt.Errorf("update access level of %d: %w", id, ErrNotFound)
	}
	r.AccessLevel = level
	return nil
}

func (m *MemoryStore) ApplyReupload(_ context.Context, id int64, ru Reupload) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("reupload record %d: %w", id, ErrNotFound)
	}
	r.OriginalName = ru.OriginalName
	r.SizeBytes = ru.SizeBytes
	r.AccessLevel = ru.AccessLevel
	r.UpdatedAt = ru.At
	return copyRecord(r), nil
}

func (m *MemoryStore) TouchUpdatedAt(_ context.Context, id int64, sizeBytes int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return fmt.Errorf("touch record %d: %w", id, ErrNotFound)
	}
	r.SizeBytes = sizeBytes
	r.UpdatedAt = at
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("delete record %d: %w", id, ErrNotFound)
	}
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) PurgeOwner(_ context.Context, ownerID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.principals[ownerID]; !ok {
		return 0, fmt.Errorf("purge owner %d: %w", ownerID, ErrNotFound)
	}

	var removed int64
	for id, r := range m.records {
		if r.OwnerUserID != nil && *r.OwnerUserID == ownerID {
			delete(m.records, id)
			removed++
		}
	}
	delete(m.principals, ownerID)
	return removed, nil
}

func (m *MemoryStore) FindPrincipal(_ context.Context, id int64) (*Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.principals[id]
	if !ok {
		return nil, fmt.Errorf("find principal %d: %w", id, ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (m *MemoryStore) ListPrincipals(_ context.Context) ([]Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	principals := make([]Principal, 0, len(m.principals))
	for _, p := range m.principals {
		principals = append(principals, *p)
	}
	sort.Slice(principals, func(i, j int) bool {
		if !principals[i].CreatedAt.Equal(principals[j].CreatedAt) {
			return principals[i].CreatedAt.After(principals[j].CreatedAt)
		}
		return principals[i].ID > principals[j].ID
	})
	return principals, nil
}
