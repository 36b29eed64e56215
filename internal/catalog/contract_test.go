package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/csvshare/internal/access"
)

// seedFunc registers a principal with the store under test and returns its id.
type seedFunc func(t *testing.T, name, email string, admin bool) int64

// runStoreContract exercises behavior every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) (Store, seedFunc)) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create and find", func(t *testing.T) {
		s, seed := newStore(t)
		owner := seed(t, "Ada", "ada@example.com", false)

		rec, err := s.Create(ctx, NewRecord{
			StorageName:  "upload_1.csv",
			OriginalName: "ads.csv",
			SizeBytes:    42,
			OwnerUserID:  owner,
			AccessLevel:  access.LevelRestricted,
			At:           base,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if rec.ID == 0 {
			t.Error("Create() returned zero id")
		}
		if !rec.UploadedAt.Equal(base) || !rec.UpdatedAt.Equal(base) {
			t.Errorf("timestamps = %v/%v, want %v", rec.UploadedAt, rec.UpdatedAt, base)
		}
		if rec.OwnerUserID == nil || *rec.OwnerUserID != owner {
			t.Errorf("OwnerUserID = %v, want %d", rec.OwnerUserID, owner)
		}

		byID, err := s.FindByID(ctx, rec.ID)
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if byID.StorageName != "upload_1.csv" || byID.AccessLevel != access.LevelRestricted {
			t.Errorf("FindByID() = %+v", byID)
		}

		byName, err := s.FindByStorageNameAndOwner(ctx, "upload_1.csv", owner)
		if err != nil {
			t.Fatalf("FindByStorageNameAndOwner() error = %v", err)
		}
		if byName.ID != rec.ID {
			t.Errorf("FindByStorageNameAndOwner() id = %d, want %d", byName.ID, rec.ID)
		}

		if _, err := s.FindByStorageNameAndOwner(ctx, "upload_1.csv", owner+1000); !errors.Is(err, ErrNotFound) {
			t.Errorf("lookup for other owner error = %v, want ErrNotFound", err)
		}
	})

	t.Run("missing ids", func(t *testing.T) {
		s, _ := newStore(t)
		if _, err := s.FindByID(ctx, 999999); !errors.Is(err, ErrNotFound) {
			t.Errorf("FindByID() error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, 999999); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete() error = %v, want ErrNotFound", err)
		}
		if err := s.UpdateAccessLevel(ctx, 999999, access.LevelEditor); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateAccessLevel() error = %v, want ErrNotFound", err)
		}
		if err := s.TouchUpdatedAt(ctx, 999999, 1, base); !errors.Is(err, ErrNotFound) {
			t.Errorf("TouchUpdatedAt() error = %v, want ErrNotFound", err)
		}
		if _, err := s.FindPrincipal(ctx, 999999); !errors.Is(err, ErrNotFound) {
			t.Errorf("FindPrincipal() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("duplicate storage name conflicts", func(t *testing.T) {
		s, seed := newStore(t)
		a := seed(t, "A", "a@example.com", false)
		b := seed(t, "B", "b@example.com", false)

		nr := NewRecord{StorageName: "dup.csv", OriginalName: "x.csv", OwnerUserID: a, AccessLevel: access.LevelViewer, At: base}
		if _, err := s.Create(ctx, nr); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Create(ctx, nr); !errors.Is(err, ErrConflict) {
			t.Errorf("second Create() same owner error = %v, want ErrConflict", err)
		}
		nr.OwnerUserID = b
		if _, err := s.Create(ctx, nr); !errors.Is(err, ErrConflict) {
			t.Errorf("second Create() other owner error = %v, want ErrConflict", err)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		s, seed := newStore(t)
		owner := seed(t, "L", "l@example.com", false)
		other := seed(t, "O", "o@example.com", false)

		for i, name := range []string{"old.csv", "mid.csv", "new.csv"} {
			_, err := s.Create(ctx, NewRecord{
				StorageName: name, OriginalName: name, OwnerUserID: owner,
				AccessLevel: access.LevelRestricted, At: base.Add(time.Duration(i) * time.Hour),
			})
			if err != nil {
				t.Fatal(err)
			}
		}
		if _, err := s.Create(ctx, NewRecord{StorageName: "theirs.csv", OriginalName: "t", OwnerUserID: other, AccessLevel: access.LevelEditor, At: base}); err != nil {
			t.Fatal(err)
		}

		list, err := s.ListByOwner(ctx, owner)
		if err != nil {
			t.Fatalf("ListByOwner() error = %v", err)
		}
		got := make([]string, len(list))
		for i, r := range list {
			got[i] = r.StorageName
		}
		want := []string{"new.csv", "mid.csv", "old.csv"}
		if len(got) != len(want) {
			t.Fatalf("ListByOwner() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("ListByOwner()[%d] = %s, want %s", i, got[i], want[i])
			}
		}

		empty, err := s.ListByOwner(ctx, owner+1000)
		if err != nil {
			t.Fatal(err)
		}
		if empty == nil || len(empty) != 0 {
			t.Errorf("ListByOwner(unknown) = %v, want empty non-nil slice", empty)
		}
	})

	t.Run("mutations", func(t *testing.T) {
		s, seed := newStore(t)
		owner := seed(t, "M", "m@example.com", false)
		rec, err := s.Create(ctx, NewRecord{StorageName: "m.csv", OriginalName: "m.csv", SizeBytes: 10, OwnerUserID: owner, AccessLevel: access.LevelRestricted, At: base})
		if err != nil {
			t.Fatal(err)
		}

		if err := s.UpdateAccessLevel(ctx, rec.ID, access.LevelEditor); err != nil {
			t.Fatalf("UpdateAccessLevel() error = %v", err)
		}
		later := base.Add(time.Minute)
		if err := s.TouchUpdatedAt(ctx, rec.ID, 99, later); err != nil {
			t.Fatalf("TouchUpdatedAt() error = %v", err)
		}

		got, err := s.FindByID(ctx, rec.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.AccessLevel != access.LevelEditor {
			t.Errorf("AccessLevel = %s, want editor", got.AccessLevel)
		}
		if got.SizeBytes != 99 || !got.UpdatedAt.Equal(later) {
			t.Errorf("after touch size=%d updated=%v", got.SizeBytes, got.UpdatedAt)
		}
		if !got.UploadedAt.Equal(base) {
			t.Errorf("UploadedAt changed to %v", got.UploadedAt)
		}

		evenLater := later.Add(time.Minute)
		re, err := s.ApplyReupload(ctx, rec.ID, Reupload{OriginalName: "renamed.csv", SizeBytes: 7, AccessLevel: access.LevelViewer, At: evenLater})
		if err != nil {
			t.Fatalf("ApplyReupload() error = %v", err)
		}
		if re.OriginalName != "renamed.csv" || re.SizeBytes != 7 || re.AccessLevel != access.LevelViewer || !re.UpdatedAt.Equal(evenLater) {
			t.Errorf("ApplyReupload() = %+v", re)
		}
		if re.StorageName != "m.csv" || !re.UploadedAt.Equal(base) {
			t.Errorf("ApplyReupload() changed immutable fields: %+v", re)
		}

		if err := s.Delete(ctx, rec.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := s.FindByID(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("FindByID() after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("purge owner", func(t *testing.T) {
		s, seed := newStore(t)
		victim := seed(t, "V", "v@example.com", false)
		keeper := seed(t, "K", "k@example.com", true)

		for _, name := range []string{"v1.csv", "v2.csv"} {
			if _, err := s.Create(ctx, NewRecord{StorageName: name, OriginalName: name, OwnerUserID: victim, AccessLevel: access.LevelRestricted, At: base}); err != nil {
				t.Fatal(err)
			}
		}
		kept, err := s.Create(ctx, NewRecord{StorageName: "k.csv", OriginalName: "k.csv", OwnerUserID: keeper, AccessLevel: access.LevelRestricted, At: base})
		if err != nil {
			t.Fatal(err)
		}

		n, err := s.PurgeOwner(ctx, victim)
		if err != nil {
			t.Fatalf("PurgeOwner() error = %v", err)
		}
		if n != 2 {
			t.Errorf("PurgeOwner() removed %d, want 2", n)
		}
		if _, err := s.FindPrincipal(ctx, victim); !errors.Is(err, ErrNotFound) {
			t.Errorf("principal still present: %v", err)
		}
		if _, err := s.FindByID(ctx, kept.ID); err != nil {
			t.Errorf("other owner's record removed: %v", err)
		}
		if _, err := s.PurgeOwner(ctx, victim); !errors.Is(err, ErrNotFound) {
			t.Errorf("second PurgeOwner() error = %v, want ErrNotFound", err)
		}

		principals, err := s.ListPrincipals(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(principals) != 1 || principals[0].ID != keeper || !principals[0].IsAdmin {
			t.Errorf("ListPrincipals() = %+v", principals)
		}
	})
}
