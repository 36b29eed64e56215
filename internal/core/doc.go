// Package core provides the record store and sharing business logic.
//
// The package is independent of any transport. A [Service] composes:
//
//   - a catalog.Store holding record metadata and principals,
//   - a [ContentStore] holding each record's raw CSV bytes,
//   - a mail.Sender for share notifications.
//
// # Records
//
// A record is one uploaded CSV file. Its header line is its schema, fixed at
// upload. [Service.Update] replaces the single logical row of a record while
// keeping that header line, reconciling payload keys written with spaces or
// underscores, and stamping an update_date column.
//
// # Content and catalog
//
// There is no transaction spanning the filesystem and the database. Writes go
// to the content store first and the catalog second; a catalog failure after
// a successful write is logged for cleanup instead of rolled back. Deletes
// also remove content first, so a catalog row never points at content that
// was deliberately removed.
//
// # Access
//
// Every operation on an existing record is gated by access.CanAccess using
// the record's level and owner. Owners may do anything; non-owners are
// limited by the level, and never delete or change access.
//
// # Error Handling
//
// Operations return errors wrapping the sentinels in errors.go. [MapError]
// turns them into user-facing messages with support codes.
package core
