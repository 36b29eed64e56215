// Package access decides whether a principal may act on a stored record.
//
// Every record carries a general access level chosen by its owner:
//
//   - restricted: only the owner may read or edit (the default)
//   - viewer:     anyone may read, only the owner may edit
//   - editor:     anyone may read and edit
//
// Deleting a record and changing its access level are always owner-only,
// whatever the level says. The evaluator is a pure function; callers load
// the record from the catalog and pass its level and owner in.
package access

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLevel is returned by ParseLevel for values outside the three levels.
var ErrInvalidLevel = errors.New("invalid access level")

// Level is a record's general access level.
type Level string

const (
	LevelViewer     Level = "viewer"
	LevelEditor     Level = "editor"
	LevelRestricted Level = "restricted"
)

// DefaultLevel is applied when an upload does not request a level.
const DefaultLevel = LevelRestricted

// Levels lists every valid level in display order.
func Levels() []Level {
	return []Level{LevelViewer, LevelEditor, LevelRestricted}
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelViewer, LevelEditor, LevelRestricted:
		return true
	}
	return false
}

// ParseLevel converts a request value to a Level.
// An empty value yields DefaultLevel. Matching is exact after trimming, so
// "Editor" is rejected the same way the upload form would reject it.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLevel, nil
	}
	l := Level(s)
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q, want one of %v", ErrInvalidLevel, s, Levels())
	}
	return l, nil
}

// Operation is an action a caller wants to perform on a record.
type Operation string

const (
	OpRead         Operation = "read"
	OpEdit         Operation = "edit"
	OpDelete       Operation = "delete"
	OpChangeAccess Operation = "changeAccess"
)

// Decision is the evaluator's verdict.
type Decision bool

const (
	Allow Decision = true
	Deny  Decision = false
)

// Allowed reports whether the decision permits the operation.
func (d Decision) Allowed() bool { return bool(d) }

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

// IsOwner reports whether callerID owns a record with the given owner.
// A nil owner (the owning principal was deleted) is owned by nobody.
func IsOwner(callerID int64, ownerID *int64) bool {
	return ownerID != nil && *ownerID == callerID
}

// CanAccess evaluates the sharing rules in order:
//
//  1. the owner may do anything
//  2. changeAccess is owner-only
//  3. delete is owner-only
//  4. restricted denies read and edit to non-owners
//  5. editor allows read and edit to anyone
//  6. viewer allows read and denies edit to non-owners
//
// Unknown levels and operations are denied.
func CanAccess(level Level, callerID int64, ownerID *int64, op Operation) Decision {
	if IsOwner(callerID, ownerID) {
		return Allow
	}

	// Orphaned records are only reachable through administrative tooling.
	if ownerID == nil {
		return Deny
	}

	switch op {
	case OpChangeAccess, OpDelete:
		return Deny
	case OpRead, OpEdit:
	default:
		return Deny
	}

	switch level {
	case LevelEditor:
		return Allow
	case LevelViewer:
		return Decision(op == OpRead)
	default:
		return Deny
	}
}
