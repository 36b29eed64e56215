package contentstore

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidName is returned for storage names that are not safe to use as a
// single file name inside the content directory.
var ErrInvalidName = errors.New("invalid storage name")

// MaxNameLength keeps names well under common filesystem limits.
const MaxNameLength = 128

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// NewStorageName returns a name of the form upload_<unixmillis>_<8 hex>.csv.
// The random suffix keeps two uploads in the same millisecond apart.
func NewStorageName(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("upload_%d_%s.csv", now.UnixMilli(), suffix)
}

// ValidateName accepts letters, digits, dot, underscore and hyphen, with no
// leading dot. Path separators and ".." can therefore never appear.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameLength)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, name)
	case !namePattern.MatchString(name):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
