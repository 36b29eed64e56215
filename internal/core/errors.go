package core

import "errors"

// Sentinel errors returned by Service. Callers classify with errors.Is; the
// web layer maps each to a status code and MapError maps each to a
// user-facing message.
var (
	ErrInvalidAccessLevel   = errors.New("invalid access level")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrPayloadTooLarge      = errors.New("file too large")
	ErrMalformedInput       = errors.New("malformed csv input")
	ErrSchemaMismatch       = errors.New("row does not match schema")
	ErrNoFile               = errors.New("no file provided")

	ErrNotFound       = errors.New("record not found")
	ErrForbidden      = errors.New("forbidden")
	ErrNoData         = errors.New("no data to update")
	ErrContentMissing = errors.New("record content missing")

	ErrStorageNameConflict = errors.New("storage name already in use")
	ErrStorageIO           = errors.New("storage i/o failure")

	ErrInvalidRecipient   = errors.New("invalid recipient address")
	ErrNotificationFailed = errors.New("notification failed")

	// ErrTooManyWrites is returned when every write slot stays occupied
	// for longer than the configured wait. Clients should retry shortly.
	ErrTooManyWrites = errors.New("too many concurrent writes, please try again later")
)
