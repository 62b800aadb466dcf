package storage

import "errors"

var (
	ErrNotFound          = errors.New("object not found")
	ErrKeyExists         = errors.New("key already exists in the collection")
	ErrConstraint        = errors.New("unique index constraint violated")
	ErrReadOnly          = errors.New("write attempted in a read-only transaction")
	ErrNotInScope        = errors.New("collection is not part of the transaction scope")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownIndex      = errors.New("unknown index")
	ErrInvalidKey        = errors.New("value cannot be used as an index key")
	ErrInvalidSchema     = errors.New("invalid schema declaration")

	// Versioning failures. A running instance cannot recover from these on
	// its own; the remedy is a backup followed by Reset.
	ErrVersionDowngrade     = errors.New("stored schema version is newer than this build")
	ErrSchemaMismatch       = errors.New("stored schema does not match the declared schema")
	ErrUpgradeRequiresReset = errors.New("schema upgrade is breaking and destructive upgrades are disabled")
)
