package db

import (
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned by storage operations that address a record
// that does not exist.
var ErrNotFound = errors.New("record not found")

// IsDuplicateKey reports whether a write was refused by a unique index.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}

	if mongo.IsDuplicateKeyError(errors.Cause(err)) {
		return true
	}

	return strings.Contains(errors.Cause(err).Error(), "duplicate key")
}

// ResultsNotFound reports whether the error describes a missing record.
func ResultsNotFound(err error) bool {
	if err == nil {
		return false
	}
	cause := errors.Cause(err)
	return cause == ErrNotFound || cause == mongo.ErrNoDocuments
}

// IsDocumentLimit reports whether a write exceeded the document size
// limit.
func IsDocumentLimit(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(errors.Cause(err).Error(), "an inserted document is too large")
}
