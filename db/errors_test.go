package db

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestWriteErrorClassification(t *testing.T) {
	duplicate := mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: "E11000 duplicate key error collection: slither.widgets index: name_1",
	}}}
	tooLarge := errors.New("an inserted document is too large")

	assert.True(t, IsDuplicateKey(duplicate))
	assert.True(t, IsDuplicateKey(errors.Wrap(duplicate, "creating record")))
	assert.False(t, IsDuplicateKey(tooLarge))
	assert.False(t, IsDuplicateKey(nil))

	assert.True(t, IsDocumentLimit(errors.Wrap(tooLarge, "updating record")))
	assert.False(t, IsDocumentLimit(duplicate))
	assert.False(t, IsDocumentLimit(nil))
}

func TestResultsNotFound(t *testing.T) {
	assert.True(t, ResultsNotFound(ErrNotFound))
	assert.True(t, ResultsNotFound(errors.Wrap(mongo.ErrNoDocuments, "finding")))
	assert.False(t, ResultsNotFound(errors.New("connection reset")))
	assert.False(t, ResultsNotFound(nil))
}
