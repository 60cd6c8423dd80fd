package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMergeFilters(t *testing.T) {
	t.Run("ListLimitsAllowAnyListedValue", func(t *testing.T) {
		merged := MergeFilters(bson.M{"name": "w1"}, bson.M{"site": []string{"a", "b"}, "tags": bson.A{"x"}})
		assert.Equal(t, bson.M{
			"name": "w1",
			"site": bson.M{"$in": []any{"a", "b"}},
			"tags": bson.M{"$in": []any{"x"}},
		}, merged)

		merged = MergeFilters(bson.M{"site": "a"}, bson.M{"site": []any{"a", "b"}})
		assert.Equal(t, bson.M{"$and": []any{bson.M{"site": "a"}, bson.M{"site": bson.M{"$in": []any{"a", "b"}}}}}, merged)
	})
	t.Run("DisjointFieldsAreUnioned", func(t *testing.T) {
		query := bson.M{"name": "w1"}
		limits := bson.M{"site": "s1"}

		merged := MergeFilters(query, limits)
		assert.Equal(t, bson.M{"name": "w1", "site": "s1"}, merged)
		assert.Equal(t, bson.M{"name": "w1"}, query)
		assert.Equal(t, bson.M{"site": "s1"}, limits)
	})
	t.Run("SharedFieldIsConjoined", func(t *testing.T) {
		merged := MergeFilters(bson.M{"site": "s2", "name": "w1"}, bson.M{"site": "s1"})
		assert.Equal(t, bson.M{
			"name": "w1",
			"$and": []any{bson.M{"site": "s2"}, bson.M{"site": "s1"}},
		}, merged)
	})
	t.Run("SharedFieldAppendsToExistingConjunction", func(t *testing.T) {
		merged := MergeFilters(
			bson.M{"site": "s2", "$and": []any{bson.M{"a": 1}}},
			bson.M{"site": "s1"},
		)
		assert.Equal(t, []any{bson.M{"a": 1}, bson.M{"site": "s2"}, bson.M{"site": "s1"}}, merged["$and"])
		assert.NotContains(t, merged, "site")
	})
	t.Run("ConjunctionsAreConcatenated", func(t *testing.T) {
		merged := MergeFilters(
			bson.M{"$and": bson.A{bson.M{"a": 1}}},
			bson.M{"$and": []bson.M{{"b": 2}}},
		)
		assert.Equal(t, []any{bson.M{"a": 1}, bson.M{"b": 2}}, merged["$and"])
	})
	t.Run("EmptyInputs", func(t *testing.T) {
		assert.Equal(t, bson.M{}, MergeFilters(nil, nil))
		assert.Equal(t, bson.M{"a": 1}, MergeFilters(nil, bson.M{"a": 1}))
		assert.Equal(t, bson.M{"a": 1}, MergeFilters(bson.M{"a": 1}, nil))
	})
	t.Run("IsCommutativeForDisjointFields", func(t *testing.T) {
		a := bson.M{"x": 1}
		b := bson.M{"y": 2}
		assert.Equal(t, MergeFilters(a, b), MergeFilters(b, a))
	})
}

func TestIDFilter(t *testing.T) {
	oid := primitive.NewObjectID()
	filter, err := IDFilter(oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, bson.M{"_id": oid}, filter)

	_, err = IDFilter("not-an-id")
	assert.Error(t, err)
}

func TestIsObjectIDHex(t *testing.T) {
	assert.True(t, IsObjectIDHex(primitive.NewObjectID().Hex()))
	assert.False(t, IsObjectIDHex("w1"))
	assert.False(t, IsObjectIDHex("5F2B7C1D9E8A7B6C5D4E3F21"))
	assert.False(t, IsObjectIDHex("5f2b7c1d9e8a7b6c5d4e3f2"))
}

func TestProjection(t *testing.T) {
	assert.Equal(t, bson.M{}, Projection(nil, nil))
	assert.Equal(t, bson.M{"name": 1, "size": 1}, Projection([]string{"name", "size"}, []string{"secret"}))
	assert.Equal(t, bson.M{"secret": 0}, Projection(nil, []string{"secret"}))
}

func TestSortDocument(t *testing.T) {
	assert.Nil(t, SortDocument(nil))
	assert.Equal(t, bson.D{{Key: "name", Value: 1}, {Key: "size", Value: -1}}, SortDocument([]SortField{
		{Key: "name", Ascending: true},
		{Key: "size"},
	}))
}

func TestUpdateDocument(t *testing.T) {
	previous := bson.M{"_id": primitive.NewObjectID(), "name": "w1", "size": 3, "color": "red"}

	t.Run("PartialSetsOnlyChangedFields", func(t *testing.T) {
		update := UpdateDocument(bson.M{"size": 4, "color": nil}, previous, false)
		assert.Equal(t, bson.M{"$set": bson.M{"size": 4}}, update)
	})
	t.Run("FullReplaceUnsetsDroppedFields", func(t *testing.T) {
		update := UpdateDocument(bson.M{"name": "w2"}, previous, true)
		assert.Equal(t, bson.M{
			"$set":   bson.M{"name": "w2"},
			"$unset": bson.M{"size": "", "color": ""},
		}, update)
	})
	t.Run("IdentifierIsNeverWritten", func(t *testing.T) {
		update := UpdateDocument(bson.M{"_id": "other", "name": "w1", "size": 3, "color": "red"}, previous, true)
		assert.Equal(t, bson.M{"$set": bson.M{"name": "w1", "size": 3, "color": "red"}}, update)
	})
	t.Run("EmptyPartialUpdate", func(t *testing.T) {
		assert.Empty(t, UpdateDocument(bson.M{}, previous, false))
	})
}
