package mongodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

func TestDeadLetterMapping_RoundTripThroughBSON(t *testing.T) {
	msg := domain.NewDeadLetterMessage("CreateCatalogItem", []byte(`{"name":"mug"}`), "db exploded", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	msg.MarkAsFailed(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), "replay failed")

	raw, err := bson.Marshal(toMongoDeadLetter(msg))
	require.NoError(t, err)

	var doc mongoDeadLetter
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, msg.ID.String(), doc.ID)

	got, err := fromMongoDeadLetter(doc)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, msg.Type, got.Type)
	assert.JSONEq(t, string(msg.Content), string(got.Content))
	assert.True(t, msg.OccurredAt.Equal(got.OccurredAt))
	require.NotNil(t, got.ProcessedAt)
	assert.Equal(t, "replay failed", *got.ProcessingError)
}

func TestDeadLetterMapping_PendingOmitsProcessingFields(t *testing.T) {
	msg := domain.NewDeadLetterMessage("DeleteCatalogItem", []byte(`{}`), "boom", time.Now())

	raw, err := bson.Marshal(toMongoDeadLetter(msg))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.NotContains(t, m, "processedAt")
	assert.NotContains(t, m, "processingError")
}

func TestDeadLetterMapping_InvalidID(t *testing.T) {
	_, err := fromMongoDeadLetter(mongoDeadLetter{ID: "not-a-uuid"})
	assert.Error(t, err)
}
