package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

// DeadLetterStore guarda los dead letters en la colección dead_letters.
type DeadLetterStore struct {
	coll *mongo.Collection
}

func NewDeadLetterStore(ctx context.Context, client *mongo.Client, dbName string) (*DeadLetterStore, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	return &DeadLetterStore{coll: client.Database(dbName).Collection("dead_letters")}, nil
}

// --- Structs de BSON para el mapeo ---
// El id se guarda como string para que sea legible desde la shell de Mongo.

type mongoDeadLetter struct {
	ID              string     `bson:"_id"`
	Type            string     `bson:"type"`
	Content         string     `bson:"content"`
	Error           string     `bson:"error"`
	OccurredAt      time.Time  `bson:"occurredAt"`
	ProcessedAt     *time.Time `bson:"processedAt,omitempty"`
	ProcessingError *string    `bson:"processingError,omitempty"`
}

func (s *DeadLetterStore) Append(ctx context.Context, msg domain.DeadLetterMessage) error {
	if _, err := s.coll.InsertOne(ctx, toMongoDeadLetter(msg)); err != nil {
		return fmt.Errorf("append dead letter: %w", err)
	}
	return nil
}

// ListPending devuelve los dead letters sin procesar, los más antiguos primero.
func (s *DeadLetterStore) ListPending(ctx context.Context, limit int) ([]domain.DeadLetterMessage, error) {
	filter := bson.M{"processedAt": bson.M{"$exists": false}}
	opts := options.Find().SetSort(bson.D{{Key: "occurredAt", Value: 1}}).SetLimit(int64(limit))

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []domain.DeadLetterMessage
	for cursor.Next(ctx) {
		var doc mongoDeadLetter
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		msg, err := fromMongoDeadLetter(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, cursor.Err()
}

func toMongoDeadLetter(msg domain.DeadLetterMessage) mongoDeadLetter {
	return mongoDeadLetter{
		ID:              msg.ID.String(),
		Type:            msg.Type,
		Content:         string(msg.Content),
		Error:           msg.Error,
		OccurredAt:      msg.OccurredAt.UTC(),
		ProcessedAt:     msg.ProcessedAt,
		ProcessingError: msg.ProcessingError,
	}
}

func fromMongoDeadLetter(doc mongoDeadLetter) (domain.DeadLetterMessage, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return domain.DeadLetterMessage{}, fmt.Errorf("invalid UUID in dead letter: %w", err)
	}
	return domain.DeadLetterMessage{
		ID:              id,
		Type:            doc.Type,
		Content:         []byte(doc.Content),
		Error:           doc.Error,
		OccurredAt:      doc.OccurredAt,
		ProcessedAt:     doc.ProcessedAt,
		ProcessingError: doc.ProcessingError,
	}, nil
}

var _ domain.DeadLetterStore = (*DeadLetterStore)(nil)
