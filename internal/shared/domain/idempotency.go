package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrIdempotencyRecordNotFound = errors.New("idempotency record not found")
	ErrDuplicateIdempotencyKey   = errors.New("duplicate idempotency key")
)

// IdempotencyRecord guarda la respuesta serializada de un comando ya ejecutado.
// Es inmutable una vez escrito.
type IdempotencyRecord struct {
	IdempotencyKey     string    `json:"idempotency_key" bson:"_id"`
	RequestName        string    `json:"request_name" bson:"request_name"`
	SerializedResponse []byte    `json:"serialized_response" bson:"serialized_response"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
}

type IdempotencyStore interface {
	// GetByKey devuelve ErrIdempotencyRecordNotFound si la clave no existe.
	GetByKey(ctx context.Context, key string) (*IdempotencyRecord, error)

	// Save devuelve ErrDuplicateIdempotencyKey si otra petición ganó la carrera.
	Save(ctx context.Context, record IdempotencyRecord) error
}
