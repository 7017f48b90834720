// Package result modela el resultado de negocio de un comando o query:
// un éxito con valor o un fallo con código y mensaje.
package result

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Códigos de fallo transversales. Cada dominio define los suyos con el
// formato "<Entidad>.<Motivo>".
const (
	CodeValidation  = "Validation.Failed"
	CodeConcurrency = "Concurrency.Conflict"
	CodeUnavailable = "Infrastructure.Unavailable"

	// CodeKeyReused se devuelve cuando una clave de idempotencia ya usada llega
	// con otro tipo de comando.
	CodeKeyReused = "Idempotency.KeyReused"
)

// Error describe un fallo de negocio esperado. No es un error de Go:
// viaja dentro del Result y se serializa junto a él.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// None es el error vacío de un Result exitoso.
var None = Error{}

func NewError(code, message string) Error {
	return Error{Code: code, Message: message}
}

func (e Error) IsZero() bool { return e.Code == "" }

func (e Error) String() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Transient indica si el fallo puede desaparecer reintentando la misma petición.
func (e Error) Transient() bool {
	return e.Code == CodeConcurrency || e.Code == CodeUnavailable
}

// Outcome es la vista sin tipo de un Result, usada por los behaviors del pipeline.
type Outcome interface {
	IsSuccess() bool
	Failure() Error
}

// Result es una unión etiquetada: Success(value) o Failure(error).
type Result[T any] struct {
	value     T
	err       Error
	isSuccess bool
}

func Success[T any](value T) Result[T] {
	return Result[T]{value: value, isSuccess: true}
}

func Failure[T any](err Error) Result[T] {
	return Result[T]{err: err}
}

func (r Result[T]) IsSuccess() bool { return r.isSuccess }
func (r Result[T]) IsFailure() bool { return !r.isSuccess }

// Value devuelve el valor; en un fallo es el cero de T.
func (r Result[T]) Value() T { return r.value }

func (r Result[T]) Failure() Error { return r.err }

// wire es la forma persistida del Result (idempotencia y caché).
type wire[T any] struct {
	IsSuccess bool   `json:"isSuccess"`
	Value     *T     `json:"value,omitempty"`
	Error     *Error `json:"error,omitempty"`
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	w := wire[T]{IsSuccess: r.isSuccess}
	if r.isSuccess {
		v := r.value
		w.Value = &v
	} else {
		e := r.err
		w.Error = &e
	}
	return json.Marshal(w)
}

var ErrMalformed = errors.New("malformed result payload")

func (r *Result[T]) UnmarshalJSON(data []byte) error {
	var w wire[T]
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.IsSuccess {
		*r = Result[T]{isSuccess: true}
		if w.Value != nil {
			r.value = *w.Value
		}
		return nil
	}
	if w.Error == nil || w.Error.IsZero() {
		return ErrMalformed
	}
	*r = Result[T]{err: *w.Error}
	return nil
}

// Verificación estática
var _ Outcome = Result[struct{}]{}
