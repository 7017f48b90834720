package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/davicafu/hexashop/internal/shared/result"
)

// SelfValidator permite reglas que no caben en tags (p. ej. relaciones entre campos).
type SelfValidator interface {
	Validate() error
}

type validationBehavior struct {
	validate *validator.Validate
}

func newValidationBehavior(v *validator.Validate) *validationBehavior {
	return &validationBehavior{validate: v}
}

// Handle corta la cadena con un fallo Validation.Failed antes de llegar al handler.
func (b *validationBehavior) Handle(ctx context.Context, call *Call, next Next) (result.Outcome, error) {
	if err := b.validate.StructCtx(ctx, call.Request); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) {
			return call.Fail(result.NewError(result.CodeValidation, describe(fields))), nil
		}
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			return nil, err
		}
		// Peticiones que no son structs no llevan tags; solo aplica SelfValidator.
	}

	if sv, ok := call.Request.(SelfValidator); ok {
		if err := sv.Validate(); err != nil {
			return call.Fail(result.NewError(result.CodeValidation, err.Error())), nil
		}
	}
	return next(ctx)
}

func describe(fields validator.ValidationErrors) string {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed '%s=%s'", f.Field(), f.Tag(), f.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed '%s'", f.Field(), f.Tag()))
	}
	return strings.Join(msgs, "; ")
}
