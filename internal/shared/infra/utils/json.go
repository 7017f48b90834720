package utils

import (
	"encoding/json"

	"go.uber.org/zap"
)

// UnmarshalAndHandle decodifica data como T y se lo pasa al handler. Un payload
// que no se puede decodificar se registra y se descarta: reintentarlo no lo arregla.
func UnmarshalAndHandle[T any](log *zap.Logger, data json.RawMessage, handler func(T) error) error {
	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Warn("Failed to unmarshal event data", zap.Error(err))
		return nil
	}
	return handler(evt)
}
