package filesystem

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/davicafu/hexashop/internal/shared/domain"
)

// JSONLDeadLetterStore es un adaptador outbound que añade cada dead letter como una
// línea JSON al final de un fichero. Pensado para entornos sin base de datos.
type JSONLDeadLetterStore struct {
	filePath string
	mu       sync.Mutex // serializa las escrituras de este proceso
}

func NewJSONLDeadLetterStore(filePath string) *JSONLDeadLetterStore {
	return &JSONLDeadLetterStore{filePath: filePath}
}

// Append crea el fichero si no existe.
func (s *JSONLDeadLetterStore) Append(ctx context.Context, msg domain.DeadLetterMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open dead letter file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("write dead letter: %w", err)
	}
	return f.Close()
}

// GetAll lee todos los dead letters del fichero. Un fichero inexistente equivale a vacío.
func (s *JSONLDeadLetterStore) GetAll(ctx context.Context) ([]domain.DeadLetterMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.DeadLetterMessage{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []domain.DeadLetterMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var msg domain.DeadLetterMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return nil, fmt.Errorf("corrupt dead letter line: %w", err)
		}
		out = append(out, msg)
	}
	return out, scanner.Err()
}

var _ domain.DeadLetterStore = (*JSONLDeadLetterStore)(nil)
