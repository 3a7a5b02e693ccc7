package migrate

import (
	"context"
	"sync"
	"time"
)

// AppliedRow — строка леджер-таблицы
type AppliedRow struct {
	ID          string
	Description string
	AppliedAt   time.Time
}

// MemStore — хранилище схемы в памяти. Рабочий режим без Postgres
// (пустой db-url) и инструмент для тестов: FailOn инъецирует сбой операции.
type MemStore struct {
	mu      sync.Mutex
	shape   Shape
	applied []AppliedRow

	// FailOn, если задан, вызывается перед каждой операцией;
	// ненулевая ошибка имитирует сбой store
	FailOn func(entity string, op SchemaOp) error
}

func NewMemStore() *MemStore {
	return &MemStore{shape: Shape{}}
}

func (s *MemStore) ExecSchemaOp(ctx context.Context, entity string, op SchemaOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOn != nil {
		if err := s.FailOn(entity, op); err != nil {
			return err
		}
	}
	return s.shape.Apply(entity, op)
}

func (s *MemStore) ReadLiveSchema(ctx context.Context) (Shape, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shape.Clone(), nil
}

func (s *MemStore) RecordApplied(ctx context.Context, id, description string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, AppliedRow{ID: id, Description: description, AppliedAt: at})
	return nil
}

func (s *MemStore) AppliedIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.applied))
	for i, row := range s.applied {
		out[i] = row.ID
	}
	return out, nil
}

// Rows — снэпшот леджер-таблицы (для status-ручек)
func (s *MemStore) Rows() []AppliedRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AppliedRow, len(s.applied))
	copy(out, s.applied)
	return out
}
