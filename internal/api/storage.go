package api

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"letopis/internal/dsl"

	"github.com/oklog/ulid/v2"
)

type Record struct {
	ID        string         `json:"id"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Data      map[string]any `json:"data"`
}

// Storage — схемы и записи в памяти. Записи существуют, чтобы у движка
// валидации были обе точки вызова: перед create-persist и перед update-persist.
type Storage struct {
	mu      sync.RWMutex
	Schemas map[string]*dsl.Entity        // FQN ("module.Name") -> схема
	Data    map[string]map[string]*Record // FQN -> id -> запись
	entropy io.Reader
}

// NewStorage наполняет схемы и готов к работе
func NewStorage(entities map[string]*dsl.Entity) *Storage {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := &Storage{
		Schemas: make(map[string]*dsl.Entity, len(entities)),
		Data:    make(map[string]map[string]*Record),
		entropy: ulid.Monotonic(src, 0),
	}
	for fqn, e := range entities {
		s.Schemas[fqn] = e
	}
	return s
}

func (s *Storage) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Schema возвращает сущность по FQN под read-lock
func (s *Storage) Schema(fqn string) (*dsl.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.Schemas[fqn]
	return e, ok
}

// ReplaceSchemas атомарно подменяет набор схем (admin reload)
func (s *Storage) ReplaceSchemas(entities map[string]*dsl.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Schemas = entities
}

// SnapshotSchemas — копия карты схем под read-lock
func (s *Storage) SnapshotSchemas() map[string]*dsl.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*dsl.Entity, len(s.Schemas))
	for k, v := range s.Schemas {
		out[k] = v
	}
	return out
}
