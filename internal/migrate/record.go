package migrate

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Status — состояние записи миграции.
// authored -> applied (терминал) или authored -> failed (терминал):
// неудачную запись не ретраим молча, её переавторят исправленной.
type Status string

const (
	StatusAuthored Status = "authored"
	StatusApplied  Status = "applied"
	StatusFailed   Status = "failed"
)

// Record — одно атомарное, обратимое изменение схемы.
// Forward и Backward — структурные инверсии: Backward[len-1-i] откатывает Forward[i].
type Record struct {
	ID          string     `yaml:"id"`
	Entity      string     `yaml:"entity"` // FQN: "module.Name"
	Description string     `yaml:"description"`
	Forward     []SchemaOp `yaml:"forward"`
	Backward    []SchemaOp `yaml:"backward"`

	Status    Status     `yaml:"-"`
	AppliedAt *time.Time `yaml:"-"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewID выдаёт монотонный ULID — лексикографический порядок id
// совпадает с порядком авторства
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// check валидирует запись после загрузки из файла
func (r *Record) check() error {
	if r.ID == "" {
		return fmt.Errorf("migration record without id")
	}
	if r.Entity == "" {
		return fmt.Errorf("migration %s: empty entity", r.ID)
	}
	if len(r.Forward) == 0 {
		return fmt.Errorf("migration %s: no forward ops", r.ID)
	}
	if len(r.Backward) != len(r.Forward) {
		return fmt.Errorf("migration %s: backward/forward length mismatch", r.ID)
	}
	for i, op := range r.Forward {
		inv := op.Invert()
		if r.Backward[len(r.Forward)-1-i] != inv {
			return fmt.Errorf("migration %s: backward[%d] is not the inverse of forward[%d]",
				r.ID, len(r.Forward)-1-i, i)
		}
	}
	return nil
}
