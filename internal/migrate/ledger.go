package migrate

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// Store — адаптер хранилища. Ядро само сырых запросов не делает.
type Store interface {
	// ExecSchemaOp исполняет одну операцию над живой схемой
	ExecSchemaOp(ctx context.Context, entity string, op SchemaOp) error
	// ReadLiveSchema отдаёт текущую форму живой схемы
	ReadLiveSchema(ctx context.Context) (Shape, error)
	// RecordApplied пишет строку в таблицу-леджер {id, description, applied_at}
	RecordApplied(ctx context.Context, id, description string, at time.Time) error
	// AppliedIDs возвращает id применённых записей в порядке применения
	AppliedIDs(ctx context.Context) ([]string, error)
}

// MigrationError — сбой применения на операции OpIndex.
// Применённый префикс записи к этому моменту откатан.
type MigrationError struct {
	OpIndex int
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration failed at op %d: %v", e.OpIndex, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// SchemaDriftError — расхождение между леджером и живой схемой.
// Фатально: с дрейфанувшей схемой работать нельзя.
type SchemaDriftError struct {
	Expected Shape
	Actual   Shape
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("schema drift: ledger replay yields %d entities, live schema has %d (shapes differ)",
		len(e.Expected.nonEmpty()), len(e.Actual.nonEmpty()))
}

// Ledger — упорядоченный журнал записей миграций над одним store.
// Apply сериализован мьютексом: две конкурентные миграции по одному
// хранилищу перемежаться не должны (§ корректность tracked-схемы).
type Ledger struct {
	mu      sync.Mutex
	store   Store
	records []*Record // все известные записи в порядке id
}

// NewLedger строит леджер по известным записям (обычно из migrations/ на диске)
// и помечает применённые по данным store.
func NewLedger(ctx context.Context, store Store, records []*Record) (*Ledger, error) {
	applied, err := store.AppliedIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	appliedSet := make(map[string]struct{}, len(applied))
	for _, id := range applied {
		appliedSet[id] = struct{}{}
	}

	sorted := make([]*Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, r := range sorted {
		if r.Status == "" {
			r.Status = StatusAuthored
		}
		if _, ok := appliedSet[r.ID]; ok {
			r.Status = StatusApplied
		}
	}
	return &Ledger{store: store, records: sorted}, nil
}

// Records — снэпшот всех записей в порядке id
func (l *Ledger) Records() []*Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Record, len(l.records))
	copy(out, l.records)
	return out
}

// Pending — авторские, ещё не применённые записи
func (l *Ledger) Pending() []*Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*Record
	for _, r := range l.records {
		if r.Status == StatusAuthored {
			out = append(out, r)
		}
	}
	return out
}

// Apply исполняет forward-операции записи по порядку.
// Сбой на операции i: уже применённые [0..i) откатываются инверсиями
// в обратном порядке, запись помечается failed и в леджер НЕ попадает.
// Отмена контекста обрабатывается как сбой (pre-apply состояние сохраняется).
func (l *Ledger) Apply(ctx context.Context, rec *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.applyLocked(ctx, rec)
}

func (l *Ledger) applyLocked(ctx context.Context, rec *Record) error {
	switch rec.Status {
	case StatusApplied:
		return fmt.Errorf("migration %s already applied", rec.ID)
	case StatusFailed:
		return fmt.Errorf("migration %s failed earlier; author a corrected record instead of retrying", rec.ID)
	}
	if err := rec.check(); err != nil {
		return err
	}

	for i, op := range rec.Forward {
		if err := ctx.Err(); err != nil {
			l.rollbackPrefix(rec, i)
			rec.Status = StatusFailed
			return &MigrationError{OpIndex: i, Err: err}
		}
		if err := l.store.ExecSchemaOp(ctx, rec.Entity, op); err != nil {
			l.rollbackPrefix(rec, i)
			rec.Status = StatusFailed
			return &MigrationError{OpIndex: i, Err: err}
		}
	}

	now := time.Now().UTC()
	if err := l.store.RecordApplied(ctx, rec.ID, rec.Description, now); err != nil {
		l.rollbackPrefix(rec, len(rec.Forward))
		rec.Status = StatusFailed
		return &MigrationError{OpIndex: len(rec.Forward), Err: err}
	}

	rec.Status = StatusApplied
	rec.AppliedAt = &now
	l.ensureKnown(rec)
	return nil
}

// rollbackPrefix откатывает применённый префикс [0..n) записью Backward:
// Backward[len-1-i] — инверсия Forward[i], идём в обратном порядке.
// Откат best-effort: если и он падает, остаток поймает Verify как drift.
func (l *Ledger) rollbackPrefix(rec *Record, n int) {
	// исходный контекст мог быть отменён — откат идёт на свежем
	ctx := context.Background()
	last := len(rec.Forward) - 1
	for i := n - 1; i >= 0; i-- {
		inv := rec.Backward[last-i]
		if err := l.store.ExecSchemaOp(ctx, rec.Entity, inv); err != nil {
			log.Printf("rollback of %s op %d failed: %v (verify will flag the drift)", rec.ID, i, err)
		}
	}
}

// ApplyPending применяет авторские записи в порядке id.
// Останавливается на первом сбое; возвращает число применённых.
func (l *Ledger) ApplyPending(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	applied := 0
	for _, r := range l.records {
		if r.Status != StatusAuthored {
			continue
		}
		if err := l.applyLocked(ctx, r); err != nil {
			return applied, fmt.Errorf("migration %s: %w", r.ID, err)
		}
		applied++
	}
	return applied, nil
}

// Verify реплеит кумулятивный эффект применённых записей с пустой формы
// и сравнивает с живой схемой. Чистое чтение, идемпотентно.
func (l *Ledger) Verify(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	expected := Shape{}
	for _, r := range l.records {
		if r.Status != StatusApplied {
			continue
		}
		for _, op := range r.Forward {
			if err := expected.Apply(r.Entity, op); err != nil {
				return fmt.Errorf("ledger replay: migration %s: %w", r.ID, err)
			}
		}
	}

	actual, err := l.store.ReadLiveSchema(ctx)
	if err != nil {
		return fmt.Errorf("read live schema: %w", err)
	}

	if !expected.Equal(actual) {
		return &SchemaDriftError{Expected: expected, Actual: actual}
	}
	return nil
}

// ReplayShape — форма схемы по применённым записям (без чтения store)
func (l *Ledger) ReplayShape() (Shape, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replayLocked(false)
}

// ProjectedShape — форма после применения ВСЕХ неупавших записей,
// включая pending. База для планирования новых миграций: дважды
// спланированный дифф не должен авторить дубликаты.
func (l *Ledger) ProjectedShape() (Shape, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replayLocked(true)
}

func (l *Ledger) replayLocked(includePending bool) (Shape, error) {
	shape := Shape{}
	for _, r := range l.records {
		if r.Status != StatusApplied && !(includePending && r.Status == StatusAuthored) {
			continue
		}
		for _, op := range r.Forward {
			if err := shape.Apply(r.Entity, op); err != nil {
				return nil, fmt.Errorf("ledger replay: migration %s: %w", r.ID, err)
			}
		}
	}
	return shape, nil
}

func (l *Ledger) ensureKnown(rec *Record) {
	for _, r := range l.records {
		if r.ID == rec.ID {
			return
		}
	}
	l.records = append(l.records, rec)
	sort.Slice(l.records, func(i, j int) bool { return l.records[i].ID < l.records[j].ID })
}

// Author добавляет свежеавторизованную запись в ведение леджера (без применения)
func (l *Ledger) Author(rec *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := rec.check(); err != nil {
		return err
	}
	for _, r := range l.records {
		if r.ID == rec.ID {
			return fmt.Errorf("migration %s already known", rec.ID)
		}
	}
	rec.Status = StatusAuthored
	l.ensureKnown(rec)
	return nil
}
