package migrate

import (
	"sort"
	"strings"

	"letopis/internal/dsl"
)

// ColumnsOf проецирует сущность в набор колонок (семантические типы)
func ColumnsOf(e *dsl.Entity) []Column {
	cols := make([]Column, 0, len(e.Fields))
	for _, f := range e.Fields {
		cols = append(cols, Column{Name: f.Name, Type: f.Type, Nullable: f.Nullable})
	}
	return cols
}

// Diff вычисляет минимальную последовательность операций, переводящую
// набор колонок old в набор new. Возвращает nil, если изменений нет.
//
// Порядок: сначала add, потом alter, потом drop — чтобы не проходить через
// транзиентно-невалидные состояния в движках с жадной проверкой.
// Внутри одного вида — порядок объявления полей (add/alter по new, drop по old).
// Backward — инверсии в обратном порядке: Backward[len-1-i] откатывает Forward[i].
func Diff(old, new *dsl.Entity, description string) *Record {
	return DiffColumns(new.FQN(), ColumnsOf(old), ColumnsOf(new), description)
}

// DiffColumns — то же на уровне колонок (old может прийти из live-схемы)
func DiffColumns(entity string, old, new []Column, description string) *Record {
	oldBy := make(map[string]Column, len(old))
	for _, c := range old {
		oldBy[strings.ToLower(c.Name)] = c
	}
	newBy := make(map[string]Column, len(new))
	for _, c := range new {
		newBy[strings.ToLower(c.Name)] = c
	}

	var fwd []SchemaOp

	// фаза 1: add — поля, которых не было
	for _, c := range new {
		if _, ok := oldBy[strings.ToLower(c.Name)]; !ok {
			fwd = append(fwd, SchemaOp{Kind: OpAddColumn, Column: c.Name, Type: c.Type, Nullable: c.Nullable})
		}
	}

	// фаза 2: alter — сменился тип или nullable
	for _, c := range new {
		prev, ok := oldBy[strings.ToLower(c.Name)]
		if !ok {
			continue
		}
		if prev.Type != c.Type || prev.Nullable != c.Nullable {
			fwd = append(fwd, SchemaOp{
				Kind: OpAlterColumn, Column: c.Name,
				Type: c.Type, Nullable: c.Nullable,
				FromType: prev.Type, FromNullable: prev.Nullable,
			})
		}
	}

	// фаза 3: drop — поля, которых больше нет (с прежним типом для инверсии)
	for _, c := range old {
		if _, ok := newBy[strings.ToLower(c.Name)]; !ok {
			fwd = append(fwd, SchemaOp{Kind: OpDropColumn, Column: c.Name, Type: c.Type, Nullable: c.Nullable})
		}
	}

	if len(fwd) == 0 {
		return nil
	}

	bwd := make([]SchemaOp, len(fwd))
	for i, op := range fwd {
		bwd[len(fwd)-1-i] = op.Invert()
	}

	return &Record{
		ID:          NewID(),
		Entity:      entity,
		Description: description,
		Forward:     fwd,
		Backward:    bwd,
		Status:      StatusAuthored,
	}
}

// Plan авторит по записи на каждую сущность, чья целевая форма разошлась
// с shape (обычно ProjectedShape леджера). Сущности, исчезнувшие из DSL,
// дают запись на снос всех их колонок. Порядок детерминированный — по FQN.
func Plan(shape Shape, entities map[string]*dsl.Entity, description string) []*Record {
	fqns := make([]string, 0, len(entities))
	seen := make(map[string]struct{}, len(entities))
	for fqn := range entities {
		fqns = append(fqns, fqn)
		seen[strings.ToLower(fqn)] = struct{}{}
	}
	sort.Strings(fqns)

	var records []*Record
	for _, fqn := range fqns {
		e := entities[fqn]
		old := shape[strings.ToLower(fqn)]
		if rec := DiffColumns(e.FQN(), old, ColumnsOf(e), description); rec != nil {
			records = append(records, rec)
		}
	}

	// снос сущностей, которых в DSL больше нет
	gone := make([]string, 0)
	for key, cols := range shape {
		if len(cols) == 0 {
			continue
		}
		if _, ok := seen[key]; !ok {
			gone = append(gone, key)
		}
	}
	sort.Strings(gone)
	for _, key := range gone {
		if rec := DiffColumns(key, shape[key], nil, description); rec != nil {
			records = append(records, rec)
		}
	}
	return records
}
