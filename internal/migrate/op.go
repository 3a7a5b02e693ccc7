package migrate

import (
	"fmt"
	"sort"
	"strings"

	"letopis/internal/dsl"
)

// OpKind — вид элементарного изменения схемы
type OpKind string

const (
	OpAddColumn   OpKind = "add_column"
	OpDropColumn  OpKind = "drop_column"
	OpAlterColumn OpKind = "alter_column"
)

// Column — колонка в семантических типах DSL.
// Физический тип конкретной БД — забота store-адаптера.
type Column struct {
	Name     string        `yaml:"name" json:"name"`
	Type     dsl.FieldType `yaml:"type" json:"type"`
	Nullable bool          `yaml:"nullable" json:"nullable"`
}

// SchemaOp — tagged variant над add/drop/alter.
// Смысл полей по Kind:
//   - add_column:   Type/Nullable — создаваемая колонка
//   - drop_column:  Type/Nullable — ПРЕЖНЯЯ колонка (нужна для инверсии)
//   - alter_column: Type/Nullable — целевое состояние, FromType/FromNullable — прежнее
type SchemaOp struct {
	Kind         OpKind        `yaml:"op" json:"op"`
	Column       string        `yaml:"column" json:"column"`
	Type         dsl.FieldType `yaml:"type,omitempty" json:"type,omitempty"`
	Nullable     bool          `yaml:"nullable" json:"nullable"`
	FromType     dsl.FieldType `yaml:"from_type,omitempty" json:"from_type,omitempty"`
	FromNullable bool          `yaml:"from_nullable,omitempty" json:"from_nullable,omitempty"`
}

// Invert возвращает структурную инверсию операции:
// add↔drop с тем же описанием колонки, alter — с обменом старого/нового состояния
func (op SchemaOp) Invert() SchemaOp {
	switch op.Kind {
	case OpAddColumn:
		return SchemaOp{Kind: OpDropColumn, Column: op.Column, Type: op.Type, Nullable: op.Nullable}
	case OpDropColumn:
		return SchemaOp{Kind: OpAddColumn, Column: op.Column, Type: op.Type, Nullable: op.Nullable}
	case OpAlterColumn:
		return SchemaOp{
			Kind: OpAlterColumn, Column: op.Column,
			Type: op.FromType, Nullable: op.FromNullable,
			FromType: op.Type, FromNullable: op.Nullable,
		}
	}
	return op
}

func (op SchemaOp) String() string {
	switch op.Kind {
	case OpAlterColumn:
		return fmt.Sprintf("%s %s %s->%s", op.Kind, op.Column, op.FromType, op.Type)
	default:
		return fmt.Sprintf("%s %s %s", op.Kind, op.Column, op.Type)
	}
}

// Shape — форма схемы: FQN сущности -> колонки
type Shape map[string][]Column

// Apply накладывает операцию на форму. Первая add_column по новой
// сущности заводит её в форме. Ключи — FQN в нижнем регистре,
// чтобы реплей сходился с live-схемой независимо от регистра в DSL.
func (s Shape) Apply(entity string, op SchemaOp) error {
	entity = strings.ToLower(entity)
	name := strings.ToLower(op.Column)
	cols := s[entity]
	idx := -1
	for i, c := range cols {
		if c.Name == name {
			idx = i
			break
		}
	}

	switch op.Kind {
	case OpAddColumn:
		if idx >= 0 {
			return fmt.Errorf("%s: column %q already exists", entity, op.Column)
		}
		s[entity] = append(cols, Column{Name: name, Type: op.Type, Nullable: op.Nullable})
	case OpDropColumn:
		if idx < 0 {
			return fmt.Errorf("%s: column %q does not exist", entity, op.Column)
		}
		s[entity] = append(cols[:idx:idx], cols[idx+1:]...)
	case OpAlterColumn:
		if idx < 0 {
			return fmt.Errorf("%s: column %q does not exist", entity, op.Column)
		}
		cols[idx].Type = op.Type
		cols[idx].Nullable = op.Nullable
	default:
		return fmt.Errorf("%s: unknown op %q", entity, op.Kind)
	}
	return nil
}

// Clone — глубокая копия формы
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	for k, cols := range s {
		cp := make([]Column, len(cols))
		copy(cp, cols)
		out[k] = cp
	}
	return out
}

// Equal сравнивает формы структурно. Порядок колонок не важен —
// live-схема может отдавать их в своём порядке.
func (s Shape) Equal(other Shape) bool {
	if len(s.nonEmpty()) != len(other.nonEmpty()) {
		return false
	}
	for entity, cols := range s {
		if len(cols) == 0 {
			continue
		}
		ocols, ok := other[entity]
		if !ok || len(ocols) != len(cols) {
			return false
		}
		a := sortedByName(cols)
		b := sortedByName(ocols)
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}

func (s Shape) nonEmpty() []string {
	var out []string
	for k, cols := range s {
		if len(cols) > 0 {
			out = append(out, k)
		}
	}
	return out
}

func sortedByName(cols []Column) []Column {
	out := make([]Column, len(cols))
	copy(out, cols)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
