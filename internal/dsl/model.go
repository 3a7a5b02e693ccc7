package dsl

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// FieldType — семантический тип поля из DSL
type FieldType string

const (
	TypeText  FieldType = "text"
	TypeInt   FieldType = "int"
	TypeFloat FieldType = "float"
	TypeDate  FieldType = "date"
	TypeMoney FieldType = "money"
)

// KnownType проверяет, что тип входит в поддерживаемый набор
func KnownType(t FieldType) bool {
	switch t {
	case TypeText, TypeInt, TypeFloat, TypeDate, TypeMoney:
		return true
	}
	return false
}

// RuleKind — вид правила валидации
type RuleKind string

const (
	RuleRequired RuleKind = "required"
	RuleLength   RuleKind = "length"
	RuleRange    RuleKind = "range"
	RulePattern  RuleKind = "pattern"
	RuleFormat   RuleKind = "format"
)

// Rule описывает одно правило валидации поля.
// Заполнены только поля, релевантные для Kind:
//   - length: Min/Max (длина строки, Min по умолчанию 0)
//   - range:  Min/Max (числовые границы, включительно)
//   - pattern: Pattern (исходник) + re (скомпилированный full-match)
//   - format: Format ("date" | "money") — только презентация, не отбраковывает
type Rule struct {
	Kind    RuleKind       `yaml:"kind"`
	Min     float64        `yaml:"min,omitempty"`
	Max     float64        `yaml:"max,omitempty"`
	Pattern string         `yaml:"pattern,omitempty"`
	Format  string         `yaml:"format,omitempty"`
	re      *regexp.Regexp `yaml:"-"`
}

// CompilePattern компилирует Pattern как full-match (вся строка целиком)
func (r *Rule) CompilePattern() error {
	if r.Kind != RulePattern {
		return nil
	}
	re, err := regexp.Compile(`\A(?:` + r.Pattern + `)\z`)
	if err != nil {
		return fmt.Errorf("pattern %q: %w", r.Pattern, err)
	}
	r.re = re
	return nil
}

// Matches — full-match по скомпилированному паттерну.
// Паника, если CompilePattern не был вызван — ошибка программиста.
func (r *Rule) Matches(s string) bool {
	if r.re == nil {
		panic("dsl: pattern rule not compiled")
	}
	return r.re.MatchString(s)
}

// Field описывает поле сущности
type Field struct {
	Name     string
	Type     FieldType
	Nullable bool
	Rules    []Rule // в порядке объявления опций в DSL
}

// Entity описывает структуру сущности из DSL
type Entity struct {
	Module string
	Name   string
	Fields []Field
}

// ErrDuplicateField — имя поля уже занято внутри сущности.
// Ошибка схемы, на рантайме не восстанавливается.
var ErrDuplicateField = errors.New("duplicate field")

// ErrUnknownField — поля с таким именем в сущности нет
var ErrUnknownField = errors.New("unknown field")

// FQN возвращает полное имя "module.Name"
func (e *Entity) FQN() string {
	return e.Module + "." + e.Name
}

// GetField ищет поле по имени (регистронезависимо, как колонки в БД)
func (e *Entity) GetField(name string) (Field, bool) {
	for _, f := range e.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// AddField возвращает НОВУЮ сущность с добавленным полем.
// Исходная не меняется — конкурентные читатели видят старый срез.
func (e *Entity) AddField(f Field) (*Entity, error) {
	if _, ok := e.GetField(f.Name); ok {
		return nil, fmt.Errorf("%s.%s: %w", e.FQN(), f.Name, ErrDuplicateField)
	}
	ne := e.clone()
	ne.Fields = append(ne.Fields, f)
	return ne, nil
}

// RemoveField возвращает НОВУЮ сущность без указанного поля
func (e *Entity) RemoveField(name string) (*Entity, error) {
	if _, ok := e.GetField(name); !ok {
		return nil, fmt.Errorf("%s.%s: %w", e.FQN(), name, ErrUnknownField)
	}
	ne := &Entity{Module: e.Module, Name: e.Name}
	for _, f := range e.Fields {
		if !strings.EqualFold(f.Name, name) {
			ne.Fields = append(ne.Fields, f)
		}
	}
	return ne, nil
}

func (e *Entity) clone() *Entity {
	ne := &Entity{Module: e.Module, Name: e.Name}
	ne.Fields = make([]Field, len(e.Fields))
	copy(ne.Fields, e.Fields)
	return ne
}
