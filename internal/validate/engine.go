package validate

import (
	"fmt"
	"strings"

	"letopis/internal/dsl"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды ошибок, которыми будем пользоваться
const (
	ErrRequired     = "required"
	ErrLength       = "length"
	ErrRange        = "range"
	ErrPattern      = "pattern"
	ErrTypeMismatch = "type_mismatch"
)

// Validate прогоняет ВСЕ правила ВСЕХ полей и возвращает полный список ошибок —
// без short-circuit, чтобы форма получила все нарушения разом.
// Пустой результат = объект можно писать в хранилище.
// Попутно НОРМАЛИЗУЕТ значения в obj (int из JSON-float64 и т.п.).
// Движок stateless и хранилища не касается.
func Validate(e *dsl.Entity, obj map[string]any) []FieldError {
	var errs []FieldError

	for _, f := range e.Fields {
		v, present := obj[f.Name]

		// строгая проверка типа и нормализация присутствующих значений
		typeOK := true
		if present && v != nil {
			norm, err := coerceValue(f, v)
			if err != nil {
				errs = append(errs, ferr(ErrTypeMismatch, f.Name, "Field '"+f.Name+"' "+err.Error()))
				typeOK = false
			} else {
				obj[f.Name] = norm
				v = norm
			}
		}

		for _, r := range f.Rules {
			switch r.Kind {
			case dsl.RuleRequired:
				// отсутствие, nil и пустая строка = нет значения.
				// строка из одних пробелов required НЕ отбраковывает —
				// сознательно повторяем исходное поведение
				if !present || v == nil || v == "" {
					errs = append(errs, ferr(ErrRequired, f.Name, "Field '"+f.Name+"' is required"))
				}
			case dsl.RuleLength:
				if !present || v == nil || !typeOK {
					continue
				}
				s, ok := v.(string)
				if !ok {
					continue
				}
				n := len([]rune(s))
				if float64(n) < r.Min || float64(n) > r.Max {
					errs = append(errs, ferr(ErrLength, f.Name,
						fmt.Sprintf("Field '%s' length must be between %d and %d", f.Name, int(r.Min), int(r.Max))))
				}
			case dsl.RuleRange:
				if !present || v == nil || !typeOK {
					continue
				}
				num, ok := toFloat(v)
				if !ok {
					continue
				}
				if num < r.Min || num > r.Max {
					errs = append(errs, ferr(ErrRange, f.Name,
						fmt.Sprintf("Field '%s' must be between %v and %v", f.Name, r.Min, r.Max)))
				}
			case dsl.RulePattern:
				if !present || v == nil || !typeOK {
					continue
				}
				s, ok := v.(string)
				if !ok {
					continue
				}
				// full-match: пустая строка против [A-Z]+... тоже провалится
				if !r.Matches(s) {
					errs = append(errs, ferr(ErrPattern, f.Name, "Field '"+f.Name+"' has invalid format"))
				}
			case dsl.RuleFormat:
				// только презентация — никогда не отбраковывает
			}
		}
	}

	return errs
}

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// Formatted возвращает презентационное представление значений по правилам format.
// Значения без format-правила отдаются как есть.
func Formatted(e *dsl.Entity, obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
		f, ok := e.GetField(k)
		if !ok {
			continue
		}
		for _, r := range f.Rules {
			if r.Kind != dsl.RuleFormat {
				continue
			}
			switch strings.ToLower(r.Format) {
			case "money":
				if num, ok := toFloat(v); ok {
					out[k] = fmt.Sprintf("%.2f", num)
				}
			case "date":
				// дата уже нормализована до YYYY-MM-DD — отдаём как есть
			}
		}
	}
	return out
}
