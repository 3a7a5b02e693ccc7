package validate

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"letopis/internal/dsl"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`) // YYYY-MM-DD

// coerceValue приводит значение к каноническому виду для семантического типа.
// JSON-числа приходят как float64 — для int проверяем целостность.
func coerceValue(f dsl.Field, v any) (any, error) {
	switch f.Type {
	case dsl.TypeText:
		return toStringStrict(v)
	case dsl.TypeInt:
		return toIntStrict(v)
	case dsl.TypeFloat, dsl.TypeMoney:
		switch t := v.(type) {
		case float64:
			return t, nil
		case int:
			return float64(t), nil
		case int64:
			return float64(t), nil
		case string:
			num, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, errors.New("must be a number")
			}
			return num, nil
		default:
			return nil, errors.New("must be a number")
		}
	case dsl.TypeDate:
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		if !dateRe.MatchString(s) {
			return nil, errors.New("must match YYYY-MM-DD")
		}
		// легкая валидация корректности даты
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return nil, errors.New("invalid date")
		}
		return s, nil
	default:
		// неизвестный тип — оставим как есть
		return v, nil
	}
}

func toStringStrict(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.New("must be string")
}

func toIntStrict(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		if t != float64(int64(t)) {
			return 0, errors.New("must be integer")
		}
		return int64(t), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, errors.New("must be integer")
		}
		return n, nil
	default:
		return 0, errors.New("must be integer")
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return num, err == nil
	default:
		return 0, false
	}
}
