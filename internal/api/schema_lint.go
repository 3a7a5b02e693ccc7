// api/schema_lint.go
package api

import (
	"fmt"

	"letopis/internal/dsl"
)

type SchemaIssue struct {
	Entity  string `json:"entity"` // FQN: module.Entity
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LintSchemas проверяет базовые противоречия в наборе сущностей.
// Дубликаты полей ловит парсер; здесь — семантика правил.
func LintSchemas(schemas map[string]*dsl.Entity) []SchemaIssue {
	var issues []SchemaIssue

	for fqn, e := range schemas {
		for _, f := range e.Fields {
			hasRequired := false
			for _, r := range f.Rules {
				switch r.Kind {
				case dsl.RuleRequired:
					hasRequired = true

				case dsl.RuleLength:
					if f.Type != dsl.TypeText {
						issues = append(issues, SchemaIssue{
							Entity: fqn, Field: f.Name, Code: "length_on_non_text",
							Message: fmt.Sprintf("length rule on %s field (only text has a length)", f.Type),
						})
					}
					if r.Min > r.Max {
						issues = append(issues, SchemaIssue{
							Entity: fqn, Field: f.Name, Code: "length_bounds_inverted",
							Message: fmt.Sprintf("length min %v > max %v", r.Min, r.Max),
						})
					}
					if r.Min < 0 {
						issues = append(issues, SchemaIssue{
							Entity: fqn, Field: f.Name, Code: "length_negative",
							Message: "length bounds must be non-negative",
						})
					}

				case dsl.RuleRange:
					switch f.Type {
					case dsl.TypeInt, dsl.TypeFloat, dsl.TypeMoney:
					default:
						issues = append(issues, SchemaIssue{
							Entity: fqn, Field: f.Name, Code: "range_on_non_numeric",
							Message: fmt.Sprintf("range rule on %s field", f.Type),
						})
					}
					if r.Min > r.Max {
						issues = append(issues, SchemaIssue{
							Entity: fqn, Field: f.Name, Code: "range_bounds_inverted",
							Message: fmt.Sprintf("range min %v > max %v", r.Min, r.Max),
						})
					}

				case dsl.RulePattern:
					if f.Type != dsl.TypeText {
						issues = append(issues, SchemaIssue{
							Entity: fqn, Field: f.Name, Code: "pattern_on_non_text",
							Message: fmt.Sprintf("pattern rule on %s field", f.Type),
						})
					}

				case dsl.RuleFormat:
					switch r.Format {
					case "date", "money":
					default:
						issues = append(issues, SchemaIssue{
							Entity: fqn, Field: f.Name, Code: "format_unknown",
							Message: fmt.Sprintf("unknown format kind %q (allowed: date|money)", r.Format),
						})
					}
				}
			}

			// required поле, оставшееся nullable — конфликт опций
			if hasRequired && f.Nullable {
				issues = append(issues, SchemaIssue{
					Entity: fqn, Field: f.Name, Code: "required_conflicts_nullable",
					Message: "required field cannot be declared nullable",
				})
			}
		}
	}
	return issues
}
