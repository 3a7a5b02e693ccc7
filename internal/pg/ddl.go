package pg

import (
	"fmt"
	"strings"

	"letopis/internal/dsl"
	"letopis/internal/migrate"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }

// splitFQN: "module.Entity" -> (pg schema, table).
// Имя таблицы держим обратимым (без плюрализации), keyword'ы прячем префиксом.
func splitFQN(fqn string) (schema, table string, err error) {
	i := strings.IndexByte(fqn, '.')
	if i <= 0 || i >= len(fqn)-1 {
		return "", "", fmt.Errorf("bad entity FQN %q (expected module.Name)", fqn)
	}
	schema = strings.ToLower(fqn[:i])
	table = strings.ToLower(fqn[i+1:])
	if isReserved(table) {
		table = "e_" + table
	}
	return schema, table, nil
}

// joinFQN — обратное преобразование для ReadLiveSchema
func joinFQN(schema, table string) string {
	if strings.HasPrefix(table, "e_") && isReserved(table[2:]) {
		table = table[2:]
	}
	return schema + "." + table
}

// mapType — семантический тип DSL -> физический тип Postgres
func mapType(t dsl.FieldType) (string, error) {
	switch t {
	case dsl.TypeText:
		return "text", nil
	case dsl.TypeInt:
		return "bigint", nil
	case dsl.TypeFloat:
		return "double precision", nil
	case dsl.TypeMoney:
		return "numeric(18,2)", nil
	case dsl.TypeDate:
		return "date", nil
	default:
		return "", fmt.Errorf("unknown type: %s", t)
	}
}

// unmapType — обратная проекция information_schema.data_type.
// Незнакомый физический тип не прячем — отдаём как есть,
// сравнение форм пометит его как drift.
func unmapType(dataType string) dsl.FieldType {
	switch strings.ToLower(dataType) {
	case "text", "character varying":
		return dsl.TypeText
	case "bigint", "integer", "smallint":
		return dsl.TypeInt
	case "double precision", "real":
		return dsl.TypeFloat
	case "numeric":
		return dsl.TypeMoney
	case "date":
		return dsl.TypeDate
	default:
		return dsl.FieldType(strings.ToLower(dataType))
	}
}

// renderOp превращает операцию в последовательность SQL-стейтментов.
// Несколько стейтментов на alter: pgx в extended protocol не принимает
// multi-statement строки.
func renderOp(entity string, op migrate.SchemaOp) ([]string, error) {
	schema, table, err := splitFQN(entity)
	if err != nil {
		return nil, err
	}
	tbl := sqlIdent(schema) + "." + sqlIdent(table)
	col := sqlIdent(op.Column)

	switch op.Kind {
	case migrate.OpAddColumn:
		typ, err := mapType(op.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", entity, op.Column, err)
		}
		null := "null"
		if !op.Nullable {
			null = "not null"
		}
		return []string{
			fmt.Sprintf("alter table %s add column %s %s %s", tbl, col, typ, null),
		}, nil

	case migrate.OpDropColumn:
		return []string{
			fmt.Sprintf("alter table %s drop column %s", tbl, col),
		}, nil

	case migrate.OpAlterColumn:
		typ, err := mapType(op.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", entity, op.Column, err)
		}
		stmts := []string{
			fmt.Sprintf("alter table %s alter column %s type %s using %s::%s", tbl, col, typ, col, typ),
		}
		if op.Nullable {
			stmts = append(stmts, fmt.Sprintf("alter table %s alter column %s drop not null", tbl, col))
		} else {
			stmts = append(stmts, fmt.Sprintf("alter table %s alter column %s set not null", tbl, col))
		}
		return stmts, nil
	}
	return nil, fmt.Errorf("unknown op %q", op.Kind)
}

// ensureEntitySQL — схема и таблица под сущность (idempotent DDL).
// Системная колонка id заводится сразу; в форму схемы она не входит.
func ensureEntitySQL(entity string) ([]string, error) {
	schema, table, err := splitFQN(entity)
	if err != nil {
		return nil, err
	}
	return []string{
		fmt.Sprintf("create schema if not exists %s", sqlIdent(schema)),
		fmt.Sprintf(`create table if not exists %s.%s ("id" text primary key)`, sqlIdent(schema), sqlIdent(table)),
	}, nil
}
