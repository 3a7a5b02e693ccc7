package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"letopis/internal/migrate"
)

const ledgerTable = "public.letopis_migrations"

// Store — адаптер migrate.Store поверх Postgres.
// Сущности живут в схемах по имени модуля; леджер-таблица — в public.
type Store struct {
	db *sql.DB
}

// NewStore заводит леджер-таблицу и возвращает адаптер
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, `create table if not exists `+ledgerTable+` (
  "id" text primary key,
  "description" text not null,
  "applied_at" timestamp with time zone not null
)`)
	if err != nil {
		return nil, fmt.Errorf("ensure ledger table: %w", err)
	}
	return &Store{db: db}, nil
}

// ExecSchemaOp исполняет одну операцию. Перед add_column гарантируем
// схему и таблицу (idempotent create ... if not exists, как и весь наш DDL).
func (s *Store) ExecSchemaOp(ctx context.Context, entity string, op migrate.SchemaOp) error {
	if op.Kind == migrate.OpAddColumn {
		ensure, err := ensureEntitySQL(entity)
		if err != nil {
			return err
		}
		for _, stmt := range ensure {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ensure %s: %w", entity, pgErr(err))
			}
		}
	}

	stmts, err := renderOp(entity, op)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", op, pgErr(err))
		}
	}
	return nil
}

// ReadLiveSchema собирает форму живой схемы из information_schema.
// public и системные схемы не наши; системную колонку id не отдаём.
func (s *Store) ReadLiveSchema(ctx context.Context) (migrate.Shape, error) {
	rows, err := s.db.QueryContext(ctx, `
select table_schema, table_name, column_name, data_type, is_nullable
from information_schema.columns
where table_schema not in ('pg_catalog', 'information_schema', 'public')
order by table_schema, table_name, ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("read live schema: %w", pgErr(err))
	}
	defer rows.Close()

	shape := migrate.Shape{}
	for rows.Next() {
		var schema, table, column, dataType, isNullable string
		if err := rows.Scan(&schema, &table, &column, &dataType, &isNullable); err != nil {
			return nil, err
		}
		if column == "id" {
			continue
		}
		fqn := joinFQN(schema, table)
		shape[fqn] = append(shape[fqn], migrate.Column{
			Name:     column,
			Type:     unmapType(dataType),
			Nullable: strings.EqualFold(isNullable, "YES"),
		})
	}
	return shape, rows.Err()
}

func (s *Store) RecordApplied(ctx context.Context, id, description string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`insert into `+ledgerTable+` ("id", "description", "applied_at") values ($1, $2, $3)`,
		id, description, at)
	if err != nil {
		return fmt.Errorf("record migration %s: %w", id, pgErr(err))
	}
	return nil
}

func (s *Store) AppliedIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select "id" from `+ledgerTable+` order by "applied_at", "id"`)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", pgErr(err))
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Rows — содержимое леджер-таблицы для status-ручек
func (s *Store) Rows(ctx context.Context) ([]migrate.AppliedRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`select "id", "description", "applied_at" from `+ledgerTable+` order by "applied_at", "id"`)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", pgErr(err))
	}
	defer rows.Close()

	var out []migrate.AppliedRow
	for rows.Next() {
		var row migrate.AppliedRow
		if err := rows.Scan(&row.ID, &row.Description, &row.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// pgErr дополняет ошибку кодом SQLSTATE — pgx/stdlib возвращает *pgconn.PgError
func pgErr(err error) error {
	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		return fmt.Errorf("%s (%s)", strings.TrimSpace(pge.Message), pge.Code)
	}
	return err
}
