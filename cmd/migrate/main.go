// Командный аналог инструментов миграции:
//
//	migrate plan [описание]  — дифф DSL против леджера, авторит yaml-файлы
//	migrate apply            — применить pending-миграции по порядку
//	migrate verify           — сверить леджер с живой схемой
//	migrate status           — список записей и их статусы
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"letopis/internal/config"
	"letopis/internal/dsl"
	"letopis/internal/migrate"
	"letopis/internal/pg"
)

func main() {
	cfg := config.LoadWithPath("config.json")
	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: migrate <plan|apply|verify|status> [описание]")
		os.Exit(2)
	}

	// Ctrl+C отменяет контекст: apply обязан оставить схему
	// в pre-apply либо fully-applied состоянии
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var store migrate.Store
	if cfg.DBURL != "" {
		db, err := pg.Open(cfg.DBURL)
		if err != nil {
			log.Fatalf("Ошибка подключения к Postgres: %v", err)
		}
		pgStore, err := pg.NewStore(ctx, db)
		if err != nil {
			log.Fatalf("Ошибка инициализации store: %v", err)
		}
		store = pgStore
	} else {
		// без БД команды кроме plan почти бессмысленны, но работают
		store = migrate.NewMemStore()
	}

	records, err := migrate.LoadRecords(cfg.MigrationsDir)
	if err != nil {
		log.Fatalf("Ошибка загрузки миграций: %v", err)
	}
	ledger, err := migrate.NewLedger(ctx, store, records)
	if err != nil {
		log.Fatalf("Ошибка инициализации леджера: %v", err)
	}

	switch args[0] {
	case "plan":
		description := strings.TrimSpace(strings.Join(args[1:], " "))
		if description == "" {
			description = "schema change"
		}
		entities, err := dsl.LoadAllEntities(cfg.DSLDir)
		if err != nil {
			log.Fatalf("Ошибка загрузки DSL: %v", err)
		}
		shape, err := ledger.ProjectedShape()
		if err != nil {
			log.Fatalf("Реплей леджера: %v", err)
		}
		planned := migrate.Plan(shape, entities, description)
		if len(planned) == 0 {
			fmt.Println("Схема не менялась — авторить нечего")
			return
		}
		for _, rec := range planned {
			path, err := migrate.SaveRecord(cfg.MigrationsDir, rec)
			if err != nil {
				log.Fatalf("Запись миграции: %v", err)
			}
			fmt.Printf("%s  %s (%d ops) -> %s\n", rec.ID, rec.Entity, len(rec.Forward), path)
		}

	case "apply":
		n, err := ledger.ApplyPending(ctx)
		if err != nil {
			var merr *migrate.MigrationError
			if errors.As(err, &merr) {
				log.Fatalf("Применено: %d; сбой на операции %d: %v", n, merr.OpIndex, err)
			}
			log.Fatalf("Применено: %d; сбой: %v", n, err)
		}
		fmt.Printf("Применено миграций: %d\n", n)

	case "verify":
		if err := ledger.Verify(ctx); err != nil {
			var drift *migrate.SchemaDriftError
			if errors.As(err, &drift) {
				log.Fatalf("Дрейф схемы: %v", err)
			}
			log.Fatalf("Verify: %v", err)
		}
		fmt.Println("ok: леджер и живая схема сходятся")

	case "status":
		for _, r := range ledger.Records() {
			applied := ""
			if r.AppliedAt != nil {
				applied = "  " + r.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-8s %s  %s  %q%s\n", r.Status, r.ID, r.Entity, r.Description, applied)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		os.Exit(2)
	}
}
