package main

import (
	"context"
	"fmt"
	"log"

	"letopis/internal/api"
	"letopis/internal/config"
	"letopis/internal/dsl"
	"letopis/internal/migrate"
	"letopis/internal/pg"
)

func main() {
	cfg := config.LoadWithPath("config.json")
	ctx := context.Background()

	// 1. Загружаем DSL-сущности
	entities, err := dsl.LoadAllEntities(cfg.DSLDir)
	if err != nil {
		log.Fatalf("Ошибка загрузки DSL: %v", err)
	}
	fmt.Printf("Загружено сущностей: %d\n", len(entities))

	// 2. Линтер схем — с противоречивым DSL не стартуем
	if issues := api.LintSchemas(entities); len(issues) > 0 {
		for _, it := range issues {
			log.Printf("schema issue: %s.%s [%s] %s", it.Entity, it.Field, it.Code, it.Message)
		}
		log.Fatalf("DSL содержит блокирующие проблемы: %d", len(issues))
	}

	// 3. Store: Postgres или память (пустой db-url)
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
		fmt.Println("db-url пуст — работаем с in-memory store")
		store = migrate.NewMemStore()
	}

	// 4. Леджер из migrations/ + статусы из store
	records, err := migrate.LoadRecords(cfg.MigrationsDir)
	if err != nil {
		log.Fatalf("Ошибка загрузки миграций: %v", err)
	}
	ledger, err := migrate.NewLedger(ctx, store, records)
	if err != nil {
		log.Fatalf("Ошибка инициализации леджера: %v", err)
	}

	if cfg.AutoMigrate {
		n, err := ledger.ApplyPending(ctx)
		if err != nil {
			log.Fatalf("Auto-migrate: %v", err)
		}
		fmt.Printf("Auto-migrate: применено миграций: %d\n", n)
	}

	// 5. Сверка с живой схемой: дрейф фатален, с такой базой не работаем.
	// После auto-migrate сверяем всегда, независимо от флага.
	if cfg.VerifyOnStart || cfg.AutoMigrate {
		if err := ledger.Verify(ctx); err != nil {
			log.Fatalf("Schema verify: %v", err)
		}
		fmt.Println("Schema verify: ok")
	}

	// 6. REST API
	app := &api.App{
		Storage:       api.NewStorage(entities),
		Ledger:        ledger,
		MigrationsDir: cfg.MigrationsDir,
		DSLDir:        cfg.DSLDir,
	}
	fmt.Printf("Стартуем сервер Letopis на :%s...\n", cfg.Port)
	if err := api.RunServer(":"+cfg.Port, app); err != nil {
		log.Fatalf("HTTP server: %v", err)
	}
}
