package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"letopis/internal/dsl"
	"letopis/internal/migrate"

	"github.com/gin-gonic/gin"
)

type migrationListItem struct {
	ID          string     `json:"id"`
	Entity      string     `json:"entity"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Ops         int        `json:"ops"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
}

// GET /api/migrations — журнал: какие записи известны и в каком статусе
func MigrationsListHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs := app.Ledger.Records()
		out := make([]migrationListItem, 0, len(recs))
		for _, r := range recs {
			out = append(out, migrationListItem{
				ID:          r.ID,
				Entity:      r.Entity,
				Description: r.Description,
				Status:      string(r.Status),
				Ops:         len(r.Forward),
				AppliedAt:   r.AppliedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"migrations": out})
	}
}

type planReq struct {
	Description string `json:"description"`
}

// authorAndSave — дифф целевых сущностей против shape, запись файлов
// и регистрация в леджере. Общий путь для plan-ручки и admin reload.
func authorAndSave(app *App, shape migrate.Shape, entities map[string]*dsl.Entity, description string) ([]*migrate.Record, error) {
	records := migrate.Plan(shape, entities, description)
	for _, rec := range records {
		if _, err := migrate.SaveRecord(app.MigrationsDir, rec); err != nil {
			return nil, err
		}
		if err := app.Ledger.Author(rec); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// POST /api/migrations/plan — аналог `migrations add`: дифф текущего DSL
// против спроецированной формы леджера; новые записи уходят в migrations/ и в леджер
func MigrationsPlanHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req planReq
		// пустое тело = дефолтное описание
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		if req.Description == "" {
			req.Description = "schema change"
		}

		shape, err := app.Ledger.ProjectedShape()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		records, err := authorAndSave(app, shape, app.Storage.SnapshotSchemas(), req.Description)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		authored := make([]migrationListItem, 0, len(records))
		for _, rec := range records {
			authored = append(authored, migrationListItem{
				ID:          rec.ID,
				Entity:      rec.Entity,
				Description: rec.Description,
				Status:      string(rec.Status),
				Ops:         len(rec.Forward),
			})
		}
		c.JSON(http.StatusOK, gin.H{"authored": authored})
	}
}

// POST /api/migrations/apply — аналог `database update`: pending-записи по порядку.
// Сбой отдаём оператору как есть, с индексом операции — молча не глотаем.
func MigrationsApplyHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		applied, err := app.Ledger.ApplyPending(c.Request.Context())
		if err != nil {
			var merr *migrate.MigrationError
			if errors.As(err, &merr) {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":    err.Error(),
					"op_index": merr.OpIndex,
					"applied":  applied,
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "applied": applied})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "applied": applied})
	}
}

// GET /api/migrations/verify — сверка леджера с живой схемой.
// Дрейф — это 409: с такой базой работать нельзя.
func MigrationsVerifyHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := app.Ledger.Verify(c.Request.Context())
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		var drift *migrate.SchemaDriftError
		if errors.As(err, &drift) {
			c.JSON(http.StatusConflict, gin.H{
				"error":    "schema drift",
				"expected": drift.Expected,
				"actual":   drift.Actual,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
