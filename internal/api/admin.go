package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"letopis/internal/dsl"

	"github.com/gin-gonic/gin"
)

type reloadReq struct {
	DSLRoot     string `json:"dsl_root"`    // директория с *.dsl
	Description string `json:"description"` // описание для авторизуемых миграций
}

// AdminReloadHandler перечитывает DSL, линтит, атомарно подменяет схемы
// и авторит миграции под изменившиеся сущности (без применения).
func AdminReloadHandler(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reloadReq
		// пустое тело = дефолты
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		dslRoot := strings.TrimSpace(req.DSLRoot)
		if dslRoot == "" {
			dslRoot = app.DSLDir
		}
		description := strings.TrimSpace(req.Description)
		if description == "" {
			description = "dsl reload"
		}

		// 1) читаем новые схемы
		newSchemas, err := dsl.LoadAllEntities(dslRoot)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "DSL load error", "details": err.Error()})
			return
		}

		// 2) линтер — блокирующие противоречия не пускаем дальше
		if issues := LintSchemas(newSchemas); len(issues) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "schema has blocking issues",
				"issues":  issues,
				"hint":    "fix DSL and retry",
				"dslRoot": dslRoot,
			})
			return
		}

		// 3) авторим миграции под разницу (pending, применять отдельно)
		shape, err := app.Ledger.ProjectedShape()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		records, err := authorAndSave(app, shape, newSchemas, description)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ids := make([]string, 0, len(records))
		for _, rec := range records {
			ids = append(ids, rec.ID)
		}

		// 4) атомарная замена схем
		app.Storage.ReplaceSchemas(newSchemas)

		c.JSON(http.StatusOK, gin.H{
			"ok":       true,
			"dslRoot":  dslRoot,
			"entities": len(newSchemas),
			"authored": ids,
		})
	}
}
