// api/router.go
package api

import (
	"github.com/gin-gonic/gin"

	"letopis/internal/migrate"
)

// App — всё, что нужно ручкам: схемы/записи, леджер и пути
type App struct {
	Storage       *Storage
	Ledger        *migrate.Ledger
	MigrationsDir string
	DSLDir        string
}

// NewRouter собирает маршруты. Отдельно от Run — тесты гоняют router напрямую.
func NewRouter(app *App) *gin.Engine {
	r := gin.Default()

	r.GET("/api/meta", MetaListHandler(app.Storage))
	r.GET("/api/meta/:module/:entity", MetaEntityHandler(app.Storage))

	r.GET("/api/migrations", MigrationsListHandler(app))
	r.POST("/api/migrations/plan", MigrationsPlanHandler(app))
	r.POST("/api/migrations/apply", MigrationsApplyHandler(app))
	r.GET("/api/migrations/verify", MigrationsVerifyHandler(app))

	r.POST("/api/admin/reload", AdminReloadHandler(app))

	apiGroup := r.Group("/api")
	{
		// статические "служебные" маршруты — СНАЧАЛА
		apiGroup.POST("/:module/:entity/validate", ValidateHandler(app.Storage))

		// обычные CRUD
		apiGroup.POST("/:module/:entity", CreateHandler(app.Storage))
		apiGroup.GET("/:module/:entity", ListHandler(app.Storage))
		apiGroup.GET("/:module/:entity/:id", GetOneHandler(app.Storage))
		apiGroup.PUT("/:module/:entity/:id", UpdateHandler(app.Storage))
		apiGroup.DELETE("/:module/:entity/:id", DeleteHandler(app.Storage))
	}

	return r
}

// RunServer поднимает HTTP на addr
func RunServer(addr string, app *App) error {
	return NewRouter(app).Run(addr)
}
