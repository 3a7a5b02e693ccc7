package api

import (
	"net/http"
	"time"

	"letopis/internal/validate"

	"github.com/gin-gonic/gin"
)

// POST /api/:module/:entity
// Валидация — до записи; запись — под write-lock
func CreateHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity, ok := storage.NormalizeEntityName(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		schema, _ := storage.Schema(entity)

		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		if errs := validate.Validate(schema, obj); len(errs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
			return
		}

		storage.mu.Lock()
		defer storage.mu.Unlock()

		if storage.Data[entity] == nil {
			storage.Data[entity] = make(map[string]*Record)
		}

		now := time.Now().UTC()
		rec := &Record{
			ID:        storage.newID(),
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
			Data:      obj,
		}
		storage.Data[entity][rec.ID] = rec
		c.JSON(http.StatusCreated, flatten(rec))
	}
}

// GET /api/:module/:entity
func ListHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity, ok := storage.NormalizeEntityName(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}

		storage.mu.RLock()
		recMap := storage.Data[entity]
		out := make([]map[string]any, 0, len(recMap))
		for _, r := range recMap {
			out = append(out, flatten(r))
		}
		storage.mu.RUnlock()

		c.JSON(http.StatusOK, gin.H{"items": out, "total": len(out)})
	}
}

// GET /api/:module/:entity/:id
func GetOneHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity, ok := storage.NormalizeEntityName(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}

		storage.mu.RLock()
		rec := storage.Data[entity][c.Param("id")]
		storage.mu.RUnlock()

		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		c.JSON(http.StatusOK, flatten(rec))
	}
}

// PUT /api/:module/:entity/:id — полная замена данных записи.
// Та же валидационная калитка, что и на create.
func UpdateHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity, ok := storage.NormalizeEntityName(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		schema, _ := storage.Schema(entity)

		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		if errs := validate.Validate(schema, obj); len(errs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
			return
		}

		storage.mu.Lock()
		defer storage.mu.Unlock()

		rec := storage.Data[entity][c.Param("id")]
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}

		rec.Data = obj
		rec.Version++
		rec.UpdatedAt = time.Now().UTC()
		c.JSON(http.StatusOK, flatten(rec))
	}
}

// DELETE /api/:module/:entity/:id
func DeleteHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity, ok := storage.NormalizeEntityName(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}

		storage.mu.Lock()
		defer storage.mu.Unlock()

		if storage.Data[entity][c.Param("id")] == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		delete(storage.Data[entity], c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// POST /api/:module/:entity/validate — сухой прогон движка без записи.
// Всегда 200: список нарушений — ожидаемый пользовательский вывод, не сбой.
func ValidateHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity, ok := storage.NormalizeEntityName(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		schema, _ := storage.Schema(entity)

		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		errs := validate.Validate(schema, obj)
		if errs == nil {
			errs = []validate.FieldError{}
		}
		c.JSON(http.StatusOK, gin.H{
			"valid":     len(errs) == 0,
			"errors":    errs,
			"formatted": validate.Formatted(schema, obj),
		})
	}
}
