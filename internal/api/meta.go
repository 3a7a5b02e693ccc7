package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ===== META HANDLERS =====

type metaEntityListItem struct {
	Module string `json:"module"`
	Entity string `json:"entity"`
}

func MetaListHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		storage.mu.RLock()
		out := make([]metaEntityListItem, 0, len(storage.Schemas))
		for fqn := range storage.Schemas {
			mod, ent := splitFQN(fqn)
			out = append(out, metaEntityListItem{Module: mod, Entity: ent})
		}
		storage.mu.RUnlock()
		c.JSON(http.StatusOK, out)
	}
}

type metaRule struct {
	Kind    string  `json:"kind"`
	Min     float64 `json:"min,omitempty"`
	Max     float64 `json:"max,omitempty"`
	Pattern string  `json:"pattern,omitempty"`
	Format  string  `json:"format,omitempty"`
}

type metaField struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Nullable bool       `json:"nullable"`
	Rules    []metaRule `json:"rules,omitempty"`
}

type metaEntity struct {
	Module string      `json:"module"`
	Entity string      `json:"entity"`
	Fields []metaField `json:"fields"`
}

func MetaEntityHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		fqn, ok := storage.NormalizeEntityName(c.Param("module"), c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		schema, _ := storage.Schema(fqn)

		fields := make([]metaField, 0, len(schema.Fields))
		for _, f := range schema.Fields {
			rules := make([]metaRule, 0, len(f.Rules))
			for _, r := range f.Rules {
				rules = append(rules, metaRule{
					Kind:    string(r.Kind),
					Min:     r.Min,
					Max:     r.Max,
					Pattern: r.Pattern,
					Format:  r.Format,
				})
			}
			fields = append(fields, metaField{
				Name:     f.Name,
				Type:     string(f.Type),
				Nullable: f.Nullable,
				Rules:    rules,
			})
		}

		m, e := splitFQN(fqn)
		c.JSON(http.StatusOK, metaEntity{Module: m, Entity: e, Fields: fields})
	}
}
