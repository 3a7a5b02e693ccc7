package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"letopis/internal/dsl"
	"letopis/internal/migrate"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testEntities(t *testing.T) map[string]*dsl.Entity {
	t.Helper()
	pattern := dsl.Rule{Kind: dsl.RulePattern, Pattern: `^[A-Z]+[a-zA-Z0-9'"\s-]*$`}
	require.NoError(t, pattern.CompilePattern())

	return map[string]*dsl.Entity{
		"catalog.Product": {
			Module: "catalog", Name: "Product",
			Fields: []dsl.Field{
				{Name: "title", Type: dsl.TypeText, Nullable: false, Rules: []dsl.Rule{
					{Kind: dsl.RuleRequired},
					{Kind: dsl.RuleLength, Min: 3, Max: 60},
				}},
				{Name: "price", Type: dsl.TypeMoney, Nullable: false, Rules: []dsl.Rule{
					{Kind: dsl.RuleRequired},
					{Kind: dsl.RuleRange, Min: 1, Max: 100000},
					{Kind: dsl.RuleFormat, Format: "money"},
				}},
				{Name: "rating", Type: dsl.TypeText, Nullable: false, Rules: []dsl.Rule{
					{Kind: dsl.RuleRequired},
					{Kind: dsl.RuleLength, Min: 0, Max: 5},
					pattern,
				}},
			},
		},
	}
}

func newTestApp(t *testing.T) (*App, *gin.Engine) {
	t.Helper()
	store := migrate.NewMemStore()
	ledger, err := migrate.NewLedger(context.Background(), store, nil)
	require.NoError(t, err)

	app := &App{
		Storage:       NewStorage(testEntities(t)),
		Ledger:        ledger,
		MigrationsDir: t.TempDir(),
		DSLDir:        t.TempDir(),
	}
	return app, NewRouter(app)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	_, r := newTestApp(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/catalog/Product", map[string]any{
		"title":  "Ghost Protocol",
		"price":  9.99,
		"rating": "",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	errs, ok := resp["errors"].([]any)
	require.True(t, ok, "body: %s", w.Body.String())
	require.Len(t, errs, 2)
	first := errs[0].(map[string]any)
	assert.Equal(t, "required", first["code"])
	assert.Equal(t, "rating", first["field"])
	second := errs[1].(map[string]any)
	assert.Equal(t, "pattern", second["code"])
}

func TestCreateAndReadBack(t *testing.T) {
	_, r := newTestApp(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/catalog/Product", map[string]any{
		"title":  "Ghost Protocol",
		"price":  9.99,
		"rating": "PG-13",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := resp["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, float64(1), resp["version"])
	assert.Equal(t, "Ghost Protocol", resp["title"])

	w, resp = doJSON(t, r, http.MethodGet, "/api/catalog/Product/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PG-13", resp["rating"])
}

func TestUpdateValidationGateAndVersion(t *testing.T) {
	_, r := newTestApp(t)

	_, resp := doJSON(t, r, http.MethodPost, "/api/catalog/Product", map[string]any{
		"title": "Ghost Protocol", "price": 9.99, "rating": "PG-13",
	})
	id := resp["id"].(string)

	// невалидная замена не проходит, запись не трогается
	w, _ := doJSON(t, r, http.MethodPut, "/api/catalog/Product/"+id, map[string]any{
		"title": "Ghost Protocol", "price": 150000, "rating": "PG-13",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = doJSON(t, r, http.MethodGet, "/api/catalog/Product/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["version"])

	// валидная замена инкрементит версию
	w, resp = doJSON(t, r, http.MethodPut, "/api/catalog/Product/"+id, map[string]any{
		"title": "Ghost Protocol II", "price": 19.99, "rating": "R",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), resp["version"])
	assert.Equal(t, "Ghost Protocol II", resp["title"])
}

func TestDeleteThenGet(t *testing.T) {
	_, r := newTestApp(t)

	_, resp := doJSON(t, r, http.MethodPost, "/api/catalog/Product", map[string]any{
		"title": "Ghost Protocol", "price": 9.99, "rating": "PG-13",
	})
	id := resp["id"].(string)

	w, _ := doJSON(t, r, http.MethodDelete, "/api/catalog/Product/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/api/catalog/Product/"+id, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownEntityIs404(t *testing.T) {
	_, r := newTestApp(t)
	w, _ := doJSON(t, r, http.MethodPost, "/api/catalog/Nothing", map[string]any{})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateEndpointIsDryRun(t *testing.T) {
	app, r := newTestApp(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/catalog/Product/validate", map[string]any{
		"title": "Ghost Protocol", "price": 9.99, "rating": "",
	})
	// нарушения — пользовательский вывод, не сбой
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["valid"])
	errs := resp["errors"].([]any)
	assert.Len(t, errs, 2)

	// ничего не записано
	app.Storage.mu.RLock()
	defer app.Storage.mu.RUnlock()
	assert.Empty(t, app.Storage.Data["catalog.Product"])
}

func TestValidateEndpointFormatsMoney(t *testing.T) {
	_, r := newTestApp(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/catalog/Product/validate", map[string]any{
		"title": "Ghost Protocol", "price": 9.5, "rating": "PG-13",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["valid"])
	formatted := resp["formatted"].(map[string]any)
	assert.Equal(t, "9.50", formatted["price"])
}

func TestMigrationFlowOverHTTP(t *testing.T) {
	app, r := newTestApp(t)

	// plan: дифф DSL против пустого леджера
	w, resp := doJSON(t, r, http.MethodPost, "/api/migrations/plan", map[string]any{
		"description": "initial product schema",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	authored := resp["authored"].([]any)
	require.Len(t, authored, 1)

	// файл миграции появился на диске
	files, err := filepath.Glob(filepath.Join(app.MigrationsDir, "*.yaml"))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	// повторный plan дубликатов не авторит
	w, resp = doJSON(t, r, http.MethodPost, "/api/migrations/plan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp["authored"])

	// apply
	w, resp = doJSON(t, r, http.MethodPost, "/api/migrations/apply", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), resp["applied"])

	// verify: чисто
	w, _ = doJSON(t, r, http.MethodGet, "/api/migrations/verify", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// журнал отражает статус
	w, resp = doJSON(t, r, http.MethodGet, "/api/migrations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := resp["migrations"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "applied", list[0].(map[string]any)["status"])
}

func TestMigrationVerifyReportsDrift(t *testing.T) {
	app, r := newTestApp(t)
	store := migrate.NewMemStore()
	ledger, err := migrate.NewLedger(context.Background(), store, nil)
	require.NoError(t, err)
	app.Ledger = ledger
	r = NewRouter(app)

	w, _ := doJSON(t, r, http.MethodPost, "/api/migrations/plan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/api/migrations/apply", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// правка схемы мимо леджера
	require.NoError(t, store.ExecSchemaOp(context.Background(), "catalog.Product",
		migrate.SchemaOp{Kind: migrate.OpAddColumn, Column: "rogue", Type: dsl.TypeText, Nullable: true}))

	w, resp := doJSON(t, r, http.MethodGet, "/api/migrations/verify", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "schema drift", resp["error"])
	assert.NotNil(t, resp["expected"])
	assert.NotNil(t, resp["actual"])
}

func TestAdminReloadAuthorsMigrationsAndSwapsSchemas(t *testing.T) {
	app, r := newTestApp(t)

	require.NoError(t, os.WriteFile(filepath.Join(app.DSLDir, "catalog.dsl"), []byte(`
module catalog
entity Product:
  title: text required length=3..60
  price: money required range=1..100000 format=money
  rating: text required length=..5
  author: text
`), 0o644))

	w, resp := doJSON(t, r, http.MethodPost, "/api/admin/reload", map[string]any{
		"description": "add author",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, float64(1), resp["entities"])
	authored := resp["authored"].([]any)
	require.Len(t, authored, 1, "одна запись на изменившуюся сущность")

	// схемы подменены: новое поле видно через meta
	w, resp = doJSON(t, r, http.MethodGet, "/api/meta/catalog/Product", nil)
	require.Equal(t, http.StatusOK, w.Code)
	fields := resp["fields"].([]any)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.(map[string]any)["name"].(string))
	}
	assert.Contains(t, names, "author")
}

func TestAdminReloadRejectsBrokenSchema(t *testing.T) {
	app, r := newTestApp(t)

	require.NoError(t, os.WriteFile(filepath.Join(app.DSLDir, "catalog.dsl"), []byte(`
module catalog
entity Product:
  price: money required length=3..60
`), 0o644))

	w, resp := doJSON(t, r, http.MethodPost, "/api/admin/reload", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	issues := resp["issues"].([]any)
	require.NotEmpty(t, issues)
	assert.Equal(t, "length_on_non_text", issues[0].(map[string]any)["code"])
}

func TestMetaListsEntities(t *testing.T) {
	_, r := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/meta", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "catalog", list[0]["module"])
	assert.Equal(t, "Product", list[0]["entity"])
}
