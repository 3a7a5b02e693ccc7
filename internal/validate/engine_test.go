package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"letopis/internal/dsl"
)

// тестовая сущность в духе каталога: обязательный rating с паттерном,
// денежный price с диапазоном
func productEntity(t *testing.T) *dsl.Entity {
	t.Helper()
	pattern := dsl.Rule{Kind: dsl.RulePattern, Pattern: `^[A-Z]+[a-zA-Z0-9'"\s-]*$`}
	require.NoError(t, pattern.CompilePattern())

	return &dsl.Entity{
		Module: "catalog",
		Name:   "Product",
		Fields: []dsl.Field{
			{Name: "title", Type: dsl.TypeText, Rules: []dsl.Rule{
				{Kind: dsl.RuleRequired},
				{Kind: dsl.RuleLength, Min: 3, Max: 60},
			}},
			{Name: "price", Type: dsl.TypeMoney, Rules: []dsl.Rule{
				{Kind: dsl.RuleRequired},
				{Kind: dsl.RuleRange, Min: 1, Max: 100000},
				{Kind: dsl.RuleFormat, Format: "money"},
			}},
			{Name: "rating", Type: dsl.TypeText, Rules: []dsl.Rule{
				{Kind: dsl.RuleRequired},
				{Kind: dsl.RuleLength, Min: 0, Max: 5},
				pattern,
			}},
		},
	}
}

func TestValidateEmptyRequiredWithPattern(t *testing.T) {
	e := productEntity(t)
	obj := map[string]any{
		"title":  "Ghost Protocol",
		"price":  9.99,
		"rating": "",
	}

	errs := Validate(e, obj)
	require.Len(t, errs, 2)
	// порядок = порядок правил поля: required раньше pattern
	assert.Equal(t, ErrRequired, errs[0].Code)
	assert.Equal(t, "rating", errs[0].Field)
	assert.Equal(t, ErrPattern, errs[1].Code)
	assert.Equal(t, "rating", errs[1].Field)
}

func TestValidateWellFormedValuePasses(t *testing.T) {
	e := productEntity(t)
	obj := map[string]any{
		"title":  "Ghost Protocol",
		"price":  9.99,
		"rating": "PG-13",
	}
	assert.Empty(t, Validate(e, obj))
}

func TestValidateRangeViolation(t *testing.T) {
	e := productEntity(t)
	obj := map[string]any{
		"title":  "Ghost Protocol",
		"price":  150000.0,
		"rating": "PG-13",
	}

	errs := Validate(e, obj)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrRange, errs[0].Code)
	assert.Equal(t, "price", errs[0].Field)
}

func TestValidateRangeBoundsInclusive(t *testing.T) {
	e := productEntity(t)
	for _, price := range []float64{1, 100000} {
		obj := map[string]any{"title": "Boundary", "price": price, "rating": "G"}
		assert.Empty(t, Validate(e, obj), "price=%v", price)
	}
}

func TestValidateWhitespaceOnlyPassesRequired(t *testing.T) {
	// строка из пробелов считается значением — required не срабатывает
	e := &dsl.Entity{Module: "catalog", Name: "Note", Fields: []dsl.Field{
		{Name: "body", Type: dsl.TypeText, Rules: []dsl.Rule{{Kind: dsl.RuleRequired}}},
	}}
	assert.Empty(t, Validate(e, map[string]any{"body": "   "}))
}

func TestValidateAbsentAndNilFailRequired(t *testing.T) {
	e := &dsl.Entity{Module: "catalog", Name: "Note", Fields: []dsl.Field{
		{Name: "body", Type: dsl.TypeText, Rules: []dsl.Rule{{Kind: dsl.RuleRequired}}},
	}}

	errs := Validate(e, map[string]any{})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrRequired, errs[0].Code)

	errs = Validate(e, map[string]any{"body": nil})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrRequired, errs[0].Code)
}

func TestValidateCollectsAllViolations(t *testing.T) {
	// нет short-circuit: нарушения собираются по всем полям сразу
	e := productEntity(t)
	obj := map[string]any{
		"title":  "ab", // короче min
		"price":  0.5,  // ниже диапазона
		"rating": "pg-13 extended cut",
	}

	errs := Validate(e, obj)
	require.Len(t, errs, 4)
	codes := make([]string, len(errs))
	for i, fe := range errs {
		codes[i] = fe.Field + ":" + fe.Code
	}
	assert.Equal(t, []string{
		"title:" + ErrLength,
		"price:" + ErrRange,
		"rating:" + ErrLength,
		"rating:" + ErrPattern,
	}, codes)
}

func TestValidateTypeMismatch(t *testing.T) {
	e := &dsl.Entity{Module: "catalog", Name: "Course", Fields: []dsl.Field{
		{Name: "credits", Type: dsl.TypeInt},
		{Name: "release_date", Type: dsl.TypeDate},
	}}

	errs := Validate(e, map[string]any{"credits": 3.5, "release_date": "31-12-2020"})
	require.Len(t, errs, 2)
	assert.Equal(t, ErrTypeMismatch, errs[0].Code)
	assert.Equal(t, "credits", errs[0].Field)
	assert.Equal(t, ErrTypeMismatch, errs[1].Code)
	assert.Equal(t, "release_date", errs[1].Field)
}

func TestValidateNormalizesValues(t *testing.T) {
	e := &dsl.Entity{Module: "catalog", Name: "Course", Fields: []dsl.Field{
		{Name: "credits", Type: dsl.TypeInt},
		{Name: "price", Type: dsl.TypeMoney},
	}}
	obj := map[string]any{"credits": 3.0, "price": 10}

	require.Empty(t, Validate(e, obj))
	// JSON-числа нормализованы: int стал int64, money — float64
	assert.Equal(t, int64(3), obj["credits"])
	assert.Equal(t, 10.0, obj["price"])
}

func TestValidateTypeMismatchSuppressesDependentRules(t *testing.T) {
	// при несовпадении типа length/range/pattern по этому полю молчат
	e := productEntity(t)
	obj := map[string]any{
		"title":  "Valid Title",
		"price":  "not a number",
		"rating": "G",
	}

	errs := Validate(e, obj)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrTypeMismatch, errs[0].Code)
	assert.Equal(t, "price", errs[0].Field)
}

func TestFormattedMoney(t *testing.T) {
	e := productEntity(t)
	out := Formatted(e, map[string]any{"price": 9.5, "title": "X"})
	assert.Equal(t, "9.50", out["price"])
	assert.Equal(t, "X", out["title"])
}
