package dsl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDSL(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "entities.dsl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEntitiesParsesFieldsAndRules(t *testing.T) {
	path := writeDSL(t, `
# комментарий
module catalog

entity Product:
  title: text required length=3..60
  price: money required range=1..100000 format=money
  rating: text pattern=^[A-Z]+[a-zA-Z0-9'"\s-]*$
  release_date: date format=date
`)

	ents, err := LoadEntities(path)
	require.NoError(t, err)
	require.Len(t, ents, 1)

	e := ents[0]
	assert.Equal(t, "catalog", e.Module)
	assert.Equal(t, "Product", e.Name)
	assert.Equal(t, "catalog.Product", e.FQN())
	require.Len(t, e.Fields, 4)

	title, ok := e.GetField("title")
	require.True(t, ok)
	assert.Equal(t, TypeText, title.Type)
	assert.False(t, title.Nullable)
	require.Len(t, title.Rules, 2)
	assert.Equal(t, RuleRequired, title.Rules[0].Kind)
	assert.Equal(t, RuleLength, title.Rules[1].Kind)
	assert.Equal(t, 3.0, title.Rules[1].Min)
	assert.Equal(t, 60.0, title.Rules[1].Max)

	price, ok := e.GetField("price")
	require.True(t, ok)
	assert.Equal(t, TypeMoney, price.Type)
	require.Len(t, price.Rules, 3)
	assert.Equal(t, RuleRange, price.Rules[1].Kind)
	assert.Equal(t, 1.0, price.Rules[1].Min)
	assert.Equal(t, 100000.0, price.Rules[1].Max)
	assert.Equal(t, RuleFormat, price.Rules[2].Kind)
	assert.Equal(t, "money", price.Rules[2].Format)

	rating, ok := e.GetField("rating")
	require.True(t, ok)
	assert.True(t, rating.Nullable)
	require.Len(t, rating.Rules, 1)
	assert.Equal(t, RulePattern, rating.Rules[0].Kind)
	assert.Equal(t, `^[A-Z]+[a-zA-Z0-9'"\s-]*$`, rating.Rules[0].Pattern)
	// паттерн скомпилирован при конструировании
	assert.True(t, rating.Rules[0].Matches("PG-13"))
	assert.False(t, rating.Rules[0].Matches("pg-13"))
}

func TestLoadEntitiesLengthMinDefaultsToZero(t *testing.T) {
	path := writeDSL(t, `
module catalog
entity Course:
  topic: text length=..30
`)
	ents, err := LoadEntities(path)
	require.NoError(t, err)

	topic, ok := ents[0].GetField("topic")
	require.True(t, ok)
	require.Len(t, topic.Rules, 1)
	assert.Equal(t, 0.0, topic.Rules[0].Min)
	assert.Equal(t, 30.0, topic.Rules[0].Max)
}

func TestLoadEntitiesRejectsDuplicateField(t *testing.T) {
	path := writeDSL(t, `
module catalog
entity Course:
  title: text
  Title: text
`)
	_, err := LoadEntities(path)
	require.ErrorIs(t, err, ErrDuplicateField)
}

func TestLoadEntitiesRejectsUnknownType(t *testing.T) {
	path := writeDSL(t, `
module catalog
entity Course:
  title: varchar
`)
	_, err := LoadEntities(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestLoadAllEntitiesRequiresModule(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.dsl"), []byte(`
entity Orphan:
  title: text
`), 0o644))
	_, err := LoadAllEntities(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no module")
}

func TestAddFieldIsImmutableAndChecksDuplicates(t *testing.T) {
	e := &Entity{Module: "catalog", Name: "Course", Fields: []Field{
		{Name: "title", Type: TypeText},
	}}

	ne, err := e.AddField(Field{Name: "author", Type: TypeText, Nullable: true})
	require.NoError(t, err)
	assert.Len(t, e.Fields, 1, "исходная сущность не должна меняться")
	assert.Len(t, ne.Fields, 2)

	_, err = ne.AddField(Field{Name: "Author", Type: TypeText})
	require.ErrorIs(t, err, ErrDuplicateField)
}

func TestRemoveField(t *testing.T) {
	e := &Entity{Module: "catalog", Name: "Course", Fields: []Field{
		{Name: "title", Type: TypeText},
		{Name: "author", Type: TypeText, Nullable: true},
	}}

	ne, err := e.RemoveField("author")
	require.NoError(t, err)
	assert.Len(t, e.Fields, 2)
	assert.Len(t, ne.Fields, 1)

	_, err = ne.RemoveField("author")
	require.ErrorIs(t, err, ErrUnknownField)
}
