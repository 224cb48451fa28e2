package orm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postMeta = EntityMetadata{
	Name:  "Post",
	Table: "posts",
	Columns: []Column{
		{Name: "id", Type: TypeInteger, PrimaryKey: true},
		{Name: "title", Type: TypeText},
		{Name: "slug", Type: TypeText, Unique: true},
		{Name: "published", Type: TypeBoolean},
		{Name: "body", Type: TypeText, Nullable: true},
	},
}

func TestCreateTableSQL(t *testing.T) {
	got, err := DialectSQLite.CreateTableSQL(postMeta)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE posts (id INTEGER NOT NULL PRIMARY KEY, title TEXT NOT NULL, slug TEXT NOT NULL UNIQUE, published INTEGER NOT NULL, body TEXT)", got)

	got, err = DialectPostgres.CreateTableSQL(postMeta)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE posts (id BIGINT NOT NULL PRIMARY KEY, title TEXT NOT NULL, slug TEXT NOT NULL UNIQUE, published BOOLEAN NOT NULL, body TEXT)", got)
}

func TestCreateMissingTableSQL(t *testing.T) {
	got, err := DialectSQLite.CreateMissingTableSQL(postMeta)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS posts (id INTEGER NOT NULL PRIMARY KEY, title TEXT NOT NULL, slug TEXT NOT NULL UNIQUE, published INTEGER NOT NULL, body TEXT)", got)

	_, err = DialectPostgres.CreateMissingTableSQL(EntityMetadata{Name: "X", Table: "x"})
	assert.ErrorContains(t, err, "no columns")
}

func TestCreateTableSQL_InvalidMetadata(t *testing.T) {
	_, err := DialectSQLite.CreateTableSQL(EntityMetadata{Name: "X", Table: "x; DROP", Columns: []Column{{Name: "id"}}})
	assert.ErrorContains(t, err, "invalid table name")

	_, err = DialectSQLite.CreateTableSQL(EntityMetadata{Name: "X", Table: "x"})
	assert.ErrorContains(t, err, "no columns")

	_, err = DialectSQLite.CreateTableSQL(EntityMetadata{Name: "X", Table: "x", Columns: []Column{{Name: "a"}, {Name: "a"}}})
	assert.ErrorContains(t, err, "duplicate column")
}

func TestPurgeStatements(t *testing.T) {
	assert.Equal(t, "DELETE FROM posts", DialectSQLite.TruncateSQL("posts"))
	assert.Equal(t, "TRUNCATE TABLE posts RESTART IDENTITY CASCADE", DialectPostgres.TruncateSQL("posts"))
	assert.Equal(t, "DROP TABLE IF EXISTS posts CASCADE", DialectPostgres.DropTableSQL("posts"))

	query, args, err := DialectSQLite.DeleteSQL("posts")
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM posts", query)
	assert.Empty(t, args)
}

func TestInsertSQL(t *testing.T) {
	query, args, err := DialectPostgres.InsertSQL(postMeta, Row{"title": "Hello", "id": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO posts (id,title) VALUES ($1,$2)", query)
	assert.Equal(t, []any{int64(1), "Hello"}, args)

	query, _, err = DialectSQLite.InsertSQL(postMeta, Row{"id": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO posts (id) VALUES (?)", query)

	_, _, err = DialectSQLite.InsertSQL(postMeta, Row{"nope": 1})
	assert.ErrorContains(t, err, `unknown column "nope"`)

	_, _, err = DialectSQLite.InsertSQL(postMeta, Row{})
	assert.ErrorContains(t, err, "empty row")
}

func TestSelectAllSQL(t *testing.T) {
	query, _, err := DialectSQLite.SelectAllSQL(postMeta)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, title, slug, published, body FROM posts ORDER BY id", query)
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "abc", NormalizeValue(Column{Type: TypeText}, []byte("abc")))
	assert.Equal(t, []byte("abc"), NormalizeValue(Column{Type: TypeBlob}, []byte("abc")))
	assert.Equal(t, true, NormalizeValue(Column{Type: TypeBoolean}, int64(1)))
	assert.Equal(t, int64(7), NormalizeValue(Column{Type: TypeInteger}, int64(7)))
	assert.Nil(t, NormalizeValue(Column{Type: TypeText, Nullable: true}, nil))
}
