package snapshot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/webtest/internal/orm"
)

var (
	userMeta = orm.EntityMetadata{
		Name:  "User",
		Table: "users",
		Columns: []orm.Column{
			{Name: "id", Type: orm.TypeInteger, PrimaryKey: true},
			{Name: "username", Type: orm.TypeText, Unique: true},
		},
	}
	postMeta = orm.EntityMetadata{
		Name:  "Post",
		Table: "posts",
		Columns: []orm.Column{
			{Name: "id", Type: orm.TypeInteger, PrimaryKey: true},
			{Name: "title", Type: orm.TypeText},
		},
	}
)

func TestKey_Deterministic(t *testing.T) {
	metas := []orm.EntityMetadata{userMeta, postMeta}
	ids := []string{"users", "posts"}

	k1, err := Key(metas, ids)
	require.NoError(t, err)
	k2, err := Key(metas, append([]string(nil), ids...))
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)
	assert.Equal(t, strings.ToLower(k1), k1)
}

func TestKey_SensitiveToInputs(t *testing.T) {
	base, err := Key([]orm.EntityMetadata{userMeta, postMeta}, []string{"users", "posts"})
	require.NoError(t, err)

	nullable := postMeta
	nullable.Columns = append([]orm.Column(nil), postMeta.Columns...)
	nullable.Columns[1].Nullable = true

	variants := map[string]struct {
		metas []orm.EntityMetadata
		ids   []string
	}{
		"fixture order":  {[]orm.EntityMetadata{userMeta, postMeta}, []string{"posts", "users"}},
		"fixture subset": {[]orm.EntityMetadata{userMeta, postMeta}, []string{"users"}},
		"entity order":   {[]orm.EntityMetadata{postMeta, userMeta}, []string{"users", "posts"}},
		"column flag":    {[]orm.EntityMetadata{userMeta, nullable}, []string{"users", "posts"}},
		"no fixtures":    {[]orm.EntityMetadata{userMeta, postMeta}, nil},
	}
	for name, v := range variants {
		t.Run(name, func(t *testing.T) {
			k, err := Key(v.metas, v.ids)
			require.NoError(t, err)
			assert.NotEqual(t, base, k)
		})
	}
}

func TestKey_FixtureBoundary(t *testing.T) {
	// Joining ids must not collide across boundaries.
	a, err := Key(nil, []string{"ab", "c"})
	require.NoError(t, err)
	b, err := Key(nil, []string{"a", "bc"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestArtifactName(t *testing.T) {
	key := strings.Repeat("ab", 32)
	name := ArtifactName(key)
	assert.Equal(t, "test_"+key+".db", name)

	got, ok := ParseArtifactName(name)
	assert.True(t, ok)
	assert.Equal(t, key, got)

	for _, bad := range []string{"test_abc.db", "other.db", "test_" + key + ".db-wal", "test_" + strings.ToUpper(key) + ".db"} {
		_, ok := ParseArtifactName(bad)
		assert.False(t, ok, bad)
	}
}
