package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsKeys(t *testing.T) {
	got, err := Marshal(map[string]any{"b": int64(2), "a": "x", "c": true})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2,"c":true}`, string(got))
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	got, err := Marshal("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(got))
}

func TestMarshal_LineSeparatorsLiteral(t *testing.T) {
	got, err := Marshal("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))

	// A literal backslash followed by the text u2028 must stay escaped.
	got, err = Marshal(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestMarshal_NFCNormalization(t *testing.T) {
	composed, err := Marshal("\u00e9")
	require.NoError(t, err)
	decomposed, err := Marshal("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshal_UTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as a surrogate pair (0xD83D...) which sorts before
	// U+FF61 in UTF-16 but after it in UTF-8.
	got, err := Marshal(map[string]any{"\uff61": int64(1), "\U0001F600": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uff61\":1}", string(got))
}

func TestMarshal_RejectsFloatsAndNull(t *testing.T) {
	_, err := Marshal(1.5)
	assert.ErrorContains(t, err, "floats are forbidden")

	_, err = Marshal(map[string]any{"x": nil})
	assert.ErrorContains(t, err, "null is forbidden")

	_, err = Marshal(struct{}{})
	assert.ErrorContains(t, err, "unsupported type")
}

func TestMarshal_Arrays(t *testing.T) {
	got, err := Marshal([]string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, `["b","a"]`, string(got), "arrays keep their order")

	got, err = Marshal([]any{int64(1), map[string]string{"k": "v"}})
	require.NoError(t, err)
	assert.Equal(t, `[1,{"k":"v"}]`, string(got))
}

func TestHash_Deterministic(t *testing.T) {
	h1, err := Hash(DomainSnapshot, []string{"a", "b"})
	require.NoError(t, err)
	h2, err := Hash(DomainSnapshot, []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestHash_DomainSeparation(t *testing.T) {
	h1 := HashWithDomain("one", []byte("data"))
	h2 := HashWithDomain("two", []byte("data"))
	assert.NotEqual(t, h1, h2)

	// Part boundaries are significant.
	h3 := HashWithDomain("one", []byte("da"), []byte("ta"))
	assert.NotEqual(t, h1, h3)
}
