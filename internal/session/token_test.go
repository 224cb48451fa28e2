package session

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/webtest/internal/testutil"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec([]byte("test-secret"),
		WithTokenClock(testutil.NewDeterministicClock()),
		WithTokenIDs(testutil.NewSequenceIDs("tok")),
	)
	require.NoError(t, err)
	return c
}

func TestCodec_EncodeDecode(t *testing.T) {
	c := newTestCodec(t)
	user := BasicUser{Name: "admin", RoleNames: []string{"ROLE_ADMIN", "ROLE_USER"}}

	tok := c.NewToken(user, "main")
	assert.Equal(t, "tok-0001", tok.ID)
	assert.Equal(t, testutil.Epoch, tok.IssuedAt)

	raw, err := c.Encode(tok)
	require.NoError(t, err)

	got, err := c.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, tok, got)
	assert.True(t, got.HasRole("ROLE_ADMIN"))
	assert.False(t, got.HasRole("ROLE_SUPER"))
}

func TestCodec_RejectsForeignTokens(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec([]byte("other-secret"))
	require.NoError(t, err)

	raw, err := other.Encode(other.NewToken(BasicUser{Name: "eve"}, "main"))
	require.NoError(t, err)
	_, err = c.Decode(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = c.Decode("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Unsigned tokens are never accepted.
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, tokenClaims{Firewall: "main"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = c.Decode(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCodec_EmptySecret(t *testing.T) {
	_, err := NewCodec(nil)
	assert.Error(t, err)
}

func TestCodec_AuthenticateFirewallScoped(t *testing.T) {
	c := newTestCodec(t)
	s := NewMemoryStore().Create()

	mainTok, err := c.Encode(c.NewToken(BasicUser{Name: "alice"}, "main"))
	require.NoError(t, err)
	s.Set(SecurityKey("main"), mainTok)

	got, err := c.Authenticate(s, "main")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "main", got.Firewall)

	_, err = c.Authenticate(s, "admin")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A token copied into another firewall's slot is rejected.
	s.Set(SecurityKey("admin"), mainTok)
	_, err = c.Authenticate(s, "admin")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
