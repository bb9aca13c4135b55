package crypto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminSignerRoundTrip(t *testing.T) {
	s := NewAdminSigner("secret", 0)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	body := []byte(`{"amount":10}`)
	h := s.Headers("POST", "/api/admin/vaults/v1/rewards/add", body)
	require.NoError(t, s.Verify("POST", "/api/admin/vaults/v1/rewards/add", body, h[HeaderTimestamp], h[HeaderSignature]))

	assert.ErrorIs(t, s.Verify("POST", "/api/admin/vaults/v2/rewards/add", body, h[HeaderTimestamp], h[HeaderSignature]), ErrBadSignature)
	assert.ErrorIs(t, s.Verify("POST", "/api/admin/vaults/v1/rewards/add", []byte(`{"amount":11}`), h[HeaderTimestamp], h[HeaderSignature]), ErrBadSignature)
	assert.ErrorIs(t, s.Verify("POST", "/x", nil, "abc", h[HeaderSignature]), ErrBadTimestamp)
	assert.ErrorIs(t, s.Verify("POST", "/x", nil, h[HeaderTimestamp], "%%%"), ErrBadSignature)

	other := NewAdminSigner("other", 0)
	other.now = s.now
	oh := other.Headers("POST", "/x", nil)
	assert.ErrorIs(t, s.Verify("POST", "/x", nil, oh[HeaderTimestamp], oh[HeaderSignature]), ErrBadSignature)
}

func TestAdminSignerSkew(t *testing.T) {
	s := NewAdminSigner("secret", time.Minute)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	stale := s.HeadersAt("GET", "/x", nil, now.Add(-2*time.Minute).Unix())
	assert.ErrorIs(t, s.Verify("GET", "/x", nil, stale[HeaderTimestamp], stale[HeaderSignature]), ErrBadTimestamp)

	fresh := s.HeadersAt("GET", "/x", nil, now.Add(-30*time.Second).Unix())
	assert.NoError(t, s.Verify("GET", "/x", nil, fresh[HeaderTimestamp], fresh[HeaderSignature]))
}

func TestAdminSignerString(t *testing.T) {
	assert.Equal(t, "AdminSigner{secret=abcd****}", NewAdminSigner("abcdefgh", 0).String())
	assert.Equal(t, "AdminSigner{secret=****}", NewAdminSigner("abc", 0).String())
}
