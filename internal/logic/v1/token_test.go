package v1

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tryswift/cfp-auth/internal/core/domain"
)

const testSecret = "unit-test-signing-secret"

func TestTokenService_IssueVerifyRoundTrip(t *testing.T) {
	s := NewTokenService(testSecret)

	token, err := s.Issue(42, domain.RoleSpeaker, "ada")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, domain.RoleSpeaker, claims.Role)
	assert.Equal(t, "ada", claims.Username)
}

func TestTokenService_ExpiryIsSevenDaysFromIssue(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewTokenService(testSecret)
	s.now = func() time.Time { return issued }

	token, err := s.Issue(1, domain.RoleAdmin, "grace")
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.True(t, claims.IssuedAt.Time.Equal(issued), "issuedAt = %v", claims.IssuedAt.Time)
	assert.True(t, claims.ExpiresAt.Time.Equal(issued.Add(7*24*time.Hour)), "expiresAt = %v", claims.ExpiresAt.Time)
}

func TestTokenService_ExpiredCredential(t *testing.T) {
	s := NewTokenService(testSecret)
	s.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	token, err := s.Issue(1, domain.RoleAdmin, "grace")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Verify(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialExpired)
}

func TestTokenService_TamperedSignature(t *testing.T) {
	s := NewTokenService(testSecret)
	token, err := s.Issue(1, domain.RoleSpeaker, "ada")
	require.NoError(t, err)

	tampered := flipLastSignatureChar(t, token)
	_, err = s.Verify(tampered)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestTokenService_TamperedSignatureBeatsExpiry(t *testing.T) {
	// An expired token with a bad signature must fail on the signature,
	// not the expiry.
	s := NewTokenService(testSecret)
	s.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	token, err := s.Issue(1, domain.RoleSpeaker, "ada")
	require.NoError(t, err)

	s.now = time.Now
	tampered := flipLastSignatureChar(t, token)
	_, err = s.Verify(tampered)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
	assert.NotErrorIs(t, err, ErrCredentialExpired)
}

func TestTokenService_WrongSecret(t *testing.T) {
	token, err := NewTokenService(testSecret).Issue(1, domain.RoleAdmin, "grace")
	require.NoError(t, err)

	_, err = NewTokenService("some-other-secret").Verify(token)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestTokenService_MalformedCredential(t *testing.T) {
	s := NewTokenService(testSecret)

	for _, token := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := s.Verify(token)
		assert.ErrorIs(t, err, ErrCredentialMalformed, "token %q", token)
	}
}

func TestTokenService_UnknownRoleRejected(t *testing.T) {
	s := NewTokenService(testSecret)
	token, err := s.Issue(1, domain.Role("superuser"), "mallory")
	require.NoError(t, err)

	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrCredentialMalformed)
}

func TestTokenService_VerifyIdentity(t *testing.T) {
	s := NewTokenService(testSecret)
	token, err := s.Issue(7, domain.RoleAdmin, "grace")
	require.NoError(t, err)

	identity, err := s.VerifyIdentity(token)
	require.NoError(t, err)
	assert.Equal(t, "7", identity.Subject)
	assert.Equal(t, domain.RoleAdmin, identity.Role)
	assert.Equal(t, "grace", identity.Username)

	_, err = s.VerifyIdentity("garbage")
	assert.Error(t, err)
}

// flipLastSignatureChar alters one character of the signature segment while
// keeping it valid base64url, so the token still parses but no longer verifies.
func flipLastSignatureChar(t *testing.T, token string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := parts[2]
	last := sig[len(sig)-1]
	replacement := byte('A')
	if last == 'A' {
		replacement = 'B'
	}
	parts[2] = sig[:len(sig)-1] + string(replacement)
	return strings.Join(parts, ".")
}
