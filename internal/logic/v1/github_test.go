package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGitHubClient(tokenURL, apiBaseURL string) *GitHubClient {
	return NewGitHubClient(GitHubConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/api/v1/auth/github/callback",
		Org:          "tryswift",
		Team:         "tokyo",
		TokenURL:     tokenURL,
		APIBaseURL:   apiBaseURL,
	})
}

func TestLoginURL_ContainsRequiredParams(t *testing.T) {
	g := newTestGitHubClient("", "")
	loginURL := g.LoginURL("some-state")

	assert.Contains(t, loginURL, "client_id=test-client-id")
	assert.Contains(t, loginURL, "redirect_uri=")
	assert.Contains(t, loginURL, "scope=read%3Aorg")
	assert.Contains(t, loginURL, "state=some-state")
}

func TestExchangeCode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "test-client-id", payload["client_id"])
		assert.Equal(t, "test-client-secret", payload["client_secret"])
		assert.Equal(t, "the-code", payload["code"])
		assert.NotEmpty(t, payload["redirect_uri"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "gho_testtoken",
			"token_type":   "bearer",
			"scope":        "read:org",
		})
	}))
	defer srv.Close()

	g := newTestGitHubClient(srv.URL, "")
	token, err := g.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "gho_testtoken", token)
}

func TestExchangeCode_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := newTestGitHubClient(srv.URL, "")
	_, err := g.ExchangeCode(context.Background(), "the-code")
	assert.ErrorIs(t, err, ErrTokenHTTP)
}

func TestExchangeCode_InBandErrorOn200(t *testing.T) {
	// GitHub reports bad codes in-band with a 200 status; the exchange must
	// not succeed with an empty token.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "bad_verification_code",
			"error_description": "The code passed is incorrect or expired.",
		})
	}))
	defer srv.Close()

	g := newTestGitHubClient(srv.URL, "")
	_, err := g.ExchangeCode(context.Background(), "stale-code")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenGitHub)
	assert.NotErrorIs(t, err, ErrTokenMissing)
}

func TestExchangeCode_MissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token_type": "bearer"})
	}))
	defer srv.Close()

	g := newTestGitHubClient(srv.URL, "")
	_, err := g.ExchangeCode(context.Background(), "the-code")
	assert.ErrorIs(t, err, ErrTokenMissing)
}

func TestFetchUser_SetsAPIHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		assert.Equal(t, "Bearer gho_testtoken", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		assert.Equal(t, apiVersion, r.Header.Get("X-GitHub-Api-Version"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":         12345,
			"login":      "ada",
			"avatar_url": "https://avatars.example/ada",
			"name":       "Ada Lovelace",
			"email":      "ada@example.com",
		})
	}))
	defer srv.Close()

	g := newTestGitHubClient("", srv.URL)
	user, err := g.FetchUser(context.Background(), "gho_testtoken")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), user.ID)
	assert.Equal(t, "ada", user.Login)
	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "https://avatars.example/ada", user.AvatarURL)
}

func TestFetchUser_OptionalFieldsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    99,
			"login": "privateuser",
			"name":  nil,
			"email": nil,
		})
	}))
	defer srv.Close()

	g := newTestGitHubClient("", srv.URL)
	user, err := g.FetchUser(context.Background(), "gho_testtoken")
	require.NoError(t, err)
	assert.Equal(t, "privateuser", user.Login)
	assert.Empty(t, user.Name)
	assert.Empty(t, user.Email)
}

func TestFetchUser_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := newTestGitHubClient("", srv.URL)
	_, err := g.FetchUser(context.Background(), "expired-token")
	assert.ErrorIs(t, err, ErrUserHTTP)
}

func TestIsTeamMember_StatusProjection(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"member", http.StatusOK, true},
		{"not a member", http.StatusNotFound, false},
		{"forbidden", http.StatusForbidden, false},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/orgs/tryswift/teams/tokyo/memberships/ada", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			g := newTestGitHubClient("", srv.URL)
			assert.Equal(t, tt.want, g.IsTeamMember(context.Background(), "gho_testtoken", "ada"))
		})
	}
}

func TestIsTeamMember_TransportErrorIsNotMember(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	g := newTestGitHubClient("", srv.URL)
	assert.False(t, g.IsTeamMember(context.Background(), "gho_testtoken", "ada"))
}
