package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultAuthorizeURL = "https://github.com/login/oauth/authorize"
	defaultTokenURL     = "https://github.com/login/oauth/access_token"
	defaultAPIBaseURL   = "https://api.github.com"

	apiVersion = "2022-11-28"
	userAgent  = "tryswift-cfp-auth"
)

// GitHubConfig configures the OAuth app and the org/team whose members are
// granted the admin role. The URLs can be overridden in tests.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Org          string
	Team         string

	AuthorizeURL string
	TokenURL     string
	APIBaseURL   string
}

// GitHubUser is the profile returned by the GitHub user endpoint.
// name and email may be absent for accounts that keep them private.
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// GitHubClient performs the three-legged GitHub OAuth exchange and the
// follow-up identity and team-membership lookups. It holds no state beyond
// configuration; every call is an independent outbound request.
type GitHubClient struct {
	config GitHubConfig
	client *http.Client
}

// NewGitHubClient creates a GitHubClient. Endpoint URLs left empty default
// to the public GitHub endpoints.
func NewGitHubClient(config GitHubConfig) *GitHubClient {
	if config.AuthorizeURL == "" {
		config.AuthorizeURL = defaultAuthorizeURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	return &GitHubClient{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// LoginURL builds the GitHub authorize URL the login endpoint redirects to.
// read:org scope is needed for the team-membership check.
func (g *GitHubClient) LoginURL(state string) string {
	params := url.Values{
		"client_id":    {g.config.ClientID},
		"redirect_uri": {g.config.RedirectURL},
		"scope":        {"read:org"},
		"state":        {state},
	}
	return g.config.AuthorizeURL + "?" + params.Encode()
}

// tokenResponse is the token endpoint response. GitHub signals some failures
// in-band with an error field on an HTTP 200, so all fields are optional.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode converts a GitHub-issued authorization code into an access
// token. Three failure modes are checked in order: non-200 status
// (ErrTokenHTTP), an in-band error field on any status (ErrTokenGitHub),
// and a missing access_token field (ErrTokenMissing).
func (g *GitHubClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":     g.config.ClientID,
		"client_secret": g.config.ClientSecret,
		"code":          code,
		"redirect_uri":  g.config.RedirectURL,
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %v: %w", err, ErrTokenHTTP)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange status %d: %s: %w", resp.StatusCode, body, ErrTokenHTTP)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tok.Error != "" {
		return "", fmt.Errorf("token exchange rejected: %s (%s): %w", tok.Error, tok.ErrorDescription, ErrTokenGitHub)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token exchange response: %w", ErrTokenMissing)
	}

	return tok.AccessToken, nil
}

// FetchUser retrieves the authenticated user's profile.
func (g *GitHubClient) FetchUser(ctx context.Context, accessToken string) (*GitHubUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.APIBaseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create user request: %w", err)
	}
	g.setAPIHeaders(req, accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user request: %v: %w", err, ErrUserHTTP)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read user response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user fetch status %d: %s: %w", resp.StatusCode, body, ErrUserHTTP)
	}

	var user GitHubUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("parse user response: %w", err)
	}

	return &user, nil
}

// IsTeamMember reports whether the user belongs to the configured org team.
// Membership is a boolean projection of the status code: 200 means member,
// anything else (404 included) means not a member. Transport errors also
// yield false, with a warning, so a teams API outage degrades admins to
// speakers instead of failing the whole login.
func (g *GitHubClient) IsTeamMember(ctx context.Context, accessToken, username string) bool {
	endpoint := fmt.Sprintf("%s/orgs/%s/teams/%s/memberships/%s",
		g.config.APIBaseURL, g.config.Org, g.config.Team, url.PathEscape(username))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	g.setAPIHeaders(req, accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("Team membership check failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func (g *GitHubClient) setAPIHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", userAgent)
}
