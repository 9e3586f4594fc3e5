package v1

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tryswift/cfp-auth/internal/core/domain"
	"github.com/tryswift/cfp-auth/middleware"
)

// AuthService implements the login and identity business rules.
// It depends on the repository interface and the GitHub client (injected via
// constructor) and MUST NOT access the database or SQL directly.
type AuthService struct {
	users  domain.UserRepository
	github *GitHubClient
	tokens *TokenService
}

// NewAuthService creates a new AuthService with the given dependencies.
func NewAuthService(users domain.UserRepository, github *GitHubClient, tokens *TokenService) *AuthService {
	return &AuthService{
		users:  users,
		github: github,
		tokens: tokens,
	}
}

// LoginURL returns the GitHub authorize URL for the login redirect.
func (s *AuthService) LoginURL(state string) string {
	return s.github.LoginURL(state)
}

// Login converts a GitHub authorization code into a signed session credential.
// The three upstream calls are strictly sequential (each depends on the
// previous result) and the User record is written only after all of them
// succeed, so an aborted request commits nothing.
func (s *AuthService) Login(ctx context.Context, code string) (*domain.AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	accessToken, err := s.github.ExchangeCode(ctx, code)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("auth.success", false))
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	ghUser, err := s.github.FetchUser(ctx, accessToken)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("auth.success", false))
		return nil, fmt.Errorf("fetch github user: %w", err)
	}

	role := domain.RoleSpeaker
	if s.github.IsTeamMember(ctx, accessToken, ghUser.Login) {
		role = domain.RoleAdmin
	}

	row, err := s.users.Upsert(ctx, domain.UserRow{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Name:      ghUser.Name,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
		Role:      role,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("upsert user %q: %w", ghUser.Login, err)
	}

	token, err := s.tokens.Issue(row.ID, row.Role, row.Login)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue credential for user %q: %w", row.Login, err)
	}

	span.SetAttributes(
		attribute.String("user.id", strconv.Itoa(row.ID)),
		attribute.String("user.role", string(row.Role)),
		attribute.Bool("auth.success", true),
	)
	span.AddEvent("user.authenticated")

	return &domain.AuthResponse{
		Token: token,
		User: domain.User{
			ID:        strconv.Itoa(row.ID),
			Login:     row.Login,
			Name:      row.Name,
			Email:     row.Email,
			AvatarURL: row.AvatarURL,
			Role:      row.Role,
		},
	}, nil
}

// ListUsers returns all registered users, for the admin listing.
func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.list_users", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	rows, err := s.users.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, domain.User{
			ID:        strconv.Itoa(row.ID),
			Login:     row.Login,
			Name:      row.Name,
			Email:     row.Email,
			AvatarURL: row.AvatarURL,
			Role:      row.Role,
		})
	}

	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}
