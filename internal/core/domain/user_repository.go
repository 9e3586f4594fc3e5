package domain

import "context"

// Role is the closed set of roles a user can hold. It is embedded in the
// session credential at login and never changes for the credential's lifetime.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSpeaker Role = "speaker"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSpeaker
}

// UserRow represents a user record returned from the database.
type UserRow struct {
	ID        int
	GitHubID  int64
	Login     string
	Name      string
	Email     string
	AvatarURL string
	Role      Role
}

// UserRepository defines the data-access contract for user operations.
// Implementations live in internal/core/repository (Core layer).
// The Logic layer depends on this interface only — never on SQL or pgx directly.
type UserRepository interface {
	// Upsert inserts the user or, when a row with the same GitHub ID exists,
	// refreshes login, name, email, avatar and role from the latest OAuth
	// profile. Returns the stored row. Called only after the full OAuth
	// exchange has succeeded.
	Upsert(ctx context.Context, user UserRow) (*UserRow, error)

	// GetByGitHubID returns the user with the given GitHub account ID.
	// Returns (nil, nil) when no user is found.
	GetByGitHubID(ctx context.Context, githubID int64) (*UserRow, error)

	// List returns all users ordered by login, for the admin listing.
	List(ctx context.Context) ([]UserRow, error)
}
