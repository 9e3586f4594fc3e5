package domain

// User is the public user profile returned by the auth API.
type User struct {
	ID        string `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Role      Role   `json:"role"`
}

// AuthResponse is the successful login payload: the signed session credential
// plus the profile it was minted for. The client presents the token on
// subsequent requests as "Authorization: Bearer <token>".
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
