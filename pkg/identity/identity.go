// Package identity resolves the local user through the identity
// collaborator. Authentication UI and the credential flow itself are
// externally owned; the engine only needs the signed-in user and a bearer
// access token for the backend collaborator.
package identity

import "context"

// User is the signed-in local participant.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
}

// DisplayName returns the best human-readable name for the user.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// Provider resolves the current user and supplies the bearer credential
// used against the backend collaborator.
type Provider interface {
	CurrentUser(ctx context.Context) (User, error)
	AccessToken() string
}

// Static is a fixed identity, used in tests and local development.
type Static struct {
	User  User
	Token string
}

func (s Static) CurrentUser(context.Context) (User, error) { return s.User, nil }
func (s Static) AccessToken() string                       { return s.Token }
