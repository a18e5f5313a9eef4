package identity

import (
	"context"
	"fmt"

	"github.com/workos/workos-go/v6/pkg/usermanagement"
)

// WorkOS resolves the current user through WorkOS User Management.
// The surrounding application completes the sign-in flow and hands this
// provider the resulting user id and session access token.
type WorkOS struct {
	userID      string
	accessToken string
}

// NewWorkOS configures the WorkOS client with the given API key and binds
// the provider to the signed-in user.
func NewWorkOS(apiKey, userID, accessToken string) *WorkOS {
	usermanagement.SetAPIKey(apiKey)
	return &WorkOS{userID: userID, accessToken: accessToken}
}

// CurrentUser fetches the bound user from WorkOS.
func (w *WorkOS) CurrentUser(ctx context.Context) (User, error) {
	if w.userID == "" {
		return User{}, fmt.Errorf("no signed-in user")
	}
	u, err := usermanagement.GetUser(ctx, usermanagement.GetUserOpts{User: w.userID})
	if err != nil {
		return User{}, fmt.Errorf("workos get user: %w", err)
	}
	return User{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
	}, nil
}

// AccessToken returns the bearer credential for the backend collaborator.
func (w *WorkOS) AccessToken() string {
	return w.accessToken
}
