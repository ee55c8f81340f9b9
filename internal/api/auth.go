package api

import (
	"context"
	"net/http"

	"github.com/vaxassist/vax-web-ui/internal/models"
)

// Credentials carries a login request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration carries a sign-up request.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Country   string `json:"country,omitempty"`
	State     string `json:"state,omitempty"`
}

// Login signs in and returns the authenticated user. The backend session
// cookie lands in the client's jar.
func (c *Client) Login(ctx context.Context, creds Credentials) (models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.do(ctx, http.MethodPost, "/auth/register", reg, nil)
}

// Logout invalidates the backend session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// CheckSession validates the stored cookie and returns the signed-in user.
func (c *Client) CheckSession(ctx context.Context) (models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/auth/check-session", nil, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Profile returns the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/auth/profile", nil, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// UpdateProfile changes the user's display names.
func (c *Client) UpdateProfile(ctx context.Context, firstName, lastName string) error {
	body := map[string]string{"firstName": firstName, "lastName": lastName}
	return c.do(ctx, http.MethodPut, "/users/update", body, nil)
}

// ChangePassword replaces the user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return c.do(ctx, http.MethodPut, "/users/password", body, nil)
}

// ForgetPassword asks the backend to mail a reset link.
func (c *Client) ForgetPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPut, "/users/forget-password", map[string]string{"email": email}, nil)
}

// InviteFriend sends a share-with-a-friend invitation.
func (c *Client) InviteFriend(ctx context.Context, name, email string) error {
	body := map[string]string{"name": name, "email": email}
	return c.do(ctx, http.MethodPost, "/users/invite-friend", body, nil)
}

// DeleteAccount removes the signed-in user's own account.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/users/delete", nil, nil)
}
