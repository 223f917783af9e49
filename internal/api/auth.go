package api

import (
	"context"
	"net/http"
)

// Login authenticates with email and password; the backend sets the session
// cookie on the client's jar.
func (c *Client) Login(ctx context.Context, form LoginForm) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, "auth/login", form, &msg)
	return msg, err
}

// Logout ends the session. The cached CSRF token is discarded whether or not
// the backend call succeeds: it belongs to the session being ended.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "auth/logout", nil, nil)

	if c.tokens != nil {
		c.tokens.ClearToken()
	}

	return err
}

func (c *Client) CreateAccount(ctx context.Context, form RegistrationForm) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, "auth/create-account", form, &msg)
	return msg, err
}

func (c *Client) ConfirmAccount(ctx context.Context, token string) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, "auth/confirm-account", map[string]string{"token": token}, &msg)
	return msg, err
}

// RequestCode asks for a new account confirmation code.
func (c *Client) RequestCode(ctx context.Context, email string) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, "auth/request-code", map[string]string{"email": email}, &msg)
	return msg, err
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, "auth/forgot-password", map[string]string{"email": email}, &msg)
	return msg, err
}

// ValidateToken checks a password reset code.
func (c *Client) ValidateToken(ctx context.Context, token string) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, "auth/validate-token", map[string]string{"token": token}, &msg)
	return msg, err
}

// UpdatePasswordWithToken sets a new password using a validated reset code.
func (c *Client) UpdatePasswordWithToken(ctx context.Context, token string, form NewPasswordForm) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, pathf("auth/update-password/%s", token), form, &msg)
	return msg, err
}

// User returns the authenticated user.
func (c *Client) User(ctx context.Context) (User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "auth/user", nil, &u)
	return u, err
}

func (c *Client) UpdateProfile(ctx context.Context, form ProfileForm) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPatch, "auth/profile", form, &msg)
	return msg, err
}

// ChangePassword changes the authenticated user's password.
func (c *Client) ChangePassword(ctx context.Context, form ChangePasswordForm) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPatch, "auth/update-password", form, &msg)
	return msg, err
}

// CheckPassword confirms the user's current password before a destructive
// action.
func (c *Client) CheckPassword(ctx context.Context, password string) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPost, "auth/check-password", map[string]string{"password": password}, &msg)
	return msg, err
}
