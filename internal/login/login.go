// Package login talks to the backend auth endpoint and feeds the session
// context. It also carries the lock-screen collaborator that re-checks
// the password before the idle monitor is unlocked.
package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"mediport.org/internal/obs"
	"mediport.org/internal/session"
	"mediport.org/internal/transport"
)

// ErrTokenMissing reports a login response that carried none of the
// recognized token fields.
var ErrTokenMissing = errors.New("token missing in response")

// Credentials is one login attempt.
type Credentials struct {
	Username string
	Password string
	Remember bool
}

// Authenticator drives the login, profile-update and password re-check
// flows against the portal backend.
type Authenticator struct {
	client  *transport.Client
	session *session.Context
}

// New builds an Authenticator over the rewritten client.
func New(client *transport.Client, sess *session.Context) *Authenticator {
	return &Authenticator{client: client, session: sess}
}

// loginResponse tolerates the backend's three token spellings and carries
// the profile snapshot alongside.
type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
	JWT         string `json:"jwt"`

	ID            any      `json:"id"`
	Username      string   `json:"username"`
	Email         string   `json:"email"`
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
	Phone         string   `json:"phone"`
	AvatarURL     string   `json:"avatarUrl"`
	Roles         []string `json:"roles"`
	ProfileType   string   `json:"profileType"`
	LicenseNumber string   `json:"licenseNumber"`
	StaffNumber   string   `json:"staffNumber"`
	Active        *bool    `json:"active"`
}

func (r *loginResponse) token() string {
	switch {
	case r.Token != "":
		return r.Token
	case r.AccessToken != "":
		return r.AccessToken
	default:
		return r.JWT
	}
}

// Login authenticates against the backend. On success the token and
// profile are stored through the session context and a password digest is
// cached for the lock screen. On failure nothing is stored.
func (a *Authenticator) Login(ctx context.Context, creds Credentials) (session.Profile, error) {
	req, err := a.client.NewRequest(ctx, http.MethodPost, a.client.LoginPath(), map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	})
	if err != nil {
		return session.Profile{}, err
	}
	var resp loginResponse
	if err := a.client.DoJSON(req, &resp); err != nil {
		return session.Profile{}, fmt.Errorf("login: %w", err)
	}
	token := resp.token()
	if token == "" {
		return session.Profile{}, ErrTokenMissing
	}

	a.session.SetToken(token, creds.Remember)

	profile := session.Profile{
		ID:            stringify(resp.ID),
		Username:      resp.Username,
		Email:         resp.Email,
		FirstName:     resp.FirstName,
		LastName:      resp.LastName,
		Phone:         resp.Phone,
		AvatarURL:     resp.AvatarURL,
		Roles:         resp.Roles,
		ProfileType:   resp.ProfileType,
		LicenseNumber: resp.LicenseNumber,
		StaffNumber:   resp.StaffNumber,
		Active:        resp.Active == nil || *resp.Active,
	}
	if len(profile.Roles) == 0 {
		if claims, ok := session.DecodeClaims(token); ok {
			profile.Roles = claims.Roles
		}
	}
	a.session.SetProfile(profile)

	if digest, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost); err == nil {
		a.session.SetPasswordDigest(string(digest))
	}

	obs.LogEvent(map[string]any{
		"level":    "info",
		"msg":      "login succeeded",
		"username": profile.Username,
	})
	return profile, nil
}

// VerifyPassword compares a lock-screen entry with the digest cached at
// login. Without a cached digest every attempt fails; the user has to log
// in again.
func (a *Authenticator) VerifyPassword(password string) bool {
	digest, ok := a.session.PasswordDigest()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// UpdateProfile pushes a profile patch to the backend and, on success,
// through the session's normal profile write path.
func (a *Authenticator) UpdateProfile(ctx context.Context, patch session.ProfilePatch) error {
	body := map[string]string{}
	if patch.FirstName != nil {
		body["firstName"] = *patch.FirstName
	}
	if patch.LastName != nil {
		body["lastName"] = *patch.LastName
	}
	if patch.Email != nil {
		body["email"] = *patch.Email
	}
	if patch.Phone != nil {
		body["phone"] = *patch.Phone
	}
	if patch.AvatarURL != nil {
		body["avatarUrl"] = *patch.AvatarURL
	}
	if len(body) == 0 {
		return nil
	}
	req, err := a.client.NewRequest(ctx, http.MethodPatch, "/account/profile", body)
	if err != nil {
		return err
	}
	if err := a.client.DoJSON(req, nil); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	a.session.UpdateProfile(patch)
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}
