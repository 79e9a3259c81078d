package account

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleConfig builds the OAuth2 client configuration for Google sign-in.
func GoogleConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		RedirectURL:  redirectURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}

// GoogleAuthURL is where the user is sent to sign in.
func (s *Service) GoogleAuthURL(state string) (string, error) {
	if s.google == nil {
		return "", ErrGoogleDisabled
	}
	return s.google.AuthCodeURL(state), nil
}

// LoginWithGoogle exchanges the callback code and signs in with the Google
// account's email. Google has verified the user, so no password is checked.
func (s *Service) LoginWithGoogle(ctx context.Context, code string) (Session, error) {
	if s.google == nil {
		return Session{}, ErrGoogleDisabled
	}

	token, err := s.google.Exchange(ctx, code)
	if err != nil {
		return Session{}, fmt.Errorf("failed to exchange token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return Session{}, err
	}
	resp, err := s.google.Client(ctx, token).Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Session{}, fmt.Errorf("failed to get user info: status %d", resp.StatusCode)
	}

	var info struct {
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Session{}, fmt.Errorf("failed to read user info: %w", err)
	}
	if !info.VerifiedEmail {
		return Session{}, ErrInvalidCredentials
	}
	return s.login(ctx, info.Email, "", true)
}
