// Package account signs users in and out and records their gender choice.
// There is no global current user: operations take and return a Session.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/raushankrgupta/fashionfit/models"
	"github.com/raushankrgupta/fashionfit/store"
)

var (
	ErrInvalidEmail       = errors.New("a valid email is required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoSession          = errors.New("no active session")
	ErrInvalidGender      = errors.New("gender must be male or female")
	ErrGoogleDisabled     = errors.New("google sign-in is not configured")
)

// TokenTTL is how long a session token stays valid.
const TokenTTL = 24 * time.Hour

// Session is a signed-in user and the bearer token that identifies it.
type Session struct {
	User  models.UserProfile `json:"user"`
	Token string             `json:"token"`
}

type Service struct {
	profiles store.Profiles
	secret   []byte
	now      func() time.Time
	cost     int

	google      *oauth2.Config
	userInfoURL string
}

type Option func(*Service)

// WithGoogle enables LoginWithGoogle.
func WithGoogle(cfg *oauth2.Config) Option {
	return func(s *Service) { s.google = cfg }
}

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func NewService(profiles store.Profiles, secret string, opts ...Option) *Service {
	s := &Service{
		profiles:    profiles,
		secret:      []byte(secret),
		now:         time.Now,
		cost:        bcrypt.DefaultCost,
		userInfoURL: googleUserInfoURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login signs in by email. A known email gets its stored profile back, gender
// included; an unknown one gets a fresh profile with gender unset. A password
// is optional: the first one given is stored and required from then on.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	return s.login(ctx, email, password, false)
}

func (s *Service) login(ctx context.Context, email, password string, trusted bool) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}

	profile, err := s.profiles.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrProfileNotFound):
		profile = &models.UserProfile{
			UID:       newUID(),
			Email:     email,
			Gender:    models.GenderUnset,
			CreatedAt: s.now().UnixMilli(),
		}
	case err != nil:
		return Session{}, fmt.Errorf("failed to look up profile: %w", err)
	}

	if profile.PasswordHash != "" && !trusted {
		if bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)) != nil {
			return Session{}, ErrInvalidCredentials
		}
	} else if profile.PasswordHash == "" && password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if err != nil {
			return Session{}, fmt.Errorf("failed to hash password: %w", err)
		}
		profile.PasswordHash = string(hash)
	}

	if err := s.profiles.Put(ctx, *profile); err != nil {
		return Session{}, err
	}
	if err := s.profiles.SetCurrent(ctx, *profile); err != nil {
		return Session{}, err
	}
	return s.issue(*profile)
}

// Restore resumes the session named by token if its user is still the current one.
func (s *Service) Restore(ctx context.Context, token string) (Session, error) {
	uid, err := ValidateToken(s.secret, token)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	current, err := s.profiles.Current(ctx)
	if err != nil {
		return Session{}, err
	}
	if current == nil || current.UID != uid {
		return Session{}, ErrNoSession
	}
	return Session{User: *current, Token: token}, nil
}

// Current returns the persisted current user, or nil.
func (s *Service) Current(ctx context.Context) (*models.UserProfile, error) {
	return s.profiles.Current(ctx)
}

// SetGender stores the choice on the profile and returns the updated session.
func (s *Service) SetGender(ctx context.Context, sess Session, g models.Gender) (Session, error) {
	if !g.IsSet() {
		return Session{}, ErrInvalidGender
	}

	profile, err := s.profiles.FindByID(ctx, sess.User.UID)
	if errors.Is(err, store.ErrProfileNotFound) {
		profile = &sess.User
	} else if err != nil {
		return Session{}, err
	}

	profile.Gender = g
	if err := s.profiles.Put(ctx, *profile); err != nil {
		return Session{}, err
	}
	if err := s.profiles.SetCurrent(ctx, *profile); err != nil {
		return Session{}, err
	}
	return Session{User: *profile, Token: sess.Token}, nil
}

// Logout forgets the current user. The profile itself is kept.
func (s *Service) Logout(ctx context.Context, _ Session) error {
	return s.profiles.ClearCurrent(ctx)
}

func (s *Service) issue(p models.UserProfile) (Session, error) {
	token, err := GenerateToken(s.secret, p.UID, s.now(), TokenTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{User: p, Token: token}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func newUID() string {
	return "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
