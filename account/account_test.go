package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/raushankrgupta/fashionfit/kv"
	"github.com/raushankrgupta/fashionfit/models"
	"github.com/raushankrgupta/fashionfit/store"
)

func newService(opts ...Option) (*Service, *store.BlobProfiles) {
	profiles := store.NewBlobProfiles(kv.NewMemory())
	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	return NewService(profiles, "test-secret", opts...), profiles
}

func TestLogin_NewUser(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	sess, err := svc.Login(ctx, "  Alice@Example.com ", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.User.UID, "user_"))
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.Equal(t, models.GenderUnset, sess.User.Gender)
	assert.NotEmpty(t, sess.Token)

	cur, err := svc.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, sess.User.UID, cur.UID)
}

func TestLogin_InvalidEmail(t *testing.T) {
	svc, _ := newService()
	for _, email := range []string{"", "alice", "Alice <alice@example.com>"} {
		_, err := svc.Login(context.Background(), email, "")
		assert.ErrorIs(t, err, ErrInvalidEmail, email)
	}
}

func TestLogoutThenReloginRestoresGender(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	sess, err := svc.Login(ctx, "bob@example.com", "")
	require.NoError(t, err)
	sess, err = svc.SetGender(ctx, sess, models.GenderMale)
	require.NoError(t, err)
	assert.Equal(t, models.GenderMale, sess.User.Gender)

	require.NoError(t, svc.Logout(ctx, sess))
	cur, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)

	_, err = svc.Restore(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrNoSession)

	again, err := svc.Login(ctx, "bob@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, sess.User.UID, again.User.UID)
	assert.Equal(t, models.GenderMale, again.User.Gender)
}

func TestLogin_Password(t *testing.T) {
	svc, profiles := newService()
	ctx := context.Background()

	_, err := svc.Login(ctx, "carol@example.com", "hunter22")
	require.NoError(t, err)

	stored, err := profiles.FindByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter22")))

	_, err = svc.Login(ctx, "carol@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "carol@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "carol@example.com", "hunter22")
	assert.NoError(t, err)
}

func TestRestore(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	a, err := svc.Login(ctx, "a@example.com", "")
	require.NoError(t, err)

	restored, err := svc.Restore(ctx, a.Token)
	require.NoError(t, err)
	assert.Equal(t, a.User, restored.User)

	_, err = svc.Restore(ctx, "garbage")
	assert.ErrorIs(t, err, ErrNoSession)

	// Another login replaces the current user.
	_, err = svc.Login(ctx, "b@example.com", "")
	require.NoError(t, err)
	_, err = svc.Restore(ctx, a.Token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRestore_ExpiredToken(t *testing.T) {
	svc, _ := newService()
	svc.now = func() time.Time { return time.Now().Add(-2 * TokenTTL) }

	sess, err := svc.Login(context.Background(), "old@example.com", "")
	require.NoError(t, err)

	_, err = svc.Restore(context.Background(), sess.Token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSetGender_RejectsUnset(t *testing.T) {
	svc, _ := newService()
	sess, err := svc.Login(context.Background(), "d@example.com", "")
	require.NoError(t, err)

	_, err = svc.SetGender(context.Background(), sess, models.GenderUnset)
	assert.ErrorIs(t, err, ErrInvalidGender)
}

func TestToken(t *testing.T) {
	secret := []byte("s")
	tok, err := GenerateToken(secret, "user_1", time.Now(), time.Hour)
	require.NoError(t, err)

	uid, err := ValidateToken(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "user_1", uid)

	_, err = ValidateToken([]byte("other"), tok)
	assert.Error(t, err)

	_, err = GenerateToken(nil, "user_1", time.Now(), time.Hour)
	assert.Error(t, err)
}

func TestLoginWithGoogle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			json.NewEncoder(w).Encode(map[string]any{"access_token": "at", "token_type": "Bearer", "expires_in": 3600})
		case "/userinfo":
			if r.Header.Get("Authorization") != "Bearer at" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"email": "gina@example.com", "verified_email": true})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/auth/google/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
	}
	svc, _ := newService(WithGoogle(cfg))
	svc.userInfoURL = srv.URL + "/userinfo"

	authURL, err := svc.GoogleAuthURL("state-1")
	require.NoError(t, err)
	assert.Contains(t, authURL, "state=state-1")

	ctx := context.Background()
	_, err = svc.Login(ctx, "gina@example.com", "pw")
	require.NoError(t, err)

	sess, err := svc.LoginWithGoogle(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, "gina@example.com", sess.User.Email)
}

func TestGoogleDisabled(t *testing.T) {
	svc, _ := newService(WithGoogle(GoogleConfig("", "", "")))
	_, err := svc.GoogleAuthURL("s")
	assert.ErrorIs(t, err, ErrGoogleDisabled)
	_, err = svc.LoginWithGoogle(context.Background(), "code")
	assert.ErrorIs(t, err, ErrGoogleDisabled)
}
