package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raushankrgupta/fashionfit/account"
	"github.com/raushankrgupta/fashionfit/models"
	"github.com/raushankrgupta/fashionfit/shell"
	"github.com/raushankrgupta/fashionfit/utils"
)

const oauthStateCookie = "oauthstate"

// SessionResponse reports where the client is in the sign-in flow.
type SessionResponse struct {
	State shell.State         `json:"state"`
	User  *models.UserProfile `json:"user,omitempty"`
	Token string              `json:"token,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// clientState resolves the caller's settled state from an optional bearer token.
func (h *Handler) clientState(r *http.Request) (shell.State, *account.Session, error) {
	token := bearerToken(r)
	if token == "" {
		state, err := shell.Next(shell.Uninitialized, shell.Initialized(nil))
		return state, nil, err
	}
	sess, err := h.Accounts.Restore(r.Context(), token)
	if errors.Is(err, account.ErrNoSession) {
		state, err := shell.Next(shell.Uninitialized, shell.Initialized(nil))
		return state, nil, err
	}
	if err != nil {
		return shell.Uninitialized, nil, err
	}
	state, err := shell.Next(shell.Uninitialized, shell.Initialized(&sess.User))
	return state, &sess, err
}

func sessionResponse(sess account.Session) SessionResponse {
	user := sess.User
	return SessionResponse{State: shell.StateFor(&user), User: &user, Token: sess.Token}
}

// SessionHandler reports the current state and, when signed in, the user.
func (h *Handler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondError(w, nil, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state, sess, err := h.clientState(r)
	if err != nil {
		h.Logger.Error("session lookup failed", zap.Error(err))
		utils.RespondError(w, nil, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := SessionResponse{State: state}
	if sess != nil {
		resp.User = &sess.User
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

// LoginHandler signs in with an email and optional password.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(h.Logger, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Login API]")

	if r.Method != http.MethodPost {
		utils.RespondError(w, &logMessageBuilder, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Invalid request body", http.StatusBadRequest)
		return
	}

	state, _, err := h.clientState(r)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, "Session lookup failed: "+err.Error())
		utils.RespondError(w, nil, "Internal server error", http.StatusInternalServerError)
		return
	}
	// The profile is unknown until the login succeeds; only the source state matters here.
	if _, err := shell.Next(state, shell.LoggedIn(models.UserProfile{})); err != nil {
		utils.RespondError(w, &logMessageBuilder, "Already signed in", http.StatusConflict)
		return
	}

	sess, err := h.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, "Login failed: "+err.Error())
		switch {
		case errors.Is(err, account.ErrInvalidEmail):
			utils.RespondError(w, nil, err.Error(), http.StatusBadRequest)
		case errors.Is(err, account.ErrInvalidCredentials):
			utils.RespondError(w, nil, err.Error(), http.StatusUnauthorized)
		default:
			utils.RespondError(w, nil, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, "User logged in: "+sess.User.UID)
	utils.RespondJSON(w, http.StatusOK, sessionResponse(sess))
}

// GoogleLoginHandler redirects to Google with a one-time state cookie.
func (h *Handler) GoogleLoginHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(h.Logger, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Google Login API]")

	state := uuid.NewString()
	authURL, err := h.Accounts.GoogleAuthURL(state)
	if err != nil {
		utils.RespondError(w, &logMessageBuilder, err.Error(), http.StatusNotImplemented)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	utils.AddToLogMessage(&logMessageBuilder, "Redirecting to Google Auth")
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// GoogleCallbackHandler completes Google sign-in.
func (h *Handler) GoogleCallbackHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(h.Logger, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Google Callback API]")

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || r.FormValue("state") != cookie.Value {
		utils.RespondError(w, &logMessageBuilder, "Invalid oauth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/auth/google", MaxAge: -1})

	code := r.FormValue("code")
	if code == "" {
		utils.RespondError(w, &logMessageBuilder, "Code not found", http.StatusBadRequest)
		return
	}

	sess, err := h.Accounts.LoginWithGoogle(r.Context(), code)
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, "Google login failed: "+err.Error())
		if errors.Is(err, account.ErrGoogleDisabled) {
			utils.RespondError(w, nil, err.Error(), http.StatusNotImplemented)
			return
		}
		utils.RespondError(w, nil, "Google sign-in failed", http.StatusUnauthorized)
		return
	}

	utils.AddToLogMessage(&logMessageBuilder, "User logged in with Google: "+sess.User.UID)
	utils.RespondJSON(w, http.StatusOK, sessionResponse(sess))
}

// LogoutHandler forgets the current user.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondError(w, nil, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := GetSessionFromContext(r.Context())
	if err != nil {
		utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
		return
	}

	next, err := shell.Next(shell.StateFor(&sess.User), shell.Logout())
	if err != nil {
		utils.RespondError(w, nil, err.Error(), http.StatusConflict)
		return
	}
	if err := h.Accounts.Logout(r.Context(), sess); err != nil {
		h.Logger.Error("logout failed", zap.Error(err), zap.String("user_id", sess.User.UID))
		utils.RespondError(w, nil, "Internal server error", http.StatusInternalServerError)
		return
	}
	utils.RespondJSON(w, http.StatusOK, SessionResponse{State: next})
}
