package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raushankrgupta/fashionfit/account"
	"github.com/raushankrgupta/fashionfit/shell"
	"github.com/raushankrgupta/fashionfit/utils"
)

type contextKey string

const (
	sessionKey   contextKey = "session"
	requestIDKey contextKey = "request_id"
)

var errNoSessionInContext = errors.New("no session in request context")

// GetSessionFromContext returns the session attached by AuthMiddleware.
func GetSessionFromContext(ctx context.Context) (account.Session, error) {
	sess, ok := ctx.Value(sessionKey).(account.Session)
	if !ok {
		return account.Session{}, errNoSessionInContext
	}
	return sess, nil
}

// GetRequestID returns the id assigned by RequestIDMiddleware.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestIDMiddleware honours an incoming X-Request-ID or assigns a new one.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthMiddleware restores the caller's session from the bearer token.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
			return
		}

		sess, err := h.Accounts.Restore(r.Context(), token)
		if errors.Is(err, account.ErrNoSession) {
			utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if err != nil {
			h.Logger.Error("session restore failed", zap.Error(err))
			utils.RespondError(w, nil, "Internal server error", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

// RequireState answers 409 unless the signed-in user is settled in want.
func RequireState(want shell.State, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := GetSessionFromContext(r.Context())
		if err != nil {
			utils.RespondError(w, nil, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if state := shell.StateFor(&sess.User); state != want {
			utils.RespondJSON(w, http.StatusConflict, map[string]interface{}{
				"error": "not available in state " + state.String(),
				"state": state,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
