package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rosterbot/rosterbot/internal/store"
)

type managerKey struct{}

// WithManager stores the authenticated manager's id and team id in the
// context.
func WithManager(ctx context.Context, managerID, teamID int64) context.Context {
	return context.WithValue(ctx, managerKey{}, [2]int64{managerID, teamID})
}

// ManagerFromContext returns the authenticated manager id and team id, or
// zeros if the request is unauthenticated.
func ManagerFromContext(ctx context.Context) (managerID, teamID int64) {
	ids, _ := ctx.Value(managerKey{}).([2]int64)
	return ids[0], ids[1]
}

// RequireAuth validates the bearer session token and resolves the manager it
// belongs to.
func RequireAuth(sessions *store.SessionStore, managers *store.ManagerStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := sessions.GetByToken(token)
			if err != nil || sess == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			mgr, err := managers.GetByID(sess.ManagerID)
			if err != nil || mgr == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := WithManager(r.Context(), mgr.ID, mgr.TeamID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return after
	}
	// WebSocket clients can't set headers; allow the token as a query
	// parameter for the alert feed.
	return r.URL.Query().Get("token")
}
