package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cvdreamjob/apiserver/internal/logging"
	"github.com/cvdreamjob/apiserver/internal/services"
	"github.com/cvdreamjob/apiserver/types"
)

type contextKey string

const contextUserIDKey contextKey = "user_id"

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextUserIDKey, userID)
}

// UserIDFromContext returns the session user id set by RequireSession.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextUserIDKey).(string)
	return userID, ok && userID != ""
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, kind types.ErrorKind, message string) {
	writeJSON(w, kind.HTTPStatus(), types.ErrorResponse{Error: message, Kind: kind})
}

// writeServiceError maps a service error to its status. Storage faults are
// logged here since their details never reach the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := services.KindOf(err)
	if kind == types.KindStorage {
		logging.FromContext(r.Context()).Error("request failed", "err", err)
	}
	writeError(w, kind, services.PublicMessage(err))
}
