package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cvdreamjob/apiserver/internal/services"
	"github.com/cvdreamjob/apiserver/types"
)

// maxProfileBody bounds PUT /profile. Image may be a data URL.
const maxProfileBody = 8 << 20

// ProfileHandler provides HTTP handlers for the caller's own profile.
type ProfileHandler struct {
	profiles *services.ProfileService
}

func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// ProfileRouter registers profile routes on the given router. Every route
// requires a session; limit, when set, applies to mutations only.
func ProfileRouter(
	r chi.Router,
	profiles *services.ProfileService,
	avatars *services.AvatarService,
	authMiddleware func(http.Handler) http.Handler,
	limit func(http.Handler) http.Handler,
) {
	handler := NewProfileHandler(profiles)

	r.Use(authMiddleware)
	r.Get("/", handler.GetProfile)

	mutations := r
	if limit != nil {
		mutations = r.With(limit)
	}
	mutations.Put("/", handler.UpdateProfile)
	mutations.Delete("/", handler.DeleteProfile)
	if avatars != nil {
		mutations.Post("/avatar", NewAvatarHandler(avatars).UploadAvatar)
	}
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, types.KindUnauthorized, "unauthorized")
		return
	}

	profile, err := h.profiles.Fetch(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, types.KindUnauthorized, "unauthorized")
		return
	}

	var req types.UpdateProfileRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxProfileBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, types.KindTooLarge, "request body too large")
			return
		}
		writeError(w, types.KindInvalidArgument, "invalid request")
		return
	}

	if err := h.profiles.Update(r.Context(), userID, req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Profile updated successfully"})
}

// DeleteProfile is idempotent: an already-deleted account reports success.
func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, types.KindUnauthorized, "unauthorized")
		return
	}

	if err := h.profiles.Delete(r.Context(), userID); err != nil && !errors.Is(err, services.ErrNotFound) {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{Message: "Account deleted successfully"})
}
