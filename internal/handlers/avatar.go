package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cvdreamjob/apiserver/internal/logging"
	"github.com/cvdreamjob/apiserver/internal/services"
	"github.com/cvdreamjob/apiserver/internal/storage"
	"github.com/cvdreamjob/apiserver/types"
)

const (
	formFieldFile      = "file"
	maxMultipartMemory = 1 << 20
	// multipart framing on top of the file itself
	maxUploadOverhead = 64 << 10
)

// AvatarHandler uploads and serves avatar images.
type AvatarHandler struct {
	avatars *services.AvatarService
}

func NewAvatarHandler(avatars *services.AvatarService) *AvatarHandler {
	return &AvatarHandler{avatars: avatars}
}

// AvatarRouter registers the public avatar download route.
func AvatarRouter(r chi.Router, avatars *services.AvatarService) {
	r.Get("/*", NewAvatarHandler(avatars).ServeAvatar)
}

func (h *AvatarHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, types.KindUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAvatarBytes+maxUploadOverhead)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, types.KindTooLarge, "file too large")
			return
		}
		writeError(w, types.KindInvalidArgument, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files := r.MultipartForm.File[formFieldFile]
	if len(files) != 1 {
		writeError(w, types.KindInvalidArgument, "exactly one file is required")
		return
	}
	file, err := files[0].Open()
	if err != nil {
		writeError(w, types.KindInvalidArgument, "failed to read file")
		return
	}
	data, err := readFileLimited(file, services.MaxAvatarBytes)
	_ = file.Close()
	if err != nil {
		writeError(w, types.KindTooLarge, err.Error())
		return
	}

	ref, err := h.avatars.Upload(r.Context(), userID, data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.AvatarResponse{Image: ref})
}

func (h *AvatarHandler) ServeAvatar(w http.ResponseWriter, r *http.Request) {
	obj, err := h.avatars.Open(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer obj.Body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", storage.CacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		logging.FromContext(r.Context()).Warn("stream avatar", "err", err)
	}
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
