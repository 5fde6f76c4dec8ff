package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/cvdreamjob/apiserver/internal/auth"
	"github.com/cvdreamjob/apiserver/internal/db/dbtest"
	"github.com/cvdreamjob/apiserver/internal/services"
	"github.com/cvdreamjob/apiserver/internal/storage/storagetest"
	"github.com/cvdreamjob/apiserver/internal/store"
	"github.com/cvdreamjob/apiserver/types"
)

const testSecret = "handler-test-secret"

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

type testEnv struct {
	t       *testing.T
	store   *store.Store
	objects *storagetest.Memory
	router  http.Handler
}

func newTestEnv(t *testing.T, limit func(http.Handler) http.Handler) *testEnv {
	t.Helper()
	st := store.New(dbtest.NewSQLite(t))
	objects := storagetest.NewMemory("avatars")
	avatars := services.NewAvatarService(objects)
	profiles := services.NewProfileService(st, plainHasher{}, services.WithAvatarCleanup(avatars))
	resolver := auth.Chain(auth.NewTokenResolver(testSecret), auth.NewStoreResolver(st.Sessions()))

	r := chi.NewRouter()
	r.Route("/profile", func(r chi.Router) {
		ProfileRouter(r, profiles, avatars, RequireSession(resolver), limit)
	})
	r.Route("/avatars", func(r chi.Router) {
		AvatarRouter(r, avatars)
	})
	return &testEnv{t: t, store: st, objects: objects, router: r}
}

func (e *testEnv) seed(id, name, password string) {
	e.t.Helper()
	ctx := context.Background()
	stamp := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)
	_, err := e.store.Users().Create(ctx, types.User{ID: id, Name: name, Email: id + "@example.com", CreatedAt: stamp, UpdatedAt: stamp})
	require.NoError(e.t, err)
	if password != "" {
		_, err = e.store.Accounts().Create(ctx, types.Credential{
			ID: "acc-" + id, AccountID: id, ProviderID: types.CredentialsProvider, UserID: id,
			PasswordHash: password, CreatedAt: stamp, UpdatedAt: stamp,
		})
		require.NoError(e.t, err)
	}
}

func (e *testEnv) token(userID string) string {
	e.t.Helper()
	tok, err := auth.IssueToken(userID, testSecret, time.Hour)
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) do(method, path, userID string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(userID))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(method, path, userID string, payload any) *httptest.ResponseRecorder {
	e.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(e.t, err)
		body = bytes.NewReader(raw)
	}
	return e.do(method, path, userID, body, "application/json")
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}
