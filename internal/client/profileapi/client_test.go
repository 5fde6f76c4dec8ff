package profileapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cvdreamjob/apiserver/types"
)

func TestFetchProfileSendsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/profile", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		c, err := r.Cookie(SessionCookie)
		require.NoError(t, err)
		require.Equal(t, "sess.sig", c.Value)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"u1","name":"Alice","email":"alice@example.com","image":null}`)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithBearerToken("tok"), WithSessionCookie("sess.sig"))
	profile, err := c.FetchProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, types.Profile{ID: "u1", Name: "Alice", Email: "alice@example.com"}, profile)
}

func TestUpdateProfileOmitsAbsentPassword(t *testing.T) {
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		_, _ = io.WriteString(w, `{"message":"Profile updated successfully"}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	image := "/avatars/u1/a.png"
	require.NoError(t, c.UpdateProfile(context.Background(), types.UpdateProfileRequest{Name: "Alice", Image: &image}))
	password := "newpass123"
	require.NoError(t, c.UpdateProfile(context.Background(), types.UpdateProfileRequest{Name: "Alice", Password: &password}))

	require.Len(t, bodies, 2)
	require.NotContains(t, bodies[0], "password")
	require.Equal(t, "/avatars/u1/a.png", bodies[0]["image"])
	require.Equal(t, "newpass123", bodies[1]["password"])
}

func TestErrorsAreTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"name is required","kind":"invalid_argument"}`)
		case http.MethodDelete:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "boom")
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()
	c := New(srv.URL)
	ctx := context.Background()

	err := c.UpdateProfile(ctx, types.UpdateProfileRequest{})
	var apiErr *types.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, types.KindInvalidArgument, apiErr.Kind)
	require.Equal(t, "name is required", apiErr.Message)

	err = c.DeleteProfile(ctx)
	require.Equal(t, types.KindStorage, KindOf(err))
	require.ErrorContains(t, err, "boom")

	_, err = c.FetchProfile(ctx)
	require.Equal(t, types.KindUnauthorized, KindOf(err))
	require.ErrorContains(t, err, "Unauthorized")
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).FetchProfile(context.Background())
	require.Equal(t, types.KindTransport, KindOf(err))
}

func TestUploadAvatar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/profile/avatar", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "me.png", header.Filename)
		require.Equal(t, "png-bytes", string(data))

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"image":"/avatars/u1/x.png"}`)
	}))
	defer srv.Close()

	ref, err := New(srv.URL).UploadAvatar(context.Background(), "me.png", []byte("png-bytes"))
	require.NoError(t, err)
	require.Equal(t, "/avatars/u1/x.png", ref)
}
