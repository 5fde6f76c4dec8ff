// Package profileapi is an HTTP client for the profile endpoints.
package profileapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cvdreamjob/apiserver/types"
)

const defaultTimeout = 30 * time.Second

// SessionCookie is the cookie the server reads provider sessions from.
const SessionCookie = "better-auth.session_token"

// Client calls the profile API on behalf of one session.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	bearer string
	cookie string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithBearerToken authenticates with "Authorization: Bearer <token>".
func WithBearerToken(token string) Option {
	return func(c *Client) { c.bearer = token }
}

// WithSessionCookie authenticates with the provider session cookie. value is
// sent as-is, so a signed cookie must already carry its signature.
func WithSessionCookie(value string) Option {
	return func(c *Client) { c.cookie = value }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchProfile returns the caller's profile.
func (c *Client) FetchProfile(ctx context.Context) (types.Profile, error) {
	resp, err := c.do(ctx, http.MethodGet, "/profile", nil, "")
	if err != nil {
		return types.Profile{}, err
	}
	var profile types.Profile
	if err := decodeJSON(resp, &profile, http.StatusOK); err != nil {
		return types.Profile{}, err
	}
	return profile, nil
}

// UpdateProfile sends a full replacement of name, image and optional password.
func (c *Client) UpdateProfile(ctx context.Context, req types.UpdateProfileRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPut, "/profile", bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	var msg types.MessageResponse
	return decodeJSON(resp, &msg, http.StatusOK)
}

// DeleteProfile irreversibly deletes the caller's account.
func (c *Client) DeleteProfile(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, "/profile", nil, "")
	if err != nil {
		return err
	}
	var msg types.MessageResponse
	return decodeJSON(resp, &msg, http.StatusOK)
}

// UploadAvatar stores data and returns the reference to save as the image.
func (c *Client) UploadAvatar(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/profile/avatar", &buf, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	var avatar types.AvatarResponse
	if err := decodeJSON(resp, &avatar, http.StatusCreated); err != nil {
		return "", err
	}
	return avatar.Image, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: c.cookie})
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &types.APIError{Kind: types.KindTransport, Message: err.Error()}
	}
	return resp, nil
}

// decodeJSON reads the body once and returns *types.APIError for any status
// other than expected.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &types.APIError{Status: resp.StatusCode, Kind: types.KindTransport, Message: err.Error()}
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return &types.APIError{Status: resp.StatusCode, Kind: types.KindTransport, Message: fmt.Sprintf("failed to decode response: %v", err)}
	}
	return nil
}

func parseErrorResponse(status int, body []byte) error {
	apiErr := &types.APIError{Status: status, Kind: types.KindFromStatus(status)}

	var payload types.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		if payload.Kind != "" {
			apiErr.Kind = payload.Kind
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// KindOf returns the kind of an error returned by Client, or
// types.KindTransport for anything else.
func KindOf(err error) types.ErrorKind {
	var apiErr *types.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return types.KindTransport
}
