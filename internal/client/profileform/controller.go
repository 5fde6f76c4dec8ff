// Package profileform holds the client-side state of the profile form: a
// transient draft loaded from the server, staged edits, and the submit and
// delete actions that push them back.
package profileform

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/cvdreamjob/apiserver/types"
)

// DefaultAvatar is displayed when the profile has no image. It is never sent
// back to the server.
const DefaultAvatar = "https://assets.aceternity.com/manu.png"

// DeletePrompt is shown by the Confirmer before an account is deleted.
const DeletePrompt = "Are you sure you want to delete your account? This action is irreversible."

// Notice messages.
const (
	MsgLoadFailed   = "Could not load your profile data."
	MsgUpdated      = "Profile updated successfully!"
	MsgUpdateFailed = "An error occurred while updating your profile."
	MsgDeleted      = "Account deleted successfully."
	MsgDeleteFailed = "An error occurred while deleting your account."
	MsgAvatarFailed = "Could not upload your avatar."
	MsgNameRequired = "Name is required."
)

// ErrBusy is returned when the same action is already in flight.
var ErrBusy = errors.New("profileform: action already in progress")

// ErrDeclined is returned by Delete when the user did not confirm.
var ErrDeclined = errors.New("profileform: deletion not confirmed")

// API is the profile resource as seen by the form.
type API interface {
	FetchProfile(ctx context.Context) (types.Profile, error)
	UpdateProfile(ctx context.Context, req types.UpdateProfileRequest) error
	DeleteProfile(ctx context.Context) error
}

// AvatarUploader turns a staged file into a stable image reference.
type AvatarUploader interface {
	UploadAvatar(ctx context.Context, filename string, data []byte) (string, error)
}

type Notifier interface {
	Notify(Notice)
}

// Confirmer asks a blocking yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Navigator leaves the authenticated area after the account is gone.
type Navigator interface {
	NavigateAway(ctx context.Context)
}

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a user-visible message. Blocking notices must be dismissed
// before the form is usable.
type Notice struct {
	Level    Level
	Kind     types.ErrorKind
	Message  string
	Blocking bool
}

// Draft is the editable copy of the profile. Email is read only and
// NewPassword is never filled from a fetch.
type Draft struct {
	Name        string
	Email       string
	Image       *string
	NewPassword string
}

type stagedFile struct {
	name string
	data []byte
}

// View is a snapshot for rendering.
type View struct {
	Draft
	// DisplayImage is the preview, the stored image or DefaultAvatar.
	DisplayImage string
	AvatarStaged bool
	Loading      bool
	LoadFailed   bool
	Saving       bool
	Deleting     bool
}

type Controller struct {
	api       API
	uploader  AvatarUploader
	notifier  Notifier
	confirmer Confirmer
	navigator Navigator

	mu         sync.Mutex
	draft      Draft
	staged     *stagedFile
	preview    string
	loading    bool
	loadFailed bool
	saving     bool
	deleting   bool
}

type Option func(*Controller)

// WithAvatarUploader uploads staged files before Submit. Without it the
// preview data URL is sent as the image.
func WithAvatarUploader(u AvatarUploader) Option {
	return func(c *Controller) { c.uploader = u }
}

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func WithConfirmer(cf Confirmer) Option {
	return func(c *Controller) { c.confirmer = cf }
}

func WithNavigator(n Navigator) Option {
	return func(c *Controller) { c.navigator = n }
}

func New(api API, opts ...Option) *Controller {
	c := &Controller{api: api}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches the profile and replaces the draft wholesale.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	profile, err := c.api.FetchProfile(ctx)

	c.mu.Lock()
	c.loading = false
	if err != nil {
		c.loadFailed = true
		c.mu.Unlock()
		c.notify(Notice{Level: LevelError, Kind: kindOf(err), Message: MsgLoadFailed, Blocking: true})
		return err
	}
	c.loadFailed = false
	c.draft = Draft{Name: profile.Name, Email: profile.Email, Image: profile.Image}
	c.staged = nil
	c.preview = ""
	c.mu.Unlock()
	return nil
}

func (c *Controller) SetName(name string) {
	c.mu.Lock()
	c.draft.Name = name
	c.mu.Unlock()
}

// SetPassword stages a new password. An empty value keeps the current one.
func (c *Controller) SetPassword(password string) {
	c.mu.Lock()
	c.draft.NewPassword = password
	c.mu.Unlock()
}

// SetImage replaces the image reference and drops any staged file.
func (c *Controller) SetImage(ref *string) {
	c.mu.Lock()
	c.draft.Image = ref
	c.staged = nil
	c.preview = ""
	c.mu.Unlock()
}

// SelectAvatar stages a local file and renders it as a data URL preview.
// Nothing is uploaded until Submit.
func (c *Controller) SelectAvatar(filename string, data []byte) {
	preview := DataURL(data)

	c.mu.Lock()
	c.staged = &stagedFile{name: filename, data: data}
	c.preview = preview
	c.mu.Unlock()
}

// Submit sends the full draft. On success only the password and the staged
// file are cleared.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.saving {
		c.mu.Unlock()
		return ErrBusy
	}
	c.saving = true
	draft := c.draft
	staged := c.staged
	preview := c.preview
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.saving = false
		c.mu.Unlock()
	}()

	image := draft.Image
	if staged != nil {
		if c.uploader != nil {
			ref, err := c.uploader.UploadAvatar(ctx, staged.name, staged.data)
			if err != nil {
				c.notify(Notice{Level: LevelError, Kind: kindOf(err), Message: MsgAvatarFailed})
				return err
			}
			image = &ref
		} else {
			image = &preview
		}
	}

	req := types.UpdateProfileRequest{Name: draft.Name, Image: image}
	if draft.NewPassword != "" {
		password := draft.NewPassword
		req.Password = &password
	}

	if err := c.api.UpdateProfile(ctx, req); err != nil {
		msg := MsgUpdateFailed
		if kindOf(err) == types.KindInvalidArgument && strings.TrimSpace(draft.Name) == "" {
			msg = MsgNameRequired
		}
		c.notify(Notice{Level: LevelError, Kind: kindOf(err), Message: msg})
		return err
	}

	c.mu.Lock()
	// Edits made while the request was in flight are kept.
	if sameRef(c.draft.Image, draft.Image) {
		c.draft.Image = image
	}
	if c.draft.NewPassword == draft.NewPassword {
		c.draft.NewPassword = ""
	}
	if c.staged == staged {
		c.staged = nil
		c.preview = ""
	}
	c.mu.Unlock()

	c.notify(Notice{Level: LevelSuccess, Message: MsgUpdated})
	return nil
}

// Delete asks for confirmation and deletes the account. A declined prompt
// sends nothing and returns ErrDeclined.
func (c *Controller) Delete(ctx context.Context) error {
	c.mu.Lock()
	if c.deleting {
		c.mu.Unlock()
		return ErrBusy
	}
	c.deleting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.deleting = false
		c.mu.Unlock()
	}()

	if c.confirmer == nil {
		return ErrDeclined
	}
	ok, err := c.confirmer.Confirm(ctx, DeletePrompt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeclined
	}

	if err := c.api.DeleteProfile(ctx); err != nil {
		c.notify(Notice{Level: LevelError, Kind: kindOf(err), Message: MsgDeleteFailed})
		return err
	}

	c.notify(Notice{Level: LevelSuccess, Message: MsgDeleted})
	if c.navigator != nil {
		c.navigator.NavigateAway(ctx)
	}
	return nil
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Draft:        c.draft,
		AvatarStaged: c.staged != nil,
		Loading:      c.loading,
		LoadFailed:   c.loadFailed,
		Saving:       c.saving,
		Deleting:     c.deleting,
	}
	switch {
	case c.preview != "":
		v.DisplayImage = c.preview
	case c.draft.Image != nil && *c.draft.Image != "":
		v.DisplayImage = *c.draft.Image
	default:
		v.DisplayImage = DefaultAvatar
	}
	return v
}

func (c *Controller) notify(n Notice) {
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
}

// DataURL encodes data for inline preview.
func DataURL(data []byte) string {
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func kindOf(err error) types.ErrorKind {
	var apiErr *types.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return types.KindTransport
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
