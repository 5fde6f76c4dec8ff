package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cvdreamjob/apiserver/internal/logging"
	"github.com/cvdreamjob/apiserver/internal/store"
	"github.com/cvdreamjob/apiserver/types"
)

const defaultOpTimeout = 10 * time.Second

// Password-path stages, logged as the update progresses.
const (
	stageStart             = "START"
	stageUserRowUpdated    = "USER_ROW_UPDATED"
	stageCredentialUpdated = "CREDENTIAL_ROW_UPDATED"
)

// AvatarRemover deletes a stored avatar given the image reference kept on the
// user row. References that do not point into the avatar store are ignored.
type AvatarRemover interface {
	RemoveReference(ctx context.Context, userID, ref string) error
}

// ProfileService implements read, update and delete of the caller's own
// account. Every operation is keyed by the session's user id.
type ProfileService struct {
	store   *store.Store
	hasher  PasswordHasher
	events  EventPublisher
	channel string
	avatars AvatarRemover
	now     func() time.Time
	timeout time.Duration
}

type ProfileOption func(*ProfileService)

// WithEvents publishes profile events to channel after committed mutations.
func WithEvents(p EventPublisher, channel string) ProfileOption {
	return func(s *ProfileService) {
		s.events = p
		s.channel = channel
	}
}

// WithAvatarCleanup removes the stored avatar of deleted accounts.
func WithAvatarCleanup(r AvatarRemover) ProfileOption {
	return func(s *ProfileService) { s.avatars = r }
}

func WithClock(now func() time.Time) ProfileOption {
	return func(s *ProfileService) { s.now = now }
}

// WithTimeout bounds the storage work of each operation.
func WithTimeout(d time.Duration) ProfileOption {
	return func(s *ProfileService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewProfileService(st *store.Store, hasher PasswordHasher, opts ...ProfileOption) *ProfileService {
	s := &ProfileService{
		store:   st,
		hasher:  hasher,
		now:     time.Now,
		timeout: defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns the public projection of the caller's user row.
func (s *ProfileService) Fetch(ctx context.Context, userID string) (types.Profile, error) {
	const op = "profile.fetch"
	if userID == "" {
		return types.Profile{}, newError(types.KindUnauthorized, op, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	profile, err := s.store.Users().GetProfile(ctx, userID)
	if err != nil {
		return types.Profile{}, classify(op, err, "user not found")
	}
	return profile, nil
}

// Update replaces name and image. A non-empty password is hashed and written
// to the credentials account in the same transaction as the user row.
func (s *ProfileService) Update(ctx context.Context, userID string, req types.UpdateProfileRequest) error {
	const op = "profile.update"
	if userID == "" {
		return newError(types.KindUnauthorized, op, nil)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return invalidArgument(op, "name is required")
	}

	logger := logging.FromContext(ctx).With("op", op, "user_id", userID)
	passwordChanged := req.Password != nil && *req.Password != ""

	// Hash outside the transaction so no connection is held across bcrypt.
	var hashed string
	if passwordChanged {
		var err error
		if hashed, err = s.hasher.Hash(*req.Password); err != nil {
			return newError(types.KindStorage, op, err)
		}
	}

	previous, err := s.writeProfile(ctx, logger, userID, name, req.Image, hashed)
	if err != nil {
		return err
	}
	s.removeReplacedAvatar(ctx, logger, userID, previous, req.Image)

	publish(ctx, s.events, s.channel, types.ProfileEvent{
		Type:            types.EventProfileUpdated,
		UserID:          userID,
		PasswordChanged: passwordChanged,
		OccurredAt:      s.now().UTC().Format(time.RFC3339),
	})
	return nil
}

// writeProfile updates the user row and, when hashed is set, the credential
// row in one transaction. It returns the image reference that was replaced.
func (s *ProfileService) writeProfile(ctx context.Context, logger *slog.Logger, userID, name string, image *string, hashed string) (*string, error) {
	const op = "profile.update"
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stage := stageStart
	logger.Debug("profile update", "stage", stage)

	var previous *string
	outcome, err := s.store.WithTx(ctx, func(tx *store.Store) error {
		var err error
		if previous, err = tx.Users().Image(ctx, userID); err != nil {
			return err
		}

		at := s.now().UTC()
		if err := tx.Users().UpdateProfile(ctx, userID, name, image, at); err != nil {
			return err
		}
		stage = stageUserRowUpdated
		logger.Debug("profile update", "stage", stage)
		if hashed == "" {
			return nil
		}

		if err := tx.Accounts().UpdatePassword(ctx, userID, hashed, at); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return invalidArgument(op, "account has no password credential")
			}
			return err
		}
		stage = stageCredentialUpdated
		logger.Debug("profile update", "stage", stage)
		return nil
	})
	if err != nil {
		logger.Warn("profile update rolled back", "stage", stage, "outcome", outcome.String(), "err", err)
		return nil, classify(op, err, "user not found")
	}
	logger.Info("profile update", "outcome", outcome.String(), "password_changed", hashed != "")
	return previous, nil
}

// removeReplacedAvatar deletes the caller's previously stored avatar once a
// different image has been committed.
func (s *ProfileService) removeReplacedAvatar(ctx context.Context, logger *slog.Logger, userID string, previous, current *string) {
	if s.avatars == nil || previous == nil {
		return
	}
	if current != nil && *current == *previous {
		return
	}
	if err := s.avatars.RemoveReference(ctx, userID, *previous); err != nil {
		logger.Warn("remove replaced avatar", "err", err)
	}
}

// Delete removes the caller's user row; accounts and sessions follow by
// cascade. ErrNotFound is returned when there was nothing to delete.
func (s *ProfileService) Delete(ctx context.Context, userID string) error {
	const op = "profile.delete"
	if userID == "" {
		return newError(types.KindUnauthorized, op, nil)
	}

	dbCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	image, err := s.store.Users().Delete(dbCtx, userID)
	if err != nil {
		return classify(op, err, "user not found")
	}

	logger := logging.FromContext(ctx)
	logger.Info("account deleted", "user_id", userID)

	if s.avatars != nil && image != nil {
		if err := s.avatars.RemoveReference(ctx, userID, *image); err != nil {
			logger.Warn("remove avatar of deleted account", "user_id", userID, "err", err)
		}
	}

	publish(ctx, s.events, s.channel, types.ProfileEvent{
		Type:       types.EventProfileDeleted,
		UserID:     userID,
		OccurredAt: s.now().UTC().Format(time.RFC3339),
	})
	return nil
}

// classify maps store and transaction errors to service kinds.
func classify(op string, err error, notFoundMsg string) error {
	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		return svcErr
	case errors.Is(err, store.ErrNotFound):
		return newError(types.KindNotFound, op, errors.New(notFoundMsg))
	default:
		return newError(types.KindStorage, op, err)
	}
}
