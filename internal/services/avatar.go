package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/cvdreamjob/apiserver/internal/storage"
	"github.com/cvdreamjob/apiserver/types"
)

const (
	// MaxAvatarBytes caps an uploaded avatar.
	MaxAvatarBytes = 5 << 20

	// AvatarPathPrefix is the public path under which avatars are served.
	AvatarPathPrefix = "/avatars/"

	avatarKeyPrefix = "avatars/"
)

var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ObjectStore is the subset of *storage.Storage used for avatars.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (*storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// AvatarService stores avatar images and hands out stable references that
// can be saved as a user's image.
type AvatarService struct {
	objects ObjectStore
	newID   func() string
	decodes *semaphore.Weighted
}

func NewAvatarService(objects ObjectStore) *AvatarService {
	return &AvatarService{
		objects: objects,
		newID:   uuid.NewString,
		decodes: semaphore.NewWeighted(maxConcurrentDecodes),
	}
}

// Upload stores data as a new avatar of userID and returns its reference.
// The content type is sniffed from the bytes, not taken from the client, and
// oversized images are downscaled first.
func (s *AvatarService) Upload(ctx context.Context, userID string, data []byte) (string, error) {
	const op = "avatar.upload"
	if userID == "" {
		return "", newError(types.KindUnauthorized, op, nil)
	}
	if len(data) == 0 {
		return "", invalidArgument(op, "file is empty")
	}
	if len(data) > MaxAvatarBytes {
		return "", newError(types.KindTooLarge, op, fmt.Errorf("file exceeds %d bytes", MaxAvatarBytes))
	}

	contentType := http.DetectContentType(data)
	if _, ok := avatarExtensions[contentType]; !ok {
		return "", invalidArgument(op, "file must be a png, jpeg, gif or webp image")
	}
	cfg, err := checkAvatarBounds(data)
	if err != nil {
		return "", newError(types.KindInvalidArgument, op, err)
	}
	if cfg.Width > AvatarMaxSide || cfg.Height > AvatarMaxSide {
		if err := s.decodes.Acquire(ctx, 1); err != nil {
			return "", newError(types.KindStorage, op, err)
		}
		data, contentType, err = downscaleAvatar(data, cfg, contentType)
		s.decodes.Release(1)
		if err != nil {
			return "", newError(types.KindInvalidArgument, op, err)
		}
	}
	ext := avatarExtensions[contentType]

	rel := userID + "/" + s.newID() + ext
	if err := s.objects.Put(ctx, avatarKeyPrefix+rel, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", newError(types.KindStorage, op, err)
	}
	return AvatarPathPrefix + rel, nil
}

// Open streams a stored avatar. rel is the part of the reference after
// AvatarPathPrefix.
func (s *AvatarService) Open(ctx context.Context, rel string) (*storage.Object, error) {
	const op = "avatar.open"
	if !validRel(rel) {
		return nil, newError(types.KindNotFound, op, errors.New("avatar not found"))
	}
	obj, err := s.objects.Get(ctx, avatarKeyPrefix+rel)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, newError(types.KindNotFound, op, errors.New("avatar not found"))
		}
		return nil, newError(types.KindStorage, op, err)
	}
	return obj, nil
}

// RemoveReference deletes the stored avatar ref points to, if it is one of
// userID's own uploads. Other references are left alone.
func (s *AvatarService) RemoveReference(ctx context.Context, userID, ref string) error {
	rel, ok := RelFromReference(ref)
	if !ok || !strings.HasPrefix(rel, userID+"/") {
		return nil
	}
	if err := s.objects.Delete(ctx, avatarKeyPrefix+rel); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return newError(types.KindStorage, "avatar.remove", err)
	}
	return nil
}

// RelFromReference extracts the stored-avatar path from an image reference.
// Both "/avatars/u1/x.png" and absolute URLs with that path are accepted.
func RelFromReference(ref string) (string, bool) {
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	rel, ok := strings.CutPrefix(u.Path, AvatarPathPrefix)
	if !ok || !validRel(rel) {
		return "", false
	}
	return rel, true
}

func validRel(rel string) bool {
	if rel == "" || strings.HasPrefix(rel, "/") || path.Clean(rel) != rel {
		return false
	}
	return !strings.HasPrefix(rel, "../") && rel != ".."
}
