package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/cvdreamjob/apiserver/internal/storage/storagetest"
)

var smallPNG = storagetest.PNG(4, 4)

func newAvatarService(mem *storagetest.Memory) *AvatarService {
	svc := NewAvatarService(mem)
	svc.newID = func() string { return "fixed" }
	return svc
}

func TestAvatarUpload_StoresSniffedImage(t *testing.T) {
	mem := storagetest.NewMemory("avatars")
	svc := newAvatarService(mem)
	ctx := context.Background()

	ref, err := svc.Upload(ctx, "u1", smallPNG)
	require.NoError(t, err)
	require.Equal(t, "/avatars/u1/fixed.png", ref)
	require.Equal(t, []string{"avatars/u1/fixed.png"}, mem.Keys())

	rel, ok := RelFromReference(ref)
	require.True(t, ok)
	obj, err := svc.Open(ctx, rel)
	require.NoError(t, err)
	defer obj.Body.Close()
	require.Equal(t, "image/png", obj.ContentType)
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.True(t, bytes.Equal(smallPNG, data))
}

func TestAvatarUpload_Rejections(t *testing.T) {
	svc := newAvatarService(storagetest.NewMemory("avatars"))
	ctx := context.Background()

	_, err := svc.Upload(ctx, "u1", []byte("hello, not an image"))
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Upload(ctx, "u1", nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Upload(ctx, "u1", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR truncated"))
	require.ErrorIs(t, err, ErrInvalidArgument)

	big := append(append([]byte{}, smallPNG...), make([]byte, MaxAvatarBytes)...)
	_, err = svc.Upload(ctx, "u1", big)
	require.Equal(t, "too_large", string(KindOf(err)))

	_, err = svc.Upload(ctx, "", smallPNG)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAvatarUpload_StorageFailure(t *testing.T) {
	mem := storagetest.NewMemory("avatars")
	mem.PutErr = errors.New("bucket unavailable")
	svc := newAvatarService(mem)

	_, err := svc.Upload(context.Background(), "u1", smallPNG)
	require.ErrorIs(t, err, ErrStorage)
}

func TestAvatarOpen_Missing(t *testing.T) {
	svc := newAvatarService(storagetest.NewMemory("avatars"))

	_, err := svc.Open(context.Background(), "u1/none.png")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Open(context.Background(), "../secrets")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRelFromReference(t *testing.T) {
	cases := []struct {
		ref string
		rel string
		ok  bool
	}{
		{"/avatars/u1/a.png", "u1/a.png", true},
		{"https://cv.example.com/avatars/u1/a.png", "u1/a.png", true},
		{"https://assets.example.com/manu.png", "", false},
		{"data:image/png;base64,AAAA", "", false},
		{"/avatars/../etc/passwd", "", false},
		{"/avatars/", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		rel, ok := RelFromReference(tc.ref)
		require.Equal(t, tc.ok, ok, tc.ref)
		require.Equal(t, tc.rel, rel, tc.ref)
	}
}

func TestAvatarRemoveReference_OnlyOwnUploads(t *testing.T) {
	mem := storagetest.NewMemory("avatars")
	svc := newAvatarService(mem)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "u1", smallPNG)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveReference(ctx, "u2", "/avatars/u1/fixed.png"))
	require.Len(t, mem.Keys(), 1)

	require.NoError(t, svc.RemoveReference(ctx, "u1", "https://elsewhere.example.com/x.png"))
	require.Len(t, mem.Keys(), 1)

	require.NoError(t, svc.RemoveReference(ctx, "u1", "/avatars/u1/fixed.png"))
	require.Empty(t, mem.Keys())

	mem.DeleteErr = errors.New("denied")
	require.ErrorIs(t, svc.RemoveReference(ctx, "u1", "/avatars/u1/fixed.png"), ErrStorage)
}

func TestAvatarUpload_Downscales(t *testing.T) {
	mem := storagetest.NewMemory("avatars")
	svc := newAvatarService(mem)
	ctx := context.Background()

	ref, err := svc.Upload(ctx, "u1", storagetest.JPEG(1024, 600))
	require.NoError(t, err)
	require.Equal(t, "/avatars/u1/fixed.jpg", ref)

	obj, err := svc.Open(ctx, "u1/fixed.jpg")
	require.NoError(t, err)
	defer obj.Body.Close()
	require.Equal(t, "image/jpeg", obj.ContentType)
	cfg, format, err := image.DecodeConfig(obj.Body)
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.Equal(t, AvatarMaxSide, cfg.Width)
	require.Equal(t, 300, cfg.Height)
}

func TestFitWithin(t *testing.T) {
	w, h := fitWithin(600, 1200, 512)
	require.Equal(t, 256, w)
	require.Equal(t, 512, h)

	w, h = fitWithin(5000, 2, 512)
	require.Equal(t, 512, w)
	require.Equal(t, 1, h)
}

func TestAvatarUpload_RejectsOversizedImagesBeforeDecoding(t *testing.T) {
	mem := storagetest.NewMemory("avatars")
	svc := newAvatarService(mem)
	ctx := context.Background()

	for _, size := range [][2]int{
		{8192, 8192},
		{maxAvatarDimension + 1, 1},
		{1, maxAvatarDimension + 1},
		{maxAvatarDimension, maxAvatarDimension},
		{2049, 2048},
	} {
		_, err := svc.Upload(ctx, "u1", storagetest.PNGHeader(size[0], size[1]))
		require.ErrorIs(t, err, ErrInvalidArgument, "%dx%d", size[0], size[1])
	}
	require.Empty(t, mem.Keys())
}

func TestAvatarUpload_WaitsForDecodeSlot(t *testing.T) {
	mem := storagetest.NewMemory("avatars")
	svc := newAvatarService(mem)
	svc.decodes = semaphore.NewWeighted(1)
	require.True(t, svc.decodes.TryAcquire(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Upload(ctx, "u1", storagetest.PNG(600, 600))
	require.ErrorIs(t, err, ErrStorage)

	// Small images skip decoding and never wait.
	_, err = svc.Upload(ctx, "u1", smallPNG)
	require.NoError(t, err)

	svc.decodes.Release(1)
	_, err = svc.Upload(context.Background(), "u1", storagetest.PNG(600, 600))
	require.NoError(t, err)
}
