package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// AvatarMaxSide is the longest side an avatar is stored at.
	AvatarMaxSide = 512
	// Images are rejected from their header, before decoding, when either
	// side or the total pixel count exceeds these limits.
	maxAvatarDimension = 4096
	maxAvatarPixels    = 2048 * 2048

	// maxConcurrentDecodes bounds full decodes across all uploads.
	maxConcurrentDecodes = 4

	avatarJPEGQuality = 85
)

var errUndecodableImage = errors.New("file is not a valid image")

// checkAvatarBounds reads the image header and rejects images too large to
// decode.
func checkAvatarBounds(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, errUndecodableImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, errUndecodableImage
	}
	if cfg.Width > maxAvatarDimension || cfg.Height > maxAvatarDimension {
		return image.Config{}, fmt.Errorf("image exceeds %dx%d pixels", maxAvatarDimension, maxAvatarDimension)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxAvatarPixels {
		return image.Config{}, fmt.Errorf("image exceeds %d pixels", maxAvatarPixels)
	}
	return cfg, nil
}

// downscaleAvatar decodes data and scales it to fit AvatarMaxSide.
// Downscaled JPEGs stay JPEG; every other format becomes PNG.
func downscaleAvatar(data []byte, cfg image.Config, contentType string) ([]byte, string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errUndecodableImage
	}

	width, height := fitWithin(cfg.Width, cfg.Height, AvatarMaxSide)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if contentType == "image/jpeg" {
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: avatarJPEGQuality}); err != nil {
			return nil, "", fmt.Errorf("encode avatar: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	if err := png.Encode(&buf, dst); err != nil {
		return nil, "", fmt.Errorf("encode avatar: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}

// fitWithin scales width x height down so the longer side equals side,
// keeping the aspect ratio.
func fitWithin(width, height, side int) (int, int) {
	if width >= height {
		return side, clampSide(height * side / width)
	}
	return clampSide(width * side / height), side
}

func clampSide(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
