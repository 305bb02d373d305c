package spacetraveling

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	maxBannerWidth = 1440
	jpegQuality    = 80
	maxBannerSize  = 10 << 20 // 10MB
	bannersSubdir  = "banners"
)

// processBanner decodes an image from src, resizes it down to maxBannerWidth
// if wider, and encodes it as JPEG. It returns the encoded bytes and the
// final size.
func processBanner(src io.Reader) ([]byte, image.Point, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxBannerWidth {
		newH := h * maxBannerWidth / w
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxBannerWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxBannerWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), image.Pt(w, h), nil
}

// downloadBanner fetches rawURL, refusing bodies over maxBannerSize.
func downloadBanner(ctx context.Context, hc *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBannerSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBannerSize {
		return nil, fmt.Errorf("download %s: larger than %d bytes", rawURL, maxBannerSize)
	}
	return data, nil
}

// saveBanner downloads the banner of uid, stores the processed copy under
// the static directory, and returns its public path.
func (a *App) saveBanner(ctx context.Context, uid, rawURL string) (string, error) {
	data, err := downloadBanner(ctx, a.httpClient, rawURL)
	if err != nil {
		return "", err
	}
	out, size, err := processBanner(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	name := bannerFileName(uid)

	dir := filepath.Join(a.Config.StaticDir, bannersSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create banners dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), out, 0o644); err != nil {
		return "", fmt.Errorf("write banner: %w", err)
	}
	a.Echo.Logger.Infof("build: banner %s (%dx%d)", name, size.X, size.Y)
	return "/public/" + bannersSubdir + "/" + name, nil
}

// bannerFileName maps uid to a file name. The hash suffix keeps UIDs that
// slugify alike, or not at all, apart.
func bannerFileName(uid string) string {
	sum := sha256.Sum256([]byte(uid))
	suffix := hex.EncodeToString(sum[:4])
	if slug := Slugify(uid); slug != "" {
		return slug + "-" + suffix + ".jpg"
	}
	return suffix + ".jpg"
}
