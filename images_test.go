package spacetraveling

import (
	"bytes"
	"context"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProcessBannerResizesWideImages(t *testing.T) {
	out, size, err := processBanner(bytes.NewReader(testPNG(t, 2880, 960)))
	if err != nil {
		t.Fatalf("processBanner failed: %v", err)
	}
	if size.X != 1440 || size.Y != 480 {
		t.Errorf("size = %v, want 1440x480", size)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a jpeg: %v", err)
	}
	if cfg.Width != 1440 {
		t.Errorf("jpeg width = %d", cfg.Width)
	}
}

func TestProcessBannerKeepsNarrowImages(t *testing.T) {
	_, size, err := processBanner(bytes.NewReader(testPNG(t, 640, 200)))
	if err != nil {
		t.Fatalf("processBanner failed: %v", err)
	}
	if size.X != 640 || size.Y != 200 {
		t.Errorf("size = %v, want 640x200", size)
	}
}

func TestProcessBannerRejectsGarbage(t *testing.T) {
	if _, _, err := processBanner(strings.NewReader("not an image")); err == nil {
		t.Error("expected decode error")
	}
}

func TestDownloadBanner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok.png" {
			w.Write([]byte("png-bytes"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	data, err := downloadBanner(context.Background(), srv.Client(), srv.URL+"/ok.png")
	if err != nil {
		t.Fatalf("downloadBanner failed: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("data = %q", data)
	}
	if _, err := downloadBanner(context.Background(), srv.Client(), srv.URL+"/missing.png"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestBannerFileNameKeepsUIDsApart(t *testing.T) {
	names := map[string]string{}
	for _, uid := range []string{"a_b", "a-b", "A B", "viagem-à-lua", "viagem-a-lua", "ラーメン", "日本"} {
		name := bannerFileName(uid)
		if !strings.HasSuffix(name, ".jpg") {
			t.Errorf("bannerFileName(%q) = %q, want .jpg suffix", uid, name)
		}
		if strings.ContainsAny(name, "/\\ ") {
			t.Errorf("bannerFileName(%q) = %q is not a plain file name", uid, name)
		}
		if prev, ok := names[name]; ok {
			t.Errorf("%q and %q both map to %q", prev, uid, name)
		}
		names[name] = uid
	}
	if bannerFileName("post-a") != bannerFileName("post-a") {
		t.Error("bannerFileName should be stable")
	}
	if got := bannerFileName("post-a"); !strings.HasPrefix(got, "post-a-") {
		t.Errorf("bannerFileName(post-a) = %q, want slug prefix", got)
	}
}
