package spacetraveling

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eringen/spacetraveling/cms"
)

var uidPredicate = regexp.MustCompile(`my\.posts\.uid, "([^"]*)"`)

// fakeCMS is an httptest backend speaking the search API shapes.
type fakeCMS struct {
	srv *httptest.Server

	mu       sync.Mutex
	posts    []cms.Document
	fail     bool                     // every request fails with 503
	failPage map[int]int              // page -> remaining failures
	gates    map[string]chan struct{} // uid -> released when closed
	requests int
}

func newFakeCMS(t *testing.T) *fakeCMS {
	t.Helper()
	f := &fakeCMS{failPage: map[int]int{}, gates: map[string]chan struct{}{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(func() {
		f.mu.Lock()
		for uid, gate := range f.gates {
			close(gate)
			delete(f.gates, uid)
		}
		f.mu.Unlock()
		f.srv.Close()
	})
	return f
}

func (f *fakeCMS) endpoint() string { return f.srv.URL + "/api/v2" }

func (f *fakeCMS) addPost(uid, published, title, body string) {
	data, _ := json.Marshal(map[string]interface{}{
		"title":    title,
		"subtitle": "Sobre " + title,
		"author":   "Joseph Oliveira",
		"banner":   map[string]string{"url": ""},
		"content": []map[string]interface{}{
			{
				"heading": "Introdução",
				"body":    []map[string]interface{}{{"type": "paragraph", "text": body, "spans": []interface{}{}}},
			},
		},
	})
	doc := cms.Document{ID: "id-" + uid, UID: uid, Type: cms.PostType, Data: data}
	if published != "" {
		doc.FirstPublicationDate = &published
	}
	f.mu.Lock()
	f.posts = append(f.posts, doc)
	f.mu.Unlock()
}

func (f *fakeCMS) setBanner(uid, bannerURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.posts {
		if d.UID != uid {
			continue
		}
		var data map[string]interface{}
		_ = json.Unmarshal(d.Data, &data)
		data["banner"] = map[string]string{"url": bannerURL}
		f.posts[i].Data, _ = json.Marshal(data)
	}
}

func (f *fakeCMS) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeCMS) failPageOnce(page int) {
	f.mu.Lock()
	f.failPage[page]++
	f.mu.Unlock()
}

// hold blocks lookups of uid until the returned func is called.
func (f *fakeCMS) hold(uid string) func() {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[uid] = gate
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gates[uid] == gate {
				delete(f.gates, uid)
				close(gate)
			}
			f.mu.Unlock()
		})
	}
}

func (f *fakeCMS) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeCMS) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests++
	fail := f.fail
	f.mu.Unlock()
	if fail {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	switch r.URL.Path {
	case "/api/v2":
		writeJSON(w, map[string]interface{}{
			"refs": []map[string]interface{}{{"id": "master", "ref": "master-ref", "label": "Master", "isMasterRef": true}},
		})
	case "/api/v2/documents/search":
		f.search(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeCMS) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if m := uidPredicate.FindStringSubmatch(q.Get("q")); m != nil {
		f.mu.Lock()
		gate := f.gates[m[1]]
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}
		f.mu.Lock()
		var results []cms.Document
		for _, d := range f.posts {
			if d.UID == m[1] {
				results = append(results, d)
			}
		}
		f.mu.Unlock()
		writeJSON(w, cms.SearchResponse{Page: 1, Results: results})
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(q.Get("pageSize"))
	if size < 1 {
		size = 20
	}

	f.mu.Lock()
	if f.failPage[page] > 0 {
		f.failPage[page]--
		f.mu.Unlock()
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	all := append([]cms.Document(nil), f.posts...)
	f.mu.Unlock()

	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	resp := cms.SearchResponse{Page: page, ResultsPerPage: size, Results: all[start:end]}
	if end < len(all) {
		next := url.Values{}
		next.Set("ref", q.Get("ref"))
		next.Set("q", q.Get("q"))
		next.Set("page", strconv.Itoa(page+1))
		next.Set("pageSize", strconv.Itoa(size))
		nextURL := f.srv.URL + "/api/v2/documents/search?" + next.Encode()
		resp.NextPage = &nextURL
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("palavra ", n))
}

// seedPosts adds three posts, newest first, so the first listing page of
// two has a cursor.
func seedPosts(f *fakeCMS) {
	f.addPost("post-a", "2021-03-25T19:25:28+0000", "Post A", words(50))
	f.addPost("post-b", "2021-03-15T19:25:28+0000", "Post B", words(250))
	f.addPost("post-c", "2021-03-05T19:25:28+0000", "Post C", words(10))
}

func newTestApp(t *testing.T, f *fakeCMS, opts ...func(*SiteConfig)) *App {
	t.Helper()
	cfg := SiteConfig{
		Name:          "spacetraveling",
		URL:           "https://blog.example.com",
		Description:   "Um blog sobre espaço",
		CMSEndpoint:   f.endpoint(),
		SessionSecret: "test-session-secret",
		DatabasePath:  filepath.Join(t.TempDir(), "data", "snapshot.db"),
		StaticDir:     t.TempDir(),
		FallbackWait:  time.Second,
		HTTPTimeout:   5 * time.Second,
		LogLevel:      "off",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	a := New(cfg)
	if err := a.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// testPNG encodes a w×h PNG.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func mustContain(t *testing.T, body string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func mustNotContain(t *testing.T, body string, unwanted ...string) {
	t.Helper()
	for _, u := range unwanted {
		if strings.Contains(body, u) {
			t.Errorf("body should not contain %q", u)
		}
	}
}
