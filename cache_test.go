package spacetraveling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eringen/spacetraveling/cms"
)

func newTestCache(t *testing.T, f *fakeCMS, ttl time.Duration) *ContentCache {
	t.Helper()
	client := cms.New(f.endpoint())
	return NewContentCache(client, setupTestStore(t), ttl, 2, &testLogger{})
}

func TestContentCacheFirstPageIsCached(t *testing.T) {
	f := newFakeCMS(t)
	seedPosts(f)
	c := newTestCache(t, f, time.Minute)

	page, err := c.FirstPage(context.Background())
	if err != nil {
		t.Fatalf("FirstPage failed: %v", err)
	}
	if len(page.Results) != 2 || page.NextPage == "" {
		t.Fatalf("page = %+v", page)
	}
	before := f.requestCount()
	if _, err := c.FirstPage(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.requestCount() != before {
		t.Error("second FirstPage should be served from memory")
	}

	c.Invalidate()
	if _, err := c.FirstPage(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.requestCount() == before {
		t.Error("Invalidate should force a reload")
	}
}

func TestContentCachePostWritesThrough(t *testing.T) {
	f := newFakeCMS(t)
	seedPosts(f)
	c := newTestCache(t, f, time.Minute)

	if c.Known("post-a") {
		t.Fatal("post should not be known before the first load")
	}
	post, err := c.Post(context.Background(), "post-a")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if post.Title != "Post A" || len(post.Content) != 1 {
		t.Errorf("post = %+v", post)
	}
	if !c.Known("post-a") {
		t.Error("loaded post should be known")
	}
	if _, ok := c.Lookup("post-a"); !ok {
		t.Error("loaded post should be in memory")
	}

	stored, err := c.StoredPosts()
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].UID != "post-a" {
		t.Errorf("StoredPosts = %+v", stored)
	}
}

func TestContentCachePostNotFound(t *testing.T) {
	f := newFakeCMS(t)
	c := newTestCache(t, f, time.Minute)

	if _, err := c.Post(context.Background(), "nope"); !errors.Is(err, cms.ErrNotFound) {
		t.Errorf("expected cms.ErrNotFound, got %v", err)
	}
}

func TestContentCacheExpires(t *testing.T) {
	f := newFakeCMS(t)
	seedPosts(f)
	c := newTestCache(t, f, time.Minute)
	clock := &fakeClock{t: time.Date(2021, 3, 5, 0, 0, 0, 0, time.UTC)}
	c.now = clock.Now

	if _, err := c.Post(context.Background(), "post-a"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)
	if _, ok := c.Lookup("post-a"); ok {
		t.Error("entry should have expired")
	}
}

func TestContentCacheFallsBackToStore(t *testing.T) {
	f := newFakeCMS(t)
	seedPosts(f)
	c := newTestCache(t, f, time.Nanosecond)

	if _, err := c.FirstPage(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Post(context.Background(), "post-b"); err != nil {
		t.Fatal(err)
	}

	f.setFail(true)
	page, err := c.FirstPage(context.Background())
	if err != nil {
		t.Fatalf("FirstPage should fall back to the store: %v", err)
	}
	if len(page.Results) != 2 {
		t.Errorf("stored page = %+v", page)
	}
	post, err := c.Post(context.Background(), "post-b")
	if err != nil {
		t.Fatalf("Post should fall back to the store: %v", err)
	}
	if post.Title != "Post B" {
		t.Errorf("Title = %q", post.Title)
	}

	if _, err := c.Post(context.Background(), "post-c"); err == nil {
		t.Error("unknown post with backend down should fail")
	}
}
