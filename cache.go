package spacetraveling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eringen/spacetraveling/cms"
)

type cachedPost struct {
	post    cms.PostDetail
	fetched time.Time
}

// ContentCache is an in-memory cache of the first listing page and of post
// details with TTL. Misses go to the backend and are written through to the
// Store; when the backend fails the Store snapshot is served instead.
type ContentCache struct {
	backend  Backend
	store    *Store
	ttl      time.Duration
	pageSize int
	log      Logger
	now      func() time.Time

	mu             sync.RWMutex
	listing        *cms.PostPage
	listingFetched time.Time
	posts          map[string]cachedPost
}

// NewContentCache creates a ContentCache. pageSize is the size of the first
// listing page.
func NewContentCache(b Backend, s *Store, ttl time.Duration, pageSize int, log Logger) *ContentCache {
	return &ContentCache{
		backend:  b,
		store:    s,
		ttl:      ttl,
		pageSize: pageSize,
		log:      log,
		now:      time.Now,
		posts:    make(map[string]cachedPost),
	}
}

func (c *ContentCache) fresh(fetched time.Time) bool {
	return c.now().Sub(fetched) < c.ttl
}

// Invalidate clears the cache so the next read goes to the backend.
func (c *ContentCache) Invalidate() {
	c.mu.Lock()
	c.listing = nil
	c.posts = make(map[string]cachedPost)
	c.mu.Unlock()
}

// FirstPage returns the first page of post summaries.
func (c *ContentCache) FirstPage(ctx context.Context) (cms.PostPage, error) {
	c.mu.RLock()
	if c.listing != nil && c.fresh(c.listingFetched) {
		page := *c.listing
		c.mu.RUnlock()
		return page, nil
	}
	c.mu.RUnlock()

	page, err := c.fetchFirstPage(ctx)
	if err != nil {
		stored, _, serr := c.store.GetListing()
		if serr != nil {
			return cms.PostPage{}, err
		}
		c.log.Warnf("cache: serving stored listing: %v", err)
		return stored, nil
	}
	if err := c.store.SaveListing(page); err != nil {
		c.log.Errorf("cache: save listing: %v", err)
	}

	c.mu.Lock()
	c.listing = &page
	c.listingFetched = c.now()
	c.mu.Unlock()
	return page, nil
}

func (c *ContentCache) fetchFirstPage(ctx context.Context) (cms.PostPage, error) {
	resp, err := c.backend.Query(ctx,
		[]cms.Predicate{cms.At("document.type", cms.PostType)},
		cms.QueryOptions{Fetch: cms.SummaryFields, PageSize: c.pageSize},
	)
	if err != nil {
		return cms.PostPage{}, err
	}
	return cms.Summaries(resp)
}

// Lookup returns uid from memory only.
func (c *ContentCache) Lookup(uid string) (cms.PostDetail, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.posts[uid]
	if !ok || !c.fresh(e.fetched) {
		return cms.PostDetail{}, false
	}
	return e.post, true
}

// Known reports whether uid is cached or part of the stored snapshot.
func (c *ContentCache) Known(uid string) bool {
	if _, ok := c.Lookup(uid); ok {
		return true
	}
	_, err := c.store.GetDocument(uid)
	return err == nil
}

// Post returns the post uid. It returns cms.ErrNotFound when the backend
// reports no such post.
func (c *ContentCache) Post(ctx context.Context, uid string) (cms.PostDetail, error) {
	if post, ok := c.Lookup(uid); ok {
		return post, nil
	}

	doc, err := c.backend.GetByUID(ctx, cms.PostType, uid)
	if errors.Is(err, cms.ErrNotFound) {
		return cms.PostDetail{}, err
	}
	if err != nil {
		snap, serr := c.store.GetDocument(uid)
		if serr != nil {
			return cms.PostDetail{}, err
		}
		c.log.Warnf("cache: serving stored post %q: %v", uid, err)
		return detailFromSnapshot(snap)
	}

	if err := c.store.SaveDocument(doc); err != nil {
		c.log.Errorf("cache: save post %q: %v", uid, err)
	}
	post, err := cms.DecodePostDetail(doc)
	if err != nil {
		return cms.PostDetail{}, err
	}
	if snap, err := c.store.GetDocument(uid); err == nil && snap.BannerPath != "" {
		post.BannerURL = snap.BannerPath
	}

	c.mu.Lock()
	c.posts[uid] = cachedPost{post: post, fetched: c.now()}
	c.mu.Unlock()
	return post, nil
}

// StoredPosts returns every post of the snapshot, newest first.
func (c *ContentCache) StoredPosts() ([]cms.PostDetail, error) {
	snaps, err := c.store.ListDocuments(cms.PostType)
	if err != nil {
		return nil, err
	}
	posts := make([]cms.PostDetail, 0, len(snaps))
	for _, snap := range snaps {
		post, err := detailFromSnapshot(snap)
		if err != nil {
			c.log.Warnf("cache: skipping stored post %q: %v", snap.Document.UID, err)
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func detailFromSnapshot(snap Snapshot) (cms.PostDetail, error) {
	post, err := cms.DecodePostDetail(snap.Document)
	if err != nil {
		return cms.PostDetail{}, err
	}
	if snap.BannerPath != "" {
		post.BannerURL = snap.BannerPath
	}
	return post, nil
}
